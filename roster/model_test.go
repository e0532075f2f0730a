/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package roster

import (
	"testing"

	"github.com/ortuman/civet/xmpp/jid"
	"github.com/stretchr/testify/require"
)

func TestStatus_ShowMapping(t *testing.T) {
	require.Equal(t, "away", Away.Show())
	require.Equal(t, "dnd", DoNotDisturb.Show())
	require.Equal(t, "chat", FreeForChat.Show())
	require.Equal(t, "xa", NotAvailable.Show())
	require.Equal(t, "", Available.Show())

	require.Equal(t, Away, StatusFromShow("away"))
	require.Equal(t, DoNotDisturb, StatusFromShow("dnd"))
	require.Equal(t, FreeForChat, StatusFromShow("chat"))
	require.Equal(t, NotAvailable, StatusFromShow("xa"))
	require.Equal(t, Available, StatusFromShow(""))
	require.Equal(t, Available, StatusFromShow("bogus"))
}

func TestSubscription_Parse(t *testing.T) {
	require.Equal(t, SubTo, ParseSubscription("to"))
	require.Equal(t, SubFrom, ParseSubscription("from"))
	require.Equal(t, SubBoth, ParseSubscription("both"))
	require.Equal(t, SubNone, ParseSubscription("none"))
	require.Equal(t, SubNone, ParseSubscription("remove"))
}

func TestRoleAffiliation_Parse(t *testing.T) {
	require.Equal(t, RoleModerator, ParseRole("moderator"))
	require.Equal(t, RoleParticipant, ParseRole("participant"))
	require.Equal(t, RoleVisitor, ParseRole("visitor"))
	require.Equal(t, RoleNone, ParseRole("none"))

	require.Equal(t, AffiliationOwner, ParseAffiliation("owner"))
	require.Equal(t, AffiliationAdmin, ParseAffiliation("admin"))
	require.Equal(t, AffiliationMember, ParseAffiliation("member"))
	require.Equal(t, AffiliationOutcast, ParseAffiliation("outcast"))
	require.Equal(t, AffiliationNone, ParseAffiliation("none"))
}

func TestBuddy_SetKind(t *testing.T) {
	j, _ := jid.NewWithString("coven@muc.jackal.im", true)
	b := newBuddy(j, "", User)

	b.SetKind(Room)
	require.Equal(t, Room, b.Kind())

	// rooms never degrade back to plain contacts
	b.SetKind(User)
	require.Equal(t, Room, b.Kind())
}

func TestBuddy_Resources(t *testing.T) {
	j, _ := jid.NewWithString("ortuman@jackal.im", true)
	b := newBuddy(j, "", User)

	b.UpsertResource(&Resource{Name: "yard", Status: Available})
	b.UpsertResource(&Resource{Name: "balcony", Status: Away})

	resources := b.Resources()
	require.Len(t, resources, 2)
	require.Equal(t, "balcony", resources[0].Name)
	require.Equal(t, "yard", resources[1].Name)

	b.RemoveAllResources()
	require.Len(t, b.Resources(), 0)
}
