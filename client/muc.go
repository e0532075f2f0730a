/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package client

import (
	"fmt"

	"github.com/ortuman/civet/roster"
	"github.com/ortuman/civet/ui"
	"github.com/ortuman/civet/xmpp"
)

// handleMUCPresence processes a room occupant presence carrying
// a muc#user extension.
func (c *Client) handleMUCPresence(presence *xmpp.Presence, x xmpp.XElement) {
	if presence.Type() == xmpp.ErrorType {
		c.handleErrorPresence(presence)
		return
	}
	from := presence.FromJID()
	roomBare := from.ToBareJID().String()
	nick := from.Resource()

	room := c.roster.Upsert(from.ToBareJID(), "", "", roster.Room)
	room.SetKind(roster.Room)

	codes := mucStatusCodes(x)
	item := x.Elements().Child("item")

	role := roster.RoleNone
	affiliation := roster.AffiliationNone
	realJID := ""
	newNick := ""
	reason := ""
	actor := ""
	if item != nil {
		role = roster.ParseRole(item.Attributes().Get("role"))
		affiliation = roster.ParseAffiliation(item.Attributes().Get("affiliation"))
		realJID = item.Attributes().Get("jid")
		newNick = item.Attributes().Get("nick")
		if r := item.Elements().Child("reason"); r != nil {
			reason = r.Text()
		}
		if a := item.Elements().Child("actor"); a != nil {
			actor = a.Attributes().Get("nick")
			if len(actor) == 0 {
				actor = a.Attributes().Get("jid")
			}
		}
	}
	self := codes["110"] || nick == room.Nickname ||
		(!room.InsideRoom() && nick == c.attemptedNick(roomBare))

	if presence.IsUnavailable() {
		c.handleMUCLeave(presence, x, room, nick, self, codes, newNick, actor, reason)
		return
	}

	arrived := room.Resource(nick) == nil

	st := roster.StatusFromShow(presence.Show())
	c.roster.SetMemberStatus(from.ToBareJID(), nick, presence.Priority(), st,
		presence.Status(), role, affiliation, realJID)

	if self {
		if !room.InsideRoom() {
			room.Nickname = nick
			c.forgetAttemptedNick(roomBare)
			c.screen.WriteLine(roomBare,
				fmt.Sprintf("You have joined %s as %s", roomBare, nick), ui.LineInfo)
			if codes["201"] {
				c.screen.WriteLine(roomBare,
					"This room has been created and is locked; configure it to unlock", ui.LineWarning)
			}
		}
	} else if room.InsideRoom() && arrived {
		line := fmt.Sprintf("%s has joined", nick)
		if c.cfg.AutoWhois {
			line = fmt.Sprintf("%s has joined [%s]", nick, memberRecord(realJID, role, affiliation, st))
		}
		c.screen.WriteLine(roomBare, line, ui.LineInfo)
	}
	c.screen.RosterChanged()
}

func (c *Client) handleMUCLeave(presence *xmpp.Presence, x xmpp.XElement, room *roster.Buddy,
	nick string, self bool, codes map[string]bool, newNick, actor, reason string) {
	roomBare := room.BareJID().String()

	if codes["303"] && len(newNick) > 0 {
		// nickname change; the occupant rejoins under the new nick
		room.RemoveResource(nick)
		if self {
			room.Nickname = newNick
			c.screen.WriteLine(roomBare,
				fmt.Sprintf("You are now known as %s", newNick), ui.LineInfo)
		} else {
			c.screen.WriteLine(roomBare,
				fmt.Sprintf("%s is now known as %s", nick, newNick), ui.LineInfo)
		}
		c.screen.RosterChanged()
		return
	}

	var cause string
	switch {
	case x.Elements().Child("destroy") != nil:
		cause = "the room has been destroyed"
		if d := x.Elements().Child("destroy"); d != nil {
			if r := d.Elements().Child("reason"); r != nil && len(r.Text()) > 0 {
				cause += ": " + r.Text()
			}
		}
	case codes["307"]:
		cause = "kicked from the room"
	case codes["301"]:
		cause = "banned from the room"
	case codes["321"]:
		cause = "removed due to an affiliation change"
	case codes["322"]:
		cause = "removed because the room became members-only"
	case codes["332"]:
		cause = "removed due to a system shutdown"
	}
	if len(cause) > 0 {
		if len(actor) > 0 {
			cause += " by " + actor
		}
		if len(reason) > 0 {
			cause += " (" + reason + ")"
		}
	}

	if self {
		if room.InsideRoom() {
			room.Nickname = ""
			room.RemoveAllResources()
			c.forgetAttemptedNick(roomBare)
			if len(cause) > 0 {
				c.screen.WriteLine(roomBare, "You have been "+cause, ui.LineWarning)
			} else {
				c.screen.WriteLine(roomBare, "You have left "+roomBare, ui.LineInfo)
			}
			c.screen.RosterChanged()
		}
		return
	}
	if room.Resource(nick) == nil {
		return
	}
	room.RemoveResource(nick)
	line := fmt.Sprintf("%s has left", nick)
	if len(cause) > 0 {
		line = fmt.Sprintf("%s has been %s", nick, cause)
	} else if status := presence.Status(); len(status) > 0 {
		line = fmt.Sprintf("%s has left (%s)", nick, status)
	}
	c.screen.WriteLine(roomBare, line, ui.LineInfo)
	c.screen.RosterChanged()
}

func (c *Client) attemptedNick(roomBare string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.attemptedNicks[roomBare]
}

func (c *Client) forgetAttemptedNick(roomBare string) {
	c.mu.Lock()
	delete(c.attemptedNicks, roomBare)
	c.mu.Unlock()
}

func memberRecord(realJID string, role roster.Role, affiliation roster.Affiliation, st roster.Status) string {
	record := fmt.Sprintf("%s/%s/%s", role.String(), affiliation.String(), st.String())
	if len(realJID) > 0 {
		record += " <" + realJID + ">"
	}
	return record
}

func mucStatusCodes(x xmpp.XElement) map[string]bool {
	codes := map[string]bool{}
	for _, st := range x.Elements().Children("status") {
		if code := st.Attributes().Get("code"); len(code) > 0 {
			codes[code] = true
		}
	}
	return codes
}
