/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xmpp_test

import (
	"testing"

	"github.com/ortuman/civet/xmpp"
	"github.com/ortuman/civet/xmpp/jid"
	"github.com/stretchr/testify/require"
)

func TestElementBuild(t *testing.T) {
	e := xmpp.NewElementNamespace("query", "jabber:iq:roster")
	require.Equal(t, "query", e.Name())
	require.Equal(t, "jabber:iq:roster", e.Namespace())

	e.SetAttribute("ver", "v1")
	require.Equal(t, "v1", e.Attributes().Get("ver"))
	e.RemoveAttribute("ver")
	require.Equal(t, "", e.Attributes().Get("ver"))

	item := xmpp.NewElementName("item")
	item.SetAttribute("jid", "romeo@jackal.im")
	e.AppendElement(item)
	require.Equal(t, 1, e.Elements().Count())
	require.NotNil(t, e.Elements().Child("item"))

	cp := xmpp.NewElementFromElement(e)
	require.Equal(t, e.String(), cp.String())

	e.RemoveElements("item")
	require.Equal(t, 0, e.Elements().Count())
	require.Equal(t, 1, cp.Elements().Count())
}

func TestElementSerialization(t *testing.T) {
	e := xmpp.NewElementName("presence")
	e.SetID("id1")
	require.Equal(t, `<presence id="id1"/>`, e.String())

	st := xmpp.NewElementName("status")
	st.SetText("away & busy")
	e.AppendElement(st)
	require.Equal(t, `<presence id="id1"><status>away &amp; busy</status></presence>`, e.String())
}

func TestIQBuild(t *testing.T) {
	j, _ := jid.New("ortuman", "jackal.im", "balcony", false)

	elem := xmpp.NewElementName("message")
	_, err := xmpp.NewIQFromElement(elem, j, j) // wrong name...
	require.NotNil(t, err)

	elem.SetName("iq")
	_, err = xmpp.NewIQFromElement(elem, j, j) // no ID...
	require.NotNil(t, err)

	elem.SetID("iq1")
	_, err = xmpp.NewIQFromElement(elem, j, j) // no type...
	require.NotNil(t, err)

	elem.SetType("invalid")
	_, err = xmpp.NewIQFromElement(elem, j, j) // invalid type...
	require.NotNil(t, err)

	elem.SetType(xmpp.GetType)
	_, err = xmpp.NewIQFromElement(elem, j, j) // 'get' with no child...
	require.NotNil(t, err)

	elem.AppendElement(xmpp.NewElementNamespace("query", "jabber:iq:version"))
	iq, err := xmpp.NewIQFromElement(elem, j, j)
	require.Nil(t, err)
	require.NotNil(t, iq)
	require.True(t, iq.IsGet())
	require.NotNil(t, iq.Query())

	res := iq.ResultIQ()
	require.Equal(t, "iq1", res.ID())
	require.True(t, res.IsResult())
}

func TestMessageBuild(t *testing.T) {
	j1, _ := jid.New("ortuman", "jackal.im", "balcony", false)
	j2, _ := jid.New("romeo", "jackal.im", "garden", false)

	elem := xmpp.NewElementName("message")
	elem.SetType("invalid")
	_, err := xmpp.NewMessageFromElement(elem, j1, j2)
	require.NotNil(t, err)

	elem.SetType(xmpp.ChatType)
	body := xmpp.NewElementName("body")
	body.SetText("hi there")
	subj := xmpp.NewElementName("subject")
	subj.SetText("greeting")
	elem.AppendElement(body)
	elem.AppendElement(subj)

	msg, err := xmpp.NewMessageFromElement(elem, j1, j2)
	require.Nil(t, err)
	require.True(t, msg.IsChat())
	require.True(t, msg.IsMessageWithBody())
	require.Equal(t, "hi there", msg.Body())
	require.Equal(t, "greeting", msg.Subject())
	require.True(t, msg.HasSubject())
	require.False(t, msg.IsDelayed())
}

func TestMessageDelay(t *testing.T) {
	j1, _ := jid.New("ortuman", "jackal.im", "balcony", false)
	j2, _ := jid.New("romeo", "jackal.im", "garden", false)

	elem := xmpp.NewElementName("message")
	elem.SetType(xmpp.GroupChatType)
	d := xmpp.NewElementNamespace("delay", "urn:xmpp:delay")
	d.SetAttribute("stamp", "2020-04-05T10:20:30Z")
	elem.AppendElement(d)

	msg, err := xmpp.NewMessageFromElement(elem, j1, j2)
	require.Nil(t, err)
	require.True(t, msg.IsDelayed())
	ts := msg.Timestamp()
	require.Equal(t, 2020, ts.Year())
	require.Equal(t, 30, ts.Second())
}

func TestPresenceBuild(t *testing.T) {
	j1, _ := jid.New("ortuman", "jackal.im", "balcony", false)
	j2, _ := jid.New("romeo", "jackal.im", "garden", false)

	elem := xmpp.NewElementName("presence")
	elem.SetType("invalid")
	_, err := xmpp.NewPresenceFromElement(elem, j1, j2)
	require.NotNil(t, err)

	elem.SetType(xmpp.AvailableType)
	show := xmpp.NewElementName("show")
	show.SetText("dnd")
	status := xmpp.NewElementName("status")
	status.SetText("busy")
	prio := xmpp.NewElementName("priority")
	prio.SetText("10")
	elem.AppendElement(show)
	elem.AppendElement(status)
	elem.AppendElement(prio)

	p, err := xmpp.NewPresenceFromElement(elem, j1, j2)
	require.Nil(t, err)
	require.True(t, p.IsAvailable())
	require.Equal(t, "dnd", p.Show())
	require.Equal(t, "busy", p.Status())
	require.Equal(t, int8(10), p.Priority())

	elem.AppendElement(xmpp.NewElementName("priority"))
	_, err = xmpp.NewPresenceFromElement(elem, j1, j2)
	require.NotNil(t, err)
}

func TestStanzaErrorDecode(t *testing.T) {
	elem := xmpp.NewElementName("presence")
	require.Nil(t, xmpp.DecodeStanzaError(elem))

	errEl := xmpp.NewElementName("error")
	errEl.SetAttribute("code", "409")
	errEl.SetAttribute("type", "cancel")
	errEl.AppendElement(xmpp.NewElementNamespace("conflict", "urn:ietf:params:xml:ns:xmpp-stanzas"))
	elem.AppendElement(errEl)
	elem.SetType(xmpp.ErrorType)

	se := xmpp.DecodeStanzaError(elem)
	require.NotNil(t, se)
	require.Equal(t, 409, se.Code())
	require.Equal(t, "conflict", se.Reason())
	require.Equal(t, "409 conflict", se.Error())

	txt := xmpp.NewElementName("text")
	txt.SetText("nickname already in use")
	errEl.AppendElement(txt)
	se = xmpp.DecodeStanzaError(elem)
	require.Equal(t, "409 nickname already in use", se.Error())
}

func TestStanzaFromElement(t *testing.T) {
	elem := xmpp.NewElementName("presence")
	elem.SetFrom("romeo@jackal.im/garden")
	elem.SetTo("ortuman@jackal.im")
	st, err := xmpp.NewStanzaFromElement(elem)
	require.Nil(t, err)
	require.Equal(t, "romeo@jackal.im/garden", st.FromJID().String())

	elem.SetName("vehicle")
	_, err = xmpp.NewStanzaFromElement(elem)
	require.NotNil(t, err)
}
