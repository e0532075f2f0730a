/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package client

import (
	"strings"
	"sync"
	"testing"

	"github.com/ortuman/civet/events"
	"github.com/ortuman/civet/private"
	"github.com/ortuman/civet/requests"
	"github.com/ortuman/civet/roster"
	"github.com/ortuman/civet/session"
	"github.com/ortuman/civet/storage/memstorage"
	"github.com/ortuman/civet/ui"
	"github.com/ortuman/civet/xmpp"
	"github.com/ortuman/civet/xmpp/jid"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu         sync.Mutex
	sent       []xmpp.XElement
	state      session.State
	correlator *requests.Correlator
	connects   int
	ownJID     *jid.JID
}

func newFakeSession() *fakeSession {
	j, _ := jid.NewWithString("ortuman@jackal.im/balcony", true)
	fs := &fakeSession{state: session.Ready, ownJID: j}
	fs.correlator = requests.New(fs)
	return fs
}

func (f *fakeSession) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return nil
}

func (f *fakeSession) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = session.Disconnected
}

func (f *fakeSession) SendElement(elem xmpp.XElement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, elem)
	return nil
}

func (f *fakeSession) SendKeepalive()                 {}
func (f *fakeSession) Requests() *requests.Correlator { return f.correlator }
func (f *fakeSession) JID() *jid.JID                  { return f.ownJID }
func (f *fakeSession) StreamID() string               { return "stream01" }
func (f *fakeSession) LastError() error               { return nil }

func (f *fakeSession) State() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSession) sentElements(name string) []xmpp.XElement {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ret []xmpp.XElement
	for _, elem := range f.sent {
		if elem.Name() == name {
			ret = append(ret, elem)
		}
	}
	return ret
}

type fakeScreen struct {
	mu            sync.Mutex
	lines         map[string][]string
	rosterChanges int
}

func newFakeScreen() *fakeScreen {
	return &fakeScreen{lines: map[string][]string{}}
}

func (s *fakeScreen) WriteLine(buffer string, line string, _ ui.LineFlags) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines[buffer] = append(s.lines[buffer], line)
}

func (s *fakeScreen) RosterChanged() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rosterChanges++
}

func (s *fakeScreen) StateChanged(_ string) {}
func (s *fakeScreen) StatusLine(_ string)   {}

func (s *fakeScreen) countLines(buffer, substr string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, line := range s.lines[buffer] {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}

func newTestClient(t *testing.T) (*Client, *fakeSession, *fakeScreen) {
	t.Helper()
	cfg := &Config{
		HistoryLimit:      defaultHistoryLimit,
		ReconnectInterval: defaultReconnectInterval,
	}
	scr := newFakeScreen()
	c := newClient(cfg, scr, memstorage.New())
	fs := newFakeSession()
	c.session = fs
	c.private = private.New(fs.correlator)
	return c, fs, scr
}

func goOnline(c *Client) {
	c.mu.Lock()
	c.online = true
	c.mu.Unlock()
}

func inboundPresence(t *testing.T, from, presenceType string, children ...xmpp.XElement) *xmpp.Presence {
	t.Helper()
	elem := xmpp.NewElementName("presence")
	if len(presenceType) > 0 {
		elem.SetType(presenceType)
	}
	for _, child := range children {
		elem.AppendElement(child)
	}
	fromJID, err := jid.NewWithString(from, true)
	require.Nil(t, err)
	toJID, err := jid.NewWithString("ortuman@jackal.im/balcony", true)
	require.Nil(t, err)
	p, err := xmpp.NewPresenceFromElement(elem, fromJID, toJID)
	require.Nil(t, err)
	return p
}

func mucUserElement(selfCodes []string, role, affiliation, newNick, reason string) *xmpp.Element {
	x := xmpp.NewElementNamespace("x", mucUserNamespace)
	item := xmpp.NewElementName("item")
	if len(role) > 0 {
		item.SetAttribute("role", role)
	}
	if len(affiliation) > 0 {
		item.SetAttribute("affiliation", affiliation)
	}
	if len(newNick) > 0 {
		item.SetAttribute("nick", newNick)
	}
	if len(reason) > 0 {
		reasonElem := xmpp.NewElementName("reason")
		reasonElem.SetText(reason)
		item.AppendElement(reasonElem)
	}
	x.AppendElement(item)
	for _, code := range selfCodes {
		status := xmpp.NewElementName("status")
		status.SetAttribute("code", code)
		x.AppendElement(status)
	}
	return x
}

func inboundMessage(t *testing.T, from, messageType, body string) *xmpp.Message {
	t.Helper()
	elem := xmpp.NewElementName("message")
	elem.SetID("msg001")
	elem.SetType(messageType)
	if len(body) > 0 {
		bodyElem := xmpp.NewElementName("body")
		bodyElem.SetText(body)
		elem.AppendElement(bodyElem)
	}
	fromJID, err := jid.NewWithString(from, true)
	require.Nil(t, err)
	toJID, err := jid.NewWithString("ortuman@jackal.im/balcony", true)
	require.Nil(t, err)
	msg, err := xmpp.NewMessageFromElement(elem, fromJID, toJID)
	require.Nil(t, err)
	return msg
}

func TestClient_RoomJoin(t *testing.T) {
	c, fs, scr := newTestClient(t)
	goOnline(c)

	require.Nil(t, c.RoomJoin("coven@chat.jackal.im", "thirdwitch", ""))

	presences := fs.sentElements("presence")
	require.Equal(t, 1, len(presences))
	require.Equal(t, "coven@chat.jackal.im/thirdwitch", presences[0].To())
	require.NotNil(t, presences[0].Elements().ChildNamespace("x", mucNamespace))

	// server reflects our own occupant presence
	x := mucUserElement([]string{"110"}, "participant", "member", "", "")
	c.handleStanza(inboundPresence(t, "coven@chat.jackal.im/thirdwitch", "", x))

	room := c.roster.Find("coven@chat.jackal.im")
	require.NotNil(t, room)
	require.True(t, room.InsideRoom())
	require.Equal(t, "thirdwitch", room.Nickname)
	require.Equal(t, 1, scr.countLines("coven@chat.jackal.im", "You have joined"))

	// a repeated reflection must not announce the join twice
	c.handleStanza(inboundPresence(t, "coven@chat.jackal.im/thirdwitch", "", x))
	require.Equal(t, 1, scr.countLines("coven@chat.jackal.im", "You have joined"))

	// joining an occupied room is a no-op
	require.Nil(t, c.RoomJoin("coven@chat.jackal.im", "thirdwitch", ""))
	require.Equal(t, 1, len(fs.sentElements("presence")))
}

func TestClient_OfflineStatusChangeDeferred(t *testing.T) {
	c, fs, _ := newTestClient(t)

	require.Nil(t, c.SetStatus(roster.Away, "out for lunch"))
	require.Equal(t, 0, len(fs.sentElements("presence")))

	// connection established: a single presence reflects the latest wanted status
	c.handleStateChange(session.Ready)

	presences := fs.sentElements("presence")
	require.Equal(t, 1, len(presences))
	require.Equal(t, "away", presences[0].Elements().Child("show").Text())
	require.Equal(t, "out for lunch", presences[0].Elements().Child("status").Text())
}

func TestClient_PresenceDeduplication(t *testing.T) {
	c, _, scr := newTestClient(t)
	goOnline(c)

	away := xmpp.NewElementName("show")
	away.SetText("away")

	c.handleStanza(inboundPresence(t, "romeo@jackal.im/chamber", "", away))
	require.Equal(t, 1, scr.countLines(ui.StatusBuffer, "romeo@jackal.im/chamber is now away"))

	// an identical presence must not notify again
	c.handleStanza(inboundPresence(t, "romeo@jackal.im/chamber", "", away))
	require.Equal(t, 1, scr.countLines(ui.StatusBuffer, "romeo@jackal.im/chamber is now away"))
}

func TestClient_MUCLeaveAndKick(t *testing.T) {
	c, _, scr := newTestClient(t)
	goOnline(c)

	joinRoom(t, c, "coven@chat.jackal.im", "thirdwitch")
	c.handleStanza(inboundPresence(t, "coven@chat.jackal.im/firstwitch", "",
		mucUserElement(nil, "participant", "none", "", "")))
	require.Equal(t, 1, scr.countLines("coven@chat.jackal.im", "firstwitch has joined"))

	// natural leave
	c.handleStanza(inboundPresence(t, "coven@chat.jackal.im/firstwitch", "unavailable",
		mucUserElement(nil, "none", "none", "", "")))
	require.Equal(t, 1, scr.countLines("coven@chat.jackal.im", "firstwitch has left"))

	// self kicked with code 307
	c.handleStanza(inboundPresence(t, "coven@chat.jackal.im/thirdwitch", "unavailable",
		mucUserElement([]string{"110", "307"}, "none", "none", "", "misbehaving")))

	room := c.roster.Find("coven@chat.jackal.im")
	require.False(t, room.InsideRoom())
	require.Equal(t, 1, scr.countLines("coven@chat.jackal.im", "kicked from the room (misbehaving)"))

	// a duplicate unavailable must not announce the leave twice
	c.handleStanza(inboundPresence(t, "coven@chat.jackal.im/thirdwitch", "unavailable",
		mucUserElement([]string{"110", "307"}, "none", "none", "", "misbehaving")))
	require.Equal(t, 1, scr.countLines("coven@chat.jackal.im", "kicked from the room (misbehaving)"))
}

func TestClient_MUCKickReportsActor(t *testing.T) {
	c, _, scr := newTestClient(t)
	goOnline(c)

	joinRoom(t, c, "coven@chat.jackal.im", "thirdwitch")

	x := mucUserElement([]string{"110", "307"}, "none", "none", "", "treason")
	actor := xmpp.NewElementName("actor")
	actor.SetAttribute("nick", "firstwitch")
	x.Elements().Child("item").(*xmpp.Element).AppendElement(actor)

	c.handleStanza(inboundPresence(t, "coven@chat.jackal.im/thirdwitch", "unavailable", x))
	require.Equal(t, 1, scr.countLines("coven@chat.jackal.im",
		"kicked from the room by firstwitch (treason)"))
}

func TestClient_AutoWhoisJoinRecord(t *testing.T) {
	c, _, scr := newTestClient(t)
	goOnline(c)
	c.cfg.AutoWhois = true

	joinRoom(t, c, "coven@chat.jackal.im", "thirdwitch")

	x := mucUserElement(nil, "participant", "member", "", "")
	x.Elements().Child("item").(*xmpp.Element).SetAttribute("jid", "hag66@shakespeare.lit")
	c.handleStanza(inboundPresence(t, "coven@chat.jackal.im/firstwitch", "", x))

	require.Equal(t, 1, scr.countLines("coven@chat.jackal.im",
		"firstwitch has joined [participant/member/available <hag66@shakespeare.lit>]"))
}

func TestClient_MUCNickChange(t *testing.T) {
	c, _, scr := newTestClient(t)
	goOnline(c)

	joinRoom(t, c, "coven@chat.jackal.im", "thirdwitch")

	c.handleStanza(inboundPresence(t, "coven@chat.jackal.im/thirdwitch", "unavailable",
		mucUserElement([]string{"110", "303"}, "participant", "member", "oldhag", "")))

	room := c.roster.Find("coven@chat.jackal.im")
	require.True(t, room.InsideRoom())
	require.Equal(t, "oldhag", room.Nickname)
	require.Equal(t, 1, scr.countLines("coven@chat.jackal.im", "You are now known as oldhag"))
}

func TestClient_GroupChatSelfHeal(t *testing.T) {
	c, fs, _ := newTestClient(t)
	goOnline(c)

	c.handleStanza(inboundMessage(t, "ghosts@chat.jackal.im/someone", "groupchat", "boo"))

	// membership resigned and a placeholder entry kept
	presences := fs.sentElements("presence")
	require.Equal(t, 1, len(presences))
	require.Equal(t, xmpp.UnavailableType, presences[0].Type())
	require.Equal(t, "ghosts@chat.jackal.im", presences[0].To())

	room := c.roster.Find("ghosts@chat.jackal.im")
	require.NotNil(t, room)
	require.False(t, room.InsideRoom())
}

func TestClient_SubscriptionEventExactlyOnce(t *testing.T) {
	c, fs, _ := newTestClient(t)
	goOnline(c)

	c.handleStanza(inboundPresence(t, "romeo@jackal.im", xmpp.SubscribeType))
	require.Equal(t, 1, c.events.Len())

	// repeated request must not queue a second confirmation
	c.handleStanza(inboundPresence(t, "romeo@jackal.im", xmpp.SubscribeType))
	require.Equal(t, 1, c.events.Len())

	ev := c.events.List()[0]
	require.Nil(t, c.ResolveEvent(ev.ID, events.Accept))

	presences := fs.sentElements("presence")
	require.Equal(t, 1, len(presences))
	require.Equal(t, xmpp.SubscribedType, presences[0].Type())
	require.Equal(t, "romeo@jackal.im", presences[0].To())

	// each event resolves exactly once
	require.NotNil(t, c.ResolveEvent(ev.ID, events.Accept))
}

func TestClient_IgnoreUnknownSender(t *testing.T) {
	c, _, scr := newTestClient(t)
	goOnline(c)
	c.cfg.IgnoreUnknownSender = true

	c.handleStanza(inboundMessage(t, "stranger@elsewhere.org/home", "chat", "hello?"))
	require.Equal(t, 0, scr.countLines("stranger@elsewhere.org", "hello?"))

	// the server itself is never suppressed
	c.handleStanza(inboundMessage(t, "jackal.im", "chat", "maintenance tonight"))
	require.Equal(t, 1, scr.countLines("jackal.im", "maintenance tonight"))

	// a roster entry alone is not enough; the sender needs a "from" subscription
	j, _ := jid.NewWithString("romeo@jackal.im", true)
	b := c.roster.Upsert(j, "Romeo", "", roster.User)
	c.handleStanza(inboundMessage(t, "romeo@jackal.im/chamber", "chat", "art thou?"))
	require.Equal(t, 0, scr.countLines("romeo@jackal.im", "art thou?"))

	b.Subscription = roster.SubFrom
	c.handleStanza(inboundMessage(t, "romeo@jackal.im/chamber", "chat", "art thou?"))
	require.Equal(t, 1, scr.countLines("romeo@jackal.im", "art thou?"))
}

func TestClient_InvalidTextStripped(t *testing.T) {
	c, _, scr := newTestClient(t)
	goOnline(c)

	c.handleStanza(inboundMessage(t, "romeo@jackal.im/chamber", "chat", "good\xffnight"))

	require.Equal(t, 1, scr.countLines("romeo@jackal.im", "goodnight"))
	require.Equal(t, 1, scr.countLines("romeo@jackal.im", "invalid characters"))
}

func TestClient_RosterNotes(t *testing.T) {
	c, fs, scr := newTestClient(t)
	goOnline(c)

	c.SetNote("romeo@jackal.im", "owes me a ducat")

	// storing first reads the current annotation set
	iqs := fs.sentElements("iq")
	require.Equal(t, 1, len(iqs))
	resolvePrivateIQ(t, fs, iqs[0].ID(), xmpp.NewElementNamespace("storage", "storage:rosternotes"))

	iqs = fs.sentElements("iq")
	require.Equal(t, 2, len(iqs))
	require.Equal(t, xmpp.SetType, iqs[1].Type())
	query := iqs[1].Elements().ChildNamespace("query", "jabber:iq:private")
	require.NotNil(t, query)
	storage := query.Elements().ChildNamespace("storage", "storage:rosternotes")
	require.NotNil(t, storage)
	resolvePrivateIQ(t, fs, iqs[1].ID(), nil)
	require.Equal(t, 1, scr.countLines(ui.StatusBuffer, "note stored: romeo@jackal.im"))

	c.ShowNote("romeo@jackal.im")
	iqs = fs.sentElements("iq")
	require.Equal(t, 3, len(iqs))
	resolvePrivateIQ(t, fs, iqs[2].ID(), xmpp.NewElementFromElement(storage))
	require.Equal(t, 1, scr.countLines(ui.StatusBuffer, "note for romeo@jackal.im: owes me a ducat"))

	c.ShowNote("mercutio@jackal.im")
	iqs = fs.sentElements("iq")
	require.Equal(t, 4, len(iqs))
	resolvePrivateIQ(t, fs, iqs[3].ID(), xmpp.NewElementFromElement(storage))
	require.Equal(t, 1, scr.countLines(ui.StatusBuffer, "no note for mercutio@jackal.im"))
}

func resolvePrivateIQ(t *testing.T, fs *fakeSession, id string, storage xmpp.XElement) {
	t.Helper()
	elem := xmpp.NewElementName("iq")
	elem.SetID(id)
	elem.SetType(xmpp.ResultType)
	if storage != nil {
		query := xmpp.NewElementNamespace("query", "jabber:iq:private")
		query.AppendElement(storage)
		elem.AppendElement(query)
	}
	j, _ := jid.NewWithString("jackal.im", true)
	iq, err := xmpp.NewIQFromElement(elem, j, j)
	require.Nil(t, err)
	require.True(t, fs.correlator.Resolve(iq))
}

func TestClient_RosterPush(t *testing.T) {
	c, fs, scr := newTestClient(t)
	goOnline(c)

	iqElem := xmpp.NewElementName("iq")
	iqElem.SetID("push01")
	iqElem.SetType(xmpp.SetType)
	query := xmpp.NewElementNamespace("query", rosterNamespace)
	item := xmpp.NewElementName("item")
	item.SetAttribute("jid", "romeo@jackal.im")
	item.SetAttribute("name", "Romeo")
	item.SetAttribute("subscription", "both")
	group := xmpp.NewElementName("group")
	group.SetText("Verona")
	item.AppendElement(group)
	query.AppendElement(item)
	iqElem.AppendElement(query)

	fromJID, _ := jid.NewWithString("jackal.im", true)
	toJID, _ := jid.NewWithString("ortuman@jackal.im/balcony", true)
	iq, err := xmpp.NewIQFromElement(iqElem, fromJID, toJID)
	require.Nil(t, err)

	c.handleStanza(iq)

	b := c.roster.Find("romeo@jackal.im")
	require.NotNil(t, b)
	require.Equal(t, "Romeo", b.Name)
	require.Equal(t, "Verona", b.Group)
	require.Equal(t, roster.SubBoth, b.Subscription)
	require.Equal(t, 1, scr.rosterChanges)

	// the push must be acknowledged
	acks := fs.sentElements("iq")
	require.Equal(t, 1, len(acks))
	require.Equal(t, "push01", acks[0].ID())
	require.Equal(t, xmpp.ResultType, acks[0].Type())
}

func TestClient_SendMessage(t *testing.T) {
	c, fs, scr := newTestClient(t)
	goOnline(c)

	require.Nil(t, c.SendMessage("romeo@jackal.im", "wherefore art thou"))

	msgs := fs.sentElements("message")
	require.Equal(t, 1, len(msgs))
	require.Equal(t, xmpp.ChatType, msgs[0].Type())
	require.Equal(t, "wherefore art thou", msgs[0].Elements().Child("body").Text())
	require.Equal(t, 1, scr.countLines("romeo@jackal.im", "wherefore art thou"))

	// room destinations switch to groupchat addressing
	joinRoom(t, c, "coven@chat.jackal.im", "thirdwitch")
	require.Nil(t, c.SendMessage("coven@chat.jackal.im", "when shall we three meet again"))

	msgs = fs.sentElements("message")
	require.Equal(t, 2, len(msgs))
	require.Equal(t, xmpp.GroupChatType, msgs[1].Type())
	require.Equal(t, "coven@chat.jackal.im", msgs[1].To())
}

func TestClient_SendMessageOffline(t *testing.T) {
	c, _, _ := newTestClient(t)
	require.Equal(t, ErrNotOnline, c.SendMessage("romeo@jackal.im", "anyone?"))
}

func TestClient_DefaultStatusMessage(t *testing.T) {
	c, fs, _ := newTestClient(t)
	goOnline(c)

	require.Nil(t, c.SetDefaultStatusMessage(roster.Away, "gone fishing"))

	// an omitted message picks up the stored default for the status
	require.Nil(t, c.SetStatus(roster.Away, ""))
	presences := fs.sentElements("presence")
	require.Equal(t, 1, len(presences))
	require.Equal(t, "gone fishing", presences[0].Elements().Child("status").Text())

	// "-" forces an empty message even when a default exists
	require.Nil(t, c.SetStatus(roster.Away, "-"))
	presences = fs.sentElements("presence")
	require.Equal(t, 2, len(presences))
	require.Nil(t, presences[1].Elements().Child("status"))
}

func TestClient_DirectedStatus(t *testing.T) {
	c, fs, _ := newTestClient(t)

	require.Equal(t, ErrNotOnline, c.SetStatusTo("romeo@jackal.im", roster.DoNotDisturb, "in a meeting"))
	goOnline(c)

	require.Nil(t, c.SetStatusTo("romeo@jackal.im", roster.DoNotDisturb, "in a meeting"))

	presences := fs.sentElements("presence")
	require.Equal(t, 1, len(presences))
	require.Equal(t, "romeo@jackal.im", presences[0].To())
	require.Equal(t, "dnd", presences[0].Elements().Child("show").Text())
	require.Equal(t, "in a meeting", presences[0].Elements().Child("status").Text())

	// a directed status must not alter the wanted broadcast status
	c.mu.RLock()
	wanted := c.wantedStatus
	c.mu.RUnlock()
	require.NotEqual(t, roster.DoNotDisturb, wanted)
}

func TestClient_History(t *testing.T) {
	c, _, scr := newTestClient(t)
	goOnline(c)

	require.Nil(t, c.SendMessage("romeo@jackal.im", "wherefore art thou"))
	c.handleStanza(inboundMessage(t, "romeo@jackal.im/chamber", "chat", "here I am"))

	require.Nil(t, c.ShowHistory("romeo@jackal.im"))
	require.Equal(t, 2, scr.countLines("romeo@jackal.im", "wherefore art thou"))
	require.Equal(t, 2, scr.countLines("romeo@jackal.im", "here I am"))
}

func joinRoom(t *testing.T, c *Client, room, nick string) {
	t.Helper()
	require.Nil(t, c.RoomJoin(room, nick, ""))
	c.handleStanza(inboundPresence(t, room+"/"+nick, "",
		mucUserElement([]string{"110"}, "participant", "member", "", "")))
	require.True(t, c.roster.Find(room).InsideRoom())
}
