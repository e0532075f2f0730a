/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ortuman/civet/chatstates"
	"github.com/ortuman/civet/events"
	"github.com/ortuman/civet/log"
	"github.com/ortuman/civet/model"
	"github.com/ortuman/civet/requests"
	"github.com/ortuman/civet/roster"
	"github.com/ortuman/civet/storage/repository"
	"github.com/ortuman/civet/ui"
	"github.com/ortuman/civet/xmpp"
	"github.com/ortuman/civet/xmpp/jid"
)

const dataFormsNamespace = "jabber:x:data"

var (
	// ErrNotOnline is returned by operations requiring an established session.
	ErrNotOnline = errors.New("client: not online")

	// ErrNotInRoom is returned by room operations when the room is not occupied.
	ErrNotInRoom = errors.New("client: not inside room")
)

// Exec posts fn to the client run queue.
// UI command handlers use it to serialize against stanza processing.
func (c *Client) Exec(fn func()) {
	c.runQueue.Run(fn)
}

// Connect establishes the stream session and keeps it alive until
// an explicit Disconnect.
func (c *Client) Connect() error {
	c.mu.Lock()
	c.intentionalOff = false
	c.lastConnAttempt = time.Now()
	c.mu.Unlock()
	return c.session.Connect()
}

// Disconnect tears the stream session down without arming reconnection.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.intentionalOff = true
	c.mu.Unlock()
	c.session.Disconnect()
}

// SetStatus updates the wanted presence status. An omitted message
// resolves to the stored default for that status, falling back to
// the current one; "-" forces an empty message. Setting Offline
// disconnects.
func (c *Client) SetStatus(st roster.Status, message string) error {
	if st == roster.Offline {
		c.mu.Lock()
		c.wantedStatus = st
		c.mu.Unlock()
		c.Disconnect()
		c.screen.RosterChanged()
		return nil
	}
	message = c.resolveStatusMessage(st, message)
	c.mu.Lock()
	c.wantedStatus = st
	c.wantedMessage = message
	c.mu.Unlock()

	if !c.isOnline() {
		// applied on next successful connection
		c.screen.RosterChanged()
		return nil
	}
	c.announceStatus(st, message, nil)
	if st != roster.Invisible {
		c.roster.ForEachRoom(func(room *roster.Buddy) {
			to, err := jid.NewWithString(room.BareJID().String()+"/"+room.Nickname, false)
			if err != nil {
				return
			}
			c.announceStatus(st, message, to)
		})
	}
	c.screen.RosterChanged()
	return nil
}

// SetStatusTo sends a directed presence to a single recipient,
// leaving the wanted global status untouched.
func (c *Client) SetStatusTo(recipient string, st roster.Status, message string) error {
	if !c.isOnline() {
		return ErrNotOnline
	}
	to, err := jid.NewWithString(recipient, false)
	if err != nil {
		return err
	}
	c.announceStatus(st, c.resolveStatusMessage(st, message), to)
	return nil
}

// resolveStatusMessage applies the message conventions: empty picks
// the per-status default then the current message, "-" forces none.
func (c *Client) resolveStatusMessage(st roster.Status, message string) string {
	switch message {
	case "-":
		return ""
	case "":
		return c.defaultStatusMessage(st)
	}
	return message
}

// SetDefaultStatusMessage stores the default message announced with a status.
func (c *Client) SetDefaultStatusMessage(st roster.Status, message string) error {
	return c.rep.Settings().UpsertSetting(context.Background(),
		repository.StatusMessageNamespace, st.String(), message)
}

func (c *Client) defaultStatusMessage(st roster.Status) string {
	msg, ok, err := c.rep.Settings().FetchSetting(context.Background(),
		repository.StatusMessageNamespace, st.String())
	if err != nil {
		log.Warnf("fetching default status message: %v", err)
	}
	if ok {
		return msg
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wantedMessage
}

// announceStatus sends a presence reflecting st. A nil destination
// broadcasts to the server; otherwise the presence is directed.
func (c *Client) announceStatus(st roster.Status, message string, to *jid.JID) {
	presenceType := xmpp.AvailableType
	if st == roster.Invisible {
		presenceType = xmpp.InvisibleType
	}
	p := xmpp.NewPresence(nil, to, presenceType)
	if show := st.Show(); len(show) > 0 {
		showElem := xmpp.NewElementName("show")
		showElem.SetText(show)
		p.AppendElement(showElem)
	}
	if len(message) > 0 && st != roster.Invisible {
		statusElem := xmpp.NewElementName("status")
		statusElem.SetText(message)
		p.AppendElement(statusElem)
	}
	if c.cfg.Priority != 0 {
		priorityElem := xmpp.NewElementName("priority")
		priorityElem.SetText(strconv.Itoa(c.cfg.Priority))
		p.AppendElement(priorityElem)
	}
	if err := c.session.SendElement(p); err != nil {
		log.Warnf("announcing status: %v", err)
	}
}

// SendMessage delivers a chat message to a contact or room.
func (c *Client) SendMessage(to string, body string) error {
	if !c.isOnline() {
		return ErrNotOnline
	}
	toJID, err := jid.NewWithString(to, false)
	if err != nil {
		return err
	}
	bare := toJID.ToBareJID().String()
	buddy := c.roster.Find(bare)

	msg := xmpp.NewMessageType(c.session.Requests().NextID(), xmpp.ChatType)
	if buddy != nil && buddy.Kind() == roster.Room {
		msg.SetType(xmpp.GroupChatType)
		msg.SetToJID(toJID.ToBareJID())
	} else {
		msg.SetToJID(toJID)
	}
	bodyElem := xmpp.NewElementName("body")
	bodyElem.SetText(body)
	msg.AppendElement(bodyElem)

	if msg.IsChat() {
		c.states.DecorateOutgoing(toJID, msg)
	}
	if err := c.session.SendElement(msg); err != nil {
		return err
	}
	c.screen.WriteLine(bare, "> "+body, ui.LineOutgoing)
	c.appendHistory(bare, time.Now(), false, body)
	return nil
}

// NotifyTyping sends a chat state notification when the peer supports them.
func (c *Client) NotifyTyping(to string, state chatstates.State) {
	if !c.isOnline() {
		return
	}
	toJID, err := jid.NewWithString(to, false)
	if err != nil {
		return
	}
	if msg := c.states.Notification(toJID, state); msg != nil {
		_ = c.session.SendElement(msg)
	}
}

// AddBuddy adds a contact to the roster and requests its presence.
func (c *Client) AddBuddy(contact, name, group string) error {
	if !c.isOnline() {
		return ErrNotOnline
	}
	contactJID, err := jid.NewWithString(contact, false)
	if err != nil {
		return err
	}
	bare := contactJID.ToBareJID()
	if err := c.sendRosterUpdate(bare.String(), name, group, ""); err != nil {
		return err
	}
	return c.session.SendElement(xmpp.NewPresence(nil, bare, xmpp.SubscribeType))
}

// DeleteBuddy removes a contact from the roster.
func (c *Client) DeleteBuddy(contact string) error {
	if !c.isOnline() {
		return ErrNotOnline
	}
	return c.sendRosterUpdate(contact, "", "", "remove")
}

// RenameBuddy changes a contact display name.
func (c *Client) RenameBuddy(contact, name string) error {
	group := ""
	if b := c.roster.Find(contact); b != nil {
		group = b.Group
	}
	return c.sendRosterUpdate(contact, name, group, "")
}

// MoveBuddy changes a contact roster group.
func (c *Client) MoveBuddy(contact, group string) error {
	name := ""
	if b := c.roster.Find(contact); b != nil {
		name = b.Name
	}
	return c.sendRosterUpdate(contact, name, group, "")
}

func (c *Client) sendRosterUpdate(bare, name, group, subscription string) error {
	if !c.isOnline() {
		return ErrNotOnline
	}
	_, err := c.session.Requests().Submit(func(identifier string) xmpp.Stanza {
		iq := xmpp.NewIQQuery(identifier, xmpp.SetType, rosterNamespace)
		item := xmpp.NewElementName("item")
		item.SetAttribute("jid", bare)
		if len(name) > 0 {
			item.SetAttribute("name", name)
		}
		if len(subscription) > 0 {
			item.SetAttribute("subscription", subscription)
		}
		if len(group) > 0 {
			groupElem := xmpp.NewElementName("group")
			groupElem.SetText(group)
			item.AppendElement(groupElem)
		}
		iq.Query().(*xmpp.Element).AppendElement(item)
		return iq
	}, 0, nil, c.reportIQFailure("roster update"))
	return err
}

// RoomJoin enters a chat room under the given nickname.
func (c *Client) RoomJoin(room, nick, password string) error {
	if !c.isOnline() {
		return ErrNotOnline
	}
	roomJID, err := jid.NewWithString(room, false)
	if err != nil {
		return err
	}
	if len(nick) == 0 {
		nick = c.session.JID().Node()
	}
	roomBare := roomJID.ToBareJID()
	if b := c.roster.Find(roomBare.String()); b != nil && b.InsideRoom() {
		return nil
	}
	to, err := jid.New(roomBare.Node(), roomBare.Domain(), nick, false)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.attemptedNicks[roomBare.String()] = nick
	c.mu.Unlock()

	c.roster.Upsert(roomBare, "", "", roster.Room)

	p := xmpp.NewPresence(nil, to, xmpp.AvailableType)
	x := xmpp.NewElementNamespace("x", mucNamespace)
	if len(password) > 0 {
		passwordElem := xmpp.NewElementName("password")
		passwordElem.SetText(password)
		x.AppendElement(passwordElem)
	}
	p.AppendElement(x)
	return c.session.SendElement(p)
}

// RoomLeave exits a chat room, optionally announcing a parting message.
func (c *Client) RoomLeave(room, status string) error {
	_, to, err := c.occupiedRoomJID(room)
	if err != nil {
		return err
	}
	p := xmpp.NewPresence(nil, to, xmpp.UnavailableType)
	if len(status) > 0 {
		statusElem := xmpp.NewElementName("status")
		statusElem.SetText(status)
		p.AppendElement(statusElem)
	}
	return c.session.SendElement(p)
}

// RoomInvite invites a contact into an occupied room.
func (c *Client) RoomInvite(room, contact, reason string) error {
	roomBuddy, _, err := c.occupiedRoomJID(room)
	if err != nil {
		return err
	}
	msg := xmpp.NewMessageType(c.session.Requests().NextID(), xmpp.NormalType)
	msg.SetToJID(roomBuddy.BareJID())
	x := xmpp.NewElementNamespace("x", mucUserNamespace)
	invite := xmpp.NewElementName("invite")
	invite.SetAttribute("to", contact)
	if len(reason) > 0 {
		reasonElem := xmpp.NewElementName("reason")
		reasonElem.SetText(reason)
		invite.AppendElement(reasonElem)
	}
	x.AppendElement(invite)
	msg.AppendElement(x)
	return c.session.SendElement(msg)
}

// RoomKick expels an occupant by revoking its role.
func (c *Client) RoomKick(room, nick, reason string) error {
	return c.RoomSetRole(room, nick, roster.RoleNone, reason)
}

// RoomBan bans a user by real JID.
func (c *Client) RoomBan(room, contact, reason string) error {
	return c.RoomSetAffiliation(room, contact, roster.AffiliationOutcast, reason)
}

// RoomSetRole changes the session role of a room occupant.
func (c *Client) RoomSetRole(room, nick string, role roster.Role, reason string) error {
	roomBuddy, _, err := c.occupiedRoomJID(room)
	if err != nil {
		return err
	}
	item := xmpp.NewElementName("item")
	item.SetAttribute("nick", nick)
	item.SetAttribute("role", role.String())
	return c.sendRoomAdminItem(roomBuddy.BareJID(), item, reason, "role change")
}

// RoomSetAffiliation changes the long-term affiliation of a user.
func (c *Client) RoomSetAffiliation(room, contact string, affiliation roster.Affiliation, reason string) error {
	roomBuddy, _, err := c.occupiedRoomJID(room)
	if err != nil {
		return err
	}
	item := xmpp.NewElementName("item")
	item.SetAttribute("jid", contact)
	item.SetAttribute("affiliation", affiliation.String())
	return c.sendRoomAdminItem(roomBuddy.BareJID(), item, reason, "affiliation change")
}

func (c *Client) sendRoomAdminItem(roomJID *jid.JID, item *xmpp.Element, reason, desc string) error {
	if len(reason) > 0 {
		reasonElem := xmpp.NewElementName("reason")
		reasonElem.SetText(reason)
		item.AppendElement(reasonElem)
	}
	_, err := c.session.Requests().Submit(func(identifier string) xmpp.Stanza {
		iq := xmpp.NewIQQuery(identifier, xmpp.SetType, mucAdminNamespace)
		iq.SetToJID(roomJID)
		iq.Query().(*xmpp.Element).AppendElement(item)
		return iq
	}, 0, nil, c.reportIQFailure(desc))
	return err
}

// RoomTopic changes the subject of an occupied room.
func (c *Client) RoomTopic(room, topic string) error {
	roomBuddy, _, err := c.occupiedRoomJID(room)
	if err != nil {
		return err
	}
	msg := xmpp.NewMessageType(c.session.Requests().NextID(), xmpp.GroupChatType)
	msg.SetToJID(roomBuddy.BareJID())
	subjectElem := xmpp.NewElementName("subject")
	subjectElem.SetText(topic)
	msg.AppendElement(subjectElem)
	return c.session.SendElement(msg)
}

// RoomDestroy destroys an owned room.
func (c *Client) RoomDestroy(room, reason string) error {
	roomBuddy, _, err := c.occupiedRoomJID(room)
	if err != nil {
		return err
	}
	_, err = c.session.Requests().Submit(func(identifier string) xmpp.Stanza {
		iq := xmpp.NewIQQuery(identifier, xmpp.SetType, mucOwnerNamespace)
		iq.SetToJID(roomBuddy.BareJID())
		destroy := xmpp.NewElementName("destroy")
		if len(reason) > 0 {
			reasonElem := xmpp.NewElementName("reason")
			reasonElem.SetText(reason)
			destroy.AppendElement(reasonElem)
		}
		iq.Query().(*xmpp.Element).AppendElement(destroy)
		return iq
	}, 0, nil, c.reportIQFailure("room destroy"))
	return err
}

// RoomUnlock accepts the default configuration of a newly created room.
func (c *Client) RoomUnlock(room string) error {
	roomBuddy, _, err := c.occupiedRoomJID(room)
	if err != nil {
		return err
	}
	_, err = c.session.Requests().Submit(func(identifier string) xmpp.Stanza {
		iq := xmpp.NewIQQuery(identifier, xmpp.SetType, mucOwnerNamespace)
		iq.SetToJID(roomBuddy.BareJID())
		form := xmpp.NewElementNamespace("x", dataFormsNamespace)
		form.SetAttribute("type", "submit")
		iq.Query().(*xmpp.Element).AppendElement(form)
		return iq
	}, 0, nil, c.reportIQFailure("room unlock"))
	return err
}

// RoomBookmark stores or replaces a room bookmark on the server.
func (c *Client) RoomBookmark(room, name, nick string, autojoin bool, password string) {
	c.private.UpsertBookmark(&model.Bookmark{
		JID:      room,
		Name:     name,
		Nick:     nick,
		Autojoin: autojoin,
		Password: password,
	}, func(err error) {
		if err != nil {
			c.writeStatus(fmt.Sprintf("storing bookmark for %s: %v", room, err), ui.LineError)
			return
		}
		c.writeStatus("bookmark stored: "+room, ui.LineInfo)
	})
}

// RoomBookmarkDelete removes a room bookmark from the server.
func (c *Client) RoomBookmarkDelete(room string) {
	c.private.DeleteBookmark(room, func(err error) {
		if err != nil {
			c.writeStatus(fmt.Sprintf("deleting bookmark for %s: %v", room, err), ui.LineError)
			return
		}
		c.writeStatus("bookmark deleted: "+room, ui.LineInfo)
	})
}

// SetNote stores or replaces the server-side annotation attached to a contact.
// An empty note removes any existing annotation.
func (c *Client) SetNote(contact, note string) {
	c.private.UpsertRosterNote(contact, note, func(err error) {
		if err != nil {
			c.writeStatus(fmt.Sprintf("storing note for %s: %v", contact, err), ui.LineError)
			return
		}
		if len(note) == 0 {
			c.writeStatus("note deleted: "+contact, ui.LineInfo)
			return
		}
		c.writeStatus("note stored: "+contact, ui.LineInfo)
	})
}

// ShowNote fetches and displays the annotation attached to a contact.
func (c *Client) ShowNote(contact string) {
	c.private.FetchRosterNotes(func(notes map[string]model.RosterNote, err error) {
		if err != nil {
			c.writeStatus(fmt.Sprintf("fetching note for %s: %v", contact, err), ui.LineError)
			return
		}
		note, ok := notes[contact]
		if !ok {
			c.writeStatus("no note for "+contact, ui.LineInfo)
			return
		}
		line := fmt.Sprintf("note for %s: %s", contact, note.Note)
		if len(note.MDate) > 0 {
			line += " (modified " + note.MDate + ")"
		}
		c.writeStatus(line, ui.LineInfo)
	})
}

func (c *Client) occupiedRoomJID(room string) (*roster.Buddy, *jid.JID, error) {
	if !c.isOnline() {
		return nil, nil, ErrNotOnline
	}
	roomJID, err := jid.NewWithString(room, false)
	if err != nil {
		return nil, nil, err
	}
	b := c.roster.Find(roomJID.ToBareJID().String())
	if b == nil || !b.InsideRoom() {
		return nil, nil, ErrNotInRoom
	}
	to, err := jid.New(roomJID.Node(), roomJID.Domain(), b.Nickname, false)
	if err != nil {
		return nil, nil, err
	}
	return b, to, nil
}

// RequestKind enumerates peer information queries.
type RequestKind int

const (
	// RequestVersion asks for the peer software version.
	RequestVersion RequestKind = iota

	// RequestTime asks for the peer local time.
	RequestTime

	// RequestLast asks for the peer idle time.
	RequestLast

	// RequestVCard asks for the peer vcard.
	RequestVCard
)

// Request queries a peer for version, time, last activity or vcard,
// writing the outcome to the status buffer.
func (c *Client) Request(to string, kind RequestKind) error {
	if !c.isOnline() {
		return ErrNotOnline
	}
	toJID, err := jid.NewWithString(to, false)
	if err != nil {
		return err
	}
	queryName, namespace := "query", versionNamespace
	switch kind {
	case RequestTime:
		queryName, namespace = "time", timeNamespace
	case RequestLast:
		namespace = lastNamespace
	case RequestVCard:
		queryName, namespace = "vCard", vCardNamespace
	}
	_, err = c.session.Requests().Submit(func(identifier string) xmpp.Stanza {
		iq := xmpp.NewIQType(identifier, xmpp.GetType)
		iq.SetToJID(toJID)
		iq.AppendElement(xmpp.NewElementNamespace(queryName, namespace))
		return iq
	}, 0, nil, func(resp requests.Response) {
		c.runQueue.Run(func() { c.renderPeerInfo(to, kind, resp) })
	})
	return err
}

func (c *Client) renderPeerInfo(to string, kind RequestKind, resp requests.Response) {
	switch resp.Outcome {
	case requests.Timeout:
		c.writeStatus(fmt.Sprintf("no response from %s", to), ui.LineWarning)
		return
	case requests.Cancel:
		return
	}
	iq := resp.IQ
	if !iq.IsResult() {
		errDesc := "unknown error"
		if stanzaErr := xmpp.DecodeStanzaError(iq); stanzaErr != nil {
			errDesc = stanzaErr.Error()
		}
		c.writeStatus(fmt.Sprintf("query to %s failed: %s", to, errDesc), ui.LineError)
		return
	}
	switch kind {
	case RequestVersion:
		if q := iq.Elements().ChildNamespace("query", versionNamespace); q != nil {
			name, version, os := childText(q, "name"), childText(q, "version"), childText(q, "os")
			line := fmt.Sprintf("%s runs %s %s", to, name, version)
			if len(os) > 0 {
				line += " on " + os
			}
			c.writeStatus(line, ui.LineInfo)
		}
	case RequestTime:
		if t := iq.Elements().ChildNamespace("time", timeNamespace); t != nil {
			c.writeStatus(fmt.Sprintf("%s local time: %s (%s)", to,
				childText(t, "utc"), childText(t, "tzo")), ui.LineInfo)
		}
	case RequestLast:
		if q := iq.Elements().ChildNamespace("query", lastNamespace); q != nil {
			c.writeStatus(fmt.Sprintf("%s idle for %s seconds", to,
				q.Attributes().Get("seconds")), ui.LineInfo)
		}
	case RequestVCard:
		if v := iq.Elements().ChildNamespace("vCard", vCardNamespace); v != nil {
			fn := childText(v, "FN")
			if len(fn) == 0 {
				fn = "(no formatted name)"
			}
			c.writeStatus(fmt.Sprintf("%s vcard: %s", to, fn), ui.LineInfo)
		}
	}
}

// ShowHistory replays the most recent archived lines of a conversation.
func (c *Client) ShowHistory(contact string) error {
	entries, err := c.rep.History().FetchHistory(context.Background(), contact, c.cfg.HistoryLimit)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		flags := ui.LineDelayed
		prefix := "> "
		if entry.Incoming {
			flags |= ui.LineIncoming
			prefix = "< "
		} else {
			flags |= ui.LineOutgoing
		}
		c.screen.WriteLine(contact, fmt.Sprintf("[%s] %s%s",
			entry.Timestamp.Format("2006-01-02 15:04"), prefix, entry.Body), flags)
	}
	return nil
}

// ResolveEvent completes a queued confirmation with a user decision.
func (c *Client) ResolveEvent(id string, outcome events.Outcome) error {
	return c.events.Resolve(id, outcome)
}

func (c *Client) reportIQFailure(desc string) requests.Callback {
	return func(resp requests.Response) {
		switch resp.Outcome {
		case requests.Timeout:
			c.runQueue.Run(func() {
				c.writeStatus(desc+" timed out", ui.LineWarning)
			})
		case requests.Result:
			if resp.IQ.IsResult() {
				return
			}
			errDesc := "unknown error"
			if stanzaErr := xmpp.DecodeStanzaError(resp.IQ); stanzaErr != nil {
				errDesc = stanzaErr.Error()
			}
			c.runQueue.Run(func() {
				c.writeStatus(fmt.Sprintf("%s failed: %s", desc, errDesc), ui.LineError)
			})
		}
	}
}

func childText(elem xmpp.XElement, name string) string {
	if child := elem.Elements().Child(name); child != nil {
		return child.Text()
	}
	return ""
}
