/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package client

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ortuman/civet/chatstates"
	"github.com/ortuman/civet/events"
	"github.com/ortuman/civet/log"
	"github.com/ortuman/civet/model"
	"github.com/ortuman/civet/roster"
	"github.com/ortuman/civet/ui"
	"github.com/ortuman/civet/version"
	"github.com/ortuman/civet/xmpp"
	"github.com/ortuman/civet/xmpp/jid"
)

const (
	rosterNamespace  = "jabber:iq:roster"
	versionNamespace = "jabber:iq:version"
	lastNamespace    = "jabber:iq:last"
	timeNamespace    = "urn:xmpp:time"
	vCardNamespace   = "vcard-temp"

	mucNamespace      = "http://jabber.org/protocol/muc"
	mucUserNamespace  = "http://jabber.org/protocol/muc#user"
	mucAdminNamespace = "http://jabber.org/protocol/muc#admin"
	mucOwnerNamespace = "http://jabber.org/protocol/muc#owner"
)

func (c *Client) handleStanza(stanza xmpp.Stanza) {
	switch s := stanza.(type) {
	case *xmpp.IQ:
		c.handleIQ(s)
	case *xmpp.Message:
		c.handleMessage(s)
	case *xmpp.Presence:
		c.handlePresence(s)
	}
}

func (c *Client) handleIQ(iq *xmpp.IQ) {
	if iq.IsResult() || iq.Type() == xmpp.ErrorType {
		if !c.session.Requests().Resolve(iq) {
			log.Debugf("ignoring response with no pending request: %s", iq.ID())
		}
		return
	}
	switch {
	case iq.Elements().ChildNamespace("query", versionNamespace) != nil && iq.IsGet():
		c.sendVersionResult(iq)

	case iq.Elements().ChildNamespace("time", timeNamespace) != nil && iq.IsGet():
		c.sendTimeResult(iq)

	case iq.Elements().ChildNamespace("query", rosterNamespace) != nil && iq.IsSet():
		// roster push
		query := iq.Elements().ChildNamespace("query", rosterNamespace)
		for _, item := range query.Elements().Children("item") {
			c.upsertRosterItem(item)
		}
		c.screen.RosterChanged()
		_ = c.session.SendElement(iq.ResultIQ())

	default:
		c.sendNotImplemented(iq)
	}
}

func (c *Client) sendVersionResult(iq *xmpp.IQ) {
	result := iq.ResultIQ()
	query := xmpp.NewElementNamespace("query", versionNamespace)
	name := xmpp.NewElementName("name")
	name.SetText("civet")
	ver := xmpp.NewElementName("version")
	ver.SetText(version.ApplicationVersion.String())
	query.AppendElement(name)
	query.AppendElement(ver)
	result.AppendElement(query)
	_ = c.session.SendElement(result)
}

func (c *Client) sendTimeResult(iq *xmpp.IQ) {
	result := iq.ResultIQ()
	timeElem := xmpp.NewElementNamespace("time", timeNamespace)
	now := time.Now()
	tzo := xmpp.NewElementName("tzo")
	tzo.SetText(now.Format("-07:00"))
	utc := xmpp.NewElementName("utc")
	utc.SetText(now.UTC().Format("2006-01-02T15:04:05Z"))
	timeElem.AppendElement(tzo)
	timeElem.AppendElement(utc)
	result.AppendElement(timeElem)
	_ = c.session.SendElement(result)
}

func (c *Client) sendNotImplemented(iq *xmpp.IQ) {
	result := xmpp.NewIQType(iq.ID(), xmpp.ErrorType)
	result.SetToJID(iq.FromJID())
	errElem := xmpp.NewElementName("error")
	errElem.SetAttribute("code", "501")
	errElem.SetAttribute("type", "cancel")
	errElem.AppendElement(xmpp.NewElementNamespace("feature-not-implemented",
		"urn:ietf:params:xml:ns:xmpp-stanzas"))
	result.AppendElement(errElem)
	_ = c.session.SendElement(result)
}

func (c *Client) handleMessage(msg *xmpp.Message) {
	if state, ok, ack := c.states.ProcessIncoming(msg); ok || ack != nil {
		if ack != nil {
			_ = c.session.SendElement(ack)
		}
		if ok && !msg.IsMessageWithBody() {
			c.notifyPeerState(msg.FromJID(), state)
			return
		}
	}
	if msg.Type() == xmpp.ErrorType {
		c.handleErrorMessage(msg)
		return
	}
	if msg.IsGroupChat() {
		c.handleGroupChatMessage(msg)
		return
	}
	if !msg.IsMessageWithBody() {
		return
	}
	from := msg.FromJID()
	bare := from.ToBareJID().String()

	// senders without a "from" subscription may be suppressed, except the
	// server itself
	if c.cfg.IgnoreUnknownSender && bare != c.serverDomain() {
		if b := c.roster.Find(bare); b == nil || !b.Subscription.HasFrom() {
			log.Infof("suppressed message from unknown sender: %s", bare)
			return
		}
	}
	body := c.sanitizeText(bare, msg.Body())
	if msg.HasSubject() {
		body = fmt.Sprintf("[%s] %s", c.sanitizeText(bare, msg.Subject()), body)
	}
	flags := ui.LineIncoming
	if msg.IsDelayed() {
		flags |= ui.LineDelayed
	}
	c.screen.WriteLine(bare, fmt.Sprintf("<%s> %s", from.String(), body), flags)
	c.appendHistory(bare, msg.Timestamp(), true, body)
}

func (c *Client) handleGroupChatMessage(msg *xmpp.Message) {
	from := msg.FromJID()
	roomBare := from.ToBareJID().String()
	nick := from.Resource()

	room := c.roster.Find(roomBare)
	if room == nil {
		// the server believes we are in a room we know nothing
		// about: resign from it and keep a placeholder entry
		c.writeStatus(fmt.Sprintf("unexpected groupchat message from %s; leaving", roomBare),
			ui.LineWarning)
		leave := xmpp.NewPresence(nil, from.ToBareJID(), xmpp.UnavailableType)
		_ = c.session.SendElement(leave)
		c.roster.Upsert(from.ToBareJID(), "", "", roster.Room)
		return
	}
	room.SetKind(roster.Room)

	if msg.HasSubject() && len(msg.Body()) == 0 {
		topic := c.sanitizeText(roomBare, msg.Subject())
		room.Topic = topic
		if len(nick) == 0 {
			// topic replayed from room history
			c.screen.WriteLine(roomBare, fmt.Sprintf("Topic for this room: %s", topic), ui.LineInfo)
		} else {
			c.screen.WriteLine(roomBare, fmt.Sprintf("%s has set the topic to: %s", nick, topic), ui.LineInfo)
		}
		return
	}
	if !msg.IsMessageWithBody() {
		return
	}
	body := c.sanitizeText(roomBare, msg.Body())
	if msg.HasSubject() {
		body = fmt.Sprintf("[%s] %s", c.sanitizeText(roomBare, msg.Subject()), body)
	}
	flags := ui.LineIncoming
	if msg.IsDelayed() {
		flags |= ui.LineDelayed
	}
	c.screen.WriteLine(roomBare, fmt.Sprintf("<%s> %s", nick, body), flags)
	c.appendHistory(roomBare, msg.Timestamp(), true, body)
}

func (c *Client) handleErrorMessage(msg *xmpp.Message) {
	from := msg.FromJID()
	errDesc := "unknown error"
	if stanzaErr := xmpp.DecodeStanzaError(msg); stanzaErr != nil {
		errDesc = stanzaErr.Error()
	}
	c.screen.WriteLine(from.ToBareJID().String(),
		fmt.Sprintf("error: %s", errDesc), ui.LineError)

	// allow typing notification renegotiation with that resource
	c.states.Reset(from)
}

func (c *Client) handlePresence(presence *xmpp.Presence) {
	if x := presence.Elements().ChildNamespace("x", mucUserNamespace); x != nil {
		c.handleMUCPresence(presence, x)
		return
	}
	if presence.Type() == xmpp.ErrorType {
		c.handleErrorPresence(presence)
		return
	}
	if presence.IsSubscription() {
		c.handleSubscriptionPresence(presence)
		return
	}
	from := presence.FromJID()
	st := roster.StatusFromShow(presence.Show())
	if presence.IsUnavailable() {
		st = roster.Offline
	}
	changed := c.roster.SetStatus(from, from.Resource(), presence.Priority(), st, presence.Status())
	if !changed {
		return
	}
	if presence.IsUnavailable() {
		c.states.Reset(from)
	}
	line := fmt.Sprintf("%s is now %s", from.String(), st)
	if status := presence.Status(); len(status) > 0 {
		line += " (" + status + ")"
	}
	c.writeStatus(line, ui.LineInfo)
	c.screen.RosterChanged()
}

func (c *Client) handleErrorPresence(presence *xmpp.Presence) {
	from := presence.FromJID()
	stanzaErr := xmpp.DecodeStanzaError(presence)
	if stanzaErr == nil {
		stanzaErr = &xmpp.StanzaError{}
	}
	// nickname conflict while joining: reset so a retry can pick another
	if stanzaErr.Code() == 409 {
		roomBare := from.ToBareJID().String()
		if room := c.roster.Find(roomBare); room == nil || !room.InsideRoom() {
			c.mu.Lock()
			delete(c.attemptedNicks, roomBare)
			c.mu.Unlock()
			c.writeStatus(fmt.Sprintf("nickname already in use in %s", roomBare), ui.LineError)
			return
		}
	}
	c.writeStatus(fmt.Sprintf("presence error from %s: %v", from.String(), stanzaErr), ui.LineError)
	c.states.Reset(from)
}

func (c *Client) handleSubscriptionPresence(presence *xmpp.Presence) {
	from := presence.FromJID()
	bare := from.ToBareJID().String()

	switch presence.Type() {
	case xmpp.SubscribeType:
		for _, pending := range c.events.List() {
			if pending.Type == events.Subscription && pending.Data == bare {
				return
			}
		}
		ev := c.events.Push(events.Subscription,
			fmt.Sprintf("%s wants to subscribe to your presence", bare),
			bare, defaultEventTimeout, c.subscriptionDecided)
		c.writeStatus(fmt.Sprintf("subscription request from %s (event #%s)", bare, ev.ID),
			ui.LineInfo)

	case xmpp.UnsubscribeType:
		// the peer no longer wants our presence: drop the reverse grant
		_ = c.session.SendElement(c.subscriptionPresence(bare, xmpp.UnsubscribedType))
		if b := c.roster.Find(bare); b != nil {
			b.Subscription = b.Subscription.RemoveFrom()
		}
		c.writeStatus(fmt.Sprintf("%s cancelled the subscription to your presence", bare),
			ui.LineInfo)
		c.screen.RosterChanged()

	case xmpp.SubscribedType:
		if b := c.roster.Find(bare); b != nil {
			b.Subscription = b.Subscription.AddTo()
			b.PendingSub = false
		}
		c.writeStatus(fmt.Sprintf("%s accepted your subscription request", bare), ui.LineInfo)
		c.screen.RosterChanged()

	case xmpp.UnsubscribedType:
		if b := c.roster.Find(bare); b != nil {
			b.Subscription = b.Subscription.RemoveTo()
			b.PendingSub = false
		}
		c.writeStatus(fmt.Sprintf("%s denied or removed your subscription", bare), ui.LineInfo)
		c.screen.RosterChanged()

	default:
		log.Infof("unrecognized subscription presence type: %s", presence.Type())
	}
}

// subscriptionDecided completes a queued subscription confirmation.
func (c *Client) subscriptionDecided(outcome events.Outcome, ev *events.Event) {
	bare, _ := ev.Data.(string)

	switch outcome {
	case events.Accept:
		_ = c.session.SendElement(c.subscriptionPresence(bare, xmpp.SubscribedType))
		c.writeStatus(fmt.Sprintf("subscription from %s accepted", bare), ui.LineInfo)

	case events.Reject:
		_ = c.session.SendElement(c.subscriptionPresence(bare, xmpp.UnsubscribedType))
		c.writeStatus(fmt.Sprintf("subscription from %s rejected", bare), ui.LineInfo)
		if c.cfg.DeleteOnReject {
			if b := c.roster.Find(bare); b != nil && !b.Subscription.HasTo() {
				c.DeleteBuddy(bare)
			}
		}

	case events.Timeout:
		c.writeStatus(fmt.Sprintf("subscription request from %s expired", bare), ui.LineWarning)
	}
}

func (c *Client) subscriptionPresence(bare string, presenceType string) *xmpp.Presence {
	to, _ := jid.NewWithString(bare, true)
	return xmpp.NewPresence(nil, to, presenceType)
}

func (c *Client) notifyPeerState(from *jid.JID, state chatstates.State) {
	if state == chatstates.Composing {
		c.screen.StatusLine(from.String() + " is typing...")
	}
}

func (c *Client) serverDomain() string {
	if j := c.session.JID(); j != nil {
		return j.Domain()
	}
	return ""
}

// sanitizeText strips invalid UTF-8 sequences from inbound text before it
// reaches the screen or the archive, emitting a notice so the truncation is
// visible to the user.
func (c *Client) sanitizeText(buffer, text string) string {
	if utf8.ValidString(text) {
		return text
	}
	c.screen.WriteLine(buffer, "message contained invalid characters; they were dropped", ui.LineWarning)
	return strings.ToValidUTF8(text, "")
}

func (c *Client) appendHistory(bare string, ts time.Time, incoming bool, body string) {
	err := c.rep.History().AppendHistoryEntry(context.Background(), &model.HistoryEntry{
		JID:       bare,
		Timestamp: ts,
		Incoming:  incoming,
		Body:      body,
	})
	if err != nil {
		log.Warnf("archiving message: %v", err)
	}
}
