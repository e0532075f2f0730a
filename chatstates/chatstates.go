/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package chatstates

import (
	"sync"

	"github.com/ortuman/civet/xmpp"
	"github.com/ortuman/civet/xmpp/jid"
	"github.com/pborman/uuid"
)

const (
	// ChatStatesNamespace defines the typing-notification extension namespace.
	ChatStatesNamespace = "http://jabber.org/protocol/chatstates"

	// MessageEventsNamespace defines the legacy message-events extension namespace.
	MessageEventsNamespace = "jabber:x:event"
)

// State represents a typing-notification state.
type State int

const (
	// Inactive represents an 'inactive' chat state.
	Inactive State = iota

	// Active represents an 'active' chat state.
	Active

	// Composing represents a 'composing' chat state.
	Composing

	// Paused represents a 'paused' chat state.
	Paused

	// Gone represents a 'gone' chat state.
	Gone
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Composing:
		return "composing"
	case Paused:
		return "paused"
	case Gone:
		return "gone"
	}
	return "inactive"
}

// ParseState returns the state matching an extension element name.
func ParseState(name string) (State, bool) {
	switch name {
	case "active":
		return Active, true
	case "composing":
		return Composing, true
	case "paused":
		return Paused, true
	case "gone":
		return Gone, true
	case "inactive":
		return Inactive, true
	}
	return Inactive, false
}

// Support represents peer extension capability knowledge.
type Support int

const (
	// SupportUnknown means no capability probe has been sent yet.
	SupportUnknown Support = iota

	// SupportProbed means a probe was attached to an outgoing message.
	SupportProbed

	// SupportConfirmed means the peer answered with an extension element.
	SupportConfirmed
)

type record struct {
	support  Support
	lastSent State
	lastRecv State
	legacyID string
}

// Negotiator tracks per resource typing-notification capability and
// filters redundant outgoing state transitions.
type Negotiator struct {
	mu      sync.Mutex
	records map[string]*record
}

// New returns an initialized chat state negotiator.
func New() *Negotiator {
	return &Negotiator{records: map[string]*record{}}
}

// Support returns current capability knowledge for a given resource.
func (n *Negotiator) Support(to *jid.JID) Support {
	n.mu.Lock()
	defer n.mu.Unlock()
	if rec := n.records[to.String()]; rec != nil {
		return rec.support
	}
	return SupportUnknown
}

// DecorateOutgoing attaches typing-notification metadata to an outgoing
// body message. An 'active' hint probes resources not yet known to
// support the extension; until support is confirmed the legacy
// message-events request rides along as fallback.
func (n *Negotiator) DecorateOutgoing(to *jid.JID, msg *xmpp.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()

	rec := n.record(to)
	msg.AppendElement(xmpp.NewElementNamespace(Active.String(), ChatStatesNamespace))
	rec.lastSent = Active
	if rec.support == SupportUnknown {
		rec.support = SupportProbed
	}
	if rec.support != SupportConfirmed {
		if len(msg.ID()) == 0 {
			msg.SetID(uuid.New())
		}
		x := xmpp.NewElementNamespace("x", MessageEventsNamespace)
		x.AppendElement(xmpp.NewElementName("composing"))
		msg.AppendElement(x)
		rec.legacyID = msg.ID()
	}
}

// Notification builds a standalone state transition notification,
// or returns nil when nothing should hit the wire: the state equals
// the last one sent, or the peer offers no way to convey it.
func (n *Negotiator) Notification(to *jid.JID, state State) *xmpp.Message {
	n.mu.Lock()
	defer n.mu.Unlock()

	rec := n.record(to)
	if state == rec.lastSent {
		return nil
	}
	switch {
	case rec.support == SupportConfirmed:
		msg := xmpp.NewMessageType(uuid.New(), xmpp.ChatType)
		msg.SetToJID(to)
		msg.AppendElement(xmpp.NewElementNamespace(state.String(), ChatStatesNamespace))
		rec.lastSent = state
		return msg

	case len(rec.legacyID) > 0:
		// legacy events only signal composing started/stopped
		if state != Composing && rec.lastSent != Composing {
			return nil
		}
		msg := xmpp.NewMessageType(uuid.New(), xmpp.ChatType)
		msg.SetToJID(to)
		x := xmpp.NewElementNamespace("x", MessageEventsNamespace)
		if state == Composing {
			x.AppendElement(xmpp.NewElementName("composing"))
		}
		idElem := xmpp.NewElementName("id")
		idElem.SetText(rec.legacyID)
		x.AppendElement(idElem)
		msg.AppendElement(x)
		rec.lastSent = state
		return msg
	}
	return nil
}

// ProcessIncoming inspects an inbound message for typing-notification
// extension payloads. It returns the peer state when one was conveyed,
// and possibly a delivery acknowledgement stanza to send back.
func (n *Negotiator) ProcessIncoming(msg *xmpp.Message) (State, bool, *xmpp.Message) {
	from := msg.FromJID()
	if from == nil {
		return Inactive, false, nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	rec := n.record(from)

	for _, st := range []State{Active, Composing, Paused, Inactive, Gone} {
		if msg.Elements().ChildNamespace(st.String(), ChatStatesNamespace) == nil {
			continue
		}
		rec.support = SupportConfirmed
		rec.legacyID = ""
		rec.lastRecv = st
		return st, true, nil
	}
	x := msg.Elements().ChildNamespace("x", MessageEventsNamespace)
	if x == nil || rec.support == SupportConfirmed {
		return Inactive, false, nil
	}
	if msg.IsMessageWithBody() {
		// event request riding on a regular message
		rec.legacyID = msg.ID()
		var ack *xmpp.Message
		if x.Elements().Child("delivered") != nil {
			ack = xmpp.NewMessageType(uuid.New(), xmpp.ChatType)
			ack.SetToJID(from)
			reply := xmpp.NewElementNamespace("x", MessageEventsNamespace)
			reply.AppendElement(xmpp.NewElementName("delivered"))
			idElem := xmpp.NewElementName("id")
			idElem.SetText(msg.ID())
			reply.AppendElement(idElem)
			ack.AppendElement(reply)
		}
		return Inactive, false, ack
	}
	if x.Elements().Child("composing") != nil {
		rec.lastRecv = Composing
		return Composing, true, nil
	}
	if x.Elements().Child("id") != nil {
		rec.lastRecv = Inactive
		return Inactive, true, nil
	}
	return Inactive, false, nil
}

// Reset drops capability knowledge for a resource so a later message
// exchange renegotiates from scratch. Invoked on stanza errors and
// when the resource goes offline.
func (n *Negotiator) Reset(j *jid.JID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.records, j.String())
}

func (n *Negotiator) record(j *jid.JID) *record {
	key := j.String()
	rec := n.records[key]
	if rec == nil {
		rec = &record{}
		n.records[key] = rec
	}
	return rec
}
