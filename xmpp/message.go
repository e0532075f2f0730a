/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xmpp

import (
	"fmt"
	"time"

	"github.com/ortuman/civet/xmpp/jid"
)

const (
	// NormalType represents a 'normal' message type.
	NormalType = "normal"

	// HeadlineType represents a 'headline' message type.
	HeadlineType = "headline"

	// ChatType represents a 'chat' message type.
	ChatType = "chat"

	// GroupChatType represents a 'groupchat' message type.
	GroupChatType = "groupchat"
)

const (
	delayNamespace       = "urn:xmpp:delay"
	legacyDelayNamespace = "jabber:x:delay"
)

// Message type represents a <message> element.
// All incoming <message> elements providing from the
// stream will automatically be converted to Message objects.
type Message struct {
	stanzaElement
}

// NewMessageFromElement creates a Message object from XElement.
func NewMessageFromElement(e XElement, from *jid.JID, to *jid.JID) (*Message, error) {
	if e.Name() != MessageName {
		return nil, fmt.Errorf("wrong Message element name: %s", e.Name())
	}
	messageType := e.Type()
	if !isMessageType(messageType) {
		return nil, fmt.Errorf(`invalid Message "type" attribute: %s`, messageType)
	}
	m := &Message{}
	m.copyFrom(e)
	m.SetFromJID(from)
	m.SetToJID(to)
	m.SetNamespace("")
	return m, nil
}

// NewMessageType creates and returns a new Message element.
func NewMessageType(identifier string, messageType string) *Message {
	msg := &Message{}
	msg.SetName(MessageName)
	msg.SetID(identifier)
	msg.SetType(messageType)
	return msg
}

// IsNormal returns true if this is a 'normal' type Message.
func (m *Message) IsNormal() bool {
	return m.Type() == NormalType || m.Type() == ""
}

// IsHeadline returns true if this is a 'headline' type Message.
func (m *Message) IsHeadline() bool {
	return m.Type() == HeadlineType
}

// IsChat returns true if this is a 'chat' type Message.
func (m *Message) IsChat() bool {
	return m.Type() == ChatType
}

// IsGroupChat returns true if this is a 'groupchat' type Message.
func (m *Message) IsGroupChat() bool {
	return m.Type() == GroupChatType
}

// IsMessageWithBody returns true if the message
// has a body sub element.
func (m *Message) IsMessageWithBody() bool {
	return m.elements.Child("body") != nil
}

// Body returns message body text, or an empty string if not set.
func (m *Message) Body() string {
	if b := m.elements.Child("body"); b != nil {
		return b.Text()
	}
	return ""
}

// Subject returns message subject text, or an empty string if not set.
func (m *Message) Subject() string {
	if s := m.elements.Child("subject"); s != nil {
		return s.Text()
	}
	return ""
}

// HasSubject returns true if the message carries a subject sub element.
func (m *Message) HasSubject() bool {
	return m.elements.Child("subject") != nil
}

// Timestamp returns the message delayed delivery timestamp,
// or the current time if the message carries no delay information.
func (m *Message) Timestamp() time.Time {
	if d := m.elements.ChildNamespace("delay", delayNamespace); d != nil {
		if stamp, err := time.Parse(time.RFC3339, d.Attributes().Get("stamp")); err == nil {
			return stamp
		}
	}
	if x := m.elements.ChildNamespace("x", legacyDelayNamespace); x != nil {
		if stamp, err := time.Parse("20060102T15:04:05", x.Attributes().Get("stamp")); err == nil {
			return stamp
		}
	}
	return time.Now()
}

// IsDelayed returns true if the message carries delayed delivery information.
func (m *Message) IsDelayed() bool {
	return m.elements.ChildNamespace("delay", delayNamespace) != nil ||
		m.elements.ChildNamespace("x", legacyDelayNamespace) != nil
}

func isMessageType(messageType string) bool {
	switch messageType {
	case "", ErrorType, NormalType, HeadlineType, ChatType, GroupChatType:
		return true
	default:
		return false
	}
}
