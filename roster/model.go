/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package roster

// Status represents a buddy resource presence status.
type Status int

const (
	// Offline represents an 'offline' presence status.
	Offline Status = iota

	// Available represents an 'available' presence status.
	Available

	// Invisible represents an 'invisible' presence status.
	Invisible

	// FreeForChat represents a 'free for chat' presence status.
	FreeForChat

	// DoNotDisturb represents a 'do not disturb' presence status.
	DoNotDisturb

	// NotAvailable represents an 'extended away' presence status.
	NotAvailable

	// Away represents an 'away' presence status.
	Away
)

// String returns Status string representation.
func (s Status) String() string {
	switch s {
	case Offline:
		return "offline"
	case Available:
		return "available"
	case Invisible:
		return "invisible"
	case FreeForChat:
		return "free"
	case DoNotDisturb:
		return "dnd"
	case NotAvailable:
		return "notavail"
	case Away:
		return "away"
	}
	return ""
}

// Show returns the presence <show/> value associated to the status,
// or an empty string if the status maps to no show value.
func (s Status) Show() string {
	switch s {
	case Away:
		return "away"
	case DoNotDisturb:
		return "dnd"
	case FreeForChat:
		return "chat"
	case NotAvailable:
		return "xa"
	}
	return ""
}

// StatusFromShow maps a presence <show/> value to a Status.
func StatusFromShow(show string) Status {
	switch show {
	case "away":
		return Away
	case "dnd":
		return DoNotDisturb
	case "chat":
		return FreeForChat
	case "xa":
		return NotAvailable
	}
	return Available
}

// Kind represents a roster entry kind.
type Kind int

const (
	// User represents a regular contact entry.
	User Kind = iota

	// Agent represents a gateway/transport entry.
	Agent

	// Room represents a multi-user chat room entry.
	Room

	// Group represents a group header pseudo entry.
	Group

	// Special represents a special buffer pseudo entry.
	Special
)

// String returns Kind string representation.
func (k Kind) String() string {
	switch k {
	case User:
		return "user"
	case Agent:
		return "agent"
	case Room:
		return "room"
	case Group:
		return "group"
	case Special:
		return "special"
	}
	return ""
}

// Subscription represents a roster entry subscription state.
type Subscription int

const (
	// SubNone represents a 'none' subscription state.
	SubNone Subscription = iota

	// SubTo represents a 'to' subscription state.
	SubTo

	// SubFrom represents a 'from' subscription state.
	SubFrom

	// SubBoth represents a 'both' subscription state.
	SubBoth
)

// HasTo returns true if the state grants us the contact's presence.
func (s Subscription) HasTo() bool {
	return s == SubTo || s == SubBoth
}

// HasFrom returns true if the state grants the contact our presence.
func (s Subscription) HasFrom() bool {
	return s == SubFrom || s == SubBoth
}

// AddTo returns the state extended with a 'to' grant.
func (s Subscription) AddTo() Subscription {
	if s.HasFrom() {
		return SubBoth
	}
	return SubTo
}

// RemoveTo returns the state with the 'to' grant revoked.
func (s Subscription) RemoveTo() Subscription {
	if s.HasFrom() {
		return SubFrom
	}
	return SubNone
}

// AddFrom returns the state extended with a 'from' grant.
func (s Subscription) AddFrom() Subscription {
	if s.HasTo() {
		return SubBoth
	}
	return SubFrom
}

// RemoveFrom returns the state with the 'from' grant revoked.
func (s Subscription) RemoveFrom() Subscription {
	if s.HasTo() {
		return SubTo
	}
	return SubNone
}

// ParseSubscription maps a roster item subscription attribute to a Subscription.
func ParseSubscription(s string) Subscription {
	switch s {
	case "to":
		return SubTo
	case "from":
		return SubFrom
	case "both":
		return SubBoth
	}
	return SubNone
}

// String returns Subscription string representation.
func (s Subscription) String() string {
	switch s {
	case SubTo:
		return "to"
	case SubFrom:
		return "from"
	case SubBoth:
		return "both"
	}
	return "none"
}

// Role represents a room member session-scoped privilege level.
type Role int

const (
	// RoleNone represents a 'none' role.
	RoleNone Role = iota

	// RoleVisitor represents a 'visitor' role.
	RoleVisitor

	// RoleParticipant represents a 'participant' role.
	RoleParticipant

	// RoleModerator represents a 'moderator' role.
	RoleModerator
)

// ParseRole maps a MUC item role attribute to a Role.
func ParseRole(s string) Role {
	switch s {
	case "visitor":
		return RoleVisitor
	case "participant":
		return RoleParticipant
	case "moderator":
		return RoleModerator
	}
	return RoleNone
}

// String returns Role string representation.
func (r Role) String() string {
	switch r {
	case RoleVisitor:
		return "visitor"
	case RoleParticipant:
		return "participant"
	case RoleModerator:
		return "moderator"
	}
	return "none"
}

// Affiliation represents a room member long-term privilege level.
type Affiliation int

const (
	// AffiliationNone represents a 'none' affiliation.
	AffiliationNone Affiliation = iota

	// AffiliationOutcast represents an 'outcast' affiliation.
	AffiliationOutcast

	// AffiliationMember represents a 'member' affiliation.
	AffiliationMember

	// AffiliationAdmin represents an 'admin' affiliation.
	AffiliationAdmin

	// AffiliationOwner represents an 'owner' affiliation.
	AffiliationOwner
)

// ParseAffiliation maps a MUC item affiliation attribute to an Affiliation.
func ParseAffiliation(s string) Affiliation {
	switch s {
	case "outcast":
		return AffiliationOutcast
	case "member":
		return AffiliationMember
	case "admin":
		return AffiliationAdmin
	case "owner":
		return AffiliationOwner
	}
	return AffiliationNone
}

// String returns Affiliation string representation.
func (a Affiliation) String() string {
	switch a {
	case AffiliationOutcast:
		return "outcast"
	case AffiliationMember:
		return "member"
	case AffiliationAdmin:
		return "admin"
	case AffiliationOwner:
		return "owner"
	}
	return "none"
}
