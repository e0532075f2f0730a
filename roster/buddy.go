/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package roster

import (
	"sort"
	"time"

	"github.com/ortuman/civet/xmpp/jid"
)

// Flags represents buddy entry option flags.
type Flags int

const (
	// FlagLocked marks an entry that must not be removed on roster refresh.
	FlagLocked Flags = 1 << iota

	// FlagHidden marks an entry excluded from roster display.
	FlagHidden
)

// Resource represents one connected client instance of a buddy.
type Resource struct {
	Name          string
	Status        Status
	StatusMessage string
	Priority      int8
	LastChanged   time.Time

	// room member attributes
	Role        Role
	Affiliation Affiliation
	RealJID     string
}

// Buddy represents a roster entry: a contact, a chat room,
// or a pseudo entry (group header, special buffer).
type Buddy struct {
	jid  *jid.JID
	kind Kind

	Name         string
	Group        string
	Subscription Subscription
	PendingSub   bool
	Flags        Flags

	// room attributes
	Nickname string
	Topic    string

	resources map[string]*Resource
}

func newBuddy(j *jid.JID, name string, kind Kind) *Buddy {
	return &Buddy{
		jid:       j,
		kind:      kind,
		Name:      name,
		resources: map[string]*Resource{},
	}
}

// BareJID returns the entry bare JID, or nil for pseudo entries.
func (b *Buddy) BareJID() *jid.JID {
	return b.jid
}

// Kind returns the entry kind.
func (b *Buddy) Kind() Kind {
	return b.kind
}

// SetKind reclassifies the entry kind.
// Only a user entry may be turned into a room.
func (b *Buddy) SetKind(kind Kind) {
	if b.kind == kind {
		return
	}
	if kind == Room && b.kind != User {
		return
	}
	b.kind = kind
}

// InsideRoom returns true if the local user currently occupies the room.
func (b *Buddy) InsideRoom() bool {
	return b.kind == Room && len(b.Nickname) > 0
}

// Resource returns the buddy resource matching a given name.
func (b *Buddy) Resource(name string) *Resource {
	return b.resources[name]
}

// Resources returns buddy resources sorted by name.
func (b *Buddy) Resources() []*Resource {
	ret := make([]*Resource, 0, len(b.resources))
	for _, res := range b.resources {
		ret = append(ret, res)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Name < ret[j].Name })
	return ret
}

// UpsertResource inserts or updates a buddy resource.
func (b *Buddy) UpsertResource(res *Resource) {
	b.resources[res.Name] = res
}

// RemoveResource removes the resource matching a given name.
func (b *Buddy) RemoveResource(name string) {
	delete(b.resources, name)
}

// RemoveAllResources clears the buddy resource set.
func (b *Buddy) RemoveAllResources() {
	b.resources = map[string]*Resource{}
}

// AggregateStatus returns the status of the highest priority resource,
// or Offline when the buddy has no resources.
func (b *Buddy) AggregateStatus() Status {
	var best *Resource
	for _, res := range b.resources {
		if best == nil || res.Priority > best.Priority {
			best = res
		}
	}
	if best == nil {
		return Offline
	}
	return best.Status
}
