/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package roster

import (
	"sort"
	"sync"
	"time"

	"github.com/ortuman/civet/xmpp/jid"
)

// Store is the authoritative in-memory model of buddies, groups,
// chat rooms and per-resource presence state.
//
// All mutation is expected to happen from the client run queue;
// the mutex only guards concurrent reads from other goroutines.
type Store struct {
	mu       sync.RWMutex
	buddies  map[string]*Buddy
	specials map[string]*Buddy
}

// New returns an empty roster store.
func New() *Store {
	return &Store{
		buddies:  map[string]*Buddy{},
		specials: map[string]*Buddy{},
	}
}

// Upsert inserts a new buddy entry, or updates name and group
// in case the bare JID is already present.
func (s *Store) Upsert(j *jid.JID, name, group string, kind Kind) *Buddy {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := j.ToBareJID().String()
	b := s.buddies[key]
	if b == nil {
		b = newBuddy(j.ToBareJID(), name, kind)
		s.buddies[key] = b
	} else {
		b.SetKind(kind)
	}
	if len(name) > 0 {
		b.Name = name
	}
	if len(group) > 0 {
		b.Group = group
	}
	return b
}

// UpsertSpecial inserts or retrieves a special pseudo entry identified by name.
func (s *Store) UpsertSpecial(name string) *Buddy {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.specials[name]
	if b == nil {
		b = newBuddy(nil, name, Special)
		s.specials[name] = b
	}
	return b
}

// Find returns the buddy entry matching a given bare JID.
func (s *Store) Find(bareJID string) *Buddy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buddies[bareJID]
}

// Delete removes the buddy entry matching a given bare JID.
func (s *Store) Delete(bareJID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buddies, bareJID)
}

// Clear removes every buddy entry.
// Invoked when the connection is torn down: buddy presences
// are unknown while offline.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buddies = map[string]*Buddy{}
}

// Len returns buddy entries count.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buddies)
}

// SetStatus updates per-resource presence state for a given buddy,
// creating the entry when not yet present. An offline status removes
// the resource. Returns true only if the stored status or status
// message actually changed, so that redundant presence broadcasts
// can be suppressed.
func (s *Store) SetStatus(j *jid.JID, resName string, priority int8, st Status, msg string) bool {
	return s.SetMemberStatus(j, resName, priority, st, msg, RoleNone, AffiliationNone, "")
}

// SetMemberStatus updates per-resource presence state including
// room member role and affiliation attributes.
func (s *Store) SetMemberStatus(j *jid.JID, resName string, priority int8, st Status, msg string,
	role Role, affiliation Affiliation, realJID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := j.ToBareJID().String()
	b := s.buddies[key]
	if b == nil {
		b = newBuddy(j.ToBareJID(), "", User)
		s.buddies[key] = b
	}
	prev := b.resources[resName]

	if st == Offline {
		if prev == nil {
			return false
		}
		delete(b.resources, resName)
		return prev.Status != Offline || prev.StatusMessage != msg
	}

	if prev != nil && prev.Status == st && prev.StatusMessage == msg {
		// refresh volatile attributes, but report no change
		prev.Priority = priority
		prev.Role = role
		prev.Affiliation = affiliation
		if len(realJID) > 0 {
			prev.RealJID = realJID
		}
		return false
	}
	b.resources[resName] = &Resource{
		Name:          resName,
		Status:        st,
		StatusMessage: msg,
		Priority:      priority,
		LastChanged:   time.Now(),
		Role:          role,
		Affiliation:   affiliation,
		RealJID:       realJID,
	}
	return true
}

// Buddies returns every buddy entry sorted by group and name.
func (s *Store) Buddies() []*Buddy {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ret := make([]*Buddy, 0, len(s.buddies))
	for _, b := range s.buddies {
		ret = append(ret, b)
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].Group != ret[j].Group {
			return ret[i].Group < ret[j].Group
		}
		return ret[i].BareJID().String() < ret[j].BareJID().String()
	})
	return ret
}

// ForEachRoom invokes f over every room entry the user is currently inside.
func (s *Store) ForEachRoom(f func(room *Buddy)) {
	s.mu.RLock()
	rooms := make([]*Buddy, 0, 4)
	for _, b := range s.buddies {
		if b.InsideRoom() {
			rooms = append(rooms, b)
		}
	}
	s.mu.RUnlock()

	for _, room := range rooms {
		f(room)
	}
}
