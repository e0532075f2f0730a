/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package events

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ortuman/civet/log"
)

// MaxTimeout bounds the expiration deadline of any queued event.
const MaxTimeout = time.Hour * 24

// Type represents a queued event type.
type Type int

const (
	// Subscription represents a presence subscription confirmation request.
	Subscription Type = iota

	// User represents a generic user-defined confirmation request.
	User
)

// Outcome represents the terminal resolution of a queued event.
type Outcome int

const (
	// Accept outcome is fired when the user accepts the request.
	Accept Outcome = iota

	// Reject outcome is fired when the user rejects the request.
	Reject

	// Ignore outcome is fired when the user dismisses the request.
	Ignore

	// Timeout outcome is fired when the event deadline expires.
	Timeout

	// Cancel outcome is fired when the owning connection goes away.
	Cancel
)

// String returns Outcome string representation.
func (o Outcome) String() string {
	switch o {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	case Ignore:
		return "ignore"
	case Timeout:
		return "timeout"
	case Cancel:
		return "cancel"
	}
	return ""
}

// Callback is invoked exactly once with the event terminal outcome.
type Callback func(outcome Outcome, ev *Event)

// Event represents a decision waiting for explicit user confirmation.
type Event struct {
	ID          string
	Type        Type
	Description string
	Data        interface{}
	deadline    time.Time
	cb          Callback
}

// Queue holds the set of pending user confirmations.
type Queue struct {
	mu     sync.Mutex
	events map[string]*Event
}

// New returns an initialized event queue instance.
func New() *Queue {
	return &Queue{events: map[string]*Event{}}
}

// Push queues a new confirmation request and returns its generated identifier.
func (q *Queue) Push(tp Type, description string, data interface{}, timeout time.Duration, cb Callback) *Event {
	if timeout <= 0 || timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	ev := &Event{
		ID:          uuid.New().String()[:8],
		Type:        tp,
		Description: description,
		Data:        data,
		deadline:    time.Now().Add(timeout),
		cb:          cb,
	}
	q.mu.Lock()
	q.events[ev.ID] = ev
	q.mu.Unlock()

	log.Debugf("events: queued event %s (%s)", ev.ID, description)
	return ev
}

// Resolve completes a queued event with a user-driven outcome.
// Each event resolves exactly once; unknown identifiers are rejected.
func (q *Queue) Resolve(id string, outcome Outcome) error {
	q.mu.Lock()
	ev, ok := q.events[id]
	if ok {
		delete(q.events, id)
	}
	q.mu.Unlock()

	if !ok {
		return fmt.Errorf("events: no pending event with id %s", id)
	}
	ev.cb(outcome, ev)
	return nil
}

// Sweep expires every queued event whose deadline has passed.
func (q *Queue) Sweep(now time.Time) {
	var expired []*Event

	q.mu.Lock()
	for id, ev := range q.events {
		if now.After(ev.deadline) {
			delete(q.events, id)
			expired = append(expired, ev)
		}
	}
	q.mu.Unlock()

	for _, ev := range expired {
		log.Debugf("events: event %s timed out", ev.ID)
		ev.cb(Timeout, ev)
	}
}

// CancelAll completes every queued event with a cancellation outcome.
func (q *Queue) CancelAll() {
	q.mu.Lock()
	cancelled := make([]*Event, 0, len(q.events))
	for _, ev := range q.events {
		cancelled = append(cancelled, ev)
	}
	q.events = map[string]*Event{}
	q.mu.Unlock()

	for _, ev := range cancelled {
		ev.cb(Cancel, ev)
	}
}

// List returns pending events ordered by identifier.
func (q *Queue) List() []*Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	ret := make([]*Event, 0, len(q.events))
	for _, ev := range q.events {
		ret = append(ret, ev)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].ID < ret[j].ID })
	return ret
}

// Len returns pending events count.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
