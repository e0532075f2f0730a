/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package requests

import (
	"fmt"
	"sync"
	"time"

	"github.com/ortuman/civet/log"
	"github.com/ortuman/civet/xmpp"
)

// DefaultTimeout represents the pending request expiration
// deadline applied when no explicit timeout is given.
const DefaultTimeout = time.Minute * 5

// SweepInterval represents the recommended interval between
// two consecutive Sweep invocations.
const SweepInterval = time.Second * 20

// Outcome represents the way a pending request was completed.
type Outcome int

const (
	// Result outcome is fired when a matching response arrives.
	Result Outcome = iota

	// Timeout outcome is fired when the request deadline expires.
	Timeout

	// Cancel outcome is fired when the owning connection goes away.
	Cancel
)

// Response holds the completion value handed to a request callback.
type Response struct {
	Outcome Outcome
	IQ      *xmpp.IQ
	Context interface{}
}

// Callback is invoked exactly once to complete a pending request.
type Callback func(Response)

// Sender routes an outgoing stanza to the server.
type Sender interface {
	SendElement(elem xmpp.XElement) error
}

type pendingReq struct {
	id       string
	deadline time.Time
	cb       Callback
	ctx      interface{}
}

// Correlator matches incoming IQ responses against previously
// submitted requests, expiring those whose deadline has passed.
type Correlator struct {
	sender Sender

	mu      sync.Mutex
	counter uint64
	pending map[string]*pendingReq
}

// New returns an initialized IQ correlator instance.
func New(sender Sender) *Correlator {
	return &Correlator{
		sender:  sender,
		pending: map[string]*pendingReq{},
	}
}

// NextID generates a request identifier unique for the correlator lifetime.
func (c *Correlator) NextID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextID()
}

// Submit builds an IQ with a newly generated identifier, registers a
// pending record and sends the stanza, returning the assigned identifier.
// The callback fires exactly once: on response, expiration or cancellation.
func (c *Correlator) Submit(build func(id string) xmpp.Stanza, timeout time.Duration, ctx interface{}, cb Callback) (string, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c.mu.Lock()
	id := c.nextID()
	stanza := build(id)
	if cb != nil {
		c.pending[id] = &pendingReq{
			id:       id,
			deadline: time.Now().Add(timeout),
			cb:       cb,
			ctx:      ctx,
		}
	}
	c.mu.Unlock()

	if err := c.sender.SendElement(stanza); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return "", err
	}
	return id, nil
}

// Resolve completes the pending request matching the response identifier.
// Responses with no matching registration are ignored.
func (c *Correlator) Resolve(iq *xmpp.IQ) bool {
	c.mu.Lock()
	req, ok := c.pending[iq.ID()]
	if ok {
		delete(c.pending, iq.ID())
	}
	c.mu.Unlock()

	if !ok {
		log.Debugf("requests: no pending request matching id %s", iq.ID())
		return false
	}
	req.cb(Response{Outcome: Result, IQ: iq, Context: req.ctx})
	return true
}

// Sweep expires every pending request whose deadline has passed.
func (c *Correlator) Sweep(now time.Time) {
	var expired []*pendingReq

	c.mu.Lock()
	for id, req := range c.pending {
		if now.After(req.deadline) {
			delete(c.pending, id)
			expired = append(expired, req)
		}
	}
	c.mu.Unlock()

	for _, req := range expired {
		log.Debugf("requests: request %s timed out", req.id)
		req.cb(Response{Outcome: Timeout, Context: req.ctx})
	}
}

// CancelAll completes every pending request with a cancellation outcome.
// Invoked when the owning connection is torn down, so that no stale
// callback can fire after a later connection reuses identifiers.
func (c *Correlator) CancelAll() {
	c.mu.Lock()
	cancelled := make([]*pendingReq, 0, len(c.pending))
	for _, req := range c.pending {
		cancelled = append(cancelled, req)
	}
	c.pending = map[string]*pendingReq{}
	c.mu.Unlock()

	for _, req := range cancelled {
		req.cb(Response{Outcome: Cancel, Context: req.ctx})
	}
}

// Len returns current pending requests count.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Correlator) nextID() string {
	c.counter++
	return fmt.Sprintf("civ_%d", c.counter)
}
