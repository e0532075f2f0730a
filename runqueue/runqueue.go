/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package runqueue

import (
	"sync"

	"github.com/ortuman/civet/log"
)

// RunQueue serializes function execution: items posted from any
// goroutine run one at a time in posting order.
type RunQueue struct {
	name    string
	mu      sync.Mutex
	items   []func()
	active  bool
	stopped bool
	stopCb  func()
}

// New returns an initialized run queue.
func New(name string) *RunQueue {
	return &RunQueue{name: name}
}

// Run enqueues a function for serialized execution.
// Functions posted after Stop are discarded.
func (m *RunQueue) Run(fn func()) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.items = append(m.items, fn)
	if m.active {
		m.mu.Unlock()
		return
	}
	m.active = true
	m.mu.Unlock()

	go m.process()
}

// Stop drains pending items and invokes stopCb once the queue is idle.
func (m *RunQueue) Stop(stopCb func()) {
	m.mu.Lock()
	m.stopped = true
	if m.active {
		m.stopCb = stopCb
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	if stopCb != nil {
		stopCb()
	}
}

func (m *RunQueue) process() {
	for {
		m.mu.Lock()
		if len(m.items) == 0 {
			m.active = false
			stopCb := m.stopCb
			m.stopCb = nil
			m.mu.Unlock()
			if stopCb != nil {
				stopCb()
			}
			return
		}
		fn := m.items[0]
		m.items = m.items[1:]
		m.mu.Unlock()

		m.invoke(fn)
	}
}

func (m *RunQueue) invoke(fn func()) {
	defer func() {
		if err := recover(); err != nil {
			log.Errorf("run queue %s panicked with error: %v", m.name, err)
		}
	}()
	fn()
}
