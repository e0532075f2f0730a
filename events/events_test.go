/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueuePushResolve(t *testing.T) {
	q := New()

	var fired int
	ev := q.Push(Subscription, "romeo@jackal.im wants to subscribe", "romeo@jackal.im", time.Minute,
		func(outcome Outcome, ev *Event) {
			fired++
			require.Equal(t, Accept, outcome)
			require.Equal(t, "romeo@jackal.im", ev.Data)
		})
	require.Equal(t, 1, q.Len())

	require.Nil(t, q.Resolve(ev.ID, Accept))
	require.Equal(t, 1, fired)
	require.Equal(t, 0, q.Len())

	// resolving twice must fail
	require.NotNil(t, q.Resolve(ev.ID, Reject))
	require.Equal(t, 1, fired)
}

func TestQueueSweep(t *testing.T) {
	q := New()

	var fired int
	q.Push(Subscription, "desc", nil, time.Second, func(outcome Outcome, ev *Event) {
		fired++
		require.Equal(t, Timeout, outcome)
	})
	q.Sweep(time.Now())
	require.Equal(t, 0, fired)

	q.Sweep(time.Now().Add(time.Second * 2))
	require.Equal(t, 1, fired)
	require.Equal(t, 0, q.Len())
}

func TestQueueResolveSweepRace(t *testing.T) {
	q := New()

	var mu sync.Mutex
	var fired int
	ev := q.Push(Subscription, "desc", nil, time.Millisecond, func(outcome Outcome, ev *Event) {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		q.Resolve(ev.ID, Ignore)
	}()
	go func() {
		defer wg.Done()
		q.Sweep(time.Now().Add(time.Minute))
	}()
	wg.Wait()

	require.Equal(t, 1, fired)
}

func TestQueueCancelAll(t *testing.T) {
	q := New()

	var fired int
	for i := 0; i < 3; i++ {
		q.Push(User, "desc", nil, time.Minute, func(outcome Outcome, ev *Event) {
			fired++
			require.Equal(t, Cancel, outcome)
		})
	}
	q.CancelAll()
	require.Equal(t, 3, fired)
	require.Equal(t, 0, q.Len())
}

func TestQueueList(t *testing.T) {
	q := New()
	q.Push(User, "a", nil, time.Minute, func(Outcome, *Event) {})
	q.Push(User, "b", nil, time.Minute, func(Outcome, *Event) {})

	evs := q.List()
	require.Len(t, evs, 2)
	require.True(t, evs[0].ID < evs[1].ID)
}
