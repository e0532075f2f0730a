/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package requests

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ortuman/civet/xmpp"
	"github.com/ortuman/civet/xmpp/jid"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []xmpp.XElement
	failNext bool
}

func (s *fakeSender) SendElement(elem xmpp.XElement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return errors.New("not connected")
	}
	s.sent = append(s.sent, elem)
	return nil
}

func buildVersionIQ(id string) xmpp.Stanza {
	iq := xmpp.NewIQQuery(id, xmpp.GetType, "jabber:iq:version")
	return iq
}

func resultIQ(t *testing.T, id string) *xmpp.IQ {
	t.Helper()
	from, _ := jid.NewWithString("jackal.im", true)
	to, _ := jid.NewWithString("ortuman@jackal.im/balcony", true)
	el := xmpp.NewElementName("iq")
	el.SetID(id)
	el.SetType(xmpp.ResultType)
	iq, err := xmpp.NewIQFromElement(el, from, to)
	require.Nil(t, err)
	return iq
}

func TestCorrelatorSubmitResolve(t *testing.T) {
	s := &fakeSender{}
	c := New(s)

	var fired int
	id, err := c.Submit(buildVersionIQ, time.Minute, "ctx", func(resp Response) {
		fired++
		require.Equal(t, Result, resp.Outcome)
		require.NotNil(t, resp.IQ)
		require.Equal(t, "ctx", resp.Context)
	})
	require.Nil(t, err)
	require.Equal(t, 1, c.Len())
	require.Len(t, s.sent, 1)
	require.Equal(t, id, s.sent[0].ID())

	require.True(t, c.Resolve(resultIQ(t, id)))
	require.Equal(t, 1, fired)
	require.Equal(t, 0, c.Len())

	// a second resolve for the same id is ignored
	require.False(t, c.Resolve(resultIQ(t, id)))
	require.Equal(t, 1, fired)
}

func TestCorrelatorSweep(t *testing.T) {
	s := &fakeSender{}
	c := New(s)

	var fired int
	_, err := c.Submit(buildVersionIQ, time.Second, nil, func(resp Response) {
		fired++
		require.Equal(t, Timeout, resp.Outcome)
		require.Nil(t, resp.IQ)
	})
	require.Nil(t, err)

	c.Sweep(time.Now()) // deadline not reached yet
	require.Equal(t, 0, fired)
	require.Equal(t, 1, c.Len())

	c.Sweep(time.Now().Add(time.Second * 2))
	require.Equal(t, 1, fired)
	require.Equal(t, 0, c.Len())

	c.Sweep(time.Now().Add(time.Second * 4)) // nothing left to expire
	require.Equal(t, 1, fired)
}

func TestCorrelatorResolveSweepRace(t *testing.T) {
	s := &fakeSender{}
	c := New(s)

	var mu sync.Mutex
	var fired int
	id, _ := c.Submit(buildVersionIQ, time.Millisecond, nil, func(resp Response) {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.Resolve(resultIQ(t, id))
	}()
	go func() {
		defer wg.Done()
		c.Sweep(time.Now().Add(time.Minute))
	}()
	wg.Wait()

	require.Equal(t, 1, fired)
	require.Equal(t, 0, c.Len())
}

func TestCorrelatorCancelAll(t *testing.T) {
	s := &fakeSender{}
	c := New(s)

	var fired int
	for i := 0; i < 3; i++ {
		_, err := c.Submit(buildVersionIQ, time.Minute, nil, func(resp Response) {
			fired++
			require.Equal(t, Cancel, resp.Outcome)
		})
		require.Nil(t, err)
	}
	c.CancelAll()
	require.Equal(t, 3, fired)
	require.Equal(t, 0, c.Len())
}

func TestCorrelatorSendFailure(t *testing.T) {
	s := &fakeSender{failNext: true}
	c := New(s)

	_, err := c.Submit(buildVersionIQ, time.Minute, nil, func(resp Response) {
		t.Fatal("callback must not fire on send failure")
	})
	require.NotNil(t, err)
	require.Equal(t, 0, c.Len())
}

func TestCorrelatorUniqueIDs(t *testing.T) {
	c := New(&fakeSender{})
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := c.NextID()
		require.False(t, seen[id])
		seen[id] = true
	}
}
