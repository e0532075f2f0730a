/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package client

import (
	"context"
	"sync"
	"time"

	"github.com/ortuman/civet/chatstates"
	"github.com/ortuman/civet/events"
	"github.com/ortuman/civet/log"
	"github.com/ortuman/civet/model"
	"github.com/ortuman/civet/private"
	"github.com/ortuman/civet/requests"
	"github.com/ortuman/civet/roster"
	"github.com/ortuman/civet/runqueue"
	"github.com/ortuman/civet/session"
	"github.com/ortuman/civet/storage/repository"
	"github.com/ortuman/civet/ui"
	"github.com/ortuman/civet/xmpp"
	"github.com/ortuman/civet/xmpp/jid"
)

// sessionController abstracts the stream session the engine drives.
type sessionController interface {
	Connect() error
	Disconnect()
	SendElement(elem xmpp.XElement) error
	SendKeepalive()
	Requests() *requests.Correlator
	State() session.State
	JID() *jid.JID
	StreamID() string
	LastError() error
}

// Client glues together the stream session, roster store, event
// queue and chat state negotiator, routing inbound stanzas and
// exposing user-facing operations. All mutation is serialized
// through an internal run queue.
type Client struct {
	cfg     *Config
	screen  ui.Screen
	rep     repository.Container
	session sessionController

	roster  *roster.Store
	events  *events.Queue
	states  *chatstates.Negotiator
	private *private.Storage

	runQueue *runqueue.RunQueue

	mu              sync.RWMutex
	online          bool
	wantedStatus    roster.Status
	wantedMessage   string
	intentionalOff  bool
	reconnectArmed  bool
	lastConnAttempt time.Time
	attemptedNicks  map[string]string

	stopCh chan struct{}
}

// New returns a client engine bound to a screen and local repository.
func New(cfg *Config, sessCfg *session.Config, screen ui.Screen, rep repository.Container) *Client {
	c := newClient(cfg, screen, rep)
	c.session = session.New(sessCfg, c)
	c.private = private.New(c.session.Requests())
	return c
}

func newClient(cfg *Config, screen ui.Screen, rep repository.Container) *Client {
	return &Client{
		cfg:            cfg,
		screen:         screen,
		rep:            rep,
		roster:         roster.New(),
		events:         events.New(),
		states:         chatstates.New(),
		runQueue:       runqueue.New("client"),
		wantedStatus:   roster.Available,
		intentionalOff: true,
		attemptedNicks: map[string]string{},
		stopCh:         make(chan struct{}),
	}
}

// Roster returns the roster and presence store.
func (c *Client) Roster() *roster.Store {
	return c.roster
}

// Events returns the pending confirmation queue.
func (c *Client) Events() *events.Queue {
	return c.events
}

// Run starts the periodic maintenance loop, blocking until Shutdown.
func (c *Client) Run() {
	tick := time.NewTicker(defaultSweepInterval)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			c.runQueue.Run(c.maintenance)
		case <-c.stopCh:
			return
		}
	}
}

// Shutdown disconnects and stops the maintenance loop.
func (c *Client) Shutdown(ctx context.Context) {
	close(c.stopCh)

	done := make(chan struct{})
	c.runQueue.Run(func() {
		c.mu.Lock()
		c.intentionalOff = true
		c.mu.Unlock()
		c.session.Disconnect()
	})
	c.runQueue.Stop(func() { close(done) })
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// maintenance runs request expiry, event expiry, keepalive and the
// reconnect check.
func (c *Client) maintenance() {
	now := time.Now()
	c.session.Requests().Sweep(now)
	c.events.Sweep(now)
	c.session.SendKeepalive()

	c.mu.Lock()
	disconnected := c.session.State() == session.Disconnected
	shouldReconnect := disconnected && c.reconnectArmed && !c.intentionalOff &&
		now.Sub(c.lastConnAttempt) >= c.cfg.ReconnectInterval
	if shouldReconnect {
		c.lastConnAttempt = now
	}
	c.mu.Unlock()

	if shouldReconnect {
		log.Infof("attempting reconnection...")
		if err := c.session.Connect(); err != nil {
			log.Warnf("reconnection failed: %v", err)
		}
	}
}

// OnStateChanged implements the session delegate. Invoked from
// session goroutines; mutation is posted to the run queue.
func (c *Client) OnStateChanged(state session.State) {
	c.runQueue.Run(func() { c.handleStateChange(state) })
}

// OnStanzaReceived implements the session delegate.
func (c *Client) OnStanzaReceived(stanza xmpp.Stanza) {
	c.runQueue.Run(func() { c.handleStanza(stanza) })
}

func (c *Client) handleStateChange(state session.State) {
	c.screen.StateChanged(state.String())

	switch state {
	case session.Ready:
		c.mu.Lock()
		c.online = true
		c.reconnectArmed = true
		c.intentionalOff = false
		st := c.wantedStatus
		msg := c.wantedMessage
		c.mu.Unlock()

		c.writeStatus("connected as "+c.session.JID().String(), ui.LineInfo)
		c.requestRoster()
		c.announceStatus(st, msg, nil)
		c.autojoinBookmarks()

	case session.Disconnected:
		c.mu.Lock()
		wasOnline := c.online
		c.online = false
		c.attemptedNicks = map[string]string{}
		c.mu.Unlock()

		if wasOnline {
			// buddy presences are unknown while offline
			c.roster.Clear()
			c.screen.RosterChanged()
		}
		c.events.CancelAll()
		if err := c.session.LastError(); err != nil {
			c.writeStatus("disconnected: "+err.Error(), ui.LineError)
		} else {
			c.writeStatus("disconnected", ui.LineInfo)
		}
	}
}

// requestRoster asks the server for the contact list.
func (c *Client) requestRoster() {
	_, err := c.session.Requests().Submit(func(identifier string) xmpp.Stanza {
		return xmpp.NewIQQuery(identifier, xmpp.GetType, rosterNamespace)
	}, 0, nil, func(resp requests.Response) {
		if resp.Outcome != requests.Result || !resp.IQ.IsResult() {
			return
		}
		c.runQueue.Run(func() {
			query := resp.IQ.Elements().ChildNamespace("query", rosterNamespace)
			if query == nil {
				return
			}
			for _, item := range query.Elements().Children("item") {
				c.upsertRosterItem(item)
			}
			c.screen.RosterChanged()
		})
	})
	if err != nil {
		log.Warnf("roster request failed: %v", err)
	}
}

func (c *Client) upsertRosterItem(item xmpp.XElement) {
	j, err := jid.NewWithString(item.Attributes().Get("jid"), true)
	if err != nil {
		return
	}
	subscription := item.Attributes().Get("subscription")
	if subscription == "remove" {
		c.roster.Delete(j.ToBareJID().String())
		return
	}
	group := ""
	if g := item.Elements().Child("group"); g != nil {
		group = g.Text()
	}
	kind := roster.User
	if len(j.Node()) == 0 {
		kind = roster.Agent
	}
	b := c.roster.Upsert(j, item.Attributes().Get("name"), group, kind)
	b.Subscription = roster.ParseSubscription(subscription)
	b.PendingSub = item.Attributes().Get("ask") == "subscribe"
}

// autojoinBookmarks joins every bookmarked room flagged for autojoin.
func (c *Client) autojoinBookmarks() {
	c.private.FetchBookmarks(func(bookmarks []model.Bookmark, err error) {
		if err != nil {
			if err != private.ErrFeatureNotSupported {
				log.Warnf("fetching bookmarks: %v", err)
			}
			return
		}
		c.runQueue.Run(func() {
			for _, bm := range bookmarks {
				if !bm.Autojoin {
					continue
				}
				if err := c.RoomJoin(bm.JID, bm.Nick, bm.Password); err != nil {
					log.Warnf("autojoining %s: %v", bm.JID, err)
				}
			}
		})
	})
}

func (c *Client) isOnline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

func (c *Client) writeStatus(line string, flags ui.LineFlags) {
	c.screen.WriteLine(ui.StatusBuffer, line, flags)
}
