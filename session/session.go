/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package session

import (
	"crypto/sha1"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/ortuman/civet/log"
	"github.com/ortuman/civet/requests"
	"github.com/ortuman/civet/transport"
	"github.com/ortuman/civet/xmpp"
	"github.com/ortuman/civet/xmpp/jid"
	"github.com/pkg/errors"
)

const (
	jabberClientNamespace = "jabber:client"
	streamNamespace       = "http://etherx.jabber.org/streams"
	saslNamespace         = "urn:ietf:params:xml:ns:xmpp-sasl"
	bindNamespace         = "urn:ietf:params:xml:ns:xmpp-bind"
	tlsNamespace          = "urn:ietf:params:xml:ns:xmpp-tls"
	legacyAuthNamespace   = "jabber:iq:auth"
)

const legacyAuthTimeout = time.Duration(50) * time.Second

var (
	// ErrInvalidAddress is returned by Connect when the configured JID cannot be parsed.
	ErrInvalidAddress = errors.New("session: invalid address")

	// ErrNotConnected is returned when sending over a dead session.
	ErrNotConnected = errors.New("session: not connected")

	// ErrAuthenticationFailed is returned when server rejects credentials.
	ErrAuthenticationFailed = errors.New("session: authentication failed")
)

// Delegate gets notified about session state transitions and
// inbound stanzas. Methods are invoked from the session read
// goroutine, never concurrently with themselves.
type Delegate interface {
	OnStateChanged(state State)
	OnStanzaReceived(stanza xmpp.Stanza)
}

// Session drives one client connection lifecycle:
// dial, stream negotiation, authentication and stanza exchange.
type Session struct {
	cfg        *Config
	delegate   Delegate
	correlator *requests.Correlator

	mu       sync.RWMutex
	state    State
	jd       *jid.JID
	tr       transport.Transport
	pr       *xmpp.Parser
	streamID string
	lastErr  error
	lastSend time.Time
	gen      int
}

// New returns an initialized session owning its request correlator.
func New(cfg *Config, delegate Delegate) *Session {
	s := &Session{
		cfg:      cfg,
		delegate: delegate,
	}
	s.correlator = requests.New(s)
	return s
}

// Requests returns the IQ correlator bound to this session.
func (s *Session) Requests() *requests.Correlator {
	return s.correlator
}

// State returns current session state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// JID returns the session full JID, once a connection has been attempted.
func (s *Session) JID() *jid.JID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jd
}

// StreamID returns the server-assigned stream identifier.
func (s *Session) StreamID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streamID
}

// LastError returns the error that caused the most recent disconnection.
func (s *Session) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Connect establishes the stream and authenticates. Any previous
// connection is torn down first. On servers lacking stream features
// the legacy authentication round trip completes asynchronously and
// Ready is reached from the read goroutine.
func (s *Session) Connect() error {
	j, err := jid.NewWithString(s.cfg.JID, false)
	if err != nil || len(j.Node()) == 0 {
		return ErrInvalidAddress
	}
	if len(j.Resource()) == 0 {
		resource := s.cfg.Resource
		if len(resource) == 0 {
			resource = "civet"
		}
		j = j.WithResource(resource)
	}
	s.Disconnect()

	server := s.cfg.Server
	if len(server) == 0 {
		server = j.Domain()
	}
	s.setState(Connecting)

	tr, err := transport.Dial(fmt.Sprintf("%s:%d", server, s.cfg.Port), s.cfg.Security,
		s.tlsConfig(j.Domain()), s.cfg.DialTimeout, 0)
	if err != nil {
		s.fail(errors.Wrap(err, "dialing server"))
		return err
	}
	s.mu.Lock()
	s.jd = j
	s.tr = tr
	s.gen++
	s.mu.Unlock()

	s.setState(StreamNegotiating)

	features, err := s.openStream()
	if err != nil {
		s.fail(err)
		return err
	}
	if features == nil {
		// pre-features server: authenticate the old way
		s.setState(Authenticating)
		s.startReadLoop()
		return s.submitLegacyAuth()
	}
	if s.cfg.Security == transport.StartTLS {
		if features, err = s.negotiateStartTLS(features); err != nil {
			s.fail(err)
			return err
		}
	}
	s.setState(Authenticating)
	if features, err = s.authenticate(features); err != nil {
		s.fail(err)
		return err
	}
	if err := s.bindResource(features); err != nil {
		s.fail(err)
		return err
	}
	s.setState(Ready)
	s.startReadLoop()
	return nil
}

// Disconnect closes the session sending a final unavailable
// presence when online. Safe to call at any state.
func (s *Session) Disconnect() {
	s.mu.Lock()
	tr := s.tr
	st := s.state
	s.tr = nil
	s.pr = nil
	s.streamID = ""
	s.gen++
	s.mu.Unlock()

	if tr != nil {
		if st == Ready {
			_ = tr.WriteElement(xmpp.NewPresence(nil, nil, xmpp.UnavailableType), true)
		}
		_ = tr.WriteString("</stream:stream>")
		_ = tr.Close()
	}
	s.correlator.CancelAll()
	s.setState(Disconnected)
}

// SendElement writes a stanza to the wire. Satisfies the correlator
// sender contract.
func (s *Session) SendElement(elem xmpp.XElement) error {
	s.mu.Lock()
	tr := s.tr
	st := s.state
	if tr == nil || st == Disconnected || st == Connecting {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.lastSend = time.Now()
	s.mu.Unlock()

	log.Debugf("SEND: %v", elem)
	if err := tr.WriteElement(elem, true); err != nil {
		s.fail(errors.Wrap(err, "writing element"))
		return err
	}
	return nil
}

// SendKeepalive writes a whitespace packet if the session sits
// idle past the configured delay.
func (s *Session) SendKeepalive() {
	s.mu.Lock()
	tr := s.tr
	idle := time.Since(s.lastSend)
	ready := s.state == Ready
	if ready && idle >= s.cfg.KeepaliveDelay {
		s.lastSend = time.Now()
	} else {
		ready = false
	}
	s.mu.Unlock()

	if ready && tr != nil {
		if err := tr.WriteString(" "); err != nil {
			s.fail(errors.Wrap(err, "writing keepalive"))
		}
	}
}

// openStream writes the stream header and consumes the server
// response up to its features element. A nil features return
// means the server negotiates the pre-features dialect.
func (s *Session) openStream() (xmpp.XElement, error) {
	s.mu.Lock()
	s.pr = xmpp.NewParser(s.tr, xmpp.SocketStream, s.cfg.MaxStanzaSize)
	pr := s.pr
	tr := s.tr
	domain := s.jd.Domain()
	s.mu.Unlock()

	hdr := fmt.Sprintf(`<?xml version="1.0"?><stream:stream xmlns="%s" xmlns:stream="%s" to="%s" version="1.0">`,
		jabberClientNamespace, streamNamespace, domain)
	if err := tr.WriteString(hdr); err != nil {
		return nil, errors.Wrap(err, "opening stream")
	}
	open, err := s.receiveElement(pr)
	if err != nil {
		return nil, err
	}
	if open.Name() != "stream:stream" {
		return nil, fmt.Errorf("session: unexpected stream element: %s", open.Name())
	}
	s.mu.Lock()
	s.streamID = open.ID()
	s.mu.Unlock()

	if open.Attributes().Get("version") != "1.0" {
		return nil, nil
	}
	features, err := s.receiveElement(pr)
	if err != nil {
		return nil, err
	}
	if features.Name() != "stream:features" {
		return nil, fmt.Errorf("session: expected stream features: %s", features.Name())
	}
	return features, nil
}

func (s *Session) negotiateStartTLS(features xmpp.XElement) (xmpp.XElement, error) {
	if features.Elements().ChildNamespace("starttls", tlsNamespace) == nil {
		return nil, errors.New("session: server does not support STARTTLS")
	}
	s.mu.RLock()
	tr := s.tr
	pr := s.pr
	domain := s.jd.Domain()
	s.mu.RUnlock()

	if err := tr.WriteElement(xmpp.NewElementNamespace("starttls", tlsNamespace), true); err != nil {
		return nil, errors.Wrap(err, "requesting STARTTLS")
	}
	elem, err := s.receiveElement(pr)
	if err != nil {
		return nil, err
	}
	if elem.Name() != "proceed" {
		return nil, errors.New("session: STARTTLS refused by server")
	}
	tr.StartTLS(s.tlsConfig(domain))
	return s.openStream()
}

func (s *Session) bindResource(features xmpp.XElement) error {
	if features.Elements().ChildNamespace("bind", bindNamespace) == nil {
		return errors.New("session: server does not support resource binding")
	}
	s.mu.RLock()
	pr := s.pr
	resource := s.jd.Resource()
	s.mu.RUnlock()

	iq := xmpp.NewIQType("bind_1", xmpp.SetType)
	bind := xmpp.NewElementNamespace("bind", bindNamespace)
	resElem := xmpp.NewElementName("resource")
	resElem.SetText(resource)
	bind.AppendElement(resElem)
	iq.AppendElement(bind)

	if err := s.SendElement(iq); err != nil {
		return err
	}
	elem, err := s.receiveElement(pr)
	if err != nil {
		return err
	}
	if elem.Name() != "iq" || elem.Type() != xmpp.ResultType {
		return errors.New("session: resource binding failed")
	}
	if b := elem.Elements().ChildNamespace("bind", bindNamespace); b != nil {
		if jidElem := b.Elements().Child("jid"); jidElem != nil {
			if bound, err := jid.NewWithString(jidElem.Text(), false); err == nil {
				s.mu.Lock()
				s.jd = bound
				s.mu.Unlock()
			}
		}
	}
	return nil
}

// submitLegacyAuth registers a jabber:iq:auth set with the correlator.
// When the stream identifier is known the password travels as a
// SHA-1 digest, plaintext otherwise.
func (s *Session) submitLegacyAuth() error {
	s.mu.RLock()
	j := s.jd
	streamID := s.streamID
	s.mu.RUnlock()

	_, err := s.correlator.Submit(func(identifier string) xmpp.Stanza {
		query := xmpp.NewElementNamespace("query", legacyAuthNamespace)

		username := xmpp.NewElementName("username")
		username.SetText(j.Node())
		resource := xmpp.NewElementName("resource")
		resource.SetText(j.Resource())
		query.AppendElement(username)
		query.AppendElement(resource)

		if len(streamID) > 0 {
			h := sha1.New()
			h.Write([]byte(streamID + s.cfg.Password))
			digest := xmpp.NewElementName("digest")
			digest.SetText(fmt.Sprintf("%x", h.Sum(nil)))
			query.AppendElement(digest)
		} else {
			password := xmpp.NewElementName("password")
			password.SetText(s.cfg.Password)
			query.AppendElement(password)
		}
		iq := xmpp.NewIQType(identifier, xmpp.SetType)
		iq.AppendElement(query)
		return iq
	}, legacyAuthTimeout, nil, s.legacyAuthDone)
	return err
}

func (s *Session) legacyAuthDone(resp requests.Response) {
	switch {
	case resp.Outcome == requests.Result && resp.IQ.IsResult():
		s.setState(Ready)

	case resp.Outcome == requests.Result:
		log.Errorf("legacy authentication rejected: %v", resp.IQ.Error())
		s.fail(ErrAuthenticationFailed)

	default:
		s.fail(ErrAuthenticationFailed)
	}
}

func (s *Session) startReadLoop() {
	s.mu.RLock()
	gen := s.gen
	pr := s.pr
	s.mu.RUnlock()
	go s.readLoop(gen, pr)
}

func (s *Session) readLoop(gen int, pr *xmpp.Parser) {
	for {
		elem, err := pr.ParseElement()
		if err != nil {
			s.mu.RLock()
			stale := gen != s.gen
			s.mu.RUnlock()
			if stale {
				return
			}
			s.fail(errors.Wrap(err, "reading stream"))
			return
		}
		if elem == nil {
			continue
		}
		log.Debugf("RECV: %v", elem)
		if stanza := s.buildStanza(elem); stanza != nil {
			s.delegate.OnStanzaReceived(stanza)
		}
	}
}

func (s *Session) buildStanza(elem xmpp.XElement) xmpp.Stanza {
	fromJID, toJID := s.extractAddresses(elem)
	switch elem.Name() {
	case "iq":
		iq, err := xmpp.NewIQFromElement(elem, fromJID, toJID)
		if err != nil {
			log.Warnf("dropping malformed iq: %v", err)
			return nil
		}
		return iq

	case "presence":
		presence, err := xmpp.NewPresenceFromElement(elem, fromJID, toJID)
		if err != nil {
			log.Warnf("dropping malformed presence: %v", err)
			return nil
		}
		return presence

	case "message":
		message, err := xmpp.NewMessageFromElement(elem, fromJID, toJID)
		if err != nil {
			log.Warnf("dropping malformed message: %v", err)
			return nil
		}
		return message
	}
	return nil
}

func (s *Session) extractAddresses(elem xmpp.XElement) (*jid.JID, *jid.JID) {
	s.mu.RLock()
	own := s.jd
	s.mu.RUnlock()

	fromJID := own
	if from := elem.From(); len(from) > 0 {
		if j, err := jid.NewWithString(from, true); err == nil {
			fromJID = j
		}
	}
	toJID := own.ToBareJID()
	if to := elem.To(); len(to) > 0 {
		if j, err := jid.NewWithString(to, true); err == nil {
			toJID = j
		}
	}
	return fromJID, toJID
}

func (s *Session) receiveElement(pr *xmpp.Parser) (xmpp.XElement, error) {
	for {
		elem, err := pr.ParseElement()
		if err != nil {
			return nil, err
		}
		if elem != nil {
			log.Debugf("RECV: %v", elem)
			return elem, nil
		}
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.mu.Unlock()
	s.delegate.OnStateChanged(state)
}

// fail abandons the connection keeping the causing error around.
func (s *Session) fail(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	log.Errorf("session failure: %v", err)
	s.Disconnect()
}

func (s *Session) tlsConfig(domain string) *tls.Config {
	return &tls.Config{
		ServerName:         domain,
		InsecureSkipVerify: s.cfg.SkipVerify,
	}
}
