/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package private

import (
	"time"

	"github.com/ortuman/civet/log"
	"github.com/ortuman/civet/model"
	"github.com/ortuman/civet/requests"
	"github.com/ortuman/civet/xmpp"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
)

const (
	privateNamespace     = "jabber:iq:private"
	bookmarksNamespace   = "storage:bookmarks"
	rosterNotesNamespace = "storage:rosternotes"
)

const requestTimeout = time.Duration(30) * time.Second

// ErrFeatureNotSupported is returned once the server has rejected
// the private storage namespace; further round trips are skipped.
var ErrFeatureNotSupported = errors.New("private: feature not supported by server")

// Storage accesses server-side private XML: conference bookmarks
// and per-contact annotations, each read or written as one IQ
// round trip.
type Storage struct {
	correlator *requests.Correlator
	breaker    *gobreaker.TwoStepCircuitBreaker
}

// New returns an initialized private storage accessor.
func New(correlator *requests.Correlator) *Storage {
	return &Storage{
		correlator: correlator,
		breaker: gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
			Name:    "private-storage",
			Timeout: time.Duration(12) * time.Hour,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 0
			},
		}),
	}
}

// FetchBookmarks retrieves stored conference bookmarks.
func (s *Storage) FetchBookmarks(cb func([]model.Bookmark, error)) {
	s.fetch(bookmarksNamespace, func(storage xmpp.XElement, err error) {
		if err != nil {
			cb(nil, err)
			return
		}
		cb(parseBookmarks(storage), nil)
	})
}

// UpsertBookmark reads the stored bookmark set, replaces or adds the
// entry matching the bookmark JID and writes the set back.
func (s *Storage) UpsertBookmark(bookmark *model.Bookmark, cb func(error)) {
	s.fetch(bookmarksNamespace, func(storage xmpp.XElement, err error) {
		if err != nil {
			cb(err)
			return
		}
		bookmarks := parseBookmarks(storage)
		updated := false
		for i, bm := range bookmarks {
			if bm.JID == bookmark.JID {
				bookmarks[i] = *bookmark
				updated = true
				break
			}
		}
		if !updated {
			bookmarks = append(bookmarks, *bookmark)
		}
		s.store(bookmarksElement(bookmarks), cb)
	})
}

// DeleteBookmark removes the bookmark matching a room JID, if present.
func (s *Storage) DeleteBookmark(roomJID string, cb func(error)) {
	s.fetch(bookmarksNamespace, func(storage xmpp.XElement, err error) {
		if err != nil {
			cb(err)
			return
		}
		bookmarks := parseBookmarks(storage)
		filtered := bookmarks[:0]
		for _, bm := range bookmarks {
			if bm.JID != roomJID {
				filtered = append(filtered, bm)
			}
		}
		s.store(bookmarksElement(filtered), cb)
	})
}

// FetchRosterNotes retrieves stored contact annotations keyed by bare JID.
func (s *Storage) FetchRosterNotes(cb func(map[string]model.RosterNote, error)) {
	s.fetch(rosterNotesNamespace, func(storage xmpp.XElement, err error) {
		if err != nil {
			cb(nil, err)
			return
		}
		cb(parseRosterNotes(storage), nil)
	})
}

// UpsertRosterNote reads the stored annotation set and rewrites it
// with the given note attached to the contact. An empty note text
// removes the annotation.
func (s *Storage) UpsertRosterNote(contactJID, note string, cb func(error)) {
	s.fetch(rosterNotesNamespace, func(storage xmpp.XElement, err error) {
		if err != nil {
			cb(err)
			return
		}
		notes := parseRosterNotes(storage)
		now := time.Now().UTC().Format("20060102T15:04:05")
		if len(note) == 0 {
			delete(notes, contactJID)
		} else {
			cdate := now
			if prev, ok := notes[contactJID]; ok && len(prev.Date) > 0 {
				cdate = prev.Date
			}
			notes[contactJID] = model.RosterNote{
				JID:   contactJID,
				Note:  note,
				Date:  cdate,
				MDate: now,
			}
		}
		s.store(rosterNotesElement(notes), cb)
	})
}

// fetch performs a private storage read round trip for a namespace.
func (s *Storage) fetch(namespace string, cb func(xmpp.XElement, error)) {
	done, err := s.breaker.Allow()
	if err != nil {
		cb(nil, ErrFeatureNotSupported)
		return
	}
	_, err = s.correlator.Submit(func(identifier string) xmpp.Stanza {
		iq := xmpp.NewIQType(identifier, xmpp.GetType)
		query := xmpp.NewElementNamespace("query", privateNamespace)
		query.AppendElement(xmpp.NewElementNamespace("storage", namespace))
		iq.AppendElement(query)
		return iq
	}, requestTimeout, nil, func(resp requests.Response) {
		storage, err := s.completeRoundTrip(resp, namespace, done)
		cb(storage, err)
	})
	if err != nil {
		done(false)
		cb(nil, err)
	}
}

// store performs a private storage write round trip.
func (s *Storage) store(storage *xmpp.Element, cb func(error)) {
	done, err := s.breaker.Allow()
	if err != nil {
		cb(ErrFeatureNotSupported)
		return
	}
	_, err = s.correlator.Submit(func(identifier string) xmpp.Stanza {
		iq := xmpp.NewIQType(identifier, xmpp.SetType)
		query := xmpp.NewElementNamespace("query", privateNamespace)
		query.AppendElement(storage)
		iq.AppendElement(query)
		return iq
	}, requestTimeout, nil, func(resp requests.Response) {
		_, err := s.completeRoundTrip(resp, "", done)
		cb(err)
	})
	if err != nil {
		done(false)
		cb(err)
	}
}

// completeRoundTrip classifies the outcome, feeding the breaker so a
// namespace rejection short-circuits every later attempt.
func (s *Storage) completeRoundTrip(resp requests.Response, namespace string,
	done func(bool)) (xmpp.XElement, error) {
	switch resp.Outcome {
	case requests.Result:
		if resp.IQ.IsResult() {
			done(true)
			if len(namespace) == 0 {
				return nil, nil
			}
			if query := resp.IQ.Elements().ChildNamespace("query", privateNamespace); query != nil {
				return query.Elements().ChildNamespace("storage", namespace), nil
			}
			return nil, nil
		}
		stanzaErr := xmpp.DecodeStanzaError(resp.IQ)
		if stanzaErr == nil {
			done(true)
			return nil, errors.New("private: malformed error response")
		}
		if isFeatureRejection(stanzaErr) {
			log.Warnf("private storage not supported by server: %v", stanzaErr)
			done(false)
			return nil, ErrFeatureNotSupported
		}
		done(true)
		return nil, stanzaErr

	case requests.Timeout:
		done(true)
		return nil, errors.New("private: request timed out")

	default:
		done(true)
		return nil, errors.New("private: request cancelled")
	}
}

func isFeatureRejection(err *xmpp.StanzaError) bool {
	switch err.Code() {
	case 501, 503: // feature-not-implemented, service-unavailable
		return true
	}
	return false
}
