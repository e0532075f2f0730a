/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package memstorage

import (
	"context"
	"sync"

	"github.com/ortuman/civet/model"
	"github.com/ortuman/civet/storage/repository"
)

type memoryContainer struct {
	settings *memorySettings
	history  *memoryHistory
}

// New returns an in-memory repository container.
func New() repository.Container {
	return &memoryContainer{
		settings: &memorySettings{entries: map[string]string{}},
		history:  &memoryHistory{},
	}
}

func (c *memoryContainer) Settings() repository.Settings { return c.settings }
func (c *memoryContainer) History() repository.History   { return c.history }

func (c *memoryContainer) Close(_ context.Context) error { return nil }

type memorySettings struct {
	mu      sync.RWMutex
	entries map[string]string
}

func (s *memorySettings) UpsertSetting(_ context.Context, namespace, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[namespace+":"+key] = value
	return nil
}

func (s *memorySettings) FetchSetting(_ context.Context, namespace, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[namespace+":"+key]
	return v, ok, nil
}

func (s *memorySettings) FetchSettings(_ context.Context, namespace string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := namespace + ":"
	ret := map[string]string{}
	for k, v := range s.entries {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			ret[k[len(prefix):]] = v
		}
	}
	return ret, nil
}

func (s *memorySettings) DeleteSetting(_ context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, namespace+":"+key)
	return nil
}

type memoryHistory struct {
	mu      sync.RWMutex
	entries []model.HistoryEntry
}

func (h *memoryHistory) AppendHistoryEntry(_ context.Context, entry *model.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, *entry)
	return nil
}

func (h *memoryHistory) FetchHistory(_ context.Context, jid string, limit int) ([]model.HistoryEntry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var ret []model.HistoryEntry
	for _, e := range h.entries {
		if e.JID == jid {
			ret = append(ret, e)
		}
	}
	if limit > 0 && len(ret) > limit {
		ret = ret[len(ret)-limit:]
	}
	return ret, nil
}
