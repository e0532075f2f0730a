/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package badgerdb

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"

	"github.com/dgraph-io/badger"
	"github.com/ortuman/civet/model"
)

type badgerDBHistory struct {
	db *badger.DB
}

func (h *badgerDBHistory) AppendHistoryEntry(_ context.Context, entry *model.HistoryEntry) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return err
	}
	key := []byte(fmt.Sprintf("history:%s:%020d", entry.JID, entry.Timestamp.UnixNano()))
	return h.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, buf.Bytes())
	})
}

func (h *badgerDBHistory) FetchHistory(_ context.Context, jid string, limit int) ([]model.HistoryEntry, error) {
	var ret []model.HistoryEntry
	prefix := []byte("history:" + jid + ":")
	err := h.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			b, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var entry model.HistoryEntry
			if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&entry); err != nil {
				return err
			}
			ret = append(ret, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(ret) > limit {
		ret = ret[len(ret)-limit:]
	}
	return ret, nil
}
