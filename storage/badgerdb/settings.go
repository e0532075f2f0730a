/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package badgerdb

import (
	"context"

	"github.com/dgraph-io/badger"
)

type badgerDBSettings struct {
	db *badger.DB
}

func (s *badgerDBSettings) UpsertSetting(_ context.Context, namespace, key, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(settingsKey(namespace, key), []byte(value))
	})
}

func (s *badgerDBSettings) FetchSetting(_ context.Context, namespace, key string) (string, bool, error) {
	var value string
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(settingsKey(namespace, key))
		switch err {
		case nil:
			b, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			value = string(b)
			found = true
			return nil
		case badger.ErrKeyNotFound:
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return "", false, err
	}
	return value, found, nil
}

func (s *badgerDBSettings) FetchSettings(_ context.Context, namespace string) (map[string]string, error) {
	ret := map[string]string{}
	prefix := settingsKey(namespace, "")
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			b, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			ret[string(item.Key()[len(prefix):])] = string(b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *badgerDBSettings) DeleteSetting(_ context.Context, namespace, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(settingsKey(namespace, key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

func settingsKey(namespace, key string) []byte {
	return []byte("settings:" + namespace + ":" + key)
}
