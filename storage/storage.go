/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package storage

import (
	"fmt"

	"github.com/ortuman/civet/storage/badgerdb"
	"github.com/ortuman/civet/storage/memstorage"
	"github.com/ortuman/civet/storage/repository"
	"github.com/ortuman/civet/storage/sqlite"
)

// New initializes the repository container matching a given configuration.
func New(cfg *Config) (repository.Container, error) {
	switch cfg.Type {
	case Memory:
		return memstorage.New(), nil
	case BadgerDB:
		return badgerdb.New(cfg.BadgerDB)
	case SQLite:
		return sqlite.New(cfg.SQLite)
	default:
		return nil, fmt.Errorf("storage: unrecognized repository type: %d", cfg.Type)
	}
}
