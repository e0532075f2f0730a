/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package storage

import (
	"fmt"

	"github.com/ortuman/civet/storage/badgerdb"
	"github.com/ortuman/civet/storage/sqlite"
)

// Type represents a storage backend type.
type Type int

const (
	// Memory represents an in-memory storage backend.
	Memory Type = iota

	// BadgerDB represents a BadgerDB storage backend.
	BadgerDB

	// SQLite represents an SQLite storage backend.
	SQLite
)

// Config represents storage configuration.
type Config struct {
	Type     Type
	BadgerDB *badgerdb.Config
	SQLite   *sqlite.Config
}

type configProxy struct {
	Type     string           `yaml:"type"`
	BadgerDB *badgerdb.Config `yaml:"badgerdb"`
	SQLite   *sqlite.Config   `yaml:"sqlite"`
}

// UnmarshalYAML satisfies Unmarshaler interface.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	p := configProxy{}
	if err := unmarshal(&p); err != nil {
		return err
	}
	switch p.Type {
	case "", "memory":
		c.Type = Memory

	case "badgerdb":
		c.Type = BadgerDB
		c.BadgerDB = p.BadgerDB
		if c.BadgerDB == nil {
			return fmt.Errorf("storage.Config: badgerdb configuration not found")
		}
		if len(c.BadgerDB.DataDir) == 0 {
			c.BadgerDB.DataDir = "./data"
		}

	case "sqlite":
		c.Type = SQLite
		c.SQLite = p.SQLite
		if c.SQLite == nil || len(c.SQLite.File) == 0 {
			return fmt.Errorf("storage.Config: sqlite configuration not found")
		}

	default:
		return fmt.Errorf("storage.Config: unrecognized storage type: %s", p.Type)
	}
	return nil
}
