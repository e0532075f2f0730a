/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package badgerdb

import (
	"context"
	"os"

	"github.com/dgraph-io/badger"
	"github.com/ortuman/civet/storage/repository"
)

// Config represents BadgerDB storage configuration.
type Config struct {
	DataDir string `yaml:"data_dir"`
}

type badgerDBContainer struct {
	settings *badgerDBSettings
	history  *badgerDBHistory

	db *badger.DB
}

// New returns a BadgerDB repository container.
func New(cfg *Config) (repository.Container, error) {
	var c badgerDBContainer

	if err := os.MkdirAll(cfg.DataDir, os.ModePerm); err != nil {
		return nil, err
	}
	opts := badger.DefaultOptions(cfg.DataDir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	c.db = db
	c.settings = &badgerDBSettings{db: db}
	c.history = &badgerDBHistory{db: db}
	return &c, nil
}

func (c *badgerDBContainer) Settings() repository.Settings { return c.settings }
func (c *badgerDBContainer) History() repository.History   { return c.history }

func (c *badgerDBContainer) Close(_ context.Context) error {
	return c.db.Close()
}
