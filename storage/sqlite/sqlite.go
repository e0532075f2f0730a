/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package sqlite

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3" // SQL driver
	"github.com/ortuman/civet/storage/repository"
	"github.com/pkg/errors"
)

// Config represents SQLite storage configuration.
type Config struct {
	File string `yaml:"file"`
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS settings (
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (namespace, key)
	)`,
	`CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		jid TEXT NOT NULL,
		ts INTEGER NOT NULL,
		incoming INTEGER NOT NULL,
		body TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS i_history_jid ON history (jid)`,
}

type sqliteContainer struct {
	settings *sqliteSettings
	history  *sqliteHistory

	db *sql.DB
}

// New returns an SQLite repository container backed by a database file.
func New(cfg *Config) (repository.Container, error) {
	db, err := sql.Open("sqlite3", cfg.File)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite database")
	}
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "pinging sqlite database")
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, errors.Wrap(err, "initializing sqlite schema")
		}
	}
	return newContainer(db), nil
}

func newContainer(db *sql.DB) repository.Container {
	return &sqliteContainer{
		settings: &sqliteSettings{db: db},
		history:  &sqliteHistory{db: db},
		db:       db,
	}
}

func (c *sqliteContainer) Settings() repository.Settings { return c.settings }
func (c *sqliteContainer) History() repository.History   { return c.history }

func (c *sqliteContainer) Close(_ context.Context) error {
	return c.db.Close()
}
