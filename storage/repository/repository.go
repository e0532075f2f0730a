/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package repository

import (
	"context"

	"github.com/ortuman/civet/model"
)

// Settings namespaces group related key/value entries.
const (
	// OptionNamespace holds configuration option overrides.
	OptionNamespace = "option"

	// AliasNamespace holds command alias definitions.
	AliasNamespace = "alias"

	// BindingNamespace holds key binding definitions.
	BindingNamespace = "binding"

	// StatusMessageNamespace holds per-status default messages.
	StatusMessageNamespace = "status_message"
)

// Settings defines namespaced key/value storage operations.
type Settings interface {
	// UpsertSetting inserts a new setting entry into storage,
	// or updates it in case it's been previously inserted.
	UpsertSetting(ctx context.Context, namespace, key, value string) error

	// FetchSetting retrieves a setting entry from storage.
	FetchSetting(ctx context.Context, namespace, key string) (string, bool, error)

	// FetchSettings retrieves every setting entry of a namespace.
	FetchSettings(ctx context.Context, namespace string) (map[string]string, error)

	// DeleteSetting removes a setting entry from storage.
	DeleteSetting(ctx context.Context, namespace, key string) error
}

// History defines conversation archive operations.
type History interface {
	// AppendHistoryEntry adds a conversation line to the archive.
	AppendHistoryEntry(ctx context.Context, entry *model.HistoryEntry) error

	// FetchHistory retrieves up to limit most recent archived lines
	// exchanged with a given bare JID, oldest first.
	FetchHistory(ctx context.Context, jid string, limit int) ([]model.HistoryEntry, error)
}

// Container interface brings together all repository instances.
type Container interface {
	// Settings method returns repository.Settings concrete implementation.
	Settings() Settings

	// History method returns repository.History concrete implementation.
	History() History

	// Close closes underlying storage resources, commonly shared across repositories.
	Close(ctx context.Context) error
}
