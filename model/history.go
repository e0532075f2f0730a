/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package model

import "time"

// HistoryEntry represents one archived conversation line.
type HistoryEntry struct {
	JID       string
	Timestamp time.Time
	Incoming  bool
	Body      string
}
