/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package model

// Bookmark represents a stored conference bookmark.
type Bookmark struct {
	JID      string
	Name     string
	Nick     string
	Password string
	Autojoin bool
}

// RosterNote represents a free-text annotation attached to a contact.
type RosterNote struct {
	JID   string
	Note  string
	Date  string
	MDate string
}
