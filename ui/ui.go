/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package ui

// StatusBuffer identifies the reserved status buffer.
const StatusBuffer = "*status*"

// LineFlags qualify a buffer line.
type LineFlags int

const (
	// LineInfo marks an informational line.
	LineInfo LineFlags = 1 << iota

	// LineWarning marks a warning line.
	LineWarning

	// LineError marks an error line.
	LineError

	// LineIncoming marks a received conversation line.
	LineIncoming

	// LineOutgoing marks a sent conversation line.
	LineOutgoing

	// LineDelayed marks a line replayed from history.
	LineDelayed
)

// Screen receives engine output notifications. A buffer is
// identified by a bare JID, or by the reserved status token.
type Screen interface {
	// WriteLine appends a line to a buffer.
	WriteLine(buffer string, line string, flags LineFlags)

	// RosterChanged signals the contact list must be redrawn.
	RosterChanged()

	// StateChanged signals a connection state transition.
	StateChanged(state string)

	// StatusLine updates the main status line.
	StatusLine(line string)
}
