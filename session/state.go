/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package session

// State represents session lifecycle state.
type State int

const (
	// Disconnected means no transport is active.
	Disconnected State = iota

	// Connecting means the transport dial is in progress.
	Connecting

	// StreamNegotiating means the XML stream is being established.
	StreamNegotiating

	// Authenticating means credentials have been submitted.
	Authenticating

	// Ready means the session is fully established.
	Ready
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case StreamNegotiating:
		return "stream negotiating"
	case Authenticating:
		return "authenticating"
	case Ready:
		return "ready"
	}
	return "disconnected"
}
