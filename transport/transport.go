/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package transport

import (
	"crypto/tls"
	"io"

	"github.com/ortuman/civet/xmpp"
)

// Security represents the transport security mode of a client connection.
type Security int

const (
	// None connects over a plain TCP socket.
	None Security = iota

	// TLS connects over an SSL socket (old-style port 5223 encryption).
	TLS

	// StartTLS upgrades the plain socket after stream negotiation.
	StartTLS
)

// String returns Security string representation.
func (s Security) String() string {
	switch s {
	case None:
		return "none"
	case TLS:
		return "tls"
	case StartTLS:
		return "starttls"
	}
	return ""
}

// Transport represents a client stream transport mechanism.
type Transport interface {
	io.ReadCloser

	// WriteString writes a raw string to the transport.
	WriteString(s string) error

	// WriteElement writes an XML element to the transport.
	WriteElement(elem xmpp.XElement, includeClosing bool) error

	// StartTLS secures the transport using SSL/TLS.
	StartTLS(cfg *tls.Config)
}
