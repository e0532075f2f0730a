/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package transport

import (
	"bufio"
	"crypto/tls"
	"io"
	"net"
	"time"

	"github.com/ortuman/civet/xmpp"
)

const socketBuffSize = 4096

type socketTransport struct {
	conn        net.Conn
	rw          io.ReadWriter
	br          *bufio.Reader
	bw          *bufio.Writer
	readTimeout time.Duration
}

// Dial opens a socket transport connection against a server address.
// When sec is TLS the connection is encrypted from the very first byte.
func Dial(address string, sec Security, tlsCfg *tls.Config, dialTimeout, readTimeout time.Duration) (Transport, error) {
	conn, err := net.DialTimeout("tcp", address, dialTimeout)
	if err != nil {
		return nil, err
	}
	if sec == TLS {
		conn = tls.Client(conn, tlsCfg)
	}
	return NewSocketTransport(conn, readTimeout), nil
}

// NewSocketTransport creates a socket class stream transport.
func NewSocketTransport(conn net.Conn, readTimeout time.Duration) Transport {
	s := &socketTransport{
		conn:        conn,
		rw:          conn,
		br:          bufio.NewReaderSize(conn, socketBuffSize),
		bw:          bufio.NewWriterSize(conn, socketBuffSize),
		readTimeout: readTimeout,
	}
	return s
}

func (s *socketTransport) Read(p []byte) (n int, err error) {
	if s.readTimeout > 0 {
		s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	}
	return s.br.Read(p)
}

func (s *socketTransport) Close() error {
	return s.conn.Close()
}

func (s *socketTransport) WriteString(str string) error {
	defer s.bw.Flush()
	_, err := io.WriteString(s.bw, str)
	return err
}

func (s *socketTransport) WriteElement(elem xmpp.XElement, includeClosing bool) error {
	defer s.bw.Flush()
	elem.ToXML(s.bw, includeClosing)
	return nil
}

func (s *socketTransport) StartTLS(cfg *tls.Config) {
	if _, ok := s.conn.(*tls.Conn); !ok {
		s.conn = tls.Client(s.conn, cfg)
		s.rw = s.conn
		s.bw.Reset(s.rw)
		s.br.Reset(s.rw)
	}
}
