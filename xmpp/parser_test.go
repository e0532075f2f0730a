/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xmpp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParserParseSimple(t *testing.T) {
	docSrc := `<presence xmlns="jabber:client" type="available"><show>dnd</show></presence>\n`
	p := NewParser(strings.NewReader(docSrc), DefaultMode, 0)
	elem, err := p.ParseElement()
	require.Nil(t, err)
	require.NotNil(t, elem)
	require.Equal(t, "presence", elem.Name())
	require.Equal(t, "available", elem.Type())
	require.NotNil(t, elem.Elements().Child("show"))
}

func TestParserParseStreamOpen(t *testing.T) {
	docSrc := `<?xml version="1.0" encoding="UTF-8"?><stream:stream xmlns:stream="http://etherx.jabber.org/streams" version="1.0" xmlns="jabber:client" to="jackal.im" xml:lang="en" xmlns:xml="http://www.w3.org/XML/1998/namespace">`
	p := NewParser(strings.NewReader(docSrc), SocketStream, 0)

	elem, err := p.ParseElement()
	require.Nil(t, err)
	require.Nil(t, elem) // ProcInst

	elem, err = p.ParseElement()
	require.Nil(t, err)
	require.NotNil(t, elem)
	require.Equal(t, "stream:stream", elem.Name())
}

func TestParserParseSeveralElements(t *testing.T) {
	docSrc := `<a/><b/><c/>`
	reader := strings.NewReader(docSrc)
	p := NewParser(reader, DefaultMode, 0)

	a, err := p.ParseElement()
	require.NotNil(t, a)
	require.Nil(t, err)
	b, err := p.ParseElement()
	require.NotNil(t, b)
	require.Nil(t, err)
	c, err := p.ParseElement()
	require.NotNil(t, c)
	require.Nil(t, err)
}

func TestParserCloseStream(t *testing.T) {
	docSrc := `</stream:stream>`
	p := NewParser(strings.NewReader(docSrc), SocketStream, 0)

	_, err := p.ParseElement()
	require.Equal(t, ErrStreamClosedByPeer, err)
}

func TestParserParseStanzaTooLarge(t *testing.T) {
	docSrc := `<iq type="get" id="iq1"><query xmlns="jabber:iq:roster"/></iq>`
	p := NewParser(strings.NewReader(docSrc), DefaultMode, 8)

	_, err := p.ParseElement()
	require.Equal(t, ErrTooLargeStanza, err)
}

func TestParserParseBadElement(t *testing.T) {
	docSrc := `<iq><a></b></iq>`
	p := NewParser(strings.NewReader(docSrc), DefaultMode, 0)

	_, err := p.ParseElement()
	require.NotNil(t, err)
}
