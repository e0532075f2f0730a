/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xmpp

import (
	"fmt"
	"strconv"
)

const stanzasNamespace = "urn:ietf:params:xml:ns:xmpp-stanzas"

// StanzaError represents a stanza "error" element.
type StanzaError struct {
	code      int
	errorType string
	reason    string
	text      string
}

// Error satisfies error interface.
func (se *StanzaError) Error() string {
	desc := se.text
	if len(desc) == 0 {
		desc = se.reason
	}
	if len(desc) == 0 {
		desc = defaultErrorDescription(se.code)
	}
	if se.code > 0 {
		return fmt.Sprintf("%d %s", se.code, desc)
	}
	return desc
}

// Code returns the error numeric code, or zero if the stanza carried none.
func (se *StanzaError) Code() int {
	return se.code
}

// Reason returns the defined condition element name.
func (se *StanzaError) Reason() string {
	return se.reason
}

// Element returns StanzaError equivalent XML element.
func (se *StanzaError) Element() *Element {
	err := &Element{}
	err.SetName("error")
	if se.code > 0 {
		err.SetAttribute("code", strconv.Itoa(se.code))
	}
	if len(se.errorType) > 0 {
		err.SetAttribute("type", se.errorType)
	}
	if len(se.reason) > 0 {
		err.AppendElement(NewElementNamespace(se.reason, stanzasNamespace))
	}
	return err
}

// DecodeStanzaError decodes an <error/> sub element received from the server.
// Returns nil if elem carries no error child.
func DecodeStanzaError(elem XElement) *StanzaError {
	errEl := elem.Elements().Child("error")
	if errEl == nil {
		return nil
	}
	se := &StanzaError{errorType: errEl.Type()}

	if code := errEl.Attributes().Get("code"); len(code) > 0 {
		se.code, _ = strconv.Atoi(code)
	}
	// RFC3920: the <error/> element must contain a defined condition child
	// qualified by the xmpp-stanzas namespace, but legacy servers may only
	// set the code attribute.
	for _, child := range errEl.Elements().All() {
		if child.Name() == "text" {
			se.text = child.Text()
			continue
		}
		if child.Namespace() == stanzasNamespace || len(se.reason) == 0 {
			se.reason = child.Name()
		}
	}
	if len(se.text) == 0 && len(errEl.Text()) > 0 {
		se.text = errEl.Text()
	}
	return se
}

func defaultErrorDescription(code int) string {
	switch code {
	case 302:
		return "Redirect"
	case 400:
		return "Bad request"
	case 401:
		return "Unauthorized"
	case 402:
		return "Payment Required"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 405:
		return "Not Allowed"
	case 406:
		return "Not Acceptable"
	case 407:
		return "Registration Required"
	case 408:
		return "Request Timeout"
	case 409:
		return "Conflict"
	case 500:
		return "Internal Server Error"
	case 501:
		return "Not Implemented"
	case 502:
		return "Remote Server Error"
	case 503:
		return "Service Unavailable"
	case 504:
		return "Remote Server Timeout"
	default:
		return "Unknown error"
	}
}
