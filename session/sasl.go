/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package session

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/ortuman/civet/xmpp"
	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

// authenticate negotiates a SASL mechanism against the advertised
// stream features, restarts the stream on success and returns the
// post-authentication features element.
func (s *Session) authenticate(features xmpp.XElement) (xmpp.XElement, error) {
	mechanisms := features.Elements().ChildNamespace("mechanisms", saslNamespace)
	if mechanisms == nil {
		return nil, errors.New("session: no SASL mechanisms advertised")
	}
	offered := map[string]bool{}
	for _, m := range mechanisms.Elements().Children("mechanism") {
		offered[m.Text()] = true
	}
	s.mu.RLock()
	pr := s.pr
	s.mu.RUnlock()

	var err error
	switch {
	case offered["SCRAM-SHA-1"]:
		err = s.authenticateScram(pr)
	case offered["PLAIN"]:
		err = s.authenticatePlain(pr)
	default:
		return nil, errors.New("session: no supported SASL mechanism offered")
	}
	if err != nil {
		return nil, err
	}
	return s.openStream()
}

func (s *Session) authenticatePlain(pr *xmpp.Parser) error {
	s.mu.RLock()
	j := s.jd
	tr := s.tr
	s.mu.RUnlock()

	payload := base64.StdEncoding.EncodeToString(
		[]byte("\x00" + j.Node() + "\x00" + s.cfg.Password))

	auth := xmpp.NewElementNamespace("auth", saslNamespace)
	auth.SetAttribute("mechanism", "PLAIN")
	auth.SetText(payload)
	if err := tr.WriteElement(auth, true); err != nil {
		return errors.Wrap(err, "sending PLAIN authentication")
	}
	elem, err := s.receiveElement(pr)
	if err != nil {
		return err
	}
	if elem.Name() != "success" {
		return ErrAuthenticationFailed
	}
	return nil
}

func (s *Session) authenticateScram(pr *xmpp.Parser) error {
	s.mu.RLock()
	j := s.jd
	tr := s.tr
	s.mu.RUnlock()

	clientNonce := uuid.New()
	firstBare := fmt.Sprintf("n=%s,r=%s", j.Node(), clientNonce)

	auth := xmpp.NewElementNamespace("auth", saslNamespace)
	auth.SetAttribute("mechanism", "SCRAM-SHA-1")
	auth.SetText(base64.StdEncoding.EncodeToString([]byte("n,," + firstBare)))
	if err := tr.WriteElement(auth, true); err != nil {
		return errors.Wrap(err, "sending SCRAM authentication")
	}
	elem, err := s.receiveElement(pr)
	if err != nil {
		return err
	}
	if elem.Name() != "challenge" {
		return ErrAuthenticationFailed
	}
	raw, err := base64.StdEncoding.DecodeString(elem.Text())
	if err != nil {
		return errors.Wrap(err, "decoding SCRAM challenge")
	}
	challenge := string(raw)
	params := parseScramParameters(challenge)

	srvNonce := params["r"]
	if !strings.HasPrefix(srvNonce, clientNonce) {
		return errors.New("session: SCRAM server nonce mismatch")
	}
	salt, err := base64.StdEncoding.DecodeString(params["s"])
	if err != nil {
		return errors.Wrap(err, "decoding SCRAM salt")
	}
	iterations, err := strconv.Atoi(params["i"])
	if err != nil || iterations <= 0 {
		return errors.New("session: invalid SCRAM iteration count")
	}

	saltedPassword := pbkdf2.Key([]byte(s.cfg.Password), salt, iterations, sha1.Size, sha1.New)
	clientKey := hmacSHA1(saltedPassword, "Client Key")
	storedKey := sha1.Sum(clientKey)

	withoutProof := fmt.Sprintf("c=%s,r=%s",
		base64.StdEncoding.EncodeToString([]byte("n,,")), srvNonce)
	authMessage := firstBare + "," + challenge + "," + withoutProof

	clientSignature := hmacSHA1(storedKey[:], authMessage)
	clientProof := make([]byte, len(clientKey))
	for i := range clientKey {
		clientProof[i] = clientKey[i] ^ clientSignature[i]
	}
	final := fmt.Sprintf("%s,p=%s", withoutProof,
		base64.StdEncoding.EncodeToString(clientProof))

	response := xmpp.NewElementNamespace("response", saslNamespace)
	response.SetText(base64.StdEncoding.EncodeToString([]byte(final)))
	if err := tr.WriteElement(response, true); err != nil {
		return errors.Wrap(err, "sending SCRAM response")
	}
	elem, err = s.receiveElement(pr)
	if err != nil {
		return err
	}
	if elem.Name() != "success" {
		return ErrAuthenticationFailed
	}
	raw, err = base64.StdEncoding.DecodeString(elem.Text())
	if err != nil {
		return errors.Wrap(err, "decoding SCRAM verifier")
	}
	serverKey := hmacSHA1(saltedPassword, "Server Key")
	serverSignature := hmacSHA1(serverKey, authMessage)
	expected := "v=" + base64.StdEncoding.EncodeToString(serverSignature)
	if string(raw) != expected {
		return errors.New("session: SCRAM server signature mismatch")
	}
	return nil
}

func parseScramParameters(str string) map[string]string {
	ret := map[string]string{}
	for _, param := range strings.Split(str, ",") {
		kv := strings.SplitN(param, "=", 2)
		if len(kv) == 2 {
			ret[kv[0]] = kv[1]
		}
	}
	return ret
}

func hmacSHA1(key []byte, message string) []byte {
	mac := hmac.New(sha1.New, key)
	mac.Write([]byte(message))
	return mac.Sum(nil)
}
