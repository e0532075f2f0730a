/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package session

import (
	"fmt"
	"time"

	"github.com/ortuman/civet/transport"
)

const (
	defaultPort           = 5222
	defaultTLSPort        = 5223
	defaultMaxStanzaSize  = 32768
	defaultKeepaliveDelay = time.Duration(90) * time.Second
	defaultDialTimeout    = time.Duration(15) * time.Second
)

// Config represents stream session configuration.
type Config struct {
	JID            string
	Password       string
	Server         string
	Port           int
	Security       transport.Security
	Resource       string
	SkipVerify     bool
	MaxStanzaSize  int
	KeepaliveDelay time.Duration
	DialTimeout    time.Duration
}

type configProxy struct {
	JID            string `yaml:"jid"`
	Password       string `yaml:"password"`
	Server         string `yaml:"server"`
	Port           int    `yaml:"port"`
	Security       string `yaml:"security"`
	Resource       string `yaml:"resource"`
	SkipVerify     bool   `yaml:"skip_verify"`
	MaxStanzaSize  int    `yaml:"max_stanza_size"`
	KeepaliveDelay int    `yaml:"keepalive_delay"`
}

// UnmarshalYAML satisfies Unmarshaler interface.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	p := configProxy{}
	if err := unmarshal(&p); err != nil {
		return err
	}
	if len(p.JID) == 0 {
		return fmt.Errorf("session.Config: jid value is mandatory")
	}
	c.JID = p.JID
	c.Password = p.Password
	c.Server = p.Server
	c.Resource = p.Resource
	c.SkipVerify = p.SkipVerify

	switch p.Security {
	case "", "none":
		c.Security = transport.None
	case "tls", "ssl":
		c.Security = transport.TLS
	case "starttls":
		c.Security = transport.StartTLS
	default:
		return fmt.Errorf("session.Config: unrecognized security mode: %s", p.Security)
	}
	c.Port = p.Port
	if c.Port == 0 {
		if c.Security == transport.TLS {
			c.Port = defaultTLSPort
		} else {
			c.Port = defaultPort
		}
	}
	c.MaxStanzaSize = p.MaxStanzaSize
	if c.MaxStanzaSize == 0 {
		c.MaxStanzaSize = defaultMaxStanzaSize
	}
	c.KeepaliveDelay = time.Duration(p.KeepaliveDelay) * time.Second
	if c.KeepaliveDelay == 0 {
		c.KeepaliveDelay = defaultKeepaliveDelay
	}
	c.DialTimeout = defaultDialTimeout
	return nil
}
