/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package client

import "time"

const (
	defaultReconnectInterval = time.Duration(60) * time.Second
	defaultSweepInterval     = time.Duration(20) * time.Second
	defaultEventTimeout      = time.Duration(24) * time.Hour
	defaultHistoryLimit      = 50
)

// Config represents client engine configuration.
type Config struct {
	Priority            int
	IgnoreUnknownSender bool
	DeleteOnReject      bool
	AutoWhois           bool
	HistoryLimit        int
	ReconnectInterval   time.Duration
}

type configProxy struct {
	Priority            int  `yaml:"priority"`
	IgnoreUnknownSender bool `yaml:"ignore_unknown_sender"`
	DeleteOnReject      bool `yaml:"delete_on_reject"`
	AutoWhois           bool `yaml:"auto_whois"`
	HistoryLimit        int  `yaml:"history_limit"`
	ReconnectInterval   int  `yaml:"reconnect_interval"`
}

// UnmarshalYAML satisfies Unmarshaler interface.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	p := configProxy{}
	if err := unmarshal(&p); err != nil {
		return err
	}
	c.Priority = p.Priority
	c.IgnoreUnknownSender = p.IgnoreUnknownSender
	c.DeleteOnReject = p.DeleteOnReject
	c.AutoWhois = p.AutoWhois
	c.HistoryLimit = p.HistoryLimit
	if c.HistoryLimit == 0 {
		c.HistoryLimit = defaultHistoryLimit
	}
	c.ReconnectInterval = time.Duration(p.ReconnectInterval) * time.Second
	if c.ReconnectInterval == 0 {
		c.ReconnectInterval = defaultReconnectInterval
	}
	return nil
}
