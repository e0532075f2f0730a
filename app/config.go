/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package app

import (
	"bytes"
	"io/ioutil"

	"github.com/ortuman/civet/client"
	"github.com/ortuman/civet/log"
	"github.com/ortuman/civet/session"
	"github.com/ortuman/civet/storage"
	"gopkg.in/yaml.v2"
)

// Config represents a global configuration.
type Config struct {
	PIDFile string         `yaml:"pid_path"`
	Logger  log.Config     `yaml:"logger"`
	Storage storage.Config `yaml:"storage"`
	Session session.Config `yaml:"session"`
	Client  client.Config  `yaml:"client"`
}

// FromFile loads default global configuration from
// a specified file.
func (cfg *Config) FromFile(configFile string) error {
	b, err := ioutil.ReadFile(configFile)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, cfg)
}

// FromBuffer loads default global configuration from
// a specified byte buffer.
func (cfg *Config) FromBuffer(buf *bytes.Buffer) error {
	return yaml.Unmarshal(buf.Bytes(), cfg)
}
