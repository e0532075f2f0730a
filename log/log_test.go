/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package log

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(&Config{Level: DebugLevel}, &buf)
	require.Nil(t, err)

	l.writeLog("file", 10, "debug msg", DebugLevel, false)
	l.writeLog("file", 11, "info msg", InfoLevel, false)
	l.writeLog("file", 12, "warn msg", WarningLevel, false)
	l.writeLog("file", 13, "error msg", ErrorLevel, false)

	time.Sleep(time.Millisecond * 100)

	out := buf.String()
	require.True(t, strings.Contains(out, "[DBG] file:10 - debug msg"))
	require.True(t, strings.Contains(out, "[INF] file:11 - info msg"))
	require.True(t, strings.Contains(out, "[WRN] file:12 - warn msg"))
	require.True(t, strings.Contains(out, "[ERR] file:13 - error msg"))

	l.closeCh <- true
}

func TestLoggerFatal(t *testing.T) {
	var buf bytes.Buffer
	exited := false
	exitHandler = func() { exited = true }
	defer func() { exitHandler = func() {} }()

	l, err := newLogger(&Config{Level: InfoLevel}, &buf)
	require.Nil(t, err)

	l.writeLog("file", 21, "fatal msg", FatalLevel, false)
	require.True(t, exited)
	require.True(t, strings.Contains(buf.String(), "[FTL]"))

	l.closeCh <- true
}

func TestLogConfig(t *testing.T) {
	cfg := Config{}
	for level, expected := range map[string]Level{
		"debug": DebugLevel, "info": InfoLevel, "warning": WarningLevel,
		"error": ErrorLevel, "fatal": FatalLevel, "off": OffLevel,
	} {
		err := cfg.UnmarshalYAML(func(v interface{}) error {
			v.(*configProxy).Level = level
			return nil
		})
		require.Nil(t, err)
		require.Equal(t, expected, cfg.Level)
	}
	err := cfg.UnmarshalYAML(func(v interface{}) error {
		v.(*configProxy).Level = "verbose"
		return nil
	})
	require.NotNil(t, err)
}
