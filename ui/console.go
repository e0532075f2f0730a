/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Console renders engine output to a terminal writer.
type Console struct {
	mu  sync.Mutex
	out io.Writer

	info     *color.Color
	warning  *color.Color
	errorC   *color.Color
	incoming *color.Color
	outgoing *color.Color
	status   *color.Color
}

// NewConsole returns a console screen writing to stdout.
func NewConsole() *Console {
	return NewConsoleWriter(os.Stdout)
}

// NewConsoleWriter returns a console screen writing to w.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{
		out:      w,
		info:     color.New(color.FgHiWhite),
		warning:  color.New(color.FgYellow),
		errorC:   color.New(color.FgHiRed),
		incoming: color.New(color.FgGreen),
		outgoing: color.New(color.FgCyan),
		status:   color.New(color.FgHiBlue),
	}
}

// WriteLine appends a line to a buffer.
func (c *Console) WriteLine(buffer string, line string, flags LineFlags) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := time.Now().Format("15:04:05")
	if flags&LineDelayed != 0 {
		prefix += " (delayed)"
	}
	cl := c.info
	switch {
	case flags&LineError != 0:
		cl = c.errorC
	case flags&LineWarning != 0:
		cl = c.warning
	case flags&LineIncoming != 0:
		cl = c.incoming
	case flags&LineOutgoing != 0:
		cl = c.outgoing
	}
	_, _ = cl.Fprintf(c.out, "%s [%s] %s\n", prefix, buffer, line)
}

// RosterChanged signals the contact list must be redrawn.
func (c *Console) RosterChanged() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.status.Fprintln(c.out, "-- roster updated --")
}

// StateChanged signals a connection state transition.
func (c *Console) StateChanged(state string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.status.Fprintf(c.out, "-- connection %s --\n", state)
}

// StatusLine updates the main status line.
func (c *Console) StatusLine(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.status.Fprintln(c.out, fmt.Sprintf("== %s ==", line))
}
