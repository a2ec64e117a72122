/*
nimbus - Air quality badge controller
Copyright (C) 2024, lashy0

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package logging

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

type LogArgs struct {
	LogLevel string `arg:"--log-level" default:"info" help:"Set the logging level (debug, info, warn, error)"`
}

type Logger struct {
	*logrus.Logger
}

type customFormatter struct{}

func (f *customFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return []byte(fmt.Sprintf("[%s] %s\n", strings.ToUpper(entry.Level.String()), entry.Message)), nil
}

// NewLogger returns a logger writing "[LEVEL] message" lines at the given level.
func NewLogger(level string) *Logger {
	l := logrus.New()
	l.SetFormatter(new(customFormatter))
	log := &Logger{Logger: l}
	log.SetLogLevel(level)
	return log
}

// Wrap adopts an existing logrus logger, e.g. one from logrus/hooks/test.
func Wrap(l *logrus.Logger) *Logger {
	return &Logger{Logger: l}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	l := NewLogger("error")
	l.SetOutput(io.Discard)
	return l
}

func (l *Logger) SetLogLevel(level string) {
	switch level {
	case "debug":
		l.SetLevel(logrus.DebugLevel)
	case "info":
		l.SetLevel(logrus.InfoLevel)
	case "warn":
		l.SetLevel(logrus.WarnLevel)
	case "error":
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
		l.Warnf("Unknown log level '%s', defaulting to info", level)
	}
}

// EveryN counts occurrences of a repeating failure and reports which of them
// should be logged: the first, then every Nth after it.
type EveryN struct {
	n     uint32
	count atomic.Uint32
}

func NewEveryN(n uint32) *EveryN {
	if n == 0 {
		n = 1
	}
	return &EveryN{n: n}
}

// Hit records an occurrence and returns the running count and whether this
// occurrence should be logged.
func (e *EveryN) Hit() (uint32, bool) {
	c := e.count.Add(1)
	return c, c%e.n == 1 || e.n == 1
}

func (e *EveryN) Count() uint32 {
	return e.count.Load()
}

func (e *EveryN) Reset() {
	e.count.Store(0)
}
