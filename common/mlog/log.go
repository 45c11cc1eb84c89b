// Package mlog defines the logging abstraction shared across the
// authorization pipeline, the outbox dispatcher, and the HTTP front door.
package mlog

import (
	"fmt"
	"strings"
)

// Logger is the common interface for log implementations. Every subsystem
// takes one by constructor injection instead of reaching for a package
// global.
type Logger interface {
	Info(args ...any)
	Infof(format string, args ...any)

	Error(args ...any)
	Errorf(format string, args ...any)

	Warn(args ...any)
	Warnf(format string, args ...any)

	Debug(args ...any)
	Debugf(format string, args ...any)

	Fatal(args ...any)
	Fatalf(format string, args ...any)

	// WithFields returns a derived logger carrying the given key/value
	// pairs on every subsequent entry. The receiver is left unchanged.
	WithFields(fields ...any) Logger

	Sync() error
}

// Level represents the severity threshold of the log system.
type Level int8

const (
	FatalLevel Level = iota
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
)

// ParseLevel takes a string level and returns a Level constant.
func ParseLevel(lvl string) (Level, error) {
	switch strings.ToLower(lvl) {
	case "fatal":
		return FatalLevel, nil
	case "error":
		return ErrorLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "info":
		return InfoLevel, nil
	case "debug":
		return DebugLevel, nil
	}

	var l Level

	return l, fmt.Errorf("not a valid log level: %q", lvl)
}
