// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package rlog builds the logging backend shared by every subsystem.
// Each package keeps its own package-level `log` variable (defaulted to
// slog.Disabled) and is wired up through that package's UseLogger at
// startup, following the usual Decred-style subsystem logging convention.
package rlog

import (
	"io"
	"os"

	"github.com/decred/slog"
	"github.com/jrick/logrotate"
)

// Backend is the shared slog.Backend every subsystem logger is derived
// from.  It writes to stdout and to a rotated log file.
var Backend *slog.Backend

// InitLogRotator creates a rotating file logger that writes to the given
// path and wires Backend to write to both that file and stdout.
func InitLogRotator(logFile string) error {
	rotator, err := logrotate.NewRotator(logFile, 10*1024*1024, false, 3)
	if err != nil {
		return err
	}
	Backend = slog.NewBackend(io.MultiWriter(os.Stdout, rotator))
	return nil
}

// init gives Backend a usable value (stdout only) even if InitLogRotator
// is never called, so subsystem loggers work in tests and short-lived
// tools without file I/O.
func init() {
	Backend = slog.NewBackend(os.Stdout)
}

// SubLogger returns a leveled logger tagged with the given four-letter
// subsystem code, following the usual Decred subsystem-tag convention
// (e.g. "CHEG" for the chain engine, "MEMP" for the mempool).
func SubLogger(tag string, level slog.Level) slog.Logger {
	l := Backend.Logger(tag)
	l.SetLevel(level)
	return l
}
