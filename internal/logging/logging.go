// Package logging constructs the prefixed loggers the engine and daemon
// write to, optionally routed through a size-rotated file.
package logging

import (
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the log sink. An empty File writes to stderr.
type Options struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New returns a logger with the given bracketed prefix, e.g. "[sync] ".
// With a file configured, output goes through lumberjack so long-running
// daemons don't grow an unbounded log.
func New(prefix string, opts Options) *log.Logger {
	if opts.File == "" {
		return log.New(os.Stderr, prefix, log.LstdFlags)
	}

	return log.New(&lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}, prefix, log.LstdFlags)
}
