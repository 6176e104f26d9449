// Package logging builds the component loggers used across offsync.
//
// Every component takes a *log.Logger with a bracketed prefix such as
// "[sync] ". A Sink owns the shared output: stderr, optionally tee'd into
// a size-rotated file.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures a Sink.
type Options struct {
	// File receives a copy of every line when set; it is rotated by size.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Console is the interactive output (default: os.Stderr).
	Console io.Writer

	// Quiet drops console output, leaving only the file.
	Quiet bool
}

// Sink is the shared destination of all component loggers.
type Sink struct {
	out     io.Writer
	rotator *lumberjack.Logger
}

// Open creates a sink for opts. It never fails: the log file is opened
// lazily on first write.
func Open(opts Options) *Sink {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	var writers []io.Writer
	if !opts.Quiet {
		writers = append(writers, console)
	}

	s := &Sink{}
	if opts.File != "" {
		s.rotator = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		writers = append(writers, s.rotator)
	}

	switch len(writers) {
	case 0:
		s.out = io.Discard
	case 1:
		s.out = writers[0]
	default:
		s.out = io.MultiWriter(writers...)
	}
	return s
}

// Discard returns a sink that drops everything.
func Discard() *Sink {
	return &Sink{out: io.Discard}
}

// New returns a logger whose lines are prefixed with "[component] ".
func (s *Sink) New(component string) *log.Logger {
	return log.New(s.out, "["+component+"] ", log.LstdFlags)
}

// Writer exposes the combined output.
func (s *Sink) Writer() io.Writer {
	return s.out
}

// Rotate starts a new log file. It is a no-op without a file.
func (s *Sink) Rotate() error {
	if s.rotator == nil {
		return nil
	}
	return s.rotator.Rotate()
}

// Close flushes and closes the log file, if any.
func (s *Sink) Close() error {
	if s.rotator == nil {
		return nil
	}
	return s.rotator.Close()
}
