/*
NAME
  log.go

DESCRIPTION
  log.go wires bdamux's logging.Logger to a rotating file sink, the same
  pattern cmd/looper uses: lumberjack.v2 as the io.Writer, ausocean's
  logging.Logger on top.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package main

import (
	"io"
	"os"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/lestrrat-go/strftime"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logMaxSizeMB  = 100
	logMaxBackups = 5
	logMaxAgeDays = 28
)

// newLogger returns a logging.Logger that writes to path (if non-empty, via
// a rotating lumberjack sink) and always to stderr, at Debug level when
// verbose is set and Warning level otherwise.
func newLogger(path string, verbose bool) logging.Logger {
	level := logging.Warning
	if verbose {
		level = logging.Debug
	}

	var w io.Writer = os.Stderr
	if path != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    logMaxSizeMB,
			MaxBackups: logMaxBackups,
			MaxAge:     logMaxAgeDays,
		})
	}

	l := logging.New(level, w, true)
	if ts, err := strftime.Format("%Y-%m-%d %H:%M:%S", time.Now()); err == nil {
		l.Debug("bdamux starting", "time", ts)
	}
	return l
}
