// Copyright 2025 Jonathan Amsterdam. All rights reserved.
// Use of this source code is governed by a
// license that can be found in the LICENSE file.

// Package logger builds the tight command's logger.
package logger

import (
	"io"

	"github.com/jba/tight/internal/config"
	"github.com/rs/zerolog"
)

// New returns a logger writing to w, configured by the log.* settings.
// If verbose is set the level is debug regardless of log.level.
func New(conf *config.Conf, w io.Writer, verbose bool) (zerolog.Logger, error) {
	zerolog.TimeFieldFormat = conf.String("log.timeformat", zerolog.TimeFormatUnix)

	if conf.Bool("log.pretty", true) {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: zerolog.TimeFieldFormat}
	}

	level, err := zerolog.ParseLevel(conf.String("log.level", "info"))
	if err != nil {
		return zerolog.Nop(), err
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("name", "tight").Logger(), nil
}
