package config

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Logger builds the process logger. Output goes to w, which the commands set
// to stderr so stdout carries only the conversation.
func (c LogConfig) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if c.Format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
