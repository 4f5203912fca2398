// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a leveled printf-style logger.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	// Named returns child logger tagged with the component name.
	Named(component string) Logger
}

// Option configures logger.
type Option func(*options)

type options struct {
	writer io.Writer
	level  string
	pretty bool
}

// WithWriter sets logger output, stdout by default.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

// WithLevel sets minimal level: debug, info, warn or error. Info is used for unknown values.
func WithLevel(level string) Option {
	return func(o *options) { o.level = level }
}

// WithPretty enables human readable console output.
func WithPretty(pretty bool) Option {
	return func(o *options) { o.pretty = pretty }
}

// zeroLogger implements Logger over zerolog.
type zeroLogger struct {
	log zerolog.Logger
}

// New returns zerolog based Logger for the service.
func New(service string, opts ...Option) Logger {
	o := &options{writer: os.Stdout, level: "info"}
	for _, opt := range opts {
		opt(o)
	}

	writer := o.writer
	if o.pretty {
		console := zerolog.ConsoleWriter{Out: o.writer, NoColor: true, TimeFormat: time.TimeOnly}
		console.FormatLevel = func(i any) string {
			return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
		}
		writer = console
	}

	log := zerolog.New(writer).
		Level(ParseLevel(o.level)).
		With().
		Timestamp().
		Str("service", service).
		Logger()

	return &zeroLogger{log: log}
}

// NewNop returns Logger discarding everything.
func NewNop() Logger {
	return &zeroLogger{log: zerolog.Nop()}
}

// ParseLevel maps level name to zerolog level.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (z *zeroLogger) Debugf(format string, args ...any) {
	z.log.Debug().Msgf(format, args...)
}

func (z *zeroLogger) Infof(format string, args ...any) {
	z.log.Info().Msgf(format, args...)
}

func (z *zeroLogger) Warnf(format string, args ...any) {
	z.log.Warn().Msgf(format, args...)
}

func (z *zeroLogger) Errorf(format string, args ...any) {
	z.log.Error().Msgf(format, args...)
}

// Named returns child logger with component field.
func (z *zeroLogger) Named(component string) Logger {
	return &zeroLogger{log: z.log.With().Str("component", component).Logger()}
}
