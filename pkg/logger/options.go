package logger

import (
	"io"
	"log/slog"
)

// Option tunes the logger built by New.
type Option func(*settings)

type settings struct {
	level   slog.Level
	format  Format
	source  bool
	writers []io.Writer
	attrs   []any
}

// WithLevel sets the minimum level.
func WithLevel(level slog.Level) Option {
	return func(s *settings) { s.level = level }
}

// WithDebug is WithLevel(slog.LevelDebug) when debug is set and Info
// otherwise.
func WithDebug(debug bool) Option {
	if debug {
		return WithLevel(slog.LevelDebug)
	}
	return WithLevel(slog.LevelInfo)
}

// WithFormat picks the record encoding.
func WithFormat(f Format) Option {
	return func(s *settings) { s.format = f }
}

// WithPretty selects FormatPretty when pretty is set. A false value leaves
// the format alone so it composes with WithJSON.
func WithPretty(pretty bool) Option {
	return func(s *settings) {
		if pretty {
			s.format = FormatPretty
		}
	}
}

// WithJSON selects FormatJSON when json is set.
func WithJSON(json bool) Option {
	return func(s *settings) {
		if json {
			s.format = FormatJSON
		}
	}
}

// WithWriter replaces the output with w.
func WithWriter(w io.Writer) Option {
	return WithWriters(w)
}

// WithWriters replaces the output with all of ws.
func WithWriters(ws ...io.Writer) Option {
	return func(s *settings) { s.writers = ws }
}

// WithSource adds the caller's file:line to every record.
func WithSource(source bool) Option {
	return func(s *settings) { s.source = source }
}

// WithService tags every record with service=name.
func WithService(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.attrs = append(s.attrs, "service", name)
		}
	}
}
