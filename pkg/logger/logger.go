// Package logger builds the *slog.Logger that every quill component takes.
//
// Humans get a colorized charmbracelet/log handler, services get slog's JSON
// handler, and tests get Nop.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// Format is the encoding of log records.
type Format int

const (
	// FormatText is slog's key=value text handler.
	FormatText Format = iota

	// FormatPretty is the colorized charmbracelet/log handler.
	FormatPretty

	// FormatJSON is slog's JSON handler, one object per line.
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatPretty:
		return "pretty"
	case FormatJSON:
		return "json"
	default:
		return "text"
	}
}

// ParseFormat parses "text", "pretty" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "pretty":
		return FormatPretty, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("unknown log format %q (want text, pretty or json)", s)
}

// New builds a logger. Without options it writes Info and above as text to
// os.Stdout.
func New(opts ...Option) *slog.Logger {
	s := &settings{level: slog.LevelInfo}
	for _, opt := range opts {
		opt(s)
	}

	l := slog.New(s.handler(s.output()))
	if len(s.attrs) > 0 {
		l = l.With(s.attrs...)
	}
	return l
}

func (s *settings) output() io.Writer {
	switch len(s.writers) {
	case 0:
		return os.Stdout
	case 1:
		return s.writers[0]
	}
	return io.MultiWriter(s.writers...)
}

func (s *settings) handler(w io.Writer) slog.Handler {
	ho := &slog.HandlerOptions{Level: s.level, AddSource: s.source}

	switch s.format {
	case FormatJSON:
		return slog.NewJSONHandler(w, ho)
	case FormatPretty:
		return charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(s.level),
			ReportTimestamp: true,
			TimeFormat:      time.TimeOnly,
			ReportCaller:    s.source,
		})
	}
	return slog.NewTextHandler(w, ho)
}

// Nop returns a logger that drops every record.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
