package backend

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/papercomputeco/quill/pkg/logger"
)

// LogOptions configures service logging.
type LogOptions struct {
	Debug bool

	// Service tags every record, e.g. "relay".
	Service string

	// JSON switches stderr output from the pretty handler to JSON.
	JSON bool

	// File, when set, also receives every record as JSON.
	File string
}

// NewLogger builds the service logger. The returned close func releases the
// log file, if any.
func NewLogger(opts LogOptions) (*slog.Logger, func() error, error) {
	console := logger.New(
		logger.WithWriter(os.Stderr),
		logger.WithDebug(opts.Debug),
		logger.WithPretty(!opts.JSON),
		logger.WithJSON(opts.JSON),
		logger.WithService(opts.Service),
	)

	if opts.File == "" {
		return console, func() error { return nil }, nil
	}

	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	file := logger.New(
		logger.WithWriter(f),
		logger.WithDebug(opts.Debug),
		logger.WithJSON(true),
		logger.WithService(opts.Service),
	)

	return logger.Multi(console, file), f.Close, nil
}
