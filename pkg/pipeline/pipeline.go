// Package pipeline wires a streamed completion through the incremental
// decoder and the playback driver.
//
// A Pipeline runs two tasks under one errgroup: a reader task that awaits
// transport chunks and feeds the decoder, and a playback task that awaits
// ticks and reveals the decoded text. A Session supervises pipelines so that at
// most one is live at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/quill/pkg/logger"
	"github.com/papercomputeco/quill/pkg/playback"
	"github.com/papercomputeco/quill/pkg/sse"
)

// AbortError is returned when the transport fails before the stream
// completes. Partial holds the text decoded up to the failure.
type AbortError struct {
	Partial string
	Err     error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("stream aborted after %d bytes: %v", len(e.Partial), e.Err)
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

// Callbacks receive the output of a pipeline. Either may be nil.
type Callbacks struct {
	// OnFrame is called with the displayed prefix after every tick.
	OnFrame func(shown string)

	// OnComplete is called exactly once with the final text after playback
	// catches up with a finished stream. It is never called when the
	// pipeline is cancelled or aborted.
	OnComplete func(final string)
}

type options struct {
	interval    time.Duration
	extractCode bool
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*options)

// WithInterval sets the playback tick. See playback.WithInterval.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		o.interval = d
	}
}

// WithExtractCode passes the final text through sse.ExtractFencedCode before
// it reaches OnComplete. Playback frames still show the raw text.
func WithExtractCode(extract bool) Option {
	return func(o *options) {
		o.extractCode = extract
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func newOptions(opts []Option) options {
	o := options{
		interval: playback.DefaultInterval,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Pipeline decodes and plays back a single streamed completion.
type Pipeline struct {
	src     io.Reader
	decoder *sse.Decoder
	reader  *sse.Reader
	driver  *playback.Driver
	opts    options
}

// New returns a Pipeline reading from src.
func New(src io.Reader, opts ...Option) *Pipeline {
	o := newOptions(opts)
	dec := sse.NewDecoder(sse.WithLogger(o.logger))

	return &Pipeline{
		src:     src,
		decoder: dec,
		reader:  sse.NewReader(src, dec),
		driver:  playback.NewDriver(dec, playback.WithInterval(o.interval)),
		opts:    o,
	}
}

// Decoder returns the pipeline's decoder.
func (p *Pipeline) Decoder() *sse.Decoder {
	return p.decoder
}

// Run blocks until playback completes, ctx is cancelled, or the transport
// fails. A transport failure is returned as an *AbortError; cancellation
// returns the context error.
//
// If src is an io.Closer it is closed when the run ends so a blocked read is
// released.
func (p *Pipeline) Run(ctx context.Context, cb Callbacks) error {
	g, gctx := errgroup.WithContext(ctx)

	if closer, ok := p.src.(io.Closer); ok {
		stop := context.AfterFunc(gctx, func() {
			_ = closer.Close()
		})
		defer stop()
	}

	g.Go(func() error {
		for {
			err := p.reader.Next(gctx)
			if errors.Is(err, io.EOF) {
				p.opts.logger.Debug("stream finished",
					"state", p.decoder.State().String(),
					"bytes", len(p.decoder.Result()),
					"dropped_frames", p.decoder.Dropped(),
				)
				return nil
			}
			if err != nil {
				if cerr := gctx.Err(); cerr != nil {
					return cerr
				}
				return &AbortError{Partial: p.decoder.Result(), Err: err}
			}
		}
	})

	g.Go(func() error {
		return p.driver.Run(gctx, cb.OnFrame, func(final string) {
			if p.opts.extractCode {
				final = sse.ExtractFencedCode(final)
			}
			if cb.OnComplete != nil {
				cb.OnComplete(final)
			}
		})
	})

	return g.Wait()
}
