package sse

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/papercomputeco/quill/pkg/llm"
	"github.com/papercomputeco/quill/pkg/logger"
)

// Decoder incrementally decodes a streaming completion.
//
// Feed must be called from a single goroutine. Result, State, Finished and
// Updates are safe to call concurrently with Feed: the accumulated result is
// published through an atomically replaced string reference, so readers always
// observe a complete prefix of the final text.
type Decoder struct {
	// buf holds bytes of the trailing, not yet newline-terminated line.
	buf []byte

	state   atomic.Int32
	closed  atomic.Bool
	dropped atomic.Int64
	result  atomic.Pointer[string]
	updates chan struct{}
	logger  *slog.Logger
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithLogger sets the logger used to report dropped frames at debug level.
func WithLogger(l *slog.Logger) DecoderOption {
	return func(d *Decoder) {
		d.logger = l
	}
}

// NewDecoder returns a Decoder in StateBuffering with an empty result.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{
		updates: make(chan struct{}, 1),
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	empty := ""
	d.result.Store(&empty)
	return d
}

// Feed appends a chunk of raw stream bytes and processes every complete line
// it now holds. It reports whether the decoder has reached StateDone.
//
// Once done, Feed is a no-op: lines following the sentinel, including those
// in the same chunk, are never processed.
func (d *Decoder) Feed(chunk []byte) bool {
	if d.Done() {
		return true
	}

	d.buf = append(d.buf, chunk...)

	off := 0
	for {
		i := bytes.IndexByte(d.buf[off:], '\n')
		if i < 0 {
			break
		}

		line := d.buf[off : off+i]
		off += i + 1

		if d.processLine(line) {
			d.buf = nil
			d.state.Store(int32(StateDone))
			d.notify()
			return true
		}
	}

	// Keep only the unterminated remainder.
	n := copy(d.buf, d.buf[off:])
	d.buf = d.buf[:n]
	return false
}

// processLine handles a single line with its '\n' already removed. It returns
// true when the line is the [DONE] sentinel.
func (d *Decoder) processLine(line []byte) bool {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if len(line) == 0 || line[0] == ':' {
		return false
	}

	payload, ok := bytes.CutPrefix(line, []byte(dataPrefix))
	if !ok {
		return false
	}

	payload = bytes.TrimSpace(payload)
	if string(payload) == doneSentinel {
		return true
	}

	var chunk llm.StreamChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		d.dropped.Add(1)
		d.logger.Debug("dropping malformed frame",
			"error", err,
			"payload_bytes", len(payload),
		)
		return false
	}

	if content, ok := chunk.DeltaContent(); ok && content != "" {
		d.append(content)
	}
	return false
}

func (d *Decoder) append(s string) {
	next := *d.result.Load() + s
	d.result.Store(&next)
	d.notify()
}

// notify performs a coalescing, non-blocking signal on the updates channel.
func (d *Decoder) notify() {
	select {
	case d.updates <- struct{}{}:
	default:
	}
}

// Close marks the end of the underlying stream without a [DONE] sentinel.
// The state is left unchanged; Finished reports true afterwards.
func (d *Decoder) Close() {
	if d.closed.CompareAndSwap(false, true) {
		d.notify()
	}
}

// Result returns the text accumulated so far.
func (d *Decoder) Result() string {
	return *d.result.Load()
}

// State returns the current lifecycle state.
func (d *Decoder) State() State {
	return State(d.state.Load())
}

// Done reports whether the [DONE] sentinel has been decoded.
func (d *Decoder) Done() bool {
	return d.State() == StateDone
}

// Finished reports whether no more text will be appended: either the
// sentinel was decoded or the stream was closed.
func (d *Decoder) Finished() bool {
	return d.Done() || d.closed.Load()
}

// Updates returns a channel that receives a value after the result grows or
// the decoder finishes. Signals are coalesced: a single receive may stand for
// several appends, so receivers must re-read Result.
func (d *Decoder) Updates() <-chan struct{} {
	return d.updates
}

// Dropped returns the number of data frames discarded as malformed JSON.
func (d *Decoder) Dropped() int64 {
	return d.dropped.Load()
}
