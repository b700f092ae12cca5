// Package playback reveals a growing text one character per fixed tick,
// independent of how quickly the text itself arrives.
package playback

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// DefaultInterval is the delay between two revealed characters.
const DefaultInterval = 10 * time.Millisecond

// Source is a text that grows until it is finished. It is implemented by
// *sse.Decoder.
type Source interface {
	// Result returns the text accumulated so far. Successive calls return
	// strings that extend one another.
	Result() string

	// Finished reports whether Result will not grow any further.
	Finished() bool

	// Updates signals after Result grows or the source finishes.
	Updates() <-chan struct{}
}

// Driver advances a cursor over a Source.
//
// The cursor is a byte offset into Result that always sits on a rune
// boundary. It only grows, one character per tick, and never exceeds
// len(Result()). Only the goroutine calling Next or Run moves it.
type Driver struct {
	src      Source
	interval time.Duration

	cursor atomic.Int64
	ticker *time.Ticker
	once   sync.Once
}

// Option configures a Driver.
type Option func(*Driver)

// WithInterval sets the delay between revealed characters. A non-positive
// interval reveals characters without waiting.
func WithInterval(d time.Duration) Option {
	return func(dr *Driver) {
		dr.interval = d
	}
}

// NewDriver returns a Driver with its cursor at zero.
func NewDriver(src Source, opts ...Option) *Driver {
	d := &Driver{
		src:      src,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Cursor returns the number of bytes revealed so far.
func (d *Driver) Cursor() int {
	return int(d.cursor.Load())
}

// Next awaits the next tick and reveals one more character, returning the
// displayed prefix.
//
// When the cursor has caught up with a source that is still growing, Next
// idles until the source signals an update; it never polls. Once the cursor
// has caught up with a finished source, Next returns the full text and
// io.EOF.
func (d *Driver) Next(ctx context.Context) (string, error) {
	for {
		text := d.src.Result()
		cur := int(d.cursor.Load())

		if cur < len(text) {
			if err := d.tick(ctx); err != nil {
				return text[:cur], err
			}

			_, size := utf8.DecodeRuneInString(text[cur:])
			next := cur + size
			d.cursor.Store(int64(next))
			return text[:next], nil
		}

		if d.src.Finished() {
			// The source may have grown between reading text and observing
			// that it finished.
			if len(d.src.Result()) > cur {
				continue
			}
			return text, io.EOF
		}

		select {
		case <-ctx.Done():
			return text[:cur], ctx.Err()
		case <-d.src.Updates():
		}
	}
}

func (d *Driver) tick(ctx context.Context) error {
	if d.interval <= 0 {
		return ctx.Err()
	}

	if d.ticker == nil {
		d.ticker = time.NewTicker(d.interval)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.ticker.C:
		return nil
	}
}

// Run reveals the source until it is finished, calling onFrame with each new
// displayed prefix and onComplete with the final text exactly once. Either
// callback may be nil.
//
// Run returns nil after completion, or the context error if ctx is cancelled
// first. onComplete is not called on cancellation.
func (d *Driver) Run(ctx context.Context, onFrame, onComplete func(string)) error {
	defer d.Close()

	for {
		shown, err := d.Next(ctx)
		if errors.Is(err, io.EOF) {
			d.once.Do(func() {
				if onComplete != nil {
					onComplete(shown)
				}
			})
			return nil
		}
		if err != nil {
			return err
		}

		if onFrame != nil {
			onFrame(shown)
		}
	}
}

// Close stops the driver's ticker. It is safe to call more than once.
func (d *Driver) Close() {
	if d.ticker != nil {
		d.ticker.Stop()
	}
}
