package pipeline

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

// OpenFunc opens the transport stream for a new pipeline. The returned
// reader is closed when the pipeline ends.
type OpenFunc func(ctx context.Context) (io.ReadCloser, error)

// Session runs at most one pipeline at a time. Starting a new pipeline
// cancels the previous one and waits for its tasks and ticker to stop.
type Session struct {
	opts []Option

	mu     sync.Mutex
	gen    atomic.Uint64
	cancel context.CancelFunc
	run    *Run
}

// NewSession returns a Session whose pipelines are built with opts.
func NewSession(opts ...Option) *Session {
	return &Session{opts: opts}
}

// Run is a handle on a pipeline started by a Session.
type Run struct {
	done chan struct{}
	err  error

	// Partial is the text decoded when the run ended.
	partial string
}

// Done is closed when the run has ended.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run ends and returns its error.
func (r *Run) Wait() error {
	<-r.done
	return r.err
}

// Partial returns the text decoded by the time the run ended. It is only
// meaningful after Done is closed.
func (r *Run) Partial() string {
	<-r.done
	return r.partial
}

// Start supersedes the current pipeline, if any, and starts a new one on the
// stream returned by open. Callbacks of a superseded pipeline are never
// invoked once Start has been called. Callbacks run on the pipeline's
// goroutines and must not call Start or Cancel synchronously.
func (s *Session) Start(ctx context.Context, open OpenFunc, cb Callbacks) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.gen.Add(1)
	s.stopLocked()

	runCtx, cancel := context.WithCancel(ctx)
	r := &Run{done: make(chan struct{})}
	s.cancel = cancel
	s.run = r

	guarded := Callbacks{
		OnFrame: func(shown string) {
			if cb.OnFrame != nil && s.gen.Load() == id {
				cb.OnFrame(shown)
			}
		},
		OnComplete: func(final string) {
			if cb.OnComplete != nil && s.gen.Load() == id {
				cb.OnComplete(final)
			}
		},
	}

	go func() {
		defer close(r.done)
		defer cancel()

		src, err := open(runCtx)
		if err != nil {
			r.err = err
			return
		}
		defer src.Close()

		p := New(src, s.opts...)
		r.err = p.Run(runCtx, guarded)
		r.partial = p.Decoder().Result()
	}()

	return r
}

// Cancel stops the current pipeline, if any, and waits for it to end.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen.Add(1)
	s.stopLocked()
}

func (s *Session) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.run.done
	s.cancel = nil
	s.run = nil
}
