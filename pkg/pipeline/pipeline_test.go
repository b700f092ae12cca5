package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/quill/pkg/pipeline"
	"github.com/papercomputeco/quill/pkg/sse"
)

func frame(content string) string {
	return fmt.Sprintf("data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n", content)
}

// chunks yields one string per Read, then err (io.EOF when nil).
type chunks struct {
	parts []string
	err   error
}

func (c *chunks) Read(p []byte) (int, error) {
	if len(c.parts) == 0 {
		if c.err != nil {
			return 0, c.err
		}
		return 0, io.EOF
	}
	n := copy(p, c.parts[0])
	c.parts[0] = c.parts[0][n:]
	if c.parts[0] == "" {
		c.parts = c.parts[1:]
	}
	return n, nil
}

type collector struct {
	mu        sync.Mutex
	frames    []string
	completes []string
}

func (c *collector) callbacks() pipeline.Callbacks {
	return pipeline.Callbacks{
		OnFrame: func(s string) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.frames = append(c.frames, s)
		},
		OnComplete: func(s string) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.completes = append(c.completes, s)
		},
	}
}

func (c *collector) Frames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.frames...)
}

func (c *collector) Completes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.completes...)
}

var _ = Describe("Pipeline", func() {
	var col *collector

	BeforeEach(func() {
		col = &collector{}
	})

	It("decodes and plays back the ab, c, [DONE] stream", func() {
		src := &chunks{parts: []string{
			"data: {\"choices\":[{\"delta\":{\"content\":\"ab\"}}]}\n",
			"data: {\"choices\":[{\"delta\":{\"content\":\"c\"}}]}\ndata: [DONE]\n",
		}}
		p := pipeline.New(src, pipeline.WithInterval(time.Millisecond))

		Expect(p.Run(context.Background(), col.callbacks())).To(Succeed())
		Expect(p.Decoder().Result()).To(Equal("abc"))
		Expect(p.Decoder().State()).To(Equal(sse.StateDone))
		Expect(col.Frames()).To(Equal([]string{"a", "ab", "abc"}))
		Expect(col.Completes()).To(Equal([]string{"abc"}))
	})

	It("hands extracted code to the completion callback", func() {
		src := &chunks{parts: []string{frame("```ts\n"), frame("Hello\n```"), "data: [DONE]\n"}}
		p := pipeline.New(src, pipeline.WithInterval(0), pipeline.WithExtractCode(true))

		Expect(p.Run(context.Background(), col.callbacks())).To(Succeed())
		Expect(col.Completes()).To(Equal([]string{"Hello"}))
		Expect(col.Frames()).To(HaveLen(len("```ts\nHello\n```")))
	})

	It("completes when the transport ends without a sentinel", func() {
		p := pipeline.New(strings.NewReader(frame("tail")), pipeline.WithInterval(0))

		Expect(p.Run(context.Background(), col.callbacks())).To(Succeed())
		Expect(p.Decoder().State()).To(Equal(sse.StateBuffering))
		Expect(col.Completes()).To(Equal([]string{"tail"}))
	})

	It("returns the partial result on a transport abort", func() {
		boom := errors.New("connection reset by peer")
		src := &chunks{parts: []string{frame("par"), frame("tial")}, err: boom}
		p := pipeline.New(src, pipeline.WithInterval(0))

		err := p.Run(context.Background(), col.callbacks())

		var abort *pipeline.AbortError
		Expect(errors.As(err, &abort)).To(BeTrue())
		Expect(abort.Partial).To(Equal("partial"))
		Expect(errors.Is(err, boom)).To(BeTrue())
		Expect(p.Decoder().State()).To(Equal(sse.StateBuffering))
		Expect(col.Completes()).To(BeEmpty())
	})

	It("stops and releases a blocked read when cancelled", func() {
		pr, pw := io.Pipe()
		defer pw.Close()

		p := pipeline.New(pr, pipeline.WithInterval(0))
		ctx, cancel := context.WithCancel(context.Background())

		errc := make(chan error, 1)
		go func() {
			errc <- p.Run(ctx, col.callbacks())
		}()

		_, err := pw.Write([]byte(frame("x")))
		Expect(err).NotTo(HaveOccurred())
		Eventually(col.Frames).Should(Equal([]string{"x"}))

		cancel()
		Eventually(errc).Should(Receive(MatchError(context.Canceled)))
		Expect(col.Completes()).To(BeEmpty())
	})
})

var _ = Describe("Session", func() {
	It("runs a single pipeline to completion", func() {
		col := &collector{}
		s := pipeline.NewSession(pipeline.WithInterval(0))

		run := s.Start(context.Background(), func(ctx context.Context) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(frame("ok") + "data: [DONE]\n")), nil
		}, col.callbacks())

		Expect(run.Wait()).To(Succeed())
		Expect(run.Partial()).To(Equal("ok"))
		Expect(col.Completes()).To(Equal([]string{"ok"}))
	})

	It("reports open failures", func() {
		s := pipeline.NewSession()
		boom := errors.New("429")

		run := s.Start(context.Background(), func(ctx context.Context) (io.ReadCloser, error) {
			return nil, boom
		}, pipeline.Callbacks{})

		Expect(run.Wait()).To(MatchError(boom))
	})

	It("cancels the previous pipeline when a new one starts", func() {
		first, second := &collector{}, &collector{}
		s := pipeline.NewSession(pipeline.WithInterval(0))

		pr, pw := io.Pipe()
		defer pw.Close()

		run1 := s.Start(context.Background(), func(ctx context.Context) (io.ReadCloser, error) {
			return pr, nil
		}, first.callbacks())

		_, err := pw.Write([]byte(frame("old")))
		Expect(err).NotTo(HaveOccurred())
		Eventually(first.Frames).Should(HaveLen(3))

		run2 := s.Start(context.Background(), func(ctx context.Context) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(frame("new") + "data: [DONE]\n")), nil
		}, second.callbacks())

		// The first run has fully stopped by the time Start returns.
		Expect(run1.Done()).To(BeClosed())
		Expect(run1.Wait()).To(MatchError(context.Canceled))
		Expect(run1.Partial()).To(Equal("old"))

		Expect(run2.Wait()).To(Succeed())
		Expect(second.Completes()).To(Equal([]string{"new"}))
		Expect(first.Frames()).To(Equal([]string{"o", "ol", "old"}))
		Expect(first.Completes()).To(BeEmpty())
	})

	It("cancels the current pipeline on Cancel", func() {
		col := &collector{}
		s := pipeline.NewSession(pipeline.WithInterval(0))
		pr, pw := io.Pipe()
		defer pw.Close()

		run := s.Start(context.Background(), func(ctx context.Context) (io.ReadCloser, error) {
			return pr, nil
		}, col.callbacks())

		s.Cancel()
		Expect(run.Done()).To(BeClosed())
		Expect(run.Wait()).To(MatchError(context.Canceled))
		Expect(col.Completes()).To(BeEmpty())

		// Cancel with nothing running is a no-op.
		s.Cancel()
	})
})
