package assist_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/quill/pkg/assist"
	"github.com/papercomputeco/quill/pkg/gateway"
	"github.com/papercomputeco/quill/pkg/llm"
)

type fakeCompleter struct {
	reply    string
	err      error
	received []llm.UpstreamMessage
}

func (f *fakeCompleter) Complete(_ context.Context, msgs []llm.UpstreamMessage) (string, error) {
	f.received = msgs
	return f.reply, f.err
}

var _ = Describe("Assist", func() {
	var (
		ctx context.Context
		in  assist.Input
	)

	BeforeEach(func() {
		ctx = context.Background()
		in = assist.Input{Code: "func add(a, b int) int { return a - b }", Language: "go", Filename: "add.go"}
	})

	Describe("ParseTask", func() {
		It("accepts every known task", func() {
			for _, t := range assist.Tasks {
				got, err := assist.ParseTask(string(t))
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(t))
			}
		})

		It("rejects unknown tasks", func() {
			_, err := assist.ParseTask("deploy")

			var unknown *assist.UnknownTaskError
			Expect(errors.As(err, &unknown)).To(BeTrue())
			Expect(unknown.Name).To(Equal("deploy"))
		})
	})

	Describe("Validate", func() {
		It("requires a language", func() {
			in.Language = ""
			Expect(assist.Validate(assist.TaskLint, in)).To(HaveOccurred())
		})

		It("requires code unless a prefix is given", func() {
			Expect(assist.Validate(assist.TaskLint, assist.Input{Language: "go"})).To(HaveOccurred())
			Expect(assist.Validate(assist.TaskComplete, assist.Input{Language: "go", Prefix: "func "})).To(Succeed())
		})
	})

	Describe("Messages", func() {
		It("sends a system prompt and the fenced code", func() {
			msgs, err := assist.Messages(assist.TaskReview, in)
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].Role).To(Equal(llm.RoleSystem))
			Expect(msgs[1].Role).To(Equal(llm.RoleUser))
			Expect(msgs[1].Content).To(ContainSubstring("```go\n" + in.Code + "\n```"))
			Expect(msgs[1].Content).To(ContainSubstring("File: add.go"))
		})

		It("sends prefix and suffix for completion", func() {
			msgs, err := assist.Messages(assist.TaskComplete, assist.Input{
				Language: "go", Prefix: "func main() {", Suffix: "}",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs[1].Content).To(ContainSubstring("before the cursor"))
			Expect(msgs[1].Content).To(ContainSubstring("after the cursor"))
		})
	})

	Describe("ExtractJSON", func() {
		DescribeTable("finds the outermost object",
			func(reply, want string) {
				got, err := assist.ExtractJSON(reply)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(want))
			},
			Entry("bare object", `{"a":1}`, `{"a":1}`),
			Entry("fenced object", "```json\n{\"a\":1}\n```", `{"a":1}`),
			Entry("chatter around object", `Sure! {"a":{"b":2}} Hope that helps.`, `{"a":{"b":2}}`),
		)

		It("fails without an object", func() {
			_, err := assist.ExtractJSON("no json here")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Run", func() {
		It("decodes a lint reply", func() {
			c := &fakeCompleter{reply: "```json\n" +
				`{"issues":[{"line":1,"severity":"error","message":"subtracts instead of adds","rule":"logic"}]}` +
				"\n```"}

			out, err := assist.Run(ctx, c, assist.TaskLint, in)
			Expect(err).NotTo(HaveOccurred())

			res, ok := out.(*assist.LintResult)
			Expect(ok).To(BeTrue())
			Expect(res.Issues).To(HaveLen(1))
			Expect(res.Issues[0].Severity).To(Equal(assist.SeverityError))
			Expect(c.received).To(HaveLen(2))
		})

		It("decodes a review reply", func() {
			c := &fakeCompleter{reply: `{"summary":"buggy","score":3,"comments":[{"line":1,"comment":"wrong operator"}]}`}

			out, err := assist.Run(ctx, c, assist.TaskReview, in)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(&assist.ReviewResult{
				Summary:  "buggy",
				Score:    3,
				Comments: []assist.ReviewComment{{Line: 1, Comment: "wrong operator"}},
			}))
		})

		It("returns a ParseError for malformed replies", func() {
			c := &fakeCompleter{reply: "I cannot help with that."}

			_, err := assist.Run(ctx, c, assist.TaskRefactor, in)

			var perr *assist.ParseError
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(perr.Task).To(Equal(assist.TaskRefactor))
			Expect(perr.Raw).To(Equal("I cannot help with that."))
		})

		It("passes gateway errors through untouched", func() {
			c := &fakeCompleter{err: &gateway.StatusError{StatusCode: 429}}

			_, err := assist.Run(ctx, c, assist.TaskTests, in)
			Expect(gateway.HTTPStatus(err)).To(Equal(429))
		})

		It("does not call the gateway for invalid input", func() {
			c := &fakeCompleter{}
			_, err := assist.Run(ctx, c, assist.TaskLint, assist.Input{})
			Expect(err).To(HaveOccurred())
			Expect(c.received).To(BeNil())
		})
	})
})
