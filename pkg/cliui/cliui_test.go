package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/quill/pkg/cliui"
)

var _ = Describe("cliui", func() {
	Describe("Step", func() {
		It("returns the function's error and prints a fail mark", func() {
			var buf bytes.Buffer
			boom := errors.New("boom")

			err := cliui.Step(&buf, "working", func() error { return boom })
			Expect(err).To(MatchError(boom))
			Expect(buf.String()).To(ContainSubstring(cliui.FailMark))
			Expect(buf.String()).To(ContainSubstring("working"))
		})

		It("prints a success mark", func() {
			var buf bytes.Buffer

			Expect(cliui.Step(&buf, "done", func() error { return nil })).To(Succeed())
			Expect(buf.String()).To(ContainSubstring(cliui.SuccessMark))
		})
	})

	Describe("FormatDuration", func() {
		It("uses milliseconds under a second", func() {
			Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
		})

		It("uses seconds otherwise", func() {
			Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
		})
	})

	Describe("Mask", func() {
		It("keeps the last four characters", func() {
			Expect(cliui.Mask("sk-abcdef1234")).To(Equal("****1234"))
		})

		It("fully masks short secrets", func() {
			Expect(cliui.Mask("abc")).To(Equal("****"))
		})
	})

	Describe("Severity", func() {
		It("passes unknown severities through", func() {
			Expect(cliui.Severity("fatal")).To(Equal("fatal"))
		})

		It("keeps the label text", func() {
			Expect(cliui.Severity("warning")).To(ContainSubstring("warning"))
		})
	})

	Describe("RenderMarkdown", func() {
		It("renders headings", func() {
			out, err := cliui.RenderMarkdown("# Review\n\nLooks good.")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("Review"))
			Expect(out).To(ContainSubstring("Looks good."))
		})
	})
})
