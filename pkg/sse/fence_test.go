package sse

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ExtractFencedCode", func() {
	DescribeTable("fenced input",
		func(input, expected string) {
			Expect(ExtractFencedCode(input)).To(Equal(expected))
		},
		Entry("with a language tag", "```ts\nHello\n```", "Hello"),
		Entry("without a language tag", "```\nx := 1\n```", "x := 1"),
		Entry("with a multi-line body", "```go\nfunc a() {\n\treturn\n}\n```", "func a() {\n\treturn\n}"),
		Entry("with surrounding whitespace", "\n  ```py\nprint(1)\n```\n", "print(1)"),
		Entry("with a dotted tag", "```c++\nint x;\n```", "int x;"),
	)

	DescribeTable("unfenced input is returned unchanged",
		func(input string) {
			Expect(ExtractFencedCode(input)).To(Equal(input))
		},
		Entry("plain text", "Hello"),
		Entry("empty", ""),
		Entry("prose around a fence", "Here you go:\n```ts\nHello\n```"),
		Entry("unterminated fence", "```ts\nHello\n"),
		Entry("inline fence", "```Hello```"),
		Entry("two fenced blocks", "```go\na := 1\n```\n\nThen:\n\n```go\nb := 2\n```"),
		Entry("two adjacent blocks", "```go\na := 1\n```\n```go\nb := 2\n```"),
	)
})
