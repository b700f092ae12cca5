package sse

import (
	"regexp"
	"strings"
)

// fencedBlock matches text wrapped in a single fenced code block: three
// backticks with an optional language tag, a newline, the body, a newline and
// the closing backticks.
var fencedBlock = regexp.MustCompile("(?s)^```[^\\n`]*\\n(.*)\\n```$")

// ExtractFencedCode returns the body of s when s is wrapped in a single
// fenced code block, and s unchanged otherwise. Surrounding whitespace outside
// the fence is ignored. A body holding a fence line of its own means s is
// several blocks, not one wrapper.
func ExtractFencedCode(s string) string {
	m := fencedBlock.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return s
	}
	body := m[1]
	if strings.HasPrefix(body, "```") || strings.Contains(body, "\n```") {
		return s
	}
	return body
}
