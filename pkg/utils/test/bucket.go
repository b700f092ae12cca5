package testutils

import (
	"fmt"

	"github.com/papercomputeco/quill/pkg/llm"
	"github.com/papercomputeco/quill/pkg/merkle"
)

// NewTestBucket creates a simple bucket for testing
func NewTestBucket(role, text string) merkle.Bucket {
	return merkle.MessageBucket(llm.NewTextMessage(role, text), "test-model", "go")
}

// Frame renders a single streaming data frame carrying content.
func Frame(content string) string {
	return fmt.Sprintf("data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n", content)
}

// DoneFrame is the stream terminator.
const DoneFrame = "data: [DONE]\n"
