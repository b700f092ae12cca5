package assist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/papercomputeco/quill/pkg/llm"
	"github.com/papercomputeco/quill/pkg/sse"
)

// Completer sends a non-streaming chat request and returns the reply text.
// *gateway.Client implements it.
type Completer interface {
	Complete(ctx context.Context, messages []llm.UpstreamMessage) (string, error)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks in has what task t needs.
func Validate(t Task, in Input) error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("invalid %s input: %w", t, err)
	}
	return nil
}

// Run executes task t against c and returns the typed result: *LintResult,
// *ReviewResult, *TestsResult, *RefactorResult or *CompletionResult.
//
// Gateway errors are returned unchanged so callers can map their status.
// A reply that does not decode is a *ParseError.
func Run(ctx context.Context, c Completer, t Task, in Input) (any, error) {
	if err := Validate(t, in); err != nil {
		return nil, err
	}

	msgs, err := Messages(t, in)
	if err != nil {
		return nil, err
	}

	reply, err := c.Complete(ctx, msgs)
	if err != nil {
		return nil, err
	}

	out, err := newResult(t)
	if err != nil {
		return nil, err
	}
	if err := Decode(t, reply, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Decode extracts the outermost JSON object from a model reply into out.
// Replies wrapped in a fenced code block are unwrapped first.
func Decode(t Task, reply string, out any) error {
	raw, err := ExtractJSON(reply)
	if err != nil {
		return &ParseError{Task: t, Raw: reply, Err: err}
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return &ParseError{Task: t, Raw: reply, Err: err}
	}
	return nil
}

var errNoObject = errors.New("no JSON object in reply")

// ExtractJSON returns the span from the first '{' to the last '}' of the
// fence-stripped reply.
func ExtractJSON(reply string) (string, error) {
	s := sse.ExtractFencedCode(reply)

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return "", errNoObject
	}
	return s[start : end+1], nil
}
