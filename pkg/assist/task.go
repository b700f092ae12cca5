// Package assist implements the IDE's one-shot code tasks: lint, review, test
// generation, refactor and inline completion. Each task is a prompt sent to
// the chat gateway and a JSON object decoded from the model's reply.
package assist

import (
	"fmt"
	"slices"
)

// Task names one assist operation.
type Task string

const (
	TaskLint     Task = "lint"
	TaskReview   Task = "review"
	TaskTests    Task = "tests"
	TaskRefactor Task = "refactor"
	TaskComplete Task = "complete"
)

// Tasks lists every supported task in display order.
var Tasks = []Task{TaskLint, TaskReview, TaskTests, TaskRefactor, TaskComplete}

// ParseTask returns the Task named s.
func ParseTask(s string) (Task, error) {
	t := Task(s)
	if !slices.Contains(Tasks, t) {
		return "", &UnknownTaskError{Name: s}
	}
	return t, nil
}

// Input is the code context sent with every task.
type Input struct {
	// Code is the source under inspection. Completion may send only
	// Prefix and Suffix instead.
	Code string `json:"code,omitempty" validate:"required_without=Prefix"`

	Language string `json:"language" validate:"required"`
	Filename string `json:"filename,omitempty"`

	// Instruction is free-form guidance, e.g. "extract a helper".
	Instruction string `json:"instruction,omitempty"`

	// Prefix and Suffix surround the cursor for TaskComplete.
	Prefix string `json:"prefix,omitempty"`
	Suffix string `json:"suffix,omitempty"`
}

// Severity of a lint issue.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Issue is one lint finding.
type Issue struct {
	Line     int    `json:"line"`
	Column   int    `json:"column,omitempty"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Rule     string `json:"rule,omitempty"`
}

// LintResult is returned by TaskLint.
type LintResult struct {
	Issues []Issue `json:"issues"`
}

// ReviewComment is one remark in a review.
type ReviewComment struct {
	Line       int    `json:"line,omitempty"`
	Category   string `json:"category,omitempty"`
	Comment    string `json:"comment"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ReviewResult is returned by TaskReview. Score ranges over 0-10.
type ReviewResult struct {
	Summary  string          `json:"summary"`
	Score    int             `json:"score"`
	Comments []ReviewComment `json:"comments"`
}

// TestsResult is returned by TaskTests.
type TestsResult struct {
	Framework string `json:"framework"`
	Code      string `json:"code"`
}

// RefactorResult is returned by TaskRefactor.
type RefactorResult struct {
	Code        string `json:"code"`
	Explanation string `json:"explanation"`
}

// CompletionResult is returned by TaskComplete.
type CompletionResult struct {
	Completion string `json:"completion"`
}

// newResult returns a pointer to the zero result for t.
func newResult(t Task) (any, error) {
	switch t {
	case TaskLint:
		return &LintResult{}, nil
	case TaskReview:
		return &ReviewResult{}, nil
	case TaskTests:
		return &TestsResult{}, nil
	case TaskRefactor:
		return &RefactorResult{}, nil
	case TaskComplete:
		return &CompletionResult{}, nil
	}
	return nil, fmt.Errorf("no result type for task %q", t)
}
