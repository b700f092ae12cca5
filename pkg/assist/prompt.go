package assist

import (
	"fmt"
	"strings"

	"github.com/papercomputeco/quill/pkg/llm"
)

const jsonOnly = "Respond with a single JSON object and nothing else. Do not wrap it in markdown."

var systemPrompts = map[Task]string{
	TaskLint: `You are a meticulous static analyzer. Report bugs, style problems and risky constructs.
Return {"issues":[{"line":1,"column":1,"severity":"error|warning|info","message":"...","rule":"..."}]}.
Return {"issues":[]} when the code is clean.`,

	TaskReview: `You are a senior engineer doing code review. Judge correctness, readability and design.
Return {"summary":"...","score":0,"comments":[{"line":1,"category":"...","comment":"...","suggestion":"..."}]}.
score is an integer from 0 (unusable) to 10 (excellent).`,

	TaskTests: `You write thorough unit tests using the idiomatic test framework for the language.
Return {"framework":"...","code":"..."} where code is a complete, runnable test file.`,

	TaskRefactor: `You refactor code without changing its behavior.
Return {"code":"...","explanation":"..."} where code is the full rewritten source.`,

	TaskComplete: `You are an inline code completion engine. Continue the code at the cursor.
Return {"completion":"..."} containing only the text to insert at the cursor.`,
}

// Messages builds the upstream conversation for a task.
func Messages(t Task, in Input) ([]llm.UpstreamMessage, error) {
	system, ok := systemPrompts[t]
	if !ok {
		return nil, &UnknownTaskError{Name: string(t)}
	}

	return []llm.UpstreamMessage{
		llm.NewTextMessage(llm.RoleSystem, system+"\n"+jsonOnly).ToUpstream(""),
		llm.NewTextMessage(llm.RoleUser, userPrompt(t, in)).ToUpstream(""),
	}, nil
}

func userPrompt(t Task, in Input) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Language: %s\n", in.Language)
	if in.Filename != "" {
		fmt.Fprintf(&b, "File: %s\n", in.Filename)
	}
	if in.Instruction != "" {
		fmt.Fprintf(&b, "Instruction: %s\n", in.Instruction)
	}

	if t == TaskComplete && in.Prefix != "" {
		fmt.Fprintf(&b, "\nCode before the cursor:\n%s\n", fence(in.Language, in.Prefix))
		if in.Suffix != "" {
			fmt.Fprintf(&b, "\nCode after the cursor:\n%s\n", fence(in.Language, in.Suffix))
		}
		return b.String()
	}

	fmt.Fprintf(&b, "\n%s\n", fence(in.Language, in.Code))
	return b.String()
}

func fence(language, code string) string {
	return "```" + language + "\n" + code + "\n```"
}
