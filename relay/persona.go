package relay

import (
	"fmt"
	"strings"
	"text/template"
)

// DefaultPersona is the system instruction sent ahead of every chat.
const DefaultPersona = `You are Quill, an expert pair programmer built into a code editor.
{{- if .Language}}
The user is working in {{.Language}}. Prefer {{.Language}} in examples and answers.
{{- end}}
Be concise. When you produce code, return it in a single fenced code block with a language tag.
Do not invent APIs. Say so when you are unsure.`

type personaData struct {
	Language string
}

type persona struct {
	tmpl *template.Template
}

func newPersona(text string) (*persona, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultPersona
	}

	tmpl, err := template.New("persona").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing persona template: %w", err)
	}
	return &persona{tmpl: tmpl}, nil
}

func (p *persona) render(language string) (string, error) {
	var b strings.Builder
	if err := p.tmpl.Execute(&b, personaData{Language: strings.TrimSpace(language)}); err != nil {
		return "", fmt.Errorf("rendering persona: %w", err)
	}
	return b.String(), nil
}
