package ai

import (
	"fmt"
	"os"
	"strings"
)

// promptFields are the placeholder names recognized inside a rewrite
// template. Anything else stays literal.
var promptFields = []string{
	"titulo",
	"conteudo",
	"fonte",
	"url",
	"categoria",
	"indice",
}

// Template is a rewrite prompt template with safe substitution: every
// brace in the source is treated as literal except recognized
// {{name}} placeholders.
type Template struct {
	text string
}

// LoadTemplate reads a template file.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt template: %w", err)
	}
	return &Template{text: string(data)}, nil
}

// NewTemplate wraps raw template text.
func NewTemplate(text string) *Template {
	return &Template{text: text}
}

// Render substitutes recognized placeholders with the given fields.
// Missing fields resolve to empty strings; unrecognized placeholders
// and stray braces pass through untouched.
func (t *Template) Render(fields map[string]string) string {
	out := t.text
	for _, name := range promptFields {
		out = strings.ReplaceAll(out, "{{"+name+"}}", fields[name])
	}
	return out
}
