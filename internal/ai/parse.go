package ai

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"pressbot/internal/model"
)

// ParseError marks an unrecoverable model response; the raw text has
// already been dumped for offline debugging.
type ParseError struct {
	Reason   string
	DumpPath string
}

func (e *ParseError) Error() string {
	if e.DumpPath != "" {
		return fmt.Sprintf("parse model response: %s (raw saved to %s)", e.Reason, e.DumpPath)
	}
	return "parse model response: " + e.Reason
}

var (
	curlyQuotes      = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")
	missingCommaExpr = regexp.MustCompile(`\}\s*\{`)
	trailingComma    = regexp.MustCompile(`,\s*([\]\}])`)
)

// batchEnvelope is the required top-level response shape.
type batchEnvelope struct {
	Resultados []json.RawMessage `json:"resultados"`
}

// ParseBatch parses a model response into per-slot rewrites. The
// response must decode to { "resultados": [...] }; a tolerant repair
// pass handles the usual model sloppiness first. On unrecoverable
// failure the raw text is saved under debugDir and a ParseError is
// returned.
func ParseBatch(raw string, want int, debugDir string) ([]*model.Rewrite, error) {
	block := extractJSONBlock(raw)
	if block == "" {
		return nil, dumpAndFail(raw, "no JSON block found", debugDir)
	}

	normalized := normalizeJSON(block)

	envelope, err := decodeEnvelope(normalized)
	if err != nil {
		return nil, dumpAndFail(raw, err.Error(), debugDir)
	}

	if len(envelope.Resultados) != want {
		// Count mismatch resolves every slot to nil so the worker can
		// requeue the whole batch.
		return make([]*model.Rewrite, want), nil
	}

	results := make([]*model.Rewrite, want)
	for i, rawResult := range envelope.Resultados {
		results[i] = parseResult(rawResult)
	}
	return results, nil
}

func decodeEnvelope(text string) (*batchEnvelope, error) {
	trimmed := strings.TrimSpace(text)

	// A bare list wraps as resultados; a bare object without the key
	// wraps as a single-element batch.
	if strings.HasPrefix(trimmed, "[") {
		var list []json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &list); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		return &batchEnvelope{Resultados: list}, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &probe); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}

	if rawList, ok := probe["resultados"]; ok {
		var list []json.RawMessage
		if err := json.Unmarshal(rawList, &list); err != nil {
			return nil, fmt.Errorf("decode resultados: %w", err)
		}
		return &batchEnvelope{Resultados: list}, nil
	}

	return &batchEnvelope{Resultados: []json.RawMessage{json.RawMessage(trimmed)}}, nil
}

// parseResult resolves one slot: a Valid rewrite when all required keys
// are present, Rejected when the model answered with an erro field, and
// nil when the slot is unusable.
func parseResult(raw json.RawMessage) *model.Rewrite {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil
	}

	if rawErr, ok := probe["erro"]; ok {
		var reason string
		if err := json.Unmarshal(rawErr, &reason); err != nil {
			reason = string(rawErr)
		}
		return &model.Rewrite{Rejected: reason}
	}

	for _, key := range []string{"titulo_final", "conteudo_final", "meta_description", "focus_keyphrase", "tags_sugeridas", "yoast_meta"} {
		if _, ok := probe[key]; !ok {
			return nil
		}
	}

	var article model.RewrittenArticle
	if err := json.Unmarshal(raw, &article); err != nil {
		return nil
	}
	if article.TituloFinal == "" || article.ConteudoFinal == "" {
		return nil
	}
	return &model.Rewrite{Valid: &article}
}

// extractJSONBlock returns the largest span containing "resultados",
// falling back to the first {…} or […] span.
func extractJSONBlock(raw string) string {
	raw = strings.TrimPrefix(raw, "\uFEFF")

	// Models often fence JSON in markdown.
	if idx := strings.Index(raw, "```"); idx >= 0 {
		rest := raw[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		if block := spanFrom(rest); block != "" {
			return block
		}
	}

	if idx := strings.Index(raw, `"resultados"`); idx >= 0 {
		if start := strings.LastIndex(raw[:idx], "{"); start >= 0 {
			return balancedSpan(raw[start:])
		}
	}

	return spanFrom(raw)
}

func spanFrom(text string) string {
	objIdx := strings.Index(text, "{")
	listIdx := strings.Index(text, "[")

	start := objIdx
	if start < 0 || (listIdx >= 0 && listIdx < start) {
		start = listIdx
	}
	if start < 0 {
		return ""
	}
	return balancedSpan(text[start:])
}

// balancedSpan returns the prefix of text up to the bracket that closes
// its first character. A truncated response returns the whole text so
// normalization and a decode attempt still run.
func balancedSpan(text string) string {
	if text == "" {
		return ""
	}
	open := text[0]
	var close byte
	switch open {
	case '{':
		close = '}'
	case '[':
		close = ']'
	default:
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == open:
			depth++
		case !inString && ch == close:
			depth--
			if depth == 0 {
				return text[:i+1]
			}
		}
	}
	return text
}

func normalizeJSON(text string) string {
	text = strings.TrimPrefix(text, "\uFEFF")
	text = curlyQuotes.Replace(text)
	text = missingCommaExpr.ReplaceAllString(text, "},{")
	text = trailingComma.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

func dumpAndFail(raw, reason, debugDir string) error {
	perr := &ParseError{Reason: reason}
	if debugDir == "" {
		return perr
	}
	if err := os.MkdirAll(debugDir, 0o750); err != nil {
		return perr
	}
	name := fmt.Sprintf("failed_ai_%d.txt", time.Now().UnixNano())
	path := filepath.Join(debugDir, name)
	if err := os.WriteFile(path, []byte(raw), 0o640); err != nil {
		return perr
	}
	perr.DumpPath = path
	return perr
}
