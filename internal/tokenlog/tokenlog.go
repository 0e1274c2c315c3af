// Package tokenlog records per-call LLM token usage and a rolling summary.
package tokenlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pressbot/internal/model"
)

const summaryFile = "token_stats.json"

// ModelStats aggregates usage per (api, model) pair.
type ModelStats struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	Requests         int    `json:"requests"`
	Successes        int    `json:"successes"`
	Failures         int    `json:"failures"`
	LastUpdated      string `json:"last_updated"`
}

// Summary is the persisted shape of token_stats.json: api → model → stats.
type Summary map[string]map[string]*ModelStats

// Tracker appends one JSON line per record to a day-scoped file and
// keeps the cumulative summary current. Logging is best-effort: a
// write failure never propagates to the caller.
type Tracker struct {
	mu  sync.Mutex
	dir string
	log *slog.Logger
	now func() time.Time
}

// New creates a tracker writing under dir.
func New(dir string, log *slog.Logger) *Tracker {
	return &Tracker{dir: dir, log: log, now: time.Now}
}

// Log appends the record and updates the summary.
func (t *Tracker) Log(rec model.TokenUsage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = t.now().UTC()
	}
	if rec.TotalTokens == 0 {
		rec.TotalTokens = rec.PromptTokens + rec.CompletionTokens
	}

	if err := t.appendLine(rec); err != nil {
		t.log.Warn("token log append failed", "error", err)
		return
	}
	if err := t.updateSummary(rec); err != nil {
		t.log.Warn("token summary update failed", "error", err)
	}
}

func (t *Tracker) appendLine(rec model.TokenUsage) error {
	if err := os.MkdirAll(t.dir, 0o750); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	name := fmt.Sprintf("tokens_%s.jsonl", rec.Timestamp.Format("2006-01-02"))
	f, err := os.OpenFile(filepath.Join(t.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open day log: %w", err)
	}
	defer func() { _ = f.Close() }()

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// updateSummary rewrites token_stats.json through a temp file + rename
// so readers never observe a partial write.
func (t *Tracker) updateSummary(rec model.TokenUsage) error {
	summary, err := t.ReadSummary()
	if err != nil {
		summary = Summary{}
	}

	byModel, ok := summary[rec.API]
	if !ok {
		byModel = map[string]*ModelStats{}
		summary[rec.API] = byModel
	}
	stats, ok := byModel[rec.Model]
	if !ok {
		stats = &ModelStats{}
		byModel[rec.Model] = stats
	}

	stats.PromptTokens += rec.PromptTokens
	stats.CompletionTokens += rec.CompletionTokens
	stats.TotalTokens += rec.TotalTokens
	stats.Requests++
	if rec.Success {
		stats.Successes++
	} else {
		stats.Failures++
	}
	stats.LastUpdated = rec.Timestamp.Format(time.RFC3339)

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	tmp, err := os.CreateTemp(t.dir, summaryFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp summary: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp summary: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(t.dir, summaryFile)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace summary: %w", err)
	}
	return nil
}

// ReadSummary loads the current cumulative summary.
func (t *Tracker) ReadSummary() (Summary, error) {
	data, err := os.ReadFile(filepath.Join(t.dir, summaryFile))
	if err != nil {
		return nil, err
	}
	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("parse summary: %w", err)
	}
	return summary, nil
}
