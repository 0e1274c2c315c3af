package tokenlog

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pressbot/internal/model"
)

func newTestTracker(t *testing.T) (*Tracker, string) {
	t.Helper()
	dir := t.TempDir()
	tr := New(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	tr.now = func() time.Time { return time.Date(2026, 8, 24, 15, 0, 0, 0, time.UTC) }
	return tr, dir
}

func usage(prompt, completion int, success bool) model.TokenUsage {
	return model.TokenUsage{
		API:              "gemini",
		Model:            "gemini-2.5-flash-lite",
		KeySuffix:        "AAAA",
		PromptTokens:     prompt,
		CompletionTokens: completion,
		Success:          success,
	}
}

func TestLogAppendsDayScopedLines(t *testing.T) {
	tr, dir := newTestTracker(t)

	tr.Log(usage(100, 40, true))
	tr.Log(usage(80, 20, false))

	f, err := os.Open(filepath.Join(dir, "tokens_2026-08-24.jsonl"))
	if err != nil {
		t.Fatalf("open day file: %v", err)
	}
	defer f.Close()

	var records []model.TokenUsage
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec model.TokenUsage
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("parse line: %v", err)
		}
		records = append(records, rec)
	}

	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].TotalTokens != 140 {
		t.Errorf("total tokens = %d, want 140", records[0].TotalTokens)
	}
	if records[1].Success {
		t.Error("second record should be a failure")
	}
}

func TestSummaryAggregation(t *testing.T) {
	tr, _ := newTestTracker(t)

	tr.Log(usage(100, 40, true))
	tr.Log(usage(50, 10, true))
	tr.Log(usage(30, 0, false))

	summary, err := tr.ReadSummary()
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}

	stats := summary["gemini"]["gemini-2.5-flash-lite"]
	if stats == nil {
		t.Fatal("missing stats entry")
	}
	if stats.PromptTokens != 180 || stats.CompletionTokens != 50 || stats.TotalTokens != 230 {
		t.Errorf("token totals = %d/%d/%d", stats.PromptTokens, stats.CompletionTokens, stats.TotalTokens)
	}
	if stats.Requests != 3 || stats.Successes != 2 || stats.Failures != 1 {
		t.Errorf("counters = %d/%d/%d", stats.Requests, stats.Successes, stats.Failures)
	}
	if stats.LastUpdated == "" {
		t.Error("LastUpdated not set")
	}
}

func TestLogNeverPanicsOnBadDir(t *testing.T) {
	tr := New(string([]byte{0}), slog.New(slog.NewTextHandler(io.Discard, nil)))
	tr.now = time.Now
	tr.Log(usage(1, 1, true)) // must not panic or propagate
}

func TestSummarySurvivesCorruptFile(t *testing.T) {
	tr, dir := newTestTracker(t)

	if err := os.WriteFile(filepath.Join(dir, "token_stats.json"), []byte("{broken"), 0o640); err != nil {
		t.Fatalf("seed corrupt summary: %v", err)
	}

	tr.Log(usage(10, 5, true))

	summary, err := tr.ReadSummary()
	if err != nil {
		t.Fatalf("read summary after corruption: %v", err)
	}
	if summary["gemini"]["gemini-2.5-flash-lite"].Requests != 1 {
		t.Error("summary not rebuilt after corruption")
	}
}
