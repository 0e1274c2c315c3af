package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("WORDPRESS_URL", "https://blog.example.com/wp-json/wp/v2")
	t.Setenv("WORDPRESS_USER", "editor")
	t.Setenv("WORDPRESS_PASSWORD", "secret")
	t.Setenv("GEMINI_API_KEY", "AIzaTestKey000000000000000000000001")
}

func TestLoadRequiredVars(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{name: "missing wordpress url", unset: "WORDPRESS_URL"},
		{name: "missing wordpress user", unset: "WORDPRESS_USER"},
		{name: "missing wordpress password", unset: "WORDPRESS_PASSWORD"},
		{name: "missing gemini key", unset: "GEMINI_API_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv(tt.unset, "")
			if _, err := Load(); err == nil {
				t.Fatalf("Load() succeeded without %s", tt.unset)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ModelID != "gemini-2.5-flash-lite" {
		t.Errorf("ModelID = %q", cfg.ModelID)
	}
	if cfg.AIMinInterval != 60*time.Second {
		t.Errorf("AIMinInterval = %v", cfg.AIMinInterval)
	}
	if cfg.CheckInterval != 15*time.Minute {
		t.Errorf("CheckInterval = %v", cfg.CheckInterval)
	}
	if cfg.MaxPerCycle != 10 || cfg.MaxPerFeedCycle != 3 {
		t.Errorf("cycle caps = %d, %d", cfg.MaxPerCycle, cfg.MaxPerFeedCycle)
	}
	if cfg.DatabasePath != "data/app.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
}

func TestLoadTrimsTrailingSlash(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("WORDPRESS_URL", "https://blog.example.com/wp-json/wp/v2/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.WordPressURL; got != "https://blog.example.com/wp-json/wp/v2" {
		t.Errorf("WordPressURL = %q", got)
	}
}

func TestGeminiKeys(t *testing.T) {
	tests := []struct {
		name    string
		environ []string
		want    []string
	}{
		{
			name: "sorted name order",
			environ: []string{
				"GEMINI_KEY_B=AIzaBBB",
				"GEMINI_KEY_A=AIzaAAA",
				"MY_GEMINI_EXTRA=AIzaCCC",
			},
			want: []string{"AIzaAAA", "AIzaBBB", "AIzaCCC"},
		},
		{
			name: "rejects non-key values",
			environ: []string{
				"GEMINI_MODEL_ID=gemini-2.5-flash-lite",
				"GEMINI_API_KEY=AIzaOnly",
			},
			want: []string{"AIzaOnly"},
		},
		{
			name: "ignores unrelated variables",
			environ: []string{
				"OPENAI_API_KEY=AIzaLookalike",
				"PATH=/usr/bin",
			},
			want: nil,
		},
		{
			name: "trims whitespace",
			environ: []string{
				"GEMINI_API_KEY=  AIzaPadded  ",
			},
			want: []string{"AIzaPadded"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := geminiKeys(tt.environ)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("geminiKeys mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
