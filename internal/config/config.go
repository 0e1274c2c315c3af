// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	WordPressURL      string
	WordPressUser     string
	WordPressPassword string

	GeminiKeys []string
	ModelID    string

	AIMinInterval time.Duration
	AIJitterMax   time.Duration
	BackoffBase   time.Duration
	BackoffMax    time.Duration

	CheckInterval       time.Duration
	MaxPerCycle         int
	MaxPerFeedCycle     int
	ArticleSleep        time.Duration
	BetweenBatchDelay   time.Duration
	BetweenPublishDelay time.Duration
	FeedStagger         time.Duration

	DatabasePath       string
	TokenLogDir        string
	DebugDir           string
	PromptTemplatePath string
	LinkMapPath        string
	PublisherLogoURL   string
	LogLevel           string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	wpURL := os.Getenv("WORDPRESS_URL")
	if wpURL == "" {
		return nil, fmt.Errorf("WORDPRESS_URL is required")
	}
	wpUser := os.Getenv("WORDPRESS_USER")
	if wpUser == "" {
		return nil, fmt.Errorf("WORDPRESS_USER is required")
	}
	wpPass := os.Getenv("WORDPRESS_PASSWORD")
	if wpPass == "" {
		return nil, fmt.Errorf("WORDPRESS_PASSWORD is required")
	}

	keys := geminiKeys(os.Environ())
	if len(keys) == 0 {
		return nil, fmt.Errorf("no Gemini API keys found: set at least one *GEMINI* variable with an AIza… value")
	}

	cfg := &Config{
		WordPressURL:      strings.TrimRight(wpURL, "/"),
		WordPressUser:     wpUser,
		WordPressPassword: wpPass,
		GeminiKeys:        keys,

		ModelID: envOr("GEMINI_MODEL_ID", "gemini-2.5-flash-lite"),

		AIMinInterval: envSeconds("AI_MIN_INTERVAL_S", 60),
		AIJitterMax:   envSeconds("AI_JITTER_MAX_S", 5),
		BackoffBase:   envSeconds("BACKOFF_BASE_S", 20),
		BackoffMax:    envSeconds("BACKOFF_MAX_S", 300),

		CheckInterval:       time.Duration(envInt("CHECK_INTERVAL_MINUTES", 15)) * time.Minute,
		MaxPerCycle:         envInt("MAX_PER_CYCLE", 10),
		MaxPerFeedCycle:     envInt("MAX_PER_FEED_CYCLE", 3),
		ArticleSleep:        envSeconds("ARTICLE_SLEEP_S", 120),
		BetweenBatchDelay:   envSeconds("BETWEEN_BATCH_DELAY_S", 30),
		BetweenPublishDelay: envSeconds("BETWEEN_PUBLISH_DELAY_S", 30),
		FeedStagger:         envSeconds("FEED_STAGGER_S", 45),

		DatabasePath:       envOr("DATABASE_PATH", "data/app.db"),
		TokenLogDir:        envOr("TOKEN_LOG_DIR", "logs/tokens"),
		DebugDir:           envOr("DEBUG_DIR", "debug"),
		PromptTemplatePath: envOr("PROMPT_TEMPLATE_PATH", "prompts/rewrite.txt"),
		LinkMapPath:        envOr("LINK_MAP_PATH", "data/link_map.json"),
		PublisherLogoURL:   os.Getenv("PUBLISHER_LOGO_URL"),
		LogLevel:           envOr("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// geminiKeys collects API keys from every environment variable whose name
// contains "GEMINI" and whose value looks like a Google API key. Keys are
// admitted in sorted-name order so the pool rotation is deterministic.
func geminiKeys(environ []string) []string {
	byName := map[string]string{}
	var names []string
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if !strings.Contains(strings.ToUpper(name), "GEMINI") {
			continue
		}
		if !strings.HasPrefix(value, "AIza") {
			continue
		}
		if _, dup := byName[name]; !dup {
			names = append(names, name)
		}
		byName[name] = value
	}
	sort.Strings(names)

	var keys []string
	for _, name := range names {
		keys = append(keys, byName[name])
	}
	return keys
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envSeconds(name string, fallback int) time.Duration {
	return time.Duration(envInt(name, fallback)) * time.Second
}
