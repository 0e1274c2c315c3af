// Package ai wraps the Gemini generation API behind the key pool and
// rate limiter, and orchestrates batch article rewrites.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"pressbot/internal/keypool"
	"pressbot/internal/ratelimit"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// APIError carries the provider status for non-retriable API failures.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini api error %d %s: %s", e.StatusCode, e.Status, e.Message)
}

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenInfo reports provider token accounting for one call.
type TokenInfo struct {
	PromptTokens     int
	CompletionTokens int
}

// Options configures one generation request.
type Options struct {
	ResponseMIMEType string
	Temperature      *float64
}

// Client performs single generation requests against Gemini, rotating
// keys on quota failures. There is no upper bound on attempts: the
// pool eventually yields a ready slot.
type Client struct {
	http        HTTPClient
	pool        *keypool.Pool
	limiter     *ratelimit.Limiter
	log         *slog.Logger
	baseURL     string
	model       string
	backoffBase time.Duration
	backoffMax  time.Duration

	mu          sync.Mutex
	lastUsedKey string

	sleep func(ctx context.Context, d time.Duration) error
}

// ClientConfig bundles the client dependencies.
type ClientConfig struct {
	HTTP        HTTPClient
	Pool        *keypool.Pool
	Limiter     *ratelimit.Limiter
	Log         *slog.Logger
	Model       string
	BaseURL     string
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// NewClient builds a generation client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	backoffBase := cfg.BackoffBase
	if backoffBase <= 0 {
		backoffBase = 20 * time.Second
	}
	backoffMax := cfg.BackoffMax
	if backoffMax <= 0 {
		backoffMax = 300 * time.Second
	}
	return &Client{
		http:        httpClient,
		pool:        cfg.Pool,
		limiter:     cfg.Limiter,
		log:         cfg.Log,
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       cfg.Model,
		backoffBase: backoffBase,
		backoffMax:  backoffMax,
		sleep:       sleepCtx,
	}
}

// LastUsedSuffix returns the last four characters of the most recently
// used key, for token accounting.
func (c *Client) LastUsedSuffix() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.lastUsedKey) <= 4 {
		return c.lastUsedKey
	}
	return c.lastUsedKey[len(c.lastUsedKey)-4:]
}

// Generate issues one generation request, retrying across the key pool
// on quota and transient errors.
func (c *Client) Generate(ctx context.Context, prompt string, opts Options) (string, TokenInfo, error) {
	backoff := c.backoffBase

	for {
		slot, err := c.pool.NextReady(ctx)
		if err != nil {
			return "", TokenInfo{}, fmt.Errorf("acquire key: %w", err)
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return "", TokenInfo{}, fmt.Errorf("rate limit wait: %w", err)
		}

		c.mu.Lock()
		c.lastUsedKey = slot.Key()
		c.mu.Unlock()

		text, info, err := c.call(ctx, slot.Key(), prompt, opts)
		if err == nil {
			return strings.TrimSpace(text), info, nil
		}
		if ctx.Err() != nil {
			return "", TokenInfo{}, ctx.Err()
		}

		var apiErr *APIError
		switch {
		case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests:
			c.pool.Penalize(slot, keypool.DefaultCooldown)
			c.log.Warn("quota exhausted, rotating key",
				"key_suffix", slot.Suffix(), "backoff", backoff)
			if err := c.sleep(ctx, backoff); err != nil {
				return "", TokenInfo{}, err
			}
			backoff = min(backoff*2, c.backoffMax)

		case errors.As(err, &apiErr) && isRetriableStatus(apiErr.StatusCode):
			c.pool.Penalize(slot, 10*time.Second)
			c.log.Warn("transient api error, retrying",
				"status", apiErr.StatusCode, "key_suffix", slot.Suffix())

		case errors.As(err, &apiErr):
			return "", TokenInfo{}, err

		default:
			// Network failures and anything unclassified: sideline the
			// key briefly and keep going.
			c.pool.Penalize(slot, 60*time.Second)
			c.log.Warn("generation failed, retrying",
				"key_suffix", slot.Suffix(), "error", err)
		}
	}
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMIMEType string   `json:"responseMimeType,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) call(ctx context.Context, key, prompt string, opts Options) (string, TokenInfo, error) {
	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	}
	if opts.ResponseMIMEType != "" || opts.Temperature != nil {
		reqBody.GenerationConfig = &generationConfig{
			ResponseMIMEType: opts.ResponseMIMEType,
			Temperature:      opts.Temperature,
		}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", TokenInfo{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", TokenInfo{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", key)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", TokenInfo{}, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return "", TokenInfo{}, fmt.Errorf("read response: %w", err)
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", TokenInfo{}, &APIError{StatusCode: resp.StatusCode, Status: resp.Status}
		}
		return "", TokenInfo{}, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Status: resp.Status}
		if parsed.Error != nil {
			apiErr.Status = parsed.Error.Status
			apiErr.Message = parsed.Error.Message
		}
		return "", TokenInfo{}, apiErr
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", TokenInfo{}, fmt.Errorf("empty response from model")
	}

	var text strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	info := TokenInfo{
		PromptTokens:     parsed.UsageMetadata.PromptTokenCount,
		CompletionTokens: parsed.UsageMetadata.CandidatesTokenCount,
	}
	return text.String(), info, nil
}

func isRetriableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return true
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
