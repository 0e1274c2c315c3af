package ai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"pressbot/internal/keypool"
	"pressbot/internal/ratelimit"
)

type scriptedResponse struct {
	status int
	body   string
	err    error
}

type scriptedTransport struct {
	responses []scriptedResponse
	keys      []string
	calls     int
}

func (s *scriptedTransport) Do(req *http.Request) (*http.Response, error) {
	s.keys = append(s.keys, req.Header.Get("x-goog-api-key"))
	if s.calls >= len(s.responses) {
		return nil, fmt.Errorf("unexpected call %d", s.calls)
	}
	r := s.responses[s.calls]
	s.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &http.Response{
		StatusCode: r.status,
		Status:     http.StatusText(r.status),
		Body:       io.NopCloser(strings.NewReader(r.body)),
	}, nil
}

func successBody(text string, promptTokens, completionTokens int) string {
	return fmt.Sprintf(`{
		"candidates": [{"content": {"parts": [{"text": %q}]}}],
		"usageMetadata": {"promptTokenCount": %d, "candidatesTokenCount": %d}
	}`, text, promptTokens, completionTokens)
}

func newTestClient(t *testing.T, transport *scriptedTransport, keys ...string) (*Client, *keypool.Pool) {
	t.Helper()
	pool := keypool.New(keys)
	c := NewClient(ClientConfig{
		HTTP:    transport,
		Pool:    pool,
		Limiter: ratelimit.New(time.Nanosecond, 0),
		Log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Model:   "gemini-2.5-flash-lite",
	})
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c, pool
}

func TestGenerateSuccess(t *testing.T) {
	transport := &scriptedTransport{responses: []scriptedResponse{
		{status: 200, body: successBody("  resposta final  ", 120, 45)},
	}}
	c, _ := newTestClient(t, transport, "AIzaAAAA")

	text, info, err := c.Generate(context.Background(), "prompt", Options{ResponseMIMEType: "application/json"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "resposta final" {
		t.Errorf("text = %q, want trimmed response", text)
	}
	if info.PromptTokens != 120 || info.CompletionTokens != 45 {
		t.Errorf("token info = %+v", info)
	}
	if c.LastUsedSuffix() != "AAAA" {
		t.Errorf("last used suffix = %q", c.LastUsedSuffix())
	}
}

func TestGenerateQuotaRotatesKey(t *testing.T) {
	quota := `{"error": {"code": 429, "status": "RESOURCE_EXHAUSTED", "message": "quota exceeded"}}`
	transport := &scriptedTransport{responses: []scriptedResponse{
		{status: 429, body: quota},
		{status: 200, body: successBody("ok", 10, 5)},
	}}
	c, _ := newTestClient(t, transport, "AIzaAAAA", "AIzaBBBB")

	text, _, err := c.Generate(context.Background(), "prompt", Options{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "ok" {
		t.Errorf("text = %q", text)
	}
	if transport.keys[0] != "AIzaAAAA" || transport.keys[1] != "AIzaBBBB" {
		t.Errorf("key sequence = %v, want rotation to second key", transport.keys)
	}
	if c.LastUsedSuffix() != "BBBB" {
		t.Errorf("last used suffix = %q", c.LastUsedSuffix())
	}
}

func TestGenerateRetriesTransientStatus(t *testing.T) {
	transport := &scriptedTransport{responses: []scriptedResponse{
		{status: 503, body: `{"error": {"code": 503, "status": "UNAVAILABLE", "message": "overloaded"}}`},
		{status: 200, body: successBody("ok", 1, 1)},
	}}
	c, _ := newTestClient(t, transport, "AIzaAAAA", "AIzaBBBB")

	if _, _, err := c.Generate(context.Background(), "prompt", Options{}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if transport.calls != 2 {
		t.Errorf("calls = %d, want 2", transport.calls)
	}
}

func TestGenerateTerminalAPIError(t *testing.T) {
	transport := &scriptedTransport{responses: []scriptedResponse{
		{status: 400, body: `{"error": {"code": 400, "status": "INVALID_ARGUMENT", "message": "bad request"}}`},
	}}
	c, _ := newTestClient(t, transport, "AIzaAAAA")

	_, _, err := c.Generate(context.Background(), "prompt", Options{})
	if err == nil {
		t.Fatal("expected terminal error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("err type = %T", err)
	}
	if apiErr.StatusCode != 400 || apiErr.Status != "INVALID_ARGUMENT" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestGenerateNetworkErrorRetries(t *testing.T) {
	transport := &scriptedTransport{responses: []scriptedResponse{
		{err: io.ErrUnexpectedEOF},
		{status: 200, body: successBody("ok", 1, 1)},
	}}
	c, _ := newTestClient(t, transport, "AIzaAAAA", "AIzaBBBB")

	if _, _, err := c.Generate(context.Background(), "prompt", Options{}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if transport.calls != 2 {
		t.Errorf("calls = %d, want 2", transport.calls)
	}
}

func TestTemplateRender(t *testing.T) {
	tpl := NewTemplate("Título: {{titulo}}\nFonte: {{fonte}} ({{url}})\nJSON literal: {\"a\": 1}\nDesconhecido: {{nope}}")

	got := tpl.Render(map[string]string{
		"titulo": "Marvel confirma nova série",
		"fonte":  "ScreenRant",
	})

	want := "Título: Marvel confirma nova série\nFonte: ScreenRant ()\nJSON literal: {\"a\": 1}\nDesconhecido: {{nope}}"
	if got != want {
		t.Errorf("Render =\n%q\nwant\n%q", got, want)
	}
}
