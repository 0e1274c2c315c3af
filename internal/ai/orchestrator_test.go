package ai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"pressbot/internal/model"
)

type fakeGenerator struct {
	responses []string
	errs      []error
	prompts   []string
	calls     int
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, _ Options) (string, TokenInfo, error) {
	f.prompts = append(f.prompts, prompt)
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var resp string
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	return resp, TokenInfo{PromptTokens: 100, CompletionTokens: 50}, err
}

func (f *fakeGenerator) LastUsedSuffix() string { return "AAAA" }

type recordingSink struct {
	records []model.TokenUsage
}

func (r *recordingSink) Log(rec model.TokenUsage) { r.records = append(r.records, rec) }

func testArticles(n int) []model.Article {
	var articles []model.Article
	for i := 0; i < n; i++ {
		articles = append(articles, model.Article{
			Title:      fmt.Sprintf("Article %d", i+1),
			Content:    "<p>body</p>",
			SourceName: "ScreenRant",
			SourceURL:  fmt.Sprintf("https://screenrant.com/a-%d/", i+1),
		})
	}
	return articles
}

func newTestOrchestrator(gen Generator, sink UsageSink) *Orchestrator {
	return NewOrchestrator(
		gen,
		NewTemplate("TÍTULO: {{titulo}}\nCONTEÚDO: {{conteudo}}\nFONTE: {{fonte}} {{url}}"),
		sink,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		"gemini-2.5-flash-lite",
		"",
	)
}

func TestRewriteBatchSuccess(t *testing.T) {
	second := strings.ReplaceAll(validResult, "nova série", "novo filme")
	gen := &fakeGenerator{responses: []string{`{"resultados": [` + validResult + `,` + second + `]}`}}
	sink := &recordingSink{}
	o := newTestOrchestrator(gen, sink)

	results := o.RewriteBatch(context.Background(), testArticles(2))

	if len(results) != 2 || results[0] == nil || results[1] == nil {
		t.Fatalf("results = %+v", results)
	}
	if gen.calls != 1 {
		t.Errorf("calls = %d, want single batch call", gen.calls)
	}

	prompt := gen.prompts[0]
	if !strings.Contains(prompt, "=== ARTIGO 1 ===") || !strings.Contains(prompt, "=== ARTIGO 2 ===") {
		t.Error("prompt missing ordered article headers")
	}
	if !strings.Contains(prompt, "TÍTULO: Article 1") {
		t.Error("prompt missing template substitution")
	}

	if len(sink.records) != 1 {
		t.Fatalf("usage records = %d, want 1", len(sink.records))
	}
	rec := sink.records[0]
	if !rec.Success || rec.PromptTokens != 100 || rec.CompletionTokens != 50 {
		t.Errorf("usage record = %+v", rec)
	}
}

func TestRewriteBatchFallsBackPerItem(t *testing.T) {
	gen := &fakeGenerator{
		responses: []string{
			"", // batch call fails
			`{"resultados": [` + validResult + `]}`,
			`{"resultados": [{"erro": "sem conteúdo"}]}`,
		},
		errs: []error{fmt.Errorf("boom"), nil, nil},
	}
	o := newTestOrchestrator(gen, &recordingSink{})

	results := o.RewriteBatch(context.Background(), testArticles(2))

	if gen.calls != 3 {
		t.Fatalf("calls = %d, want batch + 2 fallbacks", gen.calls)
	}
	if results[0] == nil || results[0].Valid == nil {
		t.Errorf("results[0] = %+v", results[0])
	}
	if results[1] == nil || results[1].Rejected != "sem conteúdo" {
		t.Errorf("results[1] = %+v", results[1])
	}
}

func TestRewriteBatchParseFailureFallsBack(t *testing.T) {
	gen := &fakeGenerator{
		responses: []string{
			"no json here at all",
			`{"resultados": [` + validResult + `]}`,
			`{"resultados": [` + validResult + `]}`,
		},
	}
	o := newTestOrchestrator(gen, &recordingSink{})

	results := o.RewriteBatch(context.Background(), testArticles(2))

	if gen.calls != 3 {
		t.Fatalf("calls = %d, want batch + 2 fallbacks", gen.calls)
	}
	for i, r := range results {
		if r == nil || r.Valid == nil {
			t.Errorf("results[%d] = %+v", i, r)
		}
	}
}

func TestRewriteBatchCountMismatchYieldsNils(t *testing.T) {
	gen := &fakeGenerator{responses: []string{`{"resultados": [` + validResult + `]}`}}
	o := newTestOrchestrator(gen, &recordingSink{})

	results := o.RewriteBatch(context.Background(), testArticles(3))

	if gen.calls != 1 {
		t.Fatalf("calls = %d, want 1 (mismatch is not a parse failure)", gen.calls)
	}
	for i, r := range results {
		if r != nil {
			t.Errorf("results[%d] = %+v, want nil", i, r)
		}
	}
}

func TestRewriteOneRecordsSourceURL(t *testing.T) {
	gen := &fakeGenerator{responses: []string{`{"resultados": [` + validResult + `]}`}}
	sink := &recordingSink{}
	o := newTestOrchestrator(gen, sink)

	result := o.RewriteOne(context.Background(), testArticles(1)[0])
	if result == nil || result.Valid == nil {
		t.Fatalf("result = %+v", result)
	}
	if sink.records[0].SourceURL != "https://screenrant.com/a-1/" {
		t.Errorf("usage source url = %q", sink.records[0].SourceURL)
	}
}
