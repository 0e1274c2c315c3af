package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"pressbot/internal/model"
)

// systemRules is the fixed preface prepended to every rewrite request.
const systemRules = `Você é um redator de notícias em português do Brasil.
Reescreva cada artigo fornecido com texto original, factual e otimizado para SEO.
Nunca copie frases literais da fonte. Nunca inclua chamadas para ação.
Responda SOMENTE com um objeto JSON no formato:
{"resultados": [{"titulo_final": "...", "conteudo_final": "<p>...</p>",
"meta_description": "...", "focus_keyphrase": "...", "tags_sugeridas": ["..."],
"yoast_meta": {"...": "..."}, "slug": "...", "related_keyphrases": ["..."],
"categorias": [{"nome": "...", "grupo": "...", "evidence": "..."}]}]}
Se um artigo não puder ser reescrito, devolva {"erro": "motivo"} naquela posição.
`

// Generator is the single-call generation contract the orchestrator
// consumes; satisfied by *Client.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, TokenInfo, error)
	LastUsedSuffix() string
}

// UsageSink receives token accounting rows; satisfied by the token tracker.
type UsageSink interface {
	Log(rec model.TokenUsage)
}

// Orchestrator builds prompts, submits batches, and resolves the
// response into per-slot rewrites with a single-item fallback.
type Orchestrator struct {
	gen      Generator
	template *Template
	usage    UsageSink
	log      *slog.Logger
	modelID  string
	debugDir string
}

// NewOrchestrator wires the batch rewrite stage.
func NewOrchestrator(gen Generator, template *Template, usage UsageSink, log *slog.Logger, modelID, debugDir string) *Orchestrator {
	return &Orchestrator{
		gen:      gen,
		template: template,
		usage:    usage,
		log:      log,
		modelID:  modelID,
		debugDir: debugDir,
	}
}

// RewriteBatch submits all articles in one model call. The returned
// slice always has len(articles) entries; nil entries mean the slot
// should be requeued. A whole-batch failure falls back to per-item
// rewrites.
func (o *Orchestrator) RewriteBatch(ctx context.Context, articles []model.Article) []*model.Rewrite {
	if len(articles) == 0 {
		return nil
	}

	prompt := o.buildPrompt(articles)
	raw, info, err := o.gen.Generate(ctx, prompt, Options{ResponseMIMEType: "application/json"})
	o.logUsage(info, err == nil, err, articles)

	if err != nil {
		o.log.Warn("batch generation failed, falling back to single items",
			"batch_size", len(articles), "error", err)
		return o.rewriteOneByOne(ctx, articles)
	}

	results, err := ParseBatch(raw, len(articles), o.debugDir)
	if err != nil {
		o.log.Warn("batch response unparseable, falling back to single items",
			"batch_size", len(articles), "error", err)
		return o.rewriteOneByOne(ctx, articles)
	}
	return results
}

// RewriteOne processes a single article in its own model call.
func (o *Orchestrator) RewriteOne(ctx context.Context, article model.Article) *model.Rewrite {
	prompt := o.buildPrompt([]model.Article{article})
	raw, info, err := o.gen.Generate(ctx, prompt, Options{ResponseMIMEType: "application/json"})
	o.logUsage(info, err == nil, err, []model.Article{article})
	if err != nil {
		o.log.Warn("single rewrite failed", "url", article.SourceURL, "error", err)
		return nil
	}

	results, err := ParseBatch(raw, 1, o.debugDir)
	if err != nil {
		o.log.Warn("single rewrite unparseable", "url", article.SourceURL, "error", err)
		return &model.Rewrite{Malformed: raw}
	}
	return results[0]
}

func (o *Orchestrator) rewriteOneByOne(ctx context.Context, articles []model.Article) []*model.Rewrite {
	results := make([]*model.Rewrite, len(articles))
	for i, article := range articles {
		if ctx.Err() != nil {
			return results
		}
		results[i] = o.RewriteOne(ctx, article)
	}
	return results
}

func (o *Orchestrator) buildPrompt(articles []model.Article) string {
	out := systemRules + "\n"
	for i, article := range articles {
		out += fmt.Sprintf("\n=== ARTIGO %d ===\n", i+1)
		out += o.template.Render(map[string]string{
			"titulo":    article.Title,
			"conteudo":  article.Content,
			"fonte":     article.SourceName,
			"url":       article.SourceURL,
			"categoria": "",
			"indice":    strconv.Itoa(i + 1),
		})
		out += "\n"
	}
	return out
}

func (o *Orchestrator) logUsage(info TokenInfo, success bool, err error, articles []model.Article) {
	if o.usage == nil {
		return
	}
	rec := model.TokenUsage{
		API:              "gemini",
		Model:            o.modelID,
		KeySuffix:        o.gen.LastUsedSuffix(),
		PromptTokens:     info.PromptTokens,
		CompletionTokens: info.CompletionTokens,
		Success:          success,
		Metadata:         map[string]any{"batch_size": len(articles)},
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if len(articles) == 1 {
		rec.SourceURL = articles[0].SourceURL
		rec.ArticleTitle = articles[0].Title
	}
	o.usage.Log(rec)
}
