package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"pressbot/internal/extract"
	"pressbot/internal/model"
	"pressbot/internal/queue"
	"pressbot/internal/sanitize"
	"pressbot/internal/storage"
	"pressbot/internal/titles"
	"pressbot/internal/wordpress"
)

const (
	// defaultCategory is applied to every published post.
	defaultCategory = "Notícias"
	// maxUploadedImages bounds per-article media uploads.
	maxUploadedImages = 4
	// maxInternalLinks bounds injected internal links per post.
	maxInternalLinks = 3
	// maxMergedImages bounds source images appended to the content.
	maxMergedImages = 4
)

// Rewriter turns extracted articles into rewrites; satisfied by
// *ai.Orchestrator.
type Rewriter interface {
	RewriteBatch(ctx context.Context, articles []model.Article) []*model.Rewrite
}

// Publisher is the WordPress surface the processor needs; satisfied by
// *wordpress.Client.
type Publisher interface {
	ResolveCategoryNamesToIDs(ctx context.Context, names []string) []int
	EnsureTagIDs(ctx context.Context, names []string) []int
	UploadMediaFromURL(ctx context.Context, imageURL string) (*wordpress.Media, error)
	CreatePost(ctx context.Context, payload map[string]any) (*wordpress.Post, error)
	SanitizePublishedPost(ctx context.Context, postID int) error
}

// ProcessorConfig wires one Processor.
type ProcessorConfig struct {
	Store               storage.Storage
	Pages               *PageFetcher
	Rewriter            Rewriter
	Publisher           Publisher
	Queue               *queue.Queue
	Log                 *slog.Logger
	LinkMap             map[string]string
	ArticleSleep        time.Duration
	BetweenPublishDelay time.Duration
}

// Processor turns queued items into published WordPress posts.
type Processor struct {
	store     storage.Storage
	pages     *PageFetcher
	rewriter  Rewriter
	publisher Publisher
	queue     *queue.Queue
	log       *slog.Logger
	linkMap   map[string]string
	artSleep  time.Duration
	pubDelay  time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

func NewProcessor(cfg ProcessorConfig) *Processor {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		store:     cfg.Store,
		pages:     cfg.Pages,
		rewriter:  cfg.Rewriter,
		publisher: cfg.Publisher,
		queue:     cfg.Queue,
		log:       log,
		linkMap:   cfg.LinkMap,
		artSleep:  cfg.ArticleSleep,
		pubDelay:  cfg.BetweenPublishDelay,
		sleep:     sleepCtx,
	}
}

// unit pairs a queue item with its extracted article.
type unit struct {
	item    queue.Item
	article *model.Article
}

// ProcessBatch runs one batch end to end: extract every item, rewrite
// them in a single model call, and publish the valid results.
func (p *Processor) ProcessBatch(ctx context.Context, items []queue.Item) {
	units := p.prepare(ctx, items)
	if len(units) == 0 {
		return
	}

	articles := make([]model.Article, len(units))
	for i, u := range units {
		articles[i] = *u.article
	}
	rewrites := p.rewriter.RewriteBatch(ctx, articles)

	for i, u := range units {
		if ctx.Err() != nil {
			return
		}
		if i > 0 {
			if err := p.sleep(ctx, p.artSleep); err != nil {
				return
			}
		}
		p.resolve(ctx, u, rewrites[i])
	}
}

// prepare fetches and extracts each item. Items that cannot be
// extracted are failed immediately and excluded from the model call.
func (p *Processor) prepare(ctx context.Context, items []queue.Item) []unit {
	var units []unit
	for _, item := range items {
		if ctx.Err() != nil {
			return units
		}
		if err := p.store.SetStatus(ctx, item.Article.ID, model.StatusProcessing, ""); err != nil {
			p.log.Warn("marking article processing failed", "id", item.Article.ID, "error", err)
		}

		article, err := p.extractItem(ctx, item)
		if err != nil {
			p.fail(ctx, item, err)
			continue
		}
		units = append(units, unit{item: item, article: article})
	}
	return units
}

func (p *Processor) extractItem(ctx context.Context, item queue.Item) (*model.Article, error) {
	pageURL := item.Article.ExternalID
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		return nil, fmt.Errorf("item %d has no usable article URL", item.Article.ID)
	}

	rawHTML, err := p.pages.FetchHTML(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	article, err := extract.Extract(rawHTML, pageURL)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", pageURL, err)
	}

	article.SourceURL = pageURL
	article.SourceName = item.Source.Name
	if parsed, err := url.Parse(pageURL); err == nil {
		// Keep the bare domain so self-links on www hosts still match.
		article.Domain = strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	}
	if article.Title == "" {
		article.Title = item.Article.Title
	}
	return article, nil
}

// resolve applies one rewrite outcome to its item.
func (p *Processor) resolve(ctx context.Context, u unit, rewrite *model.Rewrite) {
	switch {
	case rewrite == nil || rewrite.Malformed != "":
		// The slot produced nothing usable. A malformed response is a
		// model hiccup, not a content verdict, so the item goes back
		// for a later batch either way.
		if rewrite != nil {
			p.log.Warn("unparseable model response, requeueing article", "id", u.item.Article.ID)
		}
		if err := p.store.SetStatus(ctx, u.item.Article.ID, model.StatusQueued, ""); err != nil {
			p.log.Warn("requeueing article failed", "id", u.item.Article.ID, "error", err)
		}
		if !p.queue.TryPush(u.item) {
			p.log.Warn("queue full, article stays queued in storage", "id", u.item.Article.ID)
		}

	case rewrite.Rejected != "":
		p.fail(ctx, u.item, fmt.Errorf("model rejected article: %s", rewrite.Rejected))

	case rewrite.Valid != nil:
		if err := p.publish(ctx, u, rewrite.Valid); err != nil {
			p.fail(ctx, u.item, err)
			return
		}
		if err := p.store.SetStatus(ctx, u.item.Article.ID, model.StatusPublished, ""); err != nil {
			p.log.Warn("marking article published failed", "id", u.item.Article.ID, "error", err)
		}
		if err := p.sleep(ctx, p.pubDelay); err != nil {
			return
		}
	}
}

func (p *Processor) fail(ctx context.Context, item queue.Item, cause error) {
	reason := cause.Error()
	var rejection *sanitize.RejectionError
	if errors.As(cause, &rejection) {
		reason = rejection.Reason
	}

	p.log.Warn("article failed", "id", item.Article.ID, "source", item.Source.ID, "reason", reason)
	if err := p.store.SetStatus(ctx, item.Article.ID, model.StatusFailed, reason); err != nil {
		p.log.Warn("marking article failed errored", "id", item.Article.ID, "error", err)
	}
	if err := p.store.RecordFailure(ctx, model.Failure{
		SourceID:   item.Source.ID,
		ArticleURL: item.Article.ExternalID,
		Error:      reason,
	}); err != nil {
		p.log.Warn("recording failure errored", "id", item.Article.ID, "error", err)
	}
}

// publish assembles the final post from a valid rewrite and creates it
// on WordPress. Any returned error fails the article.
func (p *Processor) publish(ctx context.Context, u unit, rewrite *model.RewrittenArticle) error {
	title := p.finalTitle(rewrite)

	content, err := p.finalContent(ctx, u, rewrite)
	if err != nil {
		return err
	}

	featuredID, mapping := p.uploadImages(ctx, u.article)
	if len(mapping) > 0 {
		rewritten, err := sanitize.RewriteImageSources(content, mapping)
		if err != nil {
			p.log.Warn("rewriting image sources failed", "url", u.article.SourceURL, "error", err)
		} else {
			content = rewritten
		}
	}

	content += creditParagraph(u.article)

	if phrases := sanitize.FinalCTACheck(content); len(phrases) > 0 {
		return &sanitize.RejectionError{Reason: "CTA persisted after cleaning"}
	}

	payload := map[string]any{
		"title":      title,
		"content":    content,
		"excerpt":    p.excerpt(u, rewrite),
		"slug":       p.slug(title, rewrite),
		"categories": p.publisher.ResolveCategoryNamesToIDs(ctx, p.categoryNames(u, rewrite)),
		"tags":       p.publisher.EnsureTagIDs(ctx, rewrite.TagsSugeridas),
		"meta":       yoastMeta(u.article.SourceURL, rewrite),
	}
	if featuredID != 0 {
		payload["featured_media"] = featuredID
	}

	post, err := p.publisher.CreatePost(ctx, payload)
	if err != nil {
		return err
	}
	p.log.Info("post published", "wp_post_id", post.ID, "link", post.Link, "source", u.item.Source.ID)

	if err := p.publisher.SanitizePublishedPost(ctx, post.ID); err != nil {
		p.log.Warn("post-publish sanitation failed", "wp_post_id", post.ID, "error", err)
	}
	if _, err := p.store.RecordPost(ctx, u.item.Article.ID, int64(post.ID)); err != nil {
		p.log.Warn("recording post failed", "wp_post_id", post.ID, "error", err)
	}
	return nil
}

// finalTitle optimizes the model's title and logs what the validator
// still dislikes. The title pipeline corrects, it never blocks a post.
func (p *Processor) finalTitle(rewrite *model.RewrittenArticle) string {
	optimized, score := titles.Optimize(rewrite.TituloFinal, rewrite.FocusKeyphrase)
	result := titles.Validate(optimized)
	switch result.Status {
	case titles.StatusError:
		p.log.Warn("title accepted with errors", "title", optimized, "errors", result.Errors, "seo_score", score)
	case titles.StatusWarning:
		p.log.Info("title accepted with warnings", "title", optimized, "warnings", result.Warnings, "seo_score", score)
	}
	return optimized
}

// finalContent runs the cleaning chain over the rewritten body.
func (p *Processor) finalContent(ctx context.Context, u unit, rewrite *model.RewrittenArticle) (string, error) {
	content, err := sanitize.Clean(rewrite.ConteudoFinal)
	if err != nil {
		return "", err
	}
	content, err = sanitize.PostProcess(content, u.article.Domain)
	if err != nil {
		return "", fmt.Errorf("post-process content: %w", err)
	}
	content = sanitize.MergeImages(content, u.article.Images, maxMergedImages)
	content = InjectLinks(content, p.linkMap, maxInternalLinks)
	return content, nil
}

// uploadImages mirrors the source images into the media library. The
// featured image is uploaded first; inline images follow up to the
// cap. Upload failures degrade the post instead of failing it.
func (p *Processor) uploadImages(ctx context.Context, article *model.Article) (featuredID int, mapping map[string]string) {
	mapping = make(map[string]string)
	uploads := 0

	upload := func(imageURL string) *wordpress.Media {
		if imageURL == "" || uploads >= maxUploadedImages {
			return nil
		}
		if _, done := mapping[imageURL]; done {
			return nil
		}
		media, err := p.publisher.UploadMediaFromURL(ctx, imageURL)
		if err != nil {
			p.log.Warn("media upload failed", "image", imageURL, "error", err)
			return nil
		}
		uploads++
		mapping[imageURL] = media.SourceURL
		return media
	}

	if media := upload(article.FeaturedImage); media != nil {
		featuredID = media.ID
	}
	for _, imageURL := range article.Images {
		upload(imageURL)
	}
	return featuredID, mapping
}

func (p *Processor) excerpt(u unit, rewrite *model.RewrittenArticle) string {
	if rewrite.MetaDescription != "" {
		return rewrite.MetaDescription
	}
	return u.article.Excerpt
}

func (p *Processor) slug(title string, rewrite *model.RewrittenArticle) string {
	if slug := strings.TrimSpace(rewrite.Slug); slug != "" {
		return slugify(slug)
	}
	return slugify(title)
}

// categoryNames unions the fixed default, the source's own category,
// and the model's suggestions.
func (p *Processor) categoryNames(u unit, rewrite *model.RewrittenArticle) []string {
	names := []string{defaultCategory, u.item.Source.Category}
	for _, category := range rewrite.Categorias {
		if name := strings.TrimSpace(category.Nome); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func creditParagraph(article *model.Article) string {
	return fmt.Sprintf(`<p><strong>Fonte:</strong> <a href="%s" rel="noopener noreferrer">%s</a></p>`,
		article.SourceURL, html.EscapeString(article.SourceName))
}

// yoastMeta builds the SEO meta map. Only keys in the Yoast namespace
// are forwarded from the model; the canonical always points at the
// source article.
func yoastMeta(sourceURL string, rewrite *model.RewrittenArticle) map[string]any {
	meta := make(map[string]any)
	for key, value := range rewrite.YoastMeta {
		if strings.HasPrefix(key, "_yoast_wpseo_") && value != "" {
			meta[key] = value
		}
	}
	if rewrite.MetaDescription != "" {
		meta["_yoast_wpseo_metadesc"] = rewrite.MetaDescription
	}
	if rewrite.FocusKeyphrase != "" {
		meta["_yoast_wpseo_focuskw"] = rewrite.FocusKeyphrase
	}
	meta["_yoast_wpseo_canonical"] = sourceURL

	if len(rewrite.RelatedKeyphrases) > 0 {
		type keyword struct {
			Keyword string `json:"keyword"`
		}
		related := make([]keyword, 0, len(rewrite.RelatedKeyphrases))
		for _, phrase := range rewrite.RelatedKeyphrases {
			if phrase = strings.TrimSpace(phrase); phrase != "" {
				related = append(related, keyword{Keyword: phrase})
			}
		}
		if data, err := json.Marshal(related); err == nil {
			meta["_yoast_wpseo_focuskeywords"] = string(data)
		}
	}
	return meta
}

var slugStripExpr = regexp.MustCompile(`[^a-z0-9]+`)

var slugAccents = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u", "ü", "u",
	"ç", "c",
)

func slugify(text string) string {
	out := strings.ToLower(strings.TrimSpace(text))
	out = slugAccents.Replace(out)
	out = slugStripExpr.ReplaceAllString(out, "-")
	return strings.Trim(out, "-")
}
