// Package model defines the domain types used across the pipeline.
package model

import "time"

// FeedSource is the immutable configuration of one RSS source.
type FeedSource struct {
	ID       string
	Name     string
	URLs     []string
	Category string
	Position int
}

// FeedItem is an ingested RSS entry before persistence.
// Its uniqueness key is (SourceID, ExternalID).
type FeedItem struct {
	SourceID    string
	ExternalID  string
	Title       string
	PublishedAt *time.Time
}

// Status tracks the lifecycle of a seen article.
type Status string

// Seen article statuses.
const (
	StatusNew        Status = "NEW"
	StatusQueued     Status = "QUEUED"
	StatusProcessing Status = "PROCESSING"
	StatusPublished  Status = "PUBLISHED"
	StatusFailed     Status = "FAILED"
)

// SeenArticle is the persistent record of an ingested item, whether or
// not it was ultimately published.
type SeenArticle struct {
	ID         int64
	SourceID   string
	ExternalID string
	Title      string
	Status     Status
	FailReason string
	InsertedAt time.Time
}

// Post links a seen article to the WordPress post created from it.
type Post struct {
	ID            int64
	SeenArticleID int64
	WPPostID      int64
	CreatedAt     time.Time
}

// FeedStatus carries the per-source circuit breaker counter.
type FeedStatus struct {
	SourceID            string
	ConsecutiveFailures int
}

// Failure is an audit row for a failed work unit.
type Failure struct {
	ID         int64
	SourceID   string
	ArticleURL string
	Error      string
	FailedAt   time.Time
}

// VideoEmbed describes an embedded video found in a source article.
type VideoEmbed struct {
	ID       string
	EmbedURL string
	WatchURL string
}

// Article is the transient in-flight structure between extraction and
// publication. It is owned by the worker handling it.
type Article struct {
	Title         string
	Content       string
	Excerpt       string
	FeaturedImage string
	Images        []string
	Videos        []VideoEmbed
	Schema        map[string]any
	SourceURL     string
	SourceName    string
	Domain        string
}

// SuggestedCategory is one category proposal from the language model.
type SuggestedCategory struct {
	Nome     string `json:"nome"`
	Grupo    string `json:"grupo"`
	Evidence string `json:"evidence"`
}

// RewrittenArticle is a validated LLM rewrite.
type RewrittenArticle struct {
	TituloFinal       string              `json:"titulo_final"`
	ConteudoFinal     string              `json:"conteudo_final"`
	MetaDescription   string              `json:"meta_description"`
	FocusKeyphrase    string              `json:"focus_keyphrase"`
	TagsSugeridas     []string            `json:"tags_sugeridas"`
	YoastMeta         map[string]string   `json:"yoast_meta"`
	Slug              string              `json:"slug,omitempty"`
	RelatedKeyphrases []string            `json:"related_keyphrases,omitempty"`
	Categorias        []SuggestedCategory `json:"categorias,omitempty"`
}

// Rewrite is the tagged outcome of one LLM rewrite slot. Exactly one
// field is set; a nil *Rewrite means the slot produced nothing and the
// item should be requeued.
type Rewrite struct {
	Valid     *RewrittenArticle
	Rejected  string
	Malformed string
}

// TokenUsage is one append-only accounting row for an LLM call.
type TokenUsage struct {
	Timestamp        time.Time      `json:"timestamp"`
	API              string         `json:"api"`
	Model            string         `json:"model"`
	KeySuffix        string         `json:"key_suffix"`
	PromptTokens     int            `json:"prompt_tokens"`
	CompletionTokens int            `json:"completion_tokens"`
	TotalTokens      int            `json:"total_tokens"`
	Success          bool           `json:"success"`
	Error            string         `json:"error,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	SourceURL        string         `json:"source_url,omitempty"`
	WPPostID         int64          `json:"wp_post_id,omitempty"`
	ArticleTitle     string         `json:"article_title,omitempty"`
}
