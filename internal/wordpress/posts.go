package wordpress

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"pressbot/internal/sanitize"
)

const minPostContentLength = 100

// allowedPostFields is the closed set of fields forwarded to the
// posts endpoint. Anything else the model invented is dropped.
var allowedPostFields = map[string]bool{
	"title":          true,
	"content":        true,
	"excerpt":        true,
	"slug":           true,
	"status":         true,
	"categories":     true,
	"tags":           true,
	"featured_media": true,
	"meta":           true,
}

var tagExpr = regexp.MustCompile(`<[^>]*>`)

// CreatePost publishes a post. The payload is sanitized first: unknown
// fields are dropped, the title loses any markup, term lists are
// coerced to integer IDs, and a zero featured_media is removed so
// WordPress does not reject the request.
func (c *Client) CreatePost(ctx context.Context, payload map[string]any) (*Post, error) {
	clean := sanitizePostPayload(payload)

	content, _ := clean["content"].(string)
	if len(strings.TrimSpace(content)) < minPostContentLength {
		return nil, fmt.Errorf("create post: content too short (%d chars)", len(strings.TrimSpace(content)))
	}

	var post Post
	if err := c.postJSON(ctx, c.endpoint("posts"), clean, &post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return &post, nil
}

func sanitizePostPayload(payload map[string]any) map[string]any {
	clean := make(map[string]any, len(payload))
	for key, value := range payload {
		if allowedPostFields[key] {
			clean[key] = value
		}
	}

	if title, ok := clean["title"].(string); ok {
		clean["title"] = strings.TrimSpace(tagExpr.ReplaceAllString(title, ""))
	}
	for _, key := range []string{"categories", "tags"} {
		if value, ok := clean[key]; ok {
			ids := coerceIDs(value)
			if len(ids) == 0 {
				delete(clean, key)
			} else {
				clean[key] = ids
			}
		}
	}
	if id, ok := coerceID(clean["featured_media"]); !ok || id == 0 {
		delete(clean, "featured_media")
	} else {
		clean["featured_media"] = id
	}
	clean["status"] = "publish"
	return clean
}

func coerceIDs(value any) []int {
	var raw []any
	switch v := value.(type) {
	case []any:
		raw = v
	case []int:
		return v
	default:
		if id, ok := coerceID(value); ok {
			return []int{id}
		}
		return nil
	}
	var ids []int
	for _, item := range raw {
		if id, ok := coerceID(item); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func coerceID(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		id, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return id, true
	default:
		return 0, false
	}
}

// editedPost is a post fetched with context=edit, where content comes
// back as a rendered/raw pair.
type editedPost struct {
	ID      int `json:"id"`
	Content struct {
		Raw      string `json:"raw"`
		Rendered string `json:"rendered"`
	} `json:"content"`
}

// SanitizePublishedPost re-fetches a just-published post and strips
// any promotional phrasing WordPress filters may have reintroduced.
// It retries the verification twice before giving up.
func (c *Client) SanitizePublishedPost(ctx context.Context, postID int) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, 2*time.Second); err != nil {
				return err
			}
		}

		var post editedPost
		getURL := c.endpoint("posts", strconv.Itoa(postID)) + "?context=edit"
		if err := c.do(ctx, http.MethodGet, getURL, nil, "", &post); err != nil {
			lastErr = fmt.Errorf("fetch post %d: %w", postID, err)
			continue
		}
		content := post.Content.Raw
		if content == "" {
			content = post.Content.Rendered
		}

		if len(sanitize.FinalCTACheck(content)) == 0 {
			return nil
		}
		c.log.Warn("promotional text found in published post, re-cleaning", "post_id", postID)

		cleaned, err := sanitize.Clean(content)
		if err != nil {
			lastErr = fmt.Errorf("re-clean post %d: %w", postID, err)
			continue
		}
		update := map[string]any{"content": cleaned}
		if err := c.postJSON(ctx, c.endpoint("posts", strconv.Itoa(postID)), update, nil); err != nil {
			lastErr = fmt.Errorf("update post %d: %w", postID, err)
			continue
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("post %d still contains promotional text", postID)
	}
	return lastErr
}
