package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	mediaDownloadTimeout = 25 * time.Second
	mediaUploadAttempts  = 3
	maxMediaBytes        = 20 << 20
)

// UploadMediaFromURL downloads an image and uploads it to the media
// library. Each attempt downloads the image again, so a flaky CDN and
// a flaky upload are covered by the same backoff. Failures are
// expected for dead or hotlink-protected images, so callers should
// treat errors as degrading the post rather than failing it.
func (c *Client) UploadMediaFromURL(ctx context.Context, imageURL string) (*Media, error) {
	var media Media
	backoff := retry.WithMaxRetries(mediaUploadAttempts-1, retry.NewConstant(2*time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		data, contentType, err := c.downloadImage(ctx, imageURL)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("media"), bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", c.auth)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", mediaFilename(imageURL, contentType)))

		resp, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(body)}
			if resp.StatusCode >= 500 {
				return retry.RetryableError(apiErr)
			}
			return apiErr
		}
		if err := json.Unmarshal(body, &media); err != nil {
			return fmt.Errorf("decode media response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("upload media %s: %w", imageURL, err)
	}
	return &media, nil
}

func (c *Client) downloadImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, mediaDownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; pressbot/1.0)")

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and connection resets get another attempt. A
		// definitive status like 404 or 403 does not.
		return nil, "", retry.RetryableError(fmt.Errorf("download %s: %w", imageURL, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download %s: status %d", imageURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
	if err != nil {
		return nil, "", retry.RetryableError(fmt.Errorf("read image body: %w", err))
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("download %s: empty body", imageURL)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// mediaFilename derives a safe filename from the URL path, falling
// back to an extension guessed from the content type.
func mediaFilename(imageURL, contentType string) string {
	name := "image"
	if parsed, err := url.Parse(imageURL); err == nil {
		if base := path.Base(parsed.Path); base != "." && base != "/" && base != "" {
			name = base
		}
	}
	if path.Ext(name) == "" {
		exts, _ := mime.ExtensionsByType(contentType)
		if len(exts) > 0 {
			name += exts[0]
		} else {
			name += ".jpg"
		}
	}
	return name
}
