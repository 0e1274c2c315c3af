// Package extract fetches article DOMs apart: it locates the readable
// body, strips promotional furniture, validates images, and collects
// publication metadata.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pressbot/internal/model"
)

// cleaner reduces a parsed document to its cleaned article root, or nil
// when the expected structure is absent.
type cleaner func(doc *goquery.Document) *goquery.Selection

// domainCleaners dispatches by host; anything unregistered falls
// through to the generic extractor.
var domainCleaners = map[string]cleaner{
	"screenrant.com": articleRootCleaner("article"),
	"gamerant.com":   articleRootCleaner("article"),
	"collider.com":   articleRootCleaner("article"),
	"comicbook.com":  articleRootCleaner("article, .article-body"),
	"lance.com.br":   articleRootCleaner(".article-body, article"),
	"ge.globo.com":   articleRootCleaner(".mc-article-body, article"),
}

// articleRootCleaner builds the shared domain cleaner shape: locate the
// root by selector, then run the full pre-clean sequence on it.
func articleRootCleaner(selector string) cleaner {
	return func(doc *goquery.Document) *goquery.Selection {
		root := doc.Find(selector).First()
		if root.Length() == 0 {
			return nil
		}
		preClean(root)
		return root
	}
}

func cleanerFor(host string) cleaner {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	for domain, c := range domainCleaners {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return c
		}
	}
	return nil
}

// Extract parses raw HTML fetched from pageURL and returns the cleaned
// in-flight article. It fails when no readable content survives.
func Extract(rawHTML, pageURL string) (*model.Article, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	meta := extractMetadata(doc)

	var root *goquery.Selection
	if clean := cleanerFor(u.Hostname()); clean != nil {
		root = clean(doc)
	}
	if root == nil {
		root = genericExtract(doc)
	}
	if root == nil {
		return nil, fmt.Errorf("no article content found at %s", pageURL)
	}

	videos := collectVideos(root)
	images := collectImages(root)
	featured := selectFeaturedImage(meta, doc)

	content, err := root.Html()
	if err != nil {
		return nil, fmt.Errorf("serialize content: %w", err)
	}
	content = strings.TrimSpace(content)
	if content == "" || strings.TrimSpace(root.Text()) == "" {
		return nil, fmt.Errorf("extraction yielded empty content for %s", pageURL)
	}

	return &model.Article{
		Title:         meta.Title,
		Content:       content,
		Excerpt:       meta.Description,
		FeaturedImage: featured,
		Images:        images,
		Videos:        videos,
		Schema:        meta.Schema,
		SourceURL:     pageURL,
		Domain:        strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."),
	}, nil
}

// collectImages gathers valid image URLs from the cleaned root,
// preserving document order and dropping duplicates.
func collectImages(root *goquery.Selection) []string {
	var images []string
	seen := map[string]struct{}{}
	root.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := imageSource(img)
		if src == "" || !ValidImageURL(src) {
			return
		}
		if _, dup := seen[src]; dup {
			return
		}
		seen[src] = struct{}{}
		images = append(images, src)
	})
	return images
}

func imageSource(img *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src", "data-img-url"} {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

var youtubeHosts = []string{"youtube.com", "youtube-nocookie.com", "youtu.be"}

// collectVideos finds embedded YouTube players.
func collectVideos(root *goquery.Selection) []model.VideoEmbed {
	var videos []model.VideoEmbed
	seen := map[string]struct{}{}
	root.Find("iframe").Each(func(_ int, frame *goquery.Selection) {
		src, ok := frame.Attr("src")
		if !ok {
			return
		}
		id := youtubeVideoID(src)
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		videos = append(videos, model.VideoEmbed{
			ID:       id,
			EmbedURL: "https://www.youtube.com/embed/" + id,
			WatchURL: "https://www.youtube.com/watch?v=" + id,
		})
	})
	return videos
}

func youtubeVideoID(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	matched := false
	for _, yt := range youtubeHosts {
		if host == yt || strings.HasSuffix(host, "."+yt) {
			matched = true
			break
		}
	}
	if !matched {
		return ""
	}

	if host == "youtu.be" {
		return strings.Trim(u.Path, "/")
	}
	if strings.HasPrefix(u.Path, "/embed/") {
		return strings.TrimPrefix(u.Path, "/embed/")
	}
	return u.Query().Get("v")
}
