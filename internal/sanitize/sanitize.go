// Package sanitize cleans LLM-produced HTML before and after publication:
// CTA removal, image handling, schema stripping, and embed normalization.
package sanitize

import (
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	doubledQuoteSrc = regexp.MustCompile(`src="{2,}([^"]+)"{2,}`)
	escapedQuoteSrc = regexp.MustCompile(`src="\\"([^"\\]+)\\""`)
)

// Clean runs the post-model cleanup layers in order: entity unescape,
// figure repair, literal CTA removal, structural CTA removal, empty
// shell collapse, and the residual canonical-phrase check. A
// *RejectionError means the article must not be published.
func Clean(content string) (string, error) {
	content = html.UnescapeString(content)
	content = repairFigureSources(content)
	content = removeLiteralCTAs(content)

	root, err := parseFragment(content)
	if err != nil {
		return "", err
	}
	removeCTABlocks(root)
	removeEmptyShells(root)

	cleaned, err := renderFragment(root)
	if err != nil {
		return "", err
	}

	if err := CheckResidualCTA(cleaned); err != nil {
		return "", err
	}
	return cleaned, nil
}

// repairFigureSources fixes src attributes whose quotes were escaped
// twice on the way through the model.
func repairFigureSources(content string) string {
	content = doubledQuoteSrc.ReplaceAllString(content, `src="$1"`)
	content = escapedQuoteSrc.ReplaceAllString(content, `src="$1"`)
	return content
}

// MergeImages appends figures for images the content does not already
// reference, up to cap.
func MergeImages(content string, images []string, cap int) string {
	var added int
	var b strings.Builder
	b.WriteString(content)
	for _, img := range images {
		if added >= cap {
			break
		}
		if strings.Contains(content, img) {
			continue
		}
		b.WriteString(`<figure><img src="`)
		b.WriteString(html.EscapeString(img))
		b.WriteString(`" alt=""><figcaption></figcaption></figure>`)
		added++
	}
	return b.String()
}

// RewriteImageSources swaps original image URLs for their uploaded
// WordPress counterparts.
func RewriteImageSources(content string, mapping map[string]string) (string, error) {
	if len(mapping) == 0 {
		return content, nil
	}
	root, err := parseFragment(content)
	if err != nil {
		return "", err
	}
	root.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok {
			return
		}
		if uploaded, found := mapping[src]; found {
			img.SetAttr("src", uploaded)
		}
	})
	return renderFragment(root)
}

// PostProcess applies the remaining publication hygiene in one DOM
// pass: credit tags, broken images, bare internal links, source-domain
// JSON-LD schemas, and YouTube iframe normalization.
func PostProcess(content, sourceDomain string) (string, error) {
	root, err := parseFragment(content)
	if err != nil {
		return "", err
	}

	stripCreditTags(root)
	removeBrokenImages(root)
	stripInternalLinks(root, sourceDomain)
	stripSourceSchemas(root, sourceDomain)
	normalizeYouTubeIframes(root)

	return renderFragment(root)
}

var creditPrefixes = []string{"credit:", "crédito:", "image credit", "photo credit", "imagem:"}

func stripCreditTags(root *goquery.Selection) {
	root.Find(`[class*="credit"]`).Remove()
	root.Find("p, span, em, small").Each(func(_ int, s *goquery.Selection) {
		text := strings.ToLower(strings.TrimSpace(s.Text()))
		for _, prefix := range creditPrefixes {
			if strings.HasPrefix(text, prefix) {
				s.Remove()
				return
			}
		}
	})
}

func removeBrokenImages(root *goquery.Selection) {
	root.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := strings.TrimSpace(img.AttrOr("src", ""))
		if src == "" || strings.HasPrefix(src, "data:") {
			figure := img.Closest("figure")
			img.Remove()
			if figure.Length() > 0 && strings.TrimSpace(figure.Text()) == "" && figure.Find("img, iframe").Length() == 0 {
				figure.Remove()
			}
		}
	})
}

// stripInternalLinks unwraps anchors pointing back at the source
// domain, keeping their text.
func stripInternalLinks(root *goquery.Selection, sourceDomain string) {
	if sourceDomain == "" {
		return
	}
	root.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		if host == sourceDomain || strings.HasSuffix(host, "."+sourceDomain) {
			a.ReplaceWithHtml(html.EscapeString(a.Text()))
		}
	})
}

// stripSourceSchemas drops JSON-LD blocks whose url points at the
// source domain, so the republished post carries no conflicting SEO
// entity.
func stripSourceSchemas(root *goquery.Selection, sourceDomain string) {
	if sourceDomain == "" {
		return
	}
	root.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var schema map[string]any
		if err := json.Unmarshal([]byte(s.Text()), &schema); err != nil {
			return
		}
		rawURL, _ := schema["url"].(string)
		if rawURL == "" {
			if mainEntity, ok := schema["mainEntityOfPage"].(map[string]any); ok {
				rawURL, _ = mainEntity["@id"].(string)
			}
		}
		if rawURL == "" {
			return
		}
		u, err := url.Parse(rawURL)
		if err != nil {
			return
		}
		host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		if host == sourceDomain || strings.HasSuffix(host, "."+sourceDomain) {
			s.Remove()
		}
	})
}

var youtubeIDExpr = regexp.MustCompile(`(?:youtube(?:-nocookie)?\.com/(?:embed/|watch\?v=)|youtu\.be/)([A-Za-z0-9_-]{6,})`)

// normalizeYouTubeIframes rewrites every YouTube embed to the plain
// https embed URL with standard player attributes.
func normalizeYouTubeIframes(root *goquery.Selection) {
	root.Find("iframe").Each(func(_ int, frame *goquery.Selection) {
		src := frame.AttrOr("src", "")
		m := youtubeIDExpr.FindStringSubmatch(src)
		if m == nil {
			return
		}
		frame.SetAttr("src", "https://www.youtube.com/embed/"+m[1])
		frame.SetAttr("loading", "lazy")
		frame.SetAttr("allowfullscreen", "")
	})
}

func parseFragment(content string) (*goquery.Selection, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse content: %w", err)
	}
	return doc.Find("body"), nil
}

func renderFragment(root *goquery.Selection) (string, error) {
	out, err := root.Html()
	if err != nil {
		return "", fmt.Errorf("serialize content: %w", err)
	}
	return strings.TrimSpace(out), nil
}
