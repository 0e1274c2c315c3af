package extract

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// badSectionPatterns exclude navigation and comment containers from
// the readable-content search.
var badSectionPatterns = []string{
	"comment",
	"footer",
	"header",
	"nav",
	"menu",
	"sidebar",
	"related",
	"promo",
	"share",
	"social",
	"newsletter",
}

// genericExtract is the fallback for unregistered domains: pre-clean
// the whole body, normalize lazy image blocks, then pick the node with
// the most paragraphs and figures.
func genericExtract(doc *goquery.Document) *goquery.Selection {
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return nil
	}

	preClean(body)
	convertDataImageBlocks(body)

	best := body
	bestScore := contentScore(body)

	body.Find("article, main, section, div").Each(func(_ int, s *goquery.Selection) {
		if isBadSection(s) {
			return
		}
		if score := contentScore(s); score > bestScore {
			best = s
			bestScore = score
		}
	})

	if bestScore == 0 {
		return nil
	}
	return best
}

// convertDataImageBlocks rewrites div[data-img-url] lazy-loading stubs
// into proper figure markup so image collection sees them.
func convertDataImageBlocks(root *goquery.Selection) {
	root.Find("div[data-img-url]").Each(func(_ int, div *goquery.Selection) {
		src, ok := div.Attr("data-img-url")
		if !ok || strings.TrimSpace(src) == "" {
			return
		}
		caption := html.EscapeString(strings.TrimSpace(div.Text()))
		div.ReplaceWithHtml(
			`<figure><img src="` + html.EscapeString(src) + `" alt=""><figcaption>` + caption + `</figcaption></figure>`,
		)
	})
}

func contentScore(s *goquery.Selection) int {
	return s.Find("p").Length() + s.Find("figure").Length()
}

func isBadSection(s *goquery.Selection) bool {
	class, _ := s.Attr("class")
	id, _ := s.Attr("id")
	value := strings.ToLower(class + " " + id)
	if strings.TrimSpace(value) == "" {
		return false
	}
	for _, pattern := range badSectionPatterns {
		if strings.Contains(value, pattern) {
			return true
		}
	}
	return false
}
