package sanitize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pressbot/internal/extract"
)

// canonicalCTA is the phrase that, surviving every removal layer,
// rejects the whole article.
const canonicalCTA = "thank you for reading"

// ctaLiterals are exact substrings removed in the first layer before
// any structural pass runs.
var ctaLiterals = []string{
	"Thank you for reading this post, don't forget to subscribe!",
	"Thank you for reading this post, don't forget to subscribe",
	"Thank you for reading this article, don't forget to subscribe!",
	"Thank you for reading!",
	"Thank you for reading.",
	"Obrigado por ler este post, não esqueça de se inscrever!",
}

// RejectionError reports a sanitation rejection with the reason the
// worker records on the seen article.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("article rejected: %s", e.Reason)
}

// removeLiteralCTAs is layer one: plain substring surgery.
func removeLiteralCTAs(content string) string {
	for _, literal := range ctaLiterals {
		content = strings.ReplaceAll(content, literal, "")
	}
	return content
}

// removeCTABlocks is layer two: drop any paragraph, div, or span whose
// visible text carries a phrase from the closed CTA set.
func removeCTABlocks(root *goquery.Selection) {
	phrases := extract.CTAPhrases()
	root.Find("p, div, span").Each(func(_ int, s *goquery.Selection) {
		text := strings.ToLower(s.Text())
		if text == "" {
			return
		}
		for _, phrase := range phrases {
			if strings.Contains(text, phrase) {
				s.Remove()
				return
			}
		}
	})
}

var loneBreakExpr = regexp.MustCompile(`(?i)^(\s|<br\s*/?>)*$`)

// removeEmptyShells is layer three: clear out containers the earlier
// layers emptied, including lone <br> wrappers. Figures and embeds are
// untouched.
func removeEmptyShells(root *goquery.Selection) {
	// Repeat until stable so nested emptied shells collapse too.
	for {
		removed := false
		root.Find("p, div, span, article").Each(func(_ int, s *goquery.Selection) {
			if s.Find("img, iframe, figure, video").Length() > 0 {
				return
			}
			inner, err := s.Html()
			if err != nil {
				return
			}
			if strings.TrimSpace(s.Text()) == "" && loneBreakExpr.MatchString(inner) {
				s.Remove()
				removed = true
			}
		})
		if !removed {
			return
		}
	}
}

// CheckResidualCTA is layer four: the canonical phrase anywhere in the
// lowered content means cleaning failed.
func CheckResidualCTA(content string) error {
	if strings.Contains(strings.ToLower(content), canonicalCTA) {
		return &RejectionError{Reason: "CTA persisted after cleaning"}
	}
	return nil
}

// FinalCTACheck is layer five, the pre-publish re-check: it returns
// every phrase from the closed set still present in the content.
func FinalCTACheck(content string) []string {
	lower := strings.ToLower(content)
	var matches []string
	for _, phrase := range extract.CTAPhrases() {
		if strings.Contains(lower, phrase) {
			matches = append(matches, phrase)
		}
	}
	return matches
}
