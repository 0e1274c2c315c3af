package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// removalPatterns match against element class and id attributes.
// Any hit removes the whole subtree.
var removalPatterns = []string{
	"display-card",
	"tag-interaction",
	"quick-action-sidebar",
	"sidebar",
	"related",
	"recommended",
	"trending",
	"widget",
	"ad-",
	"banner",
	"gallery",
	"carousel",
	"promoted",
	"sponsored",
	"author-info",
	"author-profile",
}

// ctaPhrases is the closed set of promotional phrases, English and
// Portuguese. Matching is always case-insensitive substring.
var ctaPhrases = []string{
	"thank you for reading",
	"don't forget to subscribe",
	"subscribe now",
	"click here",
	"read more",
	"sign up",
	"thanks for reading",
	"thanks for visiting",
	"please subscribe",
	"subscribe to our",
	"stay tuned",
	"keep up to date",
	"follow us",
	"obrigado por ler",
	"obrigado pela leitura",
	"obrigado pela visita",
	"não esqueça de se inscrever",
	"inscreva-se agora",
	"inscreva-se no nosso",
	"clique aqui",
	"leia mais",
	"cadastre-se",
	"fique ligado",
	"fique por dentro",
	"siga-nos",
}

// CTAPhrases exposes the closed phrase set to the sanitizer so both
// stages match the same list.
func CTAPhrases() []string {
	return ctaPhrases
}

// preClean runs the shared cleaning sequence every domain cleaner
// applies to its article root, in order.
func preClean(root *goquery.Selection) {
	root.Find("script, style, noscript").Remove()
	removeJunkContainers(root)
	root.Find("aside").Remove()
	pruneFigures(root)
	removeCTABlocks(root)
	FilterCaptions(root)
}

func removeJunkContainers(root *goquery.Selection) {
	root.Find("*").Each(func(_ int, s *goquery.Selection) {
		if len(s.Nodes) == 0 {
			return
		}
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		if matchesRemovalPattern(class) || matchesRemovalPattern(id) {
			s.Remove()
			return
		}
		if _, ok := s.Attr("data-is-tag-interaction"); ok {
			s.Remove()
			return
		}
		for _, attr := range s.Nodes[0].Attr {
			if strings.HasPrefix(attr.Key, "data-stnl-") {
				s.Remove()
				return
			}
		}
	})
}

func matchesRemovalPattern(value string) bool {
	if value == "" {
		return false
	}
	value = strings.ToLower(value)
	for _, pattern := range removalPatterns {
		if strings.Contains(value, pattern) {
			return true
		}
	}
	return false
}

// decorativeKeywords mark images that only dress the page up.
var decorativeKeywords = []string{"logo", "icon", "sr-db"}

// pruneFigures drops figures whose image is decorative, SVG, a
// thumbnail, or detached from any surrounding text.
func pruneFigures(root *goquery.Selection) {
	root.Find("figure").Each(func(_ int, figure *goquery.Selection) {
		img := figure.Find("img").First()
		if img.Length() == 0 {
			return
		}
		src := strings.ToLower(imageSource(img))
		if src == "" {
			return
		}

		if strings.Contains(src, ".svg") {
			figure.Remove()
			return
		}
		for _, kw := range decorativeKeywords {
			if strings.Contains(src, kw) {
				figure.Remove()
				return
			}
		}
		if strings.Contains(src, "?w=300") || strings.Contains(src, "?w=400") ||
			strings.Contains(src, "&w=300") || strings.Contains(src, "&w=400") {
			figure.Remove()
			return
		}
		if !hasTextNeighbor(figure) {
			figure.Remove()
		}
	})
}

var textNeighborTags = map[string]struct{}{
	"p": {}, "h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {}, "blockquote": {},
}

func hasTextNeighbor(figure *goquery.Selection) bool {
	for _, sibling := range []*goquery.Selection{figure.Prev(), figure.Next()} {
		if sibling.Length() == 0 {
			continue
		}
		if _, ok := textNeighborTags[goquery.NodeName(sibling)]; ok {
			return true
		}
	}
	return false
}

// removeCTABlocks drops paragraphs and inline containers whose text
// carries any phrase from the closed CTA set.
func removeCTABlocks(root *goquery.Selection) {
	root.Find("p, div, span").Each(func(_ int, s *goquery.Selection) {
		text := strings.ToLower(s.Text())
		if text == "" {
			return
		}
		for _, phrase := range ctaPhrases {
			if strings.Contains(text, phrase) {
				s.Remove()
				return
			}
		}
	})
}
