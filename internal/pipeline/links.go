package pipeline

import (
	"encoding/json"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// LoadLinkMap reads the keyword-to-URL map used for internal linking.
// A missing or unreadable file yields an empty map: internal links are
// an enrichment, never a requirement.
func LoadLinkMap(path string) map[string]string {
	data, err := os.ReadFile(path)
	if err != nil {
		return map[string]string{}
	}
	var links map[string]string
	if err := json.Unmarshal(data, &links); err != nil {
		return map[string]string{}
	}
	return links
}

// InjectLinks wraps up to max keyword occurrences in anchors. Each
// keyword links at most once, only inside paragraph text nodes, and
// never inside an existing anchor. Longer keywords are tried first so
// "nova temporada" wins over "temporada". On any parse failure the
// content is returned untouched.
func InjectLinks(content string, links map[string]string, max int) string {
	if len(links) == 0 || max <= 0 {
		return content
	}

	keywords := make([]string, 0, len(links))
	for keyword := range links {
		if strings.TrimSpace(keyword) != "" {
			keywords = append(keywords, keyword)
		}
	}
	sort.Slice(keywords, func(i, j int) bool {
		if len(keywords[i]) != len(keywords[j]) {
			return len(keywords[i]) > len(keywords[j])
		}
		return keywords[i] < keywords[j]
	})

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}

	injected := 0
	used := make(map[string]bool)
	doc.Find("p").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		for _, node := range sel.Nodes {
			injectInNode(node, keywords, links, used, &injected, max)
		}
		return injected < max
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return content
	}
	return out
}

func injectInNode(n *html.Node, keywords []string, links map[string]string, used map[string]bool, injected *int, max int) {
	for child := n.FirstChild; child != nil; {
		next := child.NextSibling
		if *injected >= max {
			return
		}
		switch {
		case child.Type == html.TextNode:
			if linkTextNode(child, keywords, links, used) {
				*injected++
			}
		case child.Type == html.ElementNode && child.Data != "a":
			injectInNode(child, keywords, links, used, injected, max)
		}
		child = next
	}
}

// linkTextNode splits a text node around the first matching keyword
// and inserts an anchor. Reports whether a link was added.
func linkTextNode(textNode *html.Node, keywords []string, links map[string]string, used map[string]bool) bool {
	lower := strings.ToLower(textNode.Data)
	for _, keyword := range keywords {
		if used[keyword] {
			continue
		}
		pos := wordIndex(lower, strings.ToLower(keyword))
		if pos < 0 {
			continue
		}
		used[keyword] = true

		before := textNode.Data[:pos]
		match := textNode.Data[pos : pos+len(keyword)]
		after := textNode.Data[pos+len(keyword):]

		parent := textNode.Parent
		anchor := &html.Node{
			Type: html.ElementNode,
			Data: "a",
			Attr: []html.Attribute{{Key: "href", Val: links[keyword]}},
		}
		anchor.AppendChild(&html.Node{Type: html.TextNode, Data: match})

		parent.InsertBefore(&html.Node{Type: html.TextNode, Data: before}, textNode)
		parent.InsertBefore(anchor, textNode)
		parent.InsertBefore(&html.Node{Type: html.TextNode, Data: after}, textNode)
		parent.RemoveChild(textNode)
		return true
	}
	return false
}

// wordIndex finds keyword in text at a word boundary, or -1.
func wordIndex(text, keyword string) int {
	from := 0
	for {
		idx := strings.Index(text[from:], keyword)
		if idx < 0 {
			return -1
		}
		idx += from
		beforeOK := idx == 0 || !isWordRune(lastRune(text[:idx]))
		afterOK := idx+len(keyword) == len(text) || !isWordRune(firstRune(text[idx+len(keyword):]))
		if beforeOK && afterOK {
			return idx
		}
		from = idx + len(keyword)
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func lastRune(s string) rune {
	var last rune
	for _, r := range s {
		last = r
	}
	return last
}
