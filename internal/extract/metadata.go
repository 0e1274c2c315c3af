package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type pageMetadata struct {
	Title       string
	Description string
	OGImage     string
	SchemaImage string
	Schema      map[string]any
}

var articleSchemaTypes = map[string]struct{}{
	"NewsArticle": {}, "Article": {}, "BlogPosting": {},
}

// extractMetadata resolves title and excerpt with the precedence
// JSON-LD article > Open Graph > <title>/<meta name=description>.
func extractMetadata(doc *goquery.Document) pageMetadata {
	meta := pageMetadata{}

	if schema := findArticleSchema(doc); schema != nil {
		meta.Schema = schema
		if headline, ok := schema["headline"].(string); ok {
			meta.Title = strings.TrimSpace(headline)
		}
		if desc, ok := schema["description"].(string); ok {
			meta.Description = strings.TrimSpace(desc)
		}
		meta.SchemaImage = schemaImageURL(schema["image"])
	}

	ogTitle := metaContent(doc, `meta[property="og:title"]`)
	ogDesc := metaContent(doc, `meta[property="og:description"]`)
	meta.OGImage = metaContent(doc, `meta[property="og:image"]`)

	if meta.Title == "" {
		meta.Title = ogTitle
	}
	if meta.Description == "" {
		meta.Description = ogDesc
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if meta.Description == "" {
		meta.Description = metaContent(doc, `meta[name="description"]`)
	}

	return meta
}

func metaContent(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
}

// findArticleSchema returns the first JSON-LD object of an article
// type, looking inside @graph containers and top-level lists.
func findArticleSchema(doc *goquery.Document) map[string]any {
	var found map[string]any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var parsed any
		if err := json.Unmarshal([]byte(s.Text()), &parsed); err != nil {
			return true
		}
		if schema := searchSchema(parsed); schema != nil {
			found = schema
			return false
		}
		return true
	})
	return found
}

func searchSchema(node any) map[string]any {
	switch v := node.(type) {
	case map[string]any:
		if isArticleType(v["@type"]) {
			return v
		}
		if graph, ok := v["@graph"]; ok {
			return searchSchema(graph)
		}
	case []any:
		for _, item := range v {
			if schema := searchSchema(item); schema != nil {
				return schema
			}
		}
	}
	return nil
}

func isArticleType(value any) bool {
	switch t := value.(type) {
	case string:
		_, ok := articleSchemaTypes[t]
		return ok
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				if _, match := articleSchemaTypes[s]; match {
					return true
				}
			}
		}
	}
	return false
}

// schemaImageURL digs a URL out of the JSON-LD image field, which may
// be a string, an ImageObject, or a list of either.
func schemaImageURL(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		if u, ok := v["url"].(string); ok {
			return strings.TrimSpace(u)
		}
	case []any:
		for _, item := range v {
			if u := schemaImageURL(item); u != "" {
				return u
			}
		}
	}
	return ""
}
