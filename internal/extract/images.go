package extract

import (
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// imageHostBlocklist rejects avatar, social, and tracker CDNs.
var imageHostBlocklist = []string{
	"gravatar.com",
	"twimg.com",
	"facebook.com",
	"fbcdn.net",
	"gstatic.com",
	"googleusercontent.com",
	"schema.org",
	"doubleclick.net",
	"google-analytics.com",
	"scorecardresearch.com",
}

// junkFilenameKeywords reject non-editorial assets by filename.
var junkFilenameKeywords = []string{
	"placeholder",
	"sprite",
	"icon",
	"emoji",
	".svg",
	"cta",
	"read-more",
	"share",
	"logo",
	"banner",
}

const (
	minImageWidth  = 600
	minImageHeight = 315
	minAspectRatio = 0.6
	maxAspectRatio = 2.2
)

var sizeSuffixExpr = regexp.MustCompile(`-(\d{2,5})x(\d{2,5})\.[a-zA-Z]+$`)

// ValidImageURL reports whether a candidate URL points at a usable
// editorial image: absolute http(s), off the host blocklist, free of
// junk filename keywords, and large enough when dimensions are
// declared in the URL.
func ValidImageURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, blocked := range imageHostBlocklist {
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return false
		}
	}

	filename := strings.ToLower(path.Base(u.Path))
	for _, kw := range junkFilenameKeywords {
		if strings.Contains(filename, kw) {
			return false
		}
	}

	w, h := declaredDimensions(u)
	if w > 0 && w < minImageWidth {
		return false
	}
	if h > 0 && h < minImageHeight {
		return false
	}
	if w > 0 && h > 0 {
		ratio := float64(w) / float64(h)
		if ratio < minAspectRatio || ratio > maxAspectRatio {
			return false
		}
	}
	return true
}

// declaredDimensions reads size hints from ?w=/?h= query parameters or
// a -WxH filename suffix. Zero means undeclared.
func declaredDimensions(u *url.URL) (int, int) {
	q := u.Query()
	w, _ := strconv.Atoi(q.Get("w"))
	h, _ := strconv.Atoi(q.Get("h"))
	if w > 0 || h > 0 {
		return w, h
	}

	if m := sizeSuffixExpr.FindStringSubmatch(path.Base(u.Path)); m != nil {
		w, _ = strconv.Atoi(m[1])
		h, _ = strconv.Atoi(m[2])
	}
	return w, h
}

// selectFeaturedImage picks the post thumbnail: og:image first, then
// the JSON-LD image, then the largest in-article <img> by declared
// width*height attributes.
func selectFeaturedImage(meta pageMetadata, doc *goquery.Document) string {
	if meta.OGImage != "" && ValidImageURL(meta.OGImage) {
		return meta.OGImage
	}
	if meta.SchemaImage != "" && ValidImageURL(meta.SchemaImage) {
		return meta.SchemaImage
	}

	var best string
	var bestArea int
	doc.Find("article img").Each(func(_ int, img *goquery.Selection) {
		src := imageSource(img)
		if src == "" || !ValidImageURL(src) {
			return
		}
		w, _ := strconv.Atoi(img.AttrOr("width", "0"))
		h, _ := strconv.Atoi(img.AttrOr("height", "0"))
		area := w * h
		if best == "" || area > bestArea {
			best = src
			bestArea = area
		}
	})
	return best
}
