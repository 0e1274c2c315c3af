package extract

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// commonEnglish and commonPortuguese are closed word sets used by the
// caption language heuristic.
var commonEnglish = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "of": {}, "in": {}, "on": {}, "at": {},
	"with": {}, "from": {}, "as": {}, "and": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "for": {}, "by": {}, "to": {}, "this": {},
	"that": {}, "his": {}, "her": {}, "its": {}, "their": {}, "new": {},
	"image": {}, "via": {}, "courtesy": {}, "during": {}, "scene": {},
}

var commonPortuguese = map[string]struct{}{
	"o": {}, "a": {}, "os": {}, "as": {}, "um": {}, "uma": {}, "de": {},
	"do": {}, "da": {}, "dos": {}, "das": {}, "em": {}, "no": {}, "na": {},
	"nos": {}, "nas": {}, "com": {}, "por": {}, "para": {}, "que": {},
	"e": {}, "é": {}, "são": {}, "foi": {}, "durante": {}, "imagem": {},
	"divulgação": {}, "reprodução": {}, "crédito": {}, "foto": {}, "cena": {},
}

// FilterCaptions blanks English-looking figcaptions in place. The
// element stays so the figure structure survives; only its text goes.
func FilterCaptions(root *goquery.Selection) {
	root.Find("figcaption").Each(func(_ int, caption *goquery.Selection) {
		if IsEnglishCaption(caption.Text()) {
			caption.SetText("")
		}
	})
}

// IsEnglishCaption decides English-likeness heuristically. Portuguese
// dominance always wins; very short captions are kept.
func IsEnglishCaption(text string) bool {
	tokens := tokenize(text)
	if len(tokens) < 2 {
		return false
	}

	var english, portuguese, capitalized int
	for _, tok := range tokens {
		lower := strings.ToLower(tok)
		if _, ok := commonEnglish[lower]; ok {
			english++
		}
		if _, ok := commonPortuguese[lower]; ok {
			portuguese++
		}
		if first := []rune(tok)[0]; unicode.IsUpper(first) {
			capitalized++
		}
	}

	if portuguese > english {
		return false
	}

	lower := " " + strings.ToLower(strings.TrimSpace(text)) + " "
	total := float64(len(tokens))

	// Mostly proper nouns still reads as English when glued together
	// with English connectives.
	if float64(capitalized)/total > 0.4 && english >= 1 &&
		(strings.Contains(lower, " in ") || strings.Contains(lower, " as ") || strings.Contains(lower, " from ")) {
		return true
	}

	if float64(english)/total >= 0.3 {
		return true
	}
	for _, prefix := range []string{" the ", " a ", " an ", " this ", " that "} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\'' && r != '-'
	})
}
