package titles

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

var clickbaitPrefixes = []string{
	"você não vai acreditar",
	"o que aconteceu vai te chocar",
	"incrível:",
	"urgente:",
	"chocante:",
}

var vagueQualifiers = []string{"talvez", "supostamente", "possivelmente", "aparentemente"}

var typographicQuotes = strings.NewReplacer(
	"“", `"`,
	"”", `"`,
	"‘", "'",
	"’", "'",
)

var digitExpr = regexp.MustCompile(`\d`)

// actionVerbs are the conjugated verbs a news title is expected to
// carry. A title without any of them reads like a label.
var actionVerbs = []string{
	"anuncia", "confirma", "revela", "ganha", "estreia", "chega",
	"lança", "vence", "perde", "contrata", "apresenta", "divulga",
	"recebe", "bate", "quebra", "retorna", "volta", "supera",
}

// Optimize normalizes a title for publication and returns it with a
// 0-100 quality score. The focus keyphrase, when given, is rewarded
// for appearing near the start.
func Optimize(title, focusKeyphrase string) (string, int) {
	out := html.UnescapeString(strings.TrimSpace(title))
	out = typographicQuotes.Replace(out)

	lower := strings.ToLower(out)
	for _, prefix := range clickbaitPrefixes {
		if strings.HasPrefix(lower, prefix) {
			out = strings.TrimSpace(out[len(prefix):])
			out = strings.TrimLeft(out, ":,- ")
			if r := []rune(out); len(r) > 0 {
				out = string(unicode.ToUpper(r[0])) + string(r[1:])
			}
			break
		}
	}

	out = removeQualifiers(out)

	if len([]rune(out)) > PreferredMax {
		out = Shorten(out, PreferredMax)
	}

	return out, Score(out, focusKeyphrase)
}

// Score rates a title from 0 to 100 against the editorial rubric.
func Score(title, focusKeyphrase string) int {
	score := 100
	trimmed := strings.TrimSpace(title)
	lower := strings.ToLower(trimmed)
	length := len([]rune(trimmed))

	switch {
	case length < MinLength:
		score -= 15
	case length > PreferredMax:
		score -= 10
	case length < PreferredMin:
		score -= 5
	}

	if focusKeyphrase != "" && !keyphraseNearStart(lower, strings.ToLower(focusKeyphrase)) {
		score -= 10
	}

	for _, qualifier := range vagueQualifiers {
		if containsWord(lower, qualifier) {
			score -= 10
			break
		}
	}
	for _, prefix := range clickbaitPrefixes {
		if strings.HasPrefix(lower, prefix) {
			score -= 15
			break
		}
	}
	if strings.ContainsAny(trimmed, "&<>") || trimmed != html.UnescapeString(trimmed) {
		score -= 10
	}
	if uppercaseRatio(trimmed) > MaxUppercasePct {
		score -= 5
	}
	if !hasActionVerb(lower) {
		score -= 5
	}

	if digitExpr.MatchString(trimmed) {
		score += 5
	}
	if strings.Count(trimmed, ":") == 1 {
		score += 5
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// keyphraseNearStart reports whether the keyphrase's first word is
// among the title's first five tokens.
func keyphraseNearStart(lowerTitle, lowerPhrase string) bool {
	phraseWords := strings.Fields(lowerPhrase)
	if len(phraseWords) == 0 {
		return true
	}
	titleWords := strings.Fields(lowerTitle)
	limit := 5
	if len(titleWords) < limit {
		limit = len(titleWords)
	}
	for _, word := range titleWords[:limit] {
		if strings.Trim(word, ".,:;!?\"'") == phraseWords[0] {
			return true
		}
	}
	return false
}

func hasActionVerb(lowerTitle string) bool {
	for _, verb := range actionVerbs {
		if containsWord(lowerTitle, verb) {
			return true
		}
	}
	return false
}

func removeQualifiers(title string) string {
	words := strings.Fields(title)
	kept := words[:0]
	for _, word := range words {
		bare := strings.ToLower(strings.Trim(word, ".,:;"))
		skip := false
		for _, qualifier := range vagueQualifiers {
			if bare == qualifier {
				skip = true
				break
			}
		}
		if !skip {
			kept = append(kept, word)
		}
	}
	return strings.Join(kept, " ")
}
