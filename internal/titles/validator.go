// Package titles validates, shortens, and optimizes post titles for
// publication in Brazilian Portuguese.
package titles

import (
	"fmt"
	"strings"
	"unicode"
)

// Validation statuses.
const (
	StatusValid   = "VÁLIDO"
	StatusWarning = "AVISO"
	StatusError   = "ERRO"
)

// Preferred title length window.
const (
	MinLength       = 30
	PreferredMin    = 55
	PreferredMax    = 65
	MaxUppercasePct = 0.30
)

// Result reports the validation outcome for one title.
type Result struct {
	Status   string
	Errors   []string
	Warnings []string
}

var infinitiveOpeners = []string{"deixar", "falar", "fazer", "mostrar", "contar", "revelar"}

var sensationalWords = []string{"surpreendente", "explode", "bomba", "nerfado", "matou", "morreu"}

var weakImperatives = []string{"veja", "entenda", "descubra", "saiba"}

// concordanceSlips are common article/noun agreement mistakes the
// model produces when translating.
var concordanceSlips = []string{"os serie", "as filme", "os temporada", "as jogo"}

var missingAccents = map[string]string{
	"gratis":  "grátis",
	"serie":   "série",
	"seria":   "séria",
	"tambem":  "também",
	"ultimo":  "último",
	"proximo": "próximo",
}

var regencySlips = []string{"ficou de lado de", "chegou em o", "foi em o"}

// Validate evaluates a title against the editorial rule set and
// returns its status with the individual findings.
func Validate(title string) Result {
	var res Result
	trimmed := strings.TrimSpace(title)
	lower := strings.ToLower(trimmed)
	length := len([]rune(trimmed))

	switch {
	case length < MinLength:
		res.Errors = append(res.Errors, fmt.Sprintf("título muito curto (%d caracteres, mínimo %d)", length, MinLength))
	case length > PreferredMax:
		res.Warnings = append(res.Warnings, fmt.Sprintf("título longo (%d caracteres, ideal até %d)", length, PreferredMax))
	case length < PreferredMin:
		res.Warnings = append(res.Warnings, fmt.Sprintf("título abaixo da faixa ideal (%d caracteres, ideal %d-%d)", length, PreferredMin, PreferredMax))
	}

	words := strings.Fields(lower)
	if len(words) > 0 {
		for _, opener := range infinitiveOpeners {
			if words[0] == opener {
				res.Warnings = append(res.Warnings, "título começa com verbo no infinitivo: "+opener)
				break
			}
		}
		for _, imperative := range weakImperatives {
			if words[0] == imperative {
				res.Warnings = append(res.Warnings, "imperativo fraco no início: "+imperative)
				break
			}
		}
	}

	for _, slip := range concordanceSlips {
		if strings.Contains(lower, slip) {
			res.Errors = append(res.Errors, "erro de concordância: "+slip)
		}
	}
	for _, word := range words {
		if fixed, ok := missingAccents[word]; ok {
			res.Errors = append(res.Errors, fmt.Sprintf("acentuação: %q deveria ser %q", word, fixed))
		}
	}
	for _, slip := range regencySlips {
		if strings.Contains(lower, slip) {
			res.Warnings = append(res.Warnings, "regência estranha: "+slip)
		}
	}

	if ratio := uppercaseRatio(trimmed); ratio > MaxUppercasePct {
		res.Warnings = append(res.Warnings, fmt.Sprintf("excesso de maiúsculas (%.0f%%)", ratio*100))
	}

	for _, word := range sensationalWords {
		if containsWord(lower, word) {
			res.Errors = append(res.Errors, "palavra sensacionalista: "+word)
		}
	}

	if strings.HasSuffix(trimmed, "?") {
		res.Warnings = append(res.Warnings, "título terminado em interrogação")
	}
	if strings.Count(trimmed, ":") > 1 {
		res.Warnings = append(res.Warnings, "dois-pontos duplicado")
	}
	if strings.Count(trimmed, "?") > 1 || strings.Count(trimmed, "!") > 1 {
		res.Errors = append(res.Errors, "pontuação enfática repetida")
	}

	switch {
	case len(res.Errors) > 0:
		res.Status = StatusError
	case len(res.Warnings) > 0:
		res.Status = StatusWarning
	default:
		res.Status = StatusValid
	}
	return res
}

// Shorten cuts a long title at a natural boundary: the last colon or
// dash inside the limit, else the last whole word.
func Shorten(title string, max int) string {
	runes := []rune(strings.TrimSpace(title))
	if len(runes) <= max {
		return string(runes)
	}

	head := string(runes[:max])
	best := -1
	for _, sep := range []string{":", " - ", " – ", " — "} {
		if idx := strings.LastIndex(head, sep); idx > best {
			best = idx
		}
	}
	if best >= MinLength {
		return strings.TrimSpace(head[:best])
	}

	if idx := strings.LastIndex(head, " "); idx > 0 {
		return strings.TrimSpace(head[:idx])
	}
	return strings.TrimSpace(head)
}

func uppercaseRatio(text string) float64 {
	var letters, upper int
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

func containsWord(lower, word string) bool {
	for _, tok := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if tok == word {
			return true
		}
	}
	return false
}
