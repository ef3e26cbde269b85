package matching

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Tier is an ordered experience level.
type Tier int

const (
	TierNovice Tier = iota
	TierIntermediate
	TierSenior
	TierExpert
)

func (t Tier) String() string {
	switch t {
	case TierIntermediate:
		return "intermediate"
	case TierSenior:
		return "senior"
	case TierExpert:
		return "expert"
	default:
		return "novice"
	}
}

// Checked highest tier first so "senior beginner-friendly tutor" reads as senior.
var tierKeywords = []struct {
	tier     Tier
	keywords []string
}{
	{TierExpert, []string{"expert", "master", "ahli", "pakar", "profesional", "professional"}},
	{TierSenior, []string{"senior", "experienced", "advanced", "berpengalaman", "mahir", "lanjut"}},
	{TierIntermediate, []string{"intermediate", "menengah", "mid-level", "competent", "cukup"}},
	{TierNovice, []string{"novice", "beginner", "pemula", "entry", "fresh graduate", "baru"}},
}

var yearsPattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*\+?\s*(?:years?|yrs?|tahun|thn)\b`)

// ParseTier reads a tier from a free-text descriptor. A year count wins over
// keywords. ok is false when neither is present.
func ParseTier(descriptor string) (tier Tier, ok bool) {
	text := strings.ToLower(strings.TrimSpace(descriptor))
	if text == "" {
		return TierNovice, false
	}

	if m := yearsPattern.FindStringSubmatch(text); m != nil {
		years, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
		if err == nil {
			return tierForYears(years), true
		}
	}

	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	for _, tk := range tierKeywords {
		for _, kw := range tk.keywords {
			if containsPhrase(words, strings.Fields(kw)) {
				return tk.tier, true
			}
		}
	}
	return TierNovice, false
}

// Negations within two words before a keyword cancel it ("not an expert").
var negations = map[string]bool{
	"not": true, "no": true, "non": true, "never": true,
	"belum": true, "bukan": true, "tidak": true, "tanpa": true,
}

// containsPhrase reports whether phrase occurs in words as whole words and
// is not negated.
func containsPhrase(words, phrase []string) bool {
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j, p := range phrase {
			if words[i+j] != p {
				match = false
				break
			}
		}
		if match && !negated(words, i) {
			return true
		}
	}
	return false
}

func negated(words []string, at int) bool {
	for k := at - 1; k >= 0 && k >= at-2; k-- {
		if negations[words[k]] {
			return true
		}
	}
	return false
}

func tierForYears(years float64) Tier {
	switch {
	case years >= 7:
		return TierExpert
	case years >= 3:
		return TierSenior
	case years >= 1:
		return TierIntermediate
	default:
		return TierNovice
	}
}

// parseRequestedTier accepts a tier name or any keyword ParseTier knows.
func parseRequestedTier(s string) (Tier, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "novice":
		return TierNovice, true
	case "intermediate":
		return TierIntermediate, true
	case "senior":
		return TierSenior, true
	case "expert":
		return TierExpert, true
	}
	return ParseTier(s)
}
