// Package textnorm holds the normalization hook applied to learner
// questions before they are embedded.
package textnorm

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Normalizer maps text to the form used for embedding lookups.
type Normalizer interface {
	Normalize(s string) string
}

// Func adapts a plain function to Normalizer.
type Func func(string) string

func (f Func) Normalize(s string) string { return f(s) }

type identity struct{}

func (identity) Normalize(s string) string { return s }

// Identity returns text unchanged.
var Identity Normalizer = identity{}

var (
	diacritics = regexp.MustCompile(`[\x{0610}-\x{061A}\x{064B}-\x{065F}\x{0670}\x{06D6}-\x{06ED}]`)
	alefForms  = strings.NewReplacer("أ", "ا", "إ", "ا", "آ", "ا", "ٱ", "ا", "ـ", "")
)

var arabicPrefixes = []string{"وال", "بال", "كال", "فال", "لل", "ال"}

var arabicSuffixes = []string{"ها", "ان", "ات", "ون", "ين", "يه", "ية", "ه", "ة", "ي"}

// minStem is the shortest stem (in runes) an affix strip may leave.
const minStem = 2

// Arabic is a light stemmer: it removes diacritics and tatweel, unifies
// alef forms, and strips one common prefix and suffix per word.
var Arabic Normalizer = arabic{}

type arabic struct{}

func (arabic) Normalize(s string) string {
	s = diacritics.ReplaceAllString(s, "")
	s = alefForms.Replace(s)

	words := strings.Fields(s)
	for i, w := range words {
		words[i] = stemWord(w)
	}
	return strings.Join(words, " ")
}

func stemWord(w string) string {
	for _, p := range arabicPrefixes {
		if strings.HasPrefix(w, p) && utf8.RuneCountInString(w)-utf8.RuneCountInString(p) >= minStem {
			w = strings.TrimPrefix(w, p)
			break
		}
	}
	for _, suf := range arabicSuffixes {
		if strings.HasSuffix(w, suf) && utf8.RuneCountInString(w)-utf8.RuneCountInString(suf) >= minStem {
			w = strings.TrimSuffix(w, suf)
			break
		}
	}
	return w
}

// ByName resolves a configured normalizer name.
func ByName(name string) Normalizer {
	switch name {
	case "arabic", "ar":
		return Arabic
	default:
		return Identity
	}
}
