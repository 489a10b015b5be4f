package fetcher

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/language"
)

// DefaultLanguage is reported when a page neither declares a language nor
// has enough text to guess one.
var DefaultLanguage = language.English

// markers are frequent function words that rarely occur in the other
// languages listed. Words shared between them, like "de" or "en", are left
// out on purpose.
var markers = []struct {
	tag   language.Tag
	words map[string]struct{}
}{
	{language.English, wordSet("the", "and", "with", "for", "this", "that", "are", "from", "your", "of")},
	{language.Spanish, wordSet("el", "los", "las", "que", "y", "una", "por", "para", "con", "del", "es", "esta")},
	{language.French, wordSet("le", "les", "et", "des", "du", "une", "est", "pour", "avec", "sur", "pas", "vous")},
	{language.German, wordSet("der", "die", "das", "und", "ist", "mit", "für", "von", "nicht", "auf", "ein", "zu")},
}

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// declaredLanguage reads the base language from the html lang attribute or
// a content-language meta tag.
func declaredLanguage(doc *goquery.Document) (language.Tag, bool) {
	candidates := []string{doc.Find("html[lang]").First().AttrOr("lang", "")}
	doc.Find("meta[http-equiv]").Each(func(_ int, s *goquery.Selection) {
		if strings.EqualFold(s.AttrOr("http-equiv", ""), "content-language") {
			candidates = append(candidates, s.AttrOr("content", ""))
		}
	})
	for _, raw := range candidates {
		raw = strings.TrimSpace(strings.Split(raw, ",")[0])
		if raw == "" {
			continue
		}
		tag, err := language.Parse(raw)
		if err != nil {
			continue
		}
		base, conf := tag.Base()
		if conf == language.No {
			continue
		}
		return language.Make(base.String()), true
	}
	return language.Und, false
}

// DetectLanguage guesses the language of text by counting marker words.
// Ties and texts without markers fall back to DefaultLanguage.
func DetectLanguage(text string) language.Tag {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if len(words) == 0 {
		return DefaultLanguage
	}

	best, bestHits := DefaultLanguage, 0
	for _, m := range markers {
		hits := 0
		for _, w := range words {
			if _, ok := m.words[w]; ok {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = m.tag, hits
		}
	}
	return best
}
