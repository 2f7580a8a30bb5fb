package usecase

import (
	"strings"
	"unicode"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
)

// stopWords are dropped before comparing questions. Question words and generic
// verbs are included so "how do I find X" and "how do I find Y" do not look alike.
var stopWords = map[string]struct{}{
	"a": {}, "about": {}, "after": {}, "again": {}, "all": {}, "am": {}, "an": {}, "and": {},
	"any": {}, "are": {}, "as": {}, "at": {}, "be": {}, "been": {}, "before": {}, "but": {},
	"by": {}, "can": {}, "could": {}, "did": {}, "do": {}, "does": {}, "doing": {}, "for": {},
	"from": {}, "get": {}, "got": {}, "had": {}, "has": {}, "have": {}, "help": {}, "here": {},
	"how": {}, "i": {}, "if": {}, "im": {}, "in": {}, "into": {}, "is": {}, "it": {}, "its": {},
	"just": {}, "me": {}, "my": {}, "need": {}, "now": {}, "of": {}, "on": {}, "or": {},
	"please": {}, "should": {}, "so": {}, "some": {}, "that": {}, "the": {}, "then": {},
	"there": {}, "this": {}, "to": {}, "use": {}, "want": {}, "was": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "who": {}, "why": {}, "will": {}, "with": {},
	"would": {}, "you": {}, "your": {}, "find": {}, "go": {}, "make": {}, "know": {},
	"there's": {}, "whats": {}, "wheres": {}, "hows": {}, "dont": {}, "cant": {},
}

// ExtractKeywords returns the stemmed, stop-word-filtered keyword set of text.
func ExtractKeywords(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range tokenize(text) {
		if len(tok) < 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		out[porterstemmer.StemString(tok)] = struct{}{}
	}
	return out
}

// KeywordOverlap counts keywords present in both sets.
func KeywordOverlap(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func tokenize(text string) []string {
	text = strings.ToLower(text)
	text = strings.NewReplacer("'", "", "’", "").Replace(text)
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
