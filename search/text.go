package search

import (
	"strings"
	"unicode"
)

// stopWords are ignored when matching query terms against chunk text.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "do": {}, "for": {}, "from": {}, "have": {}, "in": {},
	"is": {}, "it": {}, "not": {}, "of": {}, "on": {}, "that": {}, "the": {},
	"this": {}, "to": {}, "was": {}, "with": {}, "you": {},
}

// terms splits text on anything that is not a letter, digit or underscore,
// lowercases, and drops stop words.
func terms(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.ToLower(f)
		if _, stop := stopWords[f]; !stop {
			out = append(out, f)
		}
	}
	return out
}

// termCoverage returns the fraction of distinct query terms found in
// document. A query with no significant terms has coverage 0.
func termCoverage(document, query string) float32 {
	want := make(map[string]struct{})
	for _, t := range terms(query) {
		want[t] = struct{}{}
	}
	if len(want) == 0 {
		return 0
	}

	found := 0
	for _, t := range terms(document) {
		if _, ok := want[t]; ok {
			found++
			delete(want, t)
		}
	}
	return float32(found) / float32(found+len(want))
}
