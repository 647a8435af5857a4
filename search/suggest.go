package search

import (
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/simp-lee/epubview/book"
	"github.com/simp-lee/epubview/markup"
)

// MinSuggestionLength is the shortest word offered as a suggestion.
const MinSuggestionLength = 3

// Suggestions returns distinct words of the book that start with partial,
// compared case-insensitively. Words are returned case-folded, shortest
// first and then in lexical order. max <= 0 returns every match.
func Suggestions(chapters []book.Chapter, partial string, max int) []string {
	fold := cases.Fold()
	prefix := fold.String(strings.TrimSpace(partial))
	if prefix == "" {
		return nil
	}

	seen := make(map[string]struct{})
	for _, ch := range chapters {
		for _, w := range strings.FieldsFunc(markup.PlainText(ch.HTML), isSeparator) {
			if utf8.RuneCountInString(w) < MinSuggestionLength {
				continue
			}
			w = fold.String(w)
			if strings.HasPrefix(w, prefix) {
				seen[w] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for w := range seen {
		out = append(out, w)
	}
	slices.SortFunc(out, func(a, b string) int {
		if d := utf8.RuneCountInString(a) - utf8.RuneCountInString(b); d != 0 {
			return d
		}
		return strings.Compare(a, b)
	})
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

func isSeparator(r rune) bool {
	return !isWordRune(r)
}
