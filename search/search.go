// Package search finds query occurrences in the plain text of a book's
// chapters and builds word-aligned excerpts around each hit.
package search

import (
	"iter"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/simp-lee/epubview/book"
	"github.com/simp-lee/epubview/markup"
)

// DefaultContextLength is the number of characters kept on each side of a hit.
const DefaultContextLength = 100

// Options controls matching.
type Options struct {
	CaseSensitive bool
	WholeWord     bool

	// ContextLength overrides DefaultContextLength when positive.
	ContextLength int
}

// Hit is one occurrence of the query.
type Hit struct {
	ChapterID    string `json:"chapterId"`
	ChapterTitle string `json:"chapterTitle"`
	ChapterOrder int    `json:"chapterOrder"`

	// Position is the character (rune) offset of the match in the
	// chapter's plain text.
	Position int `json:"position"`

	MatchedText   string `json:"matchedText"`
	BeforeContext string `json:"beforeContext"`
	AfterContext  string `json:"afterContext"`
}

// Search returns the hits for query across chapters, chapter by chapter in
// reading order and by position within a chapter. Chapters are converted to
// plain text only as the sequence is consumed. A blank query yields nothing.
func Search(chapters []book.Chapter, query string, opts Options) iter.Seq[Hit] {
	re := compile(query, opts)
	return func(yield func(Hit) bool) {
		if re == nil {
			return
		}
		width := opts.ContextLength
		if width <= 0 {
			width = DefaultContextLength
		}
		for _, ch := range ordered(chapters) {
			text := markup.PlainText(ch.HTML)
			// Rune offsets are advanced incrementally between hits.
			lastByte, lastRune := 0, 0
			for _, loc := range re.FindAllStringIndex(text, -1) {
				if loc[0] == loc[1] {
					continue
				}
				lastRune += utf8.RuneCountInString(text[lastByte:loc[0]])
				lastByte = loc[0]
				h := Hit{
					ChapterID:     ch.ID,
					ChapterTitle:  ch.Title,
					ChapterOrder:  ch.Order,
					Position:      lastRune,
					MatchedText:   text[loc[0]:loc[1]],
					BeforeContext: before(text[:loc[0]], width),
					AfterContext:  after(text[loc[1]:], width),
				}
				if !yield(h) {
					return
				}
			}
		}
	}
}

// compile builds the matcher for query; nil for a blank query.
func compile(query string, opts Options) *regexp.Regexp {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	expr := regexp.QuoteMeta(query)
	if opts.WholeWord {
		expr = `\b` + expr + `\b`
	}
	if !opts.CaseSensitive {
		expr = `(?i)` + expr
	}
	return regexp.MustCompile(expr)
}

func ordered(chapters []book.Chapter) []book.Chapter {
	out := slices.Clone(chapters)
	slices.SortStableFunc(out, func(a, b book.Chapter) int { return a.Order - b.Order })
	return out
}

// before returns at most width runes from the end of s. When s was cut,
// the partial leading word is dropped.
func before(s string, width int) string {
	i := len(s)
	for n := 0; n < width && i > 0; n++ {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	if i == 0 {
		return s
	}
	cut := s[i:]
	if prev, _ := utf8.DecodeLastRuneInString(s[:i]); isWordRune(prev) {
		cut = strings.TrimLeftFunc(cut, isWordRune)
	}
	return strings.TrimLeftFunc(cut, unicode.IsSpace)
}

// after returns at most width runes from the start of s. When s was cut,
// the partial trailing word is dropped.
func after(s string, width int) string {
	i := 0
	for n := 0; n < width && i < len(s); n++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	if i == len(s) {
		return s
	}
	cut := s[:i]
	if next, _ := utf8.DecodeRuneInString(s[i:]); isWordRune(next) {
		cut = strings.TrimRightFunc(cut, isWordRune)
	}
	return strings.TrimRightFunc(cut, unicode.IsSpace)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
