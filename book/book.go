// Package book defines the book aggregate consumed by the rendering,
// search and healing code, and the repository contract used to load and
// replace it.
package book

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/simp-lee/epubview/pathid"
)

var (
	// ErrBookNotFound indicates no book is stored under the requested ID.
	ErrBookNotFound = errors.New("book not found")

	// ErrChapterNotFound indicates no chapter of the book matches the
	// requested identifier.
	ErrChapterNotFound = errors.New("chapter not found")
)

// Chapter is one spine document of a book.
type Chapter struct {
	// ID is the resolved archive path of the chapter document, without fragment.
	ID string `json:"id"`

	// Title is the TOC label, or the document title when the TOC has none.
	Title string `json:"title"`

	// HTML is the raw chapter markup as stored in the archive.
	HTML string `json:"html"`

	// Order is the reading position, unique within a book.
	Order int `json:"order"`

	// CSS lists resolved archive paths of stylesheets linked by the chapter.
	CSS []string `json:"css,omitempty"`
}

// TocEntry is a node of the table of contents.
type TocEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`

	// ContentSrc is the resolved target, possibly with a "#fragment".
	// Empty for grouping headers.
	ContentSrc string `json:"contentSrc,omitempty"`

	PlayOrder int        `json:"playOrder"`
	Depth     int        `json:"depth"`
	Children  []TocEntry `json:"children,omitempty"`
}

// HasContent reports whether the entry points at a document.
func (e TocEntry) HasContent() bool {
	return strings.TrimSpace(e.ContentSrc) != ""
}

// Content is the parser output for one book: both halves are always
// produced and replaced together.
type Content struct {
	TOC      []TocEntry
	Chapters []Chapter
}

// Book is the aggregate stored by a Repository. Values reachable from a
// Book are not modified after construction; use WithContent to derive a
// replacement.
type Book struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Author     string     `json:"author,omitempty"`
	Language   string     `json:"language,omitempty"`
	SourcePath string     `json:"sourcePath"`
	AddedAt    time.Time  `json:"addedAt"`
	TOC        []TocEntry `json:"toc"`
	Chapters   []Chapter  `json:"chapters"`
}

// WithContent returns a copy of b whose TOC and chapter list are both
// replaced by c.
func (b *Book) WithContent(c Content) *Book {
	nb := *b
	nb.TOC = CopyTOC(c.TOC)
	nb.Chapters = slices.Clone(c.Chapters)
	return &nb
}

// OrderedChapters returns the chapters sorted by reading order.
func (b *Book) OrderedChapters() []Chapter {
	out := slices.Clone(b.Chapters)
	slices.SortStableFunc(out, func(x, y Chapter) int { return x.Order - y.Order })
	return out
}

// FindChapter returns the chapter matching id. An exact (case-insensitive)
// match wins over a path-suffix match; among suffix matches the first in
// reading order wins. Fragments in id are ignored.
func (b *Book) FindChapter(id string) (Chapter, bool) {
	want := pathid.Normalize(id)
	if want == "" {
		return Chapter{}, false
	}
	ordered := b.OrderedChapters()
	for _, ch := range ordered {
		if strings.EqualFold(pathid.Normalize(ch.ID), want) {
			return ch, true
		}
	}
	for _, ch := range ordered {
		if pathid.Matches(ch.ID, want) {
			return ch, true
		}
	}
	return Chapter{}, false
}

// FindTocEntry returns the first content-bearing entry, in document order,
// whose source names the same chapter as id.
func (b *Book) FindTocEntry(id string) (TocEntry, bool) {
	var found TocEntry
	ok := false
	WalkTOC(b.TOC, func(e TocEntry) bool {
		if e.HasContent() && pathid.Matches(e.ContentSrc, id) {
			found, ok = e, true
			return false
		}
		return true
	})
	return found, ok
}

// WalkTOC visits entries depth-first in document order until fn returns false.
func WalkTOC(entries []TocEntry, fn func(TocEntry) bool) bool {
	for _, e := range entries {
		if !fn(e) {
			return false
		}
		if !WalkTOC(e.Children, fn) {
			return false
		}
	}
	return true
}

// CopyTOC deep-copies a TOC tree.
func CopyTOC(in []TocEntry) []TocEntry {
	if in == nil {
		return nil
	}
	out := make([]TocEntry, len(in))
	for i := range in {
		out[i] = in[i]
		out[i].Children = CopyTOC(in[i].Children)
	}
	return out
}
