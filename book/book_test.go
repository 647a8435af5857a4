package book

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBook() *Book {
	return &Book{
		ID:    "b1",
		Title: "Sample",
		Chapters: []Chapter{
			{ID: "OEBPS/text/ch02.xhtml", Title: "Two", Order: 1},
			{ID: "OEBPS/text/ch01.xhtml", Title: "One", Order: 0},
			{ID: "OEBPS/notes/ch01.xhtml", Title: "Notes", Order: 2},
		},
		TOC: []TocEntry{
			{ID: "part1", Title: "Part I", Children: []TocEntry{
				{ID: "np1", Title: "One", ContentSrc: "OEBPS/text/ch01.xhtml#start", Depth: 1},
				{ID: "np2", Title: "Two", ContentSrc: "OEBPS/text/ch02.xhtml", Depth: 1},
			}},
		},
	}
}

func TestFindChapter(t *testing.T) {
	b := sampleBook()

	ch, ok := b.FindChapter("/OEBPS/text/ch02.xhtml#frag")
	require.True(t, ok)
	assert.Equal(t, "Two", ch.Title)

	ch, ok = b.FindChapter("./text/ch01.xhtml")
	require.True(t, ok)
	assert.Equal(t, "One", ch.Title)

	// Ambiguous suffix resolves to the first chapter in reading order.
	ch, ok = b.FindChapter("ch01.xhtml")
	require.True(t, ok)
	assert.Equal(t, "One", ch.Title)

	// Exact match wins over an earlier suffix match.
	ch, ok = b.FindChapter("oebps/notes/CH01.xhtml")
	require.True(t, ok)
	assert.Equal(t, "Notes", ch.Title)

	_, ok = b.FindChapter("ch03.xhtml")
	assert.False(t, ok)
	_, ok = b.FindChapter("")
	assert.False(t, ok)
	_, ok = b.FindChapter("#only-fragment")
	assert.False(t, ok)
}

func TestFindTocEntry(t *testing.T) {
	b := sampleBook()

	e, ok := b.FindTocEntry("OEBPS/text/ch01.xhtml")
	require.True(t, ok)
	assert.Equal(t, "np1", e.ID)

	e, ok = b.FindTocEntry("ch02.xhtml#x")
	require.True(t, ok)
	assert.Equal(t, "np2", e.ID)

	_, ok = b.FindTocEntry("missing.xhtml")
	assert.False(t, ok)
}

func TestOrderedChapters(t *testing.T) {
	b := sampleBook()
	got := b.OrderedChapters()
	require.Len(t, got, 3)
	assert.Equal(t, []string{"One", "Two", "Notes"}, []string{got[0].Title, got[1].Title, got[2].Title})
	assert.Equal(t, "Two", b.Chapters[0].Title, "source slice must not be reordered")
}

func TestWithContent(t *testing.T) {
	b := sampleBook()
	nb := b.WithContent(Content{
		TOC:      []TocEntry{{ID: "x", ContentSrc: "a.xhtml"}},
		Chapters: []Chapter{{ID: "a.xhtml", Order: 0}},
	})
	assert.Equal(t, b.ID, nb.ID)
	assert.Len(t, nb.Chapters, 1)
	assert.Len(t, nb.TOC, 1)
	assert.Len(t, b.Chapters, 3, "original must be untouched")
	assert.Len(t, b.TOC, 1)
	assert.Len(t, b.TOC[0].Children, 2)
}

func TestTocEntryHasContent(t *testing.T) {
	assert.True(t, TocEntry{ContentSrc: "a.xhtml"}.HasContent())
	assert.False(t, TocEntry{ContentSrc: "  "}.HasContent())
	assert.False(t, TocEntry{}.HasContent())
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository(sampleBook())

	b, err := r.GetByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Sample", b.Title)

	_, err = r.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, ErrBookNotFound)

	require.NoError(t, r.Add(ctx, &Book{ID: "b0", Title: "Another"}))
	assert.Error(t, r.Add(ctx, &Book{ID: "b0"}))

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Another", list[0].Title)
	assert.Equal(t, 3, list[1].Chapters)

	updated := b.WithContent(Content{})
	require.NoError(t, r.Update(ctx, updated))
	got, err := r.GetByID(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, got.Chapters)

	assert.ErrorIs(t, r.Update(ctx, &Book{ID: "ghost"}), ErrBookNotFound)
	require.NoError(t, r.Delete(ctx, "b0"))
	assert.ErrorIs(t, r.Delete(ctx, "b0"), ErrBookNotFound)
}
