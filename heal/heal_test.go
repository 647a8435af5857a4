package heal

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simp-lee/epubview/book"
)

type stubParser struct {
	content book.Content
	err     error
	calls   int
	path    string
}

func (p *stubParser) Parse(_ context.Context, path string) (book.Content, error) {
	p.calls++
	p.path = path
	return p.content, p.err
}

func chapters(n int) []book.Chapter {
	out := make([]book.Chapter, n)
	for i := range out {
		out[i] = book.Chapter{ID: fmt.Sprintf("ch%02d.xhtml", i), Order: i}
	}
	return out
}

func flatTOC(n int) []book.TocEntry {
	out := make([]book.TocEntry, n)
	for i := range out {
		out[i] = book.TocEntry{ID: fmt.Sprintf("np%d", i), ContentSrc: fmt.Sprintf("ch%02d.xhtml", i)}
	}
	return out
}

func TestDiagnose(t *testing.T) {
	nestedNoFrag := []book.TocEntry{{ID: "p", ContentSrc: "ch00.xhtml", Children: flatTOC(15)}}
	for i := range nestedNoFrag[0].Children {
		nestedNoFrag[0].Children[i].Depth = 1
	}
	nestedWithFrag := book.CopyTOC(nestedNoFrag)
	nestedWithFrag[0].Children[3].ContentSrc += "#s3"

	tests := []struct {
		name string
		b    *book.Book
		want Diagnosis
	}{
		{
			name: "no chapters regardless of toc",
			b:    &book.Book{TOC: flatTOC(3)},
			want: Diagnosis{NeedsHeal: true, Reason: NoChapters},
		},
		{
			name: "healthy flat toc",
			b:    &book.Book{Chapters: chapters(3), TOC: flatTOC(3)},
			want: Diagnosis{},
		},
		{
			name: "flat toc with many entries is not suspicious",
			b:    &book.Book{Chapters: chapters(2), TOC: flatTOC(20)},
			want: Diagnosis{},
		},
		{
			name: "empty content reference",
			b: &book.Book{Chapters: chapters(2), TOC: []book.TocEntry{
				{ID: "a", ContentSrc: "ch00.xhtml", Children: []book.TocEntry{{ID: "b", Depth: 1}}},
			}},
			want: Diagnosis{NeedsHeal: true, Reason: EmptyContentRef},
		},
		{
			name: "nested fragment-free toc much larger than chapters",
			b:    &book.Book{Chapters: chapters(3), TOC: nestedNoFrag},
			want: Diagnosis{NeedsHeal: true, Reason: MissingFragments},
		},
		{
			name: "nested toc with fragments",
			b:    &book.Book{Chapters: chapters(3), TOC: nestedWithFrag},
			want: Diagnosis{},
		},
		{
			name: "nested toc within slack",
			b:    &book.Book{Chapters: chapters(6), TOC: nestedNoFrag},
			want: Diagnosis{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Diagnose(tt.b))
		})
	}
}

func TestHeal_ReplacesBothSides(t *testing.T) {
	ctx := context.Background()
	stale := &book.Book{ID: "b1", Title: "T", SourcePath: "/books/t.epub", TOC: flatTOC(2)}
	repo := book.NewMemoryRepository(stale)
	parser := &stubParser{content: book.Content{TOC: flatTOC(3), Chapters: chapters(3)}}

	healed, changed, err := NewHealer(parser, repo, nil).Heal(ctx, stale)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "/books/t.epub", parser.path)
	assert.Len(t, healed.Chapters, 3)
	assert.Len(t, healed.TOC, 3)
	assert.Equal(t, "T", healed.Title)

	stored, err := repo.GetByID(ctx, "b1")
	require.NoError(t, err)
	assert.Len(t, stored.Chapters, 3)
	assert.Len(t, stored.TOC, 3)
	assert.Empty(t, stale.Chapters, "input aggregate is not modified")
}

func TestHeal_HealthyBookUntouched(t *testing.T) {
	b := &book.Book{ID: "b1", Chapters: chapters(2), TOC: flatTOC(2)}
	parser := &stubParser{}

	got, changed, err := NewHealer(parser, book.NewMemoryRepository(b), nil).Heal(context.Background(), b)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Same(t, b, got)
	assert.Zero(t, parser.calls)
}

func TestHeal_ParseFailurePropagates(t *testing.T) {
	ctx := context.Background()
	stale := &book.Book{ID: "b1", SourcePath: "gone.epub", TOC: flatTOC(1)}
	repo := book.NewMemoryRepository(stale)
	boom := errors.New("corrupt archive")

	got, changed, err := NewHealer(&stubParser{err: boom}, repo, nil).Heal(ctx, stale)
	assert.ErrorIs(t, err, boom)
	assert.False(t, changed)
	assert.Same(t, stale, got)

	stored, err := repo.GetByID(ctx, "b1")
	require.NoError(t, err)
	assert.Same(t, stale, stored)
}

func TestHeal_UpdateFailurePropagates(t *testing.T) {
	stale := &book.Book{ID: "ghost"}
	parser := &stubParser{content: book.Content{Chapters: chapters(1)}}

	_, changed, err := NewHealer(parser, book.NewMemoryRepository(), nil).Heal(context.Background(), stale)
	assert.ErrorIs(t, err, book.ErrBookNotFound)
	assert.False(t, changed)
}

func TestHeal_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	parser := &stubParser{}

	_, _, err := NewHealer(parser, book.NewMemoryRepository(), nil).Heal(ctx, &book.Book{ID: "x"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, parser.calls)
}

func TestReasonString(t *testing.T) {
	assert.Equal(t, "no chapters", NoChapters.String())
	assert.Equal(t, "reason(42)", Reason(42).String())
}
