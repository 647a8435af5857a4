package library

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/simp-lee/epubview/book"
	"github.com/simp-lee/epubview/heal"
	"github.com/simp-lee/epubview/render"
	"github.com/simp-lee/epubview/search"
)

// ErrReadOnly is returned when the repository cannot add or list books.
var ErrReadOnly = errors.New("library: repository does not support adding or listing books")

// Import parses the book at path and adds it under a new ID.
func (s *Service) Import(ctx context.Context, path string) (*book.Book, error) {
	if s.importer == nil {
		return nil, errors.New("library: import is not configured")
	}
	cat, ok := s.repo.(book.Catalog)
	if !ok {
		return nil, ErrReadOnly
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	b, err := s.importer.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	b.ID = uuid.NewString()
	b.SourcePath = path
	if b.AddedAt.IsZero() {
		b.AddedAt = time.Now().UTC()
	}
	if err := cat.Add(ctx, b); err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}

	if d := heal.Diagnose(b); d.NeedsHeal {
		s.log.Warn("Imported book looks damaged", zap.String("book", b.ID), zap.Stringer("reason", d.Reason))
	}
	s.log.Info("Book imported", zap.String("book", b.ID), zap.String("title", b.Title), zap.Int("chapters", len(b.Chapters)))
	return b, nil
}

// ListBooks summarizes every stored book.
func (s *Service) ListBooks(ctx context.Context) ([]book.Summary, error) {
	cat, ok := s.repo.(book.Catalog)
	if !ok {
		return nil, ErrReadOnly
	}
	return cat.List(ctx)
}

// GetBook returns a stored book.
func (s *Service) GetBook(ctx context.Context, bookID string) (*book.Book, error) {
	return s.book(ctx, bookID)
}

// HealBook repairs a damaged book, or any book when force is set, and drops
// its cached documents when it was replaced.
func (s *Service) HealBook(ctx context.Context, bookID string, force bool) (*book.Book, bool, error) {
	if s.healer == nil {
		return nil, false, ErrNoHealer
	}
	b, err := s.book(ctx, bookID)
	if err != nil {
		return nil, false, err
	}

	var changed bool
	if force {
		b, changed, err = s.healer.Force(ctx, b, heal.Diagnose(b).Reason)
	} else {
		b, changed, err = s.healer.Heal(ctx, b)
	}
	if err != nil {
		return nil, false, err
	}
	if changed {
		s.InvalidateBook(bookID)
	}
	return b, changed, nil
}

// LocateHit returns the table of contents entry that leads to the chapter
// of a search hit.
func (s *Service) LocateHit(ctx context.Context, bookID string, hit search.Hit) (book.TocEntry, bool, error) {
	b, err := s.book(ctx, bookID)
	if err != nil {
		return book.TocEntry{}, false, err
	}
	e, ok := b.FindTocEntry(hit.ChapterID)
	return e, ok, nil
}

// FindChapters returns chapters whose titles fuzzily match title, best match
// first and then in reading order.
func (s *Service) FindChapters(ctx context.Context, bookID, title string) ([]book.Chapter, error) {
	b, err := s.book(ctx, bookID)
	if err != nil {
		return nil, err
	}
	chapters := b.OrderedChapters()
	titles := make([]string, len(chapters))
	for i, ch := range chapters {
		titles[i] = ch.Title
	}

	ranks := fuzzy.RankFindFold(title, titles)
	slices.SortStableFunc(ranks, func(x, y fuzzy.Rank) int {
		if x.Distance != y.Distance {
			return x.Distance - y.Distance
		}
		return x.OriginalIndex - y.OriginalIndex
	})
	out := make([]book.Chapter, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, chapters[r.OriginalIndex])
	}
	return out, nil
}

// Prewarm renders every chapter of a book into the cache and returns how
// many were rendered. A nil style selects the default style.
func (s *Service) Prewarm(ctx context.Context, bookID string, style *render.Style) (int, error) {
	b, err := s.book(ctx, bookID)
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.prewarmWorkers)
	for _, ch := range b.OrderedChapters() {
		g.Go(func() error {
			_, err := s.GetChapterContent(gctx, bookID, ch.ID, style)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("prewarm book %s: %w", bookID, err)
	}
	s.log.Debug("Book prewarmed", zap.String("book", bookID), zap.Int("chapters", len(b.Chapters)))
	return len(b.Chapters), nil
}
