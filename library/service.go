// Package library is the application API over stored books: rendered
// chapter and book documents behind a shared cache, plain text, search and
// suggestions, and repair of damaged books.
package library

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/simp-lee/epubview/archive"
	"github.com/simp-lee/epubview/book"
	"github.com/simp-lee/epubview/cache"
	"github.com/simp-lee/epubview/heal"
	"github.com/simp-lee/epubview/markup"
	"github.com/simp-lee/epubview/pathid"
	"github.com/simp-lee/epubview/render"
	"github.com/simp-lee/epubview/search"
)

// ErrNoHealer is returned by HealBook when the service has no Healer.
var ErrNoHealer = errors.New("library: healing is not configured")

// Opener opens the source archive of a book.
type Opener func(path string) (archive.ReadCloser, error)

// Importer reads a new book from its source file.
type Importer interface {
	Load(ctx context.Context, path string) (*book.Book, error)
}

// Service is safe for concurrent use. It holds no lock of its own; every
// render opens its own archive handle.
type Service struct {
	repo     book.Repository
	cache    *cache.Cache
	renderer *render.Renderer

	healer   *heal.Healer
	importer Importer
	open     Opener
	log      *zap.Logger

	style          render.Style
	ttl            time.Duration
	autoHeal       bool
	contextLength  int
	prewarmWorkers int
}

// Option configures a Service.
type Option func(*Service)

// WithHealer enables HealBook and, with WithAutoHeal, automatic repair.
func WithHealer(h *heal.Healer) Option {
	return func(s *Service) { s.healer = h }
}

// WithAutoHeal repairs a damaged book once when a requested chapter cannot
// be found in it.
func WithAutoHeal(enabled bool) Option {
	return func(s *Service) { s.autoHeal = enabled }
}

// WithImporter enables Import.
func WithImporter(i Importer) Option {
	return func(s *Service) { s.importer = i }
}

// WithOpener replaces how book archives are opened.
func WithOpener(o Opener) Option {
	return func(s *Service) { s.open = o }
}

// WithLogger sets the logger; the service logs under the "library" name.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithDefaultStyle sets the style used when a request carries none.
func WithDefaultStyle(st render.Style) Option {
	return func(s *Service) { s.style = st }
}

// WithTTL sets the lifetime of rendered documents; zero uses the cache default.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

// WithContextLength sets how many characters of context surround a search hit.
func WithContextLength(n int) Option {
	return func(s *Service) { s.contextLength = n }
}

// WithPrewarmWorkers bounds how many chapters Prewarm renders at once.
func WithPrewarmWorkers(n int) Option {
	return func(s *Service) { s.prewarmWorkers = n }
}

// New creates a Service.
func New(repo book.Repository, c *cache.Cache, r *render.Renderer, opts ...Option) *Service {
	s := &Service{
		repo:           repo,
		cache:          c,
		renderer:       r,
		open:           openZip,
		style:          render.DefaultStyle(),
		contextLength:  search.DefaultContextLength,
		prewarmWorkers: 4,
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.Named("library")
	if s.prewarmWorkers < 1 {
		s.prewarmWorkers = 1
	}
	return s
}

func openZip(path string) (archive.ReadCloser, error) {
	return archive.Open(path)
}

// GetChapterContent returns the rendered document for chapterID, which may
// carry a "#fragment". A nil style selects the default style.
func (s *Service) GetChapterContent(ctx context.Context, bookID, chapterID string, style *render.Style) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	st := s.style
	if style != nil {
		st = *style
	}

	key := cache.ChapterKey(bookID, chapterID, st.Hash())
	// Concurrent callers share one render, so it must outlive the caller
	// that started it.
	wctx := context.WithoutCancel(ctx)
	v, err := s.cache.GetOrCreate(key, func() (any, error) {
		b, err := s.repo.GetByID(wctx, bookID)
		if err != nil {
			return nil, err
		}
		b, ch, err := s.locate(wctx, b, chapterID)
		if err != nil {
			return nil, err
		}
		_, fragment := pathid.Split(chapterID)

		src := s.lazyArchive(b.SourcePath)
		defer src.close(s.log)
		return s.renderer.Render(src, ch, st, fragment), nil
	}, s.ttl)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// GetCompleteBookContent returns every chapter concatenated in reading order
// without reader styling.
func (s *Service) GetCompleteBookContent(ctx context.Context, bookID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	wctx := context.WithoutCancel(ctx)
	v, err := s.cache.GetOrCreate(cache.BookKey(bookID), func() (any, error) {
		b, err := s.repo.GetByID(wctx, bookID)
		if err != nil {
			return nil, err
		}
		return s.renderer.RenderBook(b), nil
	}, s.ttl)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// GetChapterPlainText returns the searchable text of a chapter.
func (s *Service) GetChapterPlainText(ctx context.Context, bookID, chapterID string) (string, error) {
	b, err := s.book(ctx, bookID)
	if err != nil {
		return "", err
	}
	_, ch, err := s.locate(ctx, b, chapterID)
	if err != nil {
		return "", err
	}
	return markup.PlainText(ch.HTML), nil
}

// SearchInBook returns the hits for query. Chapters are scanned as the
// sequence is consumed; the cache is not involved.
func (s *Service) SearchInBook(ctx context.Context, bookID, query string, caseSensitive, wholeWord bool) (iter.Seq[search.Hit], error) {
	b, err := s.book(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return search.Search(b.Chapters, query, search.Options{
		CaseSensitive: caseSensitive,
		WholeWord:     wholeWord,
		ContextLength: s.contextLength,
	}), nil
}

// GetSuggestions returns up to max words of the book starting with partial.
func (s *Service) GetSuggestions(ctx context.Context, bookID, partial string, max int) ([]string, error) {
	b, err := s.book(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return search.Suggestions(b.Chapters, partial, max), nil
}

// GetCachedItemsCount returns the number of cached documents.
func (s *Service) GetCachedItemsCount() int {
	return s.cache.Count()
}

// GetAllKeys returns the keys of every cached document.
func (s *Service) GetAllKeys() []string {
	return s.cache.Keys()
}

// RemoveByPrefix drops cached documents whose key starts with prefix and
// returns how many were removed.
func (s *Service) RemoveByPrefix(prefix string) int {
	return s.cache.RemoveByPrefix(prefix)
}

// ClearCache empties the cache and returns how many documents it held.
func (s *Service) ClearCache() int {
	return s.cache.Clear()
}

// InvalidateBook drops every cached document of a book and returns how many
// entries were removed.
func (s *Service) InvalidateBook(bookID string) int {
	n := s.cache.RemoveByPrefix(cache.ChapterPrefix(bookID))
	if _, ok := s.cache.Get(cache.BookKey(bookID)); ok {
		s.cache.Remove(cache.BookKey(bookID))
		n++
	}
	return n
}

func (s *Service) book(ctx context.Context, bookID string) (*book.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, bookID)
}

// locate finds chapterID in b. With auto-heal enabled a damaged book is
// repaired once and searched again; the possibly replaced book is returned.
func (s *Service) locate(ctx context.Context, b *book.Book, chapterID string) (*book.Book, book.Chapter, error) {
	if ch, ok := b.FindChapter(chapterID); ok {
		return b, ch, nil
	}
	notFound := fmt.Errorf("%w: %q in book %s", book.ErrChapterNotFound, chapterID, b.ID)
	if !s.autoHeal || s.healer == nil {
		return b, book.Chapter{}, notFound
	}

	d := heal.Diagnose(b)
	if !d.NeedsHeal {
		return b, book.Chapter{}, notFound
	}
	s.log.Info("Chapter missing from damaged book", zap.String("book", b.ID), zap.String("chapter", chapterID), zap.Stringer("reason", d.Reason))

	healed, changed, err := s.healer.Heal(ctx, b)
	if err != nil {
		return b, book.Chapter{}, multierr.Append(notFound, err)
	}
	if changed {
		s.InvalidateBook(b.ID)
	}
	if ch, ok := healed.FindChapter(chapterID); ok {
		return healed, ch, nil
	}
	return healed, book.Chapter{}, notFound
}

// lazyArchive defers opening the book archive until the renderer first
// reads from it.
func (s *Service) lazyArchive(path string) *lazyReader {
	return &lazyReader{path: path, open: s.open}
}

type lazyReader struct {
	path   string
	open   Opener
	rc     archive.ReadCloser
	err    error
	opened bool
}

func (l *lazyReader) ReadFile(name string) ([]byte, error) {
	if !l.opened {
		l.opened = true
		l.rc, l.err = l.open(l.path)
	}
	if l.err != nil {
		return nil, l.err
	}
	return l.rc.ReadFile(name)
}

func (l *lazyReader) close(log *zap.Logger) {
	if l.err != nil {
		log.Warn("Book archive unavailable, images left unresolved", zap.String("path", l.path), zap.Error(l.err))
	}
	if l.rc == nil {
		return
	}
	if err := l.rc.Close(); err != nil {
		log.Warn("Unable to close book archive", zap.String("path", l.path), zap.Error(err))
	}
}
