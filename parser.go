package epub

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/simp-lee/epubview/book"
)

// Parser reads ePub files from disk. The zero value is ready to use and
// discards parser warnings.
type Parser struct {
	Log *zap.Logger
}

// Parse returns the table of contents and chapters of the book at path.
func (p Parser) Parse(ctx context.Context, path string) (book.Content, error) {
	if err := ctx.Err(); err != nil {
		return book.Content{}, err
	}
	b, err := Open(path)
	if err != nil {
		return book.Content{}, err
	}
	defer b.Close()

	c, err := b.Content()
	p.report(path, b.Warnings())
	return c, err
}

// Load reads the book at path into a new, not yet stored, aggregate. The
// caller assigns its ID.
func (p Parser) Load(ctx context.Context, path string) (*book.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	c, err := b.Content()
	p.report(path, b.Warnings())
	if err != nil {
		return nil, err
	}

	md := b.Metadata()
	title := md.Title
	if title == "" {
		title = titleFromPath(path)
	}
	return &book.Book{
		Title:      title,
		Author:     md.Author(),
		Language:   md.Language,
		SourcePath: path,
		AddedAt:    time.Now().UTC(),
		TOC:        c.TOC,
		Chapters:   c.Chapters,
	}, nil
}

func (p Parser) report(path string, warnings []string) {
	if p.Log == nil || len(warnings) == 0 {
		return
	}
	log := p.Log.Named("epub")
	for _, w := range warnings {
		log.Debug("Parser warning", zap.String("path", path), zap.String("warning", w))
	}
}
