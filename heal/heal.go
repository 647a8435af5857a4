// Package heal detects books stored with incomplete parser output and
// repairs them by re-parsing the source file.
package heal

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/simp-lee/epubview/book"
)

// Reason names why a book needs repair.
type Reason int

const (
	Healthy Reason = iota
	// EmptyContentRef: a TOC entry has no content reference.
	EmptyContentRef
	// NoChapters: the book has no chapters.
	NoChapters
	// MissingFragments: the TOC looks like it lost its "#fragment" targets.
	MissingFragments
)

func (r Reason) String() string {
	switch r {
	case Healthy:
		return "healthy"
	case EmptyContentRef:
		return "empty content reference"
	case NoChapters:
		return "no chapters"
	case MissingFragments:
		return "missing fragments"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// fragmentSlack is how many more content entries than chapters a flat,
// fragment-free TOC may have before fragments are assumed lost.
const fragmentSlack = 10

// Diagnosis is the result of Diagnose.
type Diagnosis struct {
	NeedsHeal bool
	Reason    Reason
}

// Diagnose checks b for the known damage patterns. The first matching
// reason is reported.
func Diagnose(b *book.Book) Diagnosis {
	if len(b.Chapters) == 0 {
		return Diagnosis{NeedsHeal: true, Reason: NoChapters}
	}

	var (
		empty      bool
		nested     bool
		withFrag   bool
		contentRef int
	)
	book.WalkTOC(b.TOC, func(e book.TocEntry) bool {
		if e.Depth > 0 || len(e.Children) > 0 {
			nested = true
		}
		if !e.HasContent() {
			empty = true
			return true
		}
		contentRef++
		if strings.Contains(e.ContentSrc, "#") {
			withFrag = true
		}
		return true
	})

	switch {
	case empty:
		return Diagnosis{NeedsHeal: true, Reason: EmptyContentRef}
	case nested && !withFrag && contentRef > len(b.Chapters)+fragmentSlack:
		return Diagnosis{NeedsHeal: true, Reason: MissingFragments}
	}
	return Diagnosis{}
}

// Parser re-reads a book source file.
type Parser interface {
	Parse(ctx context.Context, path string) (book.Content, error)
}

// Healer repairs books in a repository.
type Healer struct {
	parser Parser
	repo   book.Repository
	log    *zap.Logger
}

// NewHealer creates a Healer. A nil logger disables logging.
func NewHealer(parser Parser, repo book.Repository, log *zap.Logger) *Healer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Healer{parser: parser, repo: repo, log: log.Named("heal")}
}

// Heal repairs b when Diagnose reports damage. The TOC and chapter list are
// always replaced together. On success the stored replacement is returned
// with true; a healthy book is returned unchanged with false. Parse and
// update errors are returned and leave the stored book as it was.
func (h *Healer) Heal(ctx context.Context, b *book.Book) (*book.Book, bool, error) {
	d := Diagnose(b)
	if !d.NeedsHeal {
		return b, false, nil
	}
	return h.Force(ctx, b, d.Reason)
}

// Force re-parses and stores b regardless of its diagnosis.
func (h *Healer) Force(ctx context.Context, b *book.Book, reason Reason) (*book.Book, bool, error) {
	log := h.log.With(zap.String("book", b.ID), zap.Stringer("reason", reason))
	log.Info("Healing book", zap.String("source", b.SourcePath))

	if err := ctx.Err(); err != nil {
		return b, false, err
	}
	content, err := h.parser.Parse(ctx, b.SourcePath)
	if err != nil {
		return b, false, fmt.Errorf("heal: reparse %s: %w", b.SourcePath, err)
	}
	healed := b.WithContent(content)
	if err := h.repo.Update(ctx, healed); err != nil {
		return b, false, fmt.Errorf("heal: update book %s: %w", b.ID, err)
	}

	log.Info("Book healed", zap.Int("chapters", len(healed.Chapters)), zap.Int("toc", len(healed.TOC)))
	return healed, true, nil
}
