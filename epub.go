package epub

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/simp-lee/epubview/archive"
	"github.com/simp-lee/epubview/book"
	"github.com/simp-lee/epubview/markup"
	"github.com/simp-lee/epubview/pathid"
)

const expectedMimetype = "application/epub+zip"

// Book is an opened ePub archive. Use Open or NewReader to create one.
//
// A Book is not safe for concurrent use by multiple goroutines.
type Book struct {
	zip      *archive.Zip
	pkgPath  string
	pkg      *opfPackage
	metadata Metadata
	spine    []string
	toc      []book.TocEntry
	warnings []string
}

// Open opens the ePub file at path. The caller must call Close.
func Open(path string) (*Book, error) {
	z, err := archive.Open(path)
	if err != nil {
		return nil, fmt.Errorf("epub: %w", err)
	}
	b, err := newBook(z)
	if err != nil {
		z.Close()
		return nil, err
	}
	return b, nil
}

// NewReader creates a Book from an io.ReaderAt with the given size.
// The caller is responsible for the lifetime of r.
func NewReader(r io.ReaderAt, size int64) (*Book, error) {
	z, err := archive.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("epub: %w", err)
	}
	return newBook(z)
}

func newBook(z *archive.Zip) (*Book, error) {
	b := &Book{zip: z}
	b.checkMimetype()

	pkgPath, err := findPackage(z)
	if err != nil {
		return nil, err
	}
	b.pkgPath = pkgPath

	obfuscated, err := checkDRM(z)
	if err != nil {
		return nil, err
	}
	if obfuscated {
		b.warnf("font obfuscation detected; embedded fonts may not render")
	}

	if z.Find(pkgPath) == nil {
		return nil, fmt.Errorf("epub: package document %s not in archive: %w", pkgPath, ErrInvalidEPub)
	}
	data, err := z.ReadText(pkgPath)
	if err != nil {
		return nil, fmt.Errorf("epub: read OPF: %w", err)
	}
	if b.pkg, err = parseOPF(data); err != nil {
		return nil, err
	}
	b.metadata = b.pkg.metadata()
	b.spine = b.buildSpine()
	b.toc = b.parseTOC()
	return b, nil
}

// checkMimetype records a warning unless the first entry is "mimetype"
// holding the ePub media type. Plenty of readable books get this wrong.
func (b *Book) checkMimetype() {
	first := b.zip.First()
	if first == nil {
		b.warnf("empty archive")
		return
	}
	if first.Name != "mimetype" {
		b.warnf("first entry is %q, not \"mimetype\"", first.Name)
		return
	}
	data, err := archive.ReadEntry(first)
	if err != nil {
		b.warnf("read mimetype: %v", err)
		return
	}
	if got := strings.TrimSpace(string(data)); got != expectedMimetype {
		b.warnf("unexpected mimetype %q", got)
	}
}

// buildSpine resolves spine references to archive paths, dropping dangling
// and repeated ones.
func (b *Book) buildSpine() []string {
	seen := make(map[string]bool, len(b.pkg.Spine.ItemRefs))
	out := make([]string, 0, len(b.pkg.Spine.ItemRefs))
	for _, ref := range b.pkg.Spine.ItemRefs {
		it, ok := b.pkg.item(ref.IDRef)
		if !ok {
			b.warnf("spine references unknown manifest item %q", ref.IDRef)
			continue
		}
		p := b.resolve(it.Href)
		if p == "" {
			continue
		}
		key := strings.ToLower(p)
		if seen[key] {
			b.warnf("spine lists %s more than once", p)
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

// resolve turns a manifest href into an archive path.
func (b *Book) resolve(href string) string {
	return pathid.Resolve(b.pkgPath, href)
}

func (b *Book) warnf(format string, args ...any) {
	b.warnings = append(b.warnings, fmt.Sprintf(format, args...))
}

// Close releases the underlying file when the Book was created by Open.
func (b *Book) Close() error {
	return b.zip.Close()
}

// Metadata returns a copy of the package metadata.
func (b *Book) Metadata() Metadata {
	md := b.metadata
	md.Authors = append([]string(nil), b.metadata.Authors...)
	return md
}

// Warnings returns the non-fatal problems met while reading the book.
func (b *Book) Warnings() []string {
	return append([]string(nil), b.warnings...)
}

// TOC returns a copy of the table of contents. It is empty, not nil, when
// the book has none.
func (b *Book) TOC() []book.TocEntry {
	if len(b.toc) == 0 {
		return []book.TocEntry{}
	}
	return book.CopyTOC(b.toc)
}

// Spine returns the archive paths of the reading order documents.
func (b *Book) Spine() []string {
	return append([]string(nil), b.spine...)
}

// Content reads every spine document into a chapter. Chapters are titled
// from the first TOC entry pointing at them, falling back to the document
// title or first heading. Unreadable documents are skipped with a warning;
// a book whose spine documents are all unreadable is invalid.
func (b *Book) Content() (book.Content, error) {
	titles := tocTitles(b.toc)
	chapters := make([]book.Chapter, 0, len(b.spine))
	for _, p := range b.spine {
		data, err := b.zip.ReadText(p)
		if err != nil {
			b.warnf("skip chapter %s: %v", p, err)
			continue
		}
		doc := string(data)

		title := titles[strings.ToLower(p)]
		if title == "" {
			title = markup.Title(doc)
		}
		chapters = append(chapters, book.Chapter{
			ID:    p,
			Title: title,
			HTML:  doc,
			Order: len(chapters),
			CSS:   stylesheets(p, doc),
		})
	}
	if len(chapters) == 0 && len(b.spine) > 0 {
		return book.Content{}, fmt.Errorf("epub: no readable spine document: %w", ErrInvalidEPub)
	}
	return book.Content{TOC: b.TOC(), Chapters: chapters}, nil
}

func tocTitles(toc []book.TocEntry) map[string]string {
	m := make(map[string]string)
	book.WalkTOC(toc, func(e book.TocEntry) bool {
		if !e.HasContent() || e.Title == "" {
			return true
		}
		key := strings.ToLower(pathid.Normalize(e.ContentSrc))
		if _, ok := m[key]; !ok {
			m[key] = e.Title
		}
		return true
	})
	return m
}

func stylesheets(chapterPath, doc string) []string {
	var out []string
	for _, href := range markup.StylesheetLinks(doc) {
		if archive.IsExternal(href) {
			continue
		}
		if p := pathid.Resolve(chapterPath, href); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// titleFromPath names a book after its file when the package has no title.
func titleFromPath(p string) string {
	base := path.Base(strings.ReplaceAll(p, `\`, "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}
