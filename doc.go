// Package epub reads ePub 2 and ePub 3 files into the book model.
//
// It locates the package document through META-INF/container.xml (falling
// back to the first .opf entry), rejects DRM protected books with
// [ErrDRMProtected], and builds the table of contents from the ePub 3
// navigation document or the NCX:
//
//	b, err := epub.Open("book.epub")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close()
//
//	content, err := b.Content()
//	for _, ch := range content.Chapters {
//	    fmt.Println(ch.Order, ch.ID, ch.Title)
//	}
//
// TOC sources are resolved to archive paths and keep their fragment, so an
// entry like "../text/ch01.xhtml#sec2" becomes "OEBPS/text/ch01.xhtml#sec2".
// Chapters are identified by the archive path of their spine document.
//
// Structural oddities that do not prevent reading (a misplaced mimetype
// entry, dangling spine references, an unparsable NCX) are collected by
// [Book.Warnings] instead of failing.
//
// [Parser] adapts the package to the library: Parse re-reads a damaged
// book and Load imports a new one.
package epub
