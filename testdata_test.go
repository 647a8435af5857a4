package epub

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simp-lee/epubview/archive"
)

// zipBytes writes files into a ZIP, "mimetype" first when present and the
// rest in name order.
func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		if name != "mimetype" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if _, ok := files["mimetype"]; ok {
		names = append([]string{"mimetype"}, names...)
	}

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for _, name := range names {
		fw, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(fw, files[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func buildTestZip(t *testing.T, files map[string]string) *archive.Zip {
	t.Helper()
	data := zipBytes(t, files)
	z, err := archive.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return z
}

func buildTestEPub(t *testing.T, files map[string]string) *Book {
	t.Helper()
	data := zipBytes(t, files)
	b, err := NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return b
}

func buildTestEPubFile(t *testing.T, files map[string]string) string {
	t.Helper()
	fp := filepath.Join(t.TempDir(), "test.epub")
	require.NoError(t, os.WriteFile(fp, zipBytes(t, files), 0o644))
	return fp
}

const testContainer = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

// epub2Files is a small ePub 2 book: two chapters listed by an NCX with a
// nested fragment entry, and a stylesheet.
func epub2Files() map[string]string {
	return map[string]string{
		"mimetype":               "application/epub+zip",
		"META-INF/container.xml": testContainer,
		"OEBPS/content.opf": `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Caf&eacute; Stories</dc:title>
    <dc:creator>Ann Author</dc:creator>
    <dc:creator>Bob Writer</dc:creator>
    <dc:language>en</dc:language>
    <dc:identifier id="uid">urn:isbn:123</dc:identifier>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="c1" href="text/ch01.xhtml" media-type="application/xhtml+xml"/>
    <item id="c2" href="text/ch02.xhtml" media-type="application/xhtml+xml"/>
    <item id="css" href="styles/book.css" media-type="text/css"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="c1"/>
    <itemref idref="c2"/>
  </spine>
</package>`,
		"OEBPS/toc.ncx": `<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
    <navPoint id="np1" playOrder="1">
      <navLabel><text>The   Beginning</text></navLabel>
      <content src="text/ch01.xhtml"/>
      <navPoint id="np2" playOrder="2">
        <navLabel><text>A Note</text></navLabel>
        <content src="text/ch01.xhtml#note"/>
      </navPoint>
    </navPoint>
    <navPoint id="np3" playOrder="3">
      <navLabel><text>The End</text></navLabel>
      <content src="text/ch02.xhtml"/>
    </navPoint>
  </navMap>
</ncx>`,
		"OEBPS/text/ch01.xhtml": `<html><head><title>Ignored</title><link rel="stylesheet" href="../styles/book.css"/></head><body><p>Once upon a time.</p><p id="note">A note.</p></body></html>`,
		"OEBPS/text/ch02.xhtml": `<html><head><title>Two</title></head><body><p>The end.</p></body></html>`,
		"OEBPS/styles/book.css": `p { margin: 0 }`,
	}
}

// epub3Files is an ePub 3 book with a navigation document holding a
// grouping header, plus a chapter the TOC does not list.
func epub3Files() map[string]string {
	return map[string]string{
		"mimetype":               "application/epub+zip",
		"META-INF/container.xml": testContainer,
		"OEBPS/content.opf": `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Nav Book</dc:title>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="c1" href="ch01.xhtml" media-type="application/xhtml+xml"/>
    <item id="c2" href="ch02.xhtml" media-type="application/xhtml+xml"/>
    <item id="c3" href="ch03.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="c1"/>
    <itemref idref="c2"/>
    <itemref idref="c3"/>
  </spine>
</package>`,
		"OEBPS/nav.xhtml": `<html xmlns:epub="http://www.idpf.org/2007/ops"><body>
<nav epub:type="landmarks"><ol><li><a href="ch01.xhtml">Start</a></li></ol></nav>
<nav epub:type="toc"><ol>
  <li id="first"><a href="ch01.xhtml">One</a></li>
  <li><span>Part Two</span>
    <ol><li><a href="ch02.xhtml#s1">Two, section 1</a></li></ol>
  </li>
</ol></nav>
</body></html>`,
		"OEBPS/ch01.xhtml": `<html><body><h1>One</h1></body></html>`,
		"OEBPS/ch02.xhtml": `<html><body><h1>Two</h1><h2 id="s1">S1</h2></body></html>`,
		"OEBPS/ch03.xhtml": `<html><head><title>Appendix</title></head><body><p>Extra</p></body></html>`,
	}
}
