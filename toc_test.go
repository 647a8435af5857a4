package epub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simp-lee/epubview/book"
)

func TestParseNCX(t *testing.T) {
	toc, err := parseNCX([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
    <navPoint id="p1" playOrder="3">
      <navLabel><text>Part &mdash; One</text></navLabel>
      <content src="../Text/part1.xhtml"/>
      <navPoint>
        <navLabel><text>Section</text></navLabel>
        <content src="../Text/part1.xhtml#sec%201"/>
      </navPoint>
    </navPoint>
    <navPoint id="p2" playOrder="bad">
      <navLabel><text>Heading only</text></navLabel>
    </navPoint>
  </navMap>
</ncx>`), "OEBPS/nav/toc.ncx")
	require.NoError(t, err)
	require.Len(t, toc, 2)

	assert.Equal(t, book.TocEntry{
		ID:         "p1",
		Title:      "Part — One",
		ContentSrc: "OEBPS/Text/part1.xhtml",
		PlayOrder:  3,
		Depth:      0,
		Children: []book.TocEntry{{
			ID:         "toc-2",
			Title:      "Section",
			ContentSrc: "OEBPS/Text/part1.xhtml#sec%201",
			PlayOrder:  2,
			Depth:      1,
		}},
	}, toc[0])

	assert.Equal(t, "p2", toc[1].ID)
	assert.Equal(t, 3, toc[1].PlayOrder, "unparsable playOrder falls back to document order")
	assert.False(t, toc[1].HasContent())
}

func TestParseNCX_Malformed(t *testing.T) {
	_, err := parseNCX([]byte(`<ncx><navMap>`), "toc.ncx")
	assert.ErrorContains(t, err, "parse NCX")
}

func TestParseNav(t *testing.T) {
	toc, err := parseNav([]byte(epub3Files()["OEBPS/nav.xhtml"]), "OEBPS/nav.xhtml")
	require.NoError(t, err)
	require.Len(t, toc, 2, "landmarks are not part of the TOC")

	assert.Equal(t, "first", toc[0].ID)
	assert.Equal(t, "One", toc[0].Title)
	assert.Equal(t, "OEBPS/ch01.xhtml", toc[0].ContentSrc)
	assert.Equal(t, 1, toc[0].PlayOrder)

	group := toc[1]
	assert.Equal(t, "Part Two", group.Title)
	assert.False(t, group.HasContent())
	require.Len(t, group.Children, 1)
	assert.Equal(t, "OEBPS/ch02.xhtml#s1", group.Children[0].ContentSrc)
	assert.Equal(t, 1, group.Children[0].Depth)
	assert.Equal(t, 3, group.Children[0].PlayOrder)
	assert.Equal(t, "toc-3", group.Children[0].ID)
}

func TestParseNav_NoTocNav(t *testing.T) {
	toc, err := parseNav([]byte(`<html><body><nav epub:type="landmarks"><ol><li><a href="a.xhtml">A</a></li></ol></nav></body></html>`), "nav.xhtml")
	require.NoError(t, err)
	assert.Nil(t, toc)
}

func TestTOC_NavFallsBackToNCX(t *testing.T) {
	files := epub3Files()
	files["OEBPS/nav.xhtml"] = `<html><body><p>no nav here</p></body></html>`
	files["OEBPS/content.opf"] = `<package version="3.0"><manifest>
  <item id="nav" href="nav.xhtml" properties="nav"/>
  <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
  <item id="c1" href="ch01.xhtml"/>
</manifest><spine><itemref idref="c1"/></spine></package>`
	files["OEBPS/toc.ncx"] = `<ncx><navMap><navPoint id="n1"><navLabel><text>From NCX</text></navLabel><content src="ch01.xhtml"/></navPoint></navMap></ncx>`

	b := buildTestEPub(t, files)
	toc := b.TOC()
	require.Len(t, toc, 1)
	assert.Equal(t, "From NCX", toc[0].Title)
	assert.Equal(t, "OEBPS/ch01.xhtml", toc[0].ContentSrc)
}

func TestTOC_BrokenNCXWarns(t *testing.T) {
	files := epub2Files()
	files["OEBPS/toc.ncx"] = "<ncx><navMap>"
	b := buildTestEPub(t, files)

	assert.Equal(t, []book.TocEntry{}, b.TOC())
	require.Len(t, b.Warnings(), 1)
	assert.Contains(t, b.Warnings()[0], "NCX")
}
