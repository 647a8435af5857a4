package epub

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/simp-lee/epubview/book"
	"github.com/simp-lee/epubview/pathid"
)

// parseTOC reads the table of contents. ePub 3 books use their navigation
// document when it has a toc nav, anything else falls back to the NCX.
// Failures are recorded as warnings and leave the TOC empty.
func (b *Book) parseTOC() []book.TocEntry {
	if strings.HasPrefix(b.pkg.Version, "3") {
		if toc, ok := b.navTOC(); ok {
			return toc
		}
	}
	if toc, ok := b.ncxTOC(); ok {
		return toc
	}
	return []book.TocEntry{}
}

func (b *Book) navTOC() ([]book.TocEntry, bool) {
	var navPath string
	for _, it := range b.pkg.Manifest {
		if it.hasProperty("nav") {
			navPath = b.resolve(it.Href)
			break
		}
	}
	if navPath == "" || b.zip.Find(navPath) == nil {
		return nil, false
	}

	data, err := b.zip.ReadText(navPath)
	if err != nil {
		b.warnf("read navigation document: %v", err)
		return nil, false
	}
	toc, err := parseNav(data, navPath)
	if err != nil {
		b.warnf("parse navigation document: %v", err)
		return nil, false
	}
	return toc, toc != nil
}

func (b *Book) ncxTOC() ([]book.TocEntry, bool) {
	id := b.pkg.Spine.Toc
	if id == "" {
		// some ePub 2 books omit spine@toc
		for _, it := range b.pkg.Manifest {
			if strings.EqualFold(it.MediaType, "application/x-dtbncx+xml") {
				id = it.ID
				break
			}
		}
	}
	it, ok := b.pkg.item(id)
	if !ok {
		return nil, false
	}
	ncxPath := b.resolve(it.Href)
	if b.zip.Find(ncxPath) == nil {
		return nil, false
	}

	data, err := b.zip.ReadText(ncxPath)
	if err != nil {
		b.warnf("read NCX file: %v", err)
		return nil, false
	}
	toc, err := parseNCX(data, ncxPath)
	if err != nil {
		b.warnf("parse NCX file: %v", err)
		return nil, false
	}
	return toc, true
}

// NCX (ePub 2)

type ncxDocument struct {
	XMLName   xml.Name      `xml:"ncx"`
	NavPoints []ncxNavPoint `xml:"navMap>navPoint"`
}

type ncxNavPoint struct {
	ID        string        `xml:"id,attr"`
	PlayOrder string        `xml:"playOrder,attr"`
	Label     string        `xml:"navLabel>text"`
	Src       ncxContent    `xml:"content"`
	Children  []ncxNavPoint `xml:"navPoint"`
}

type ncxContent struct {
	Src string `xml:"src,attr"`
}

// tocBuilder numbers entries in document order. Sources are resolved
// against the path of the document that lists them, fragments kept.
type tocBuilder struct {
	base  string
	order int
}

func (tb *tocBuilder) entry(id, title, src string, playOrder, depth int) book.TocEntry {
	tb.order++
	if playOrder <= 0 {
		playOrder = tb.order
	}
	if id == "" {
		id = fmt.Sprintf("toc-%d", tb.order)
	}
	e := book.TocEntry{
		ID:        id,
		Title:     strings.Join(strings.Fields(title), " "),
		PlayOrder: playOrder,
		Depth:     depth,
	}
	if src = strings.TrimSpace(src); src != "" {
		e.ContentSrc = pathid.ResolveRef(tb.base, src)
	}
	return e
}

func parseNCX(data []byte, ncxPath string) ([]book.TocEntry, error) {
	var doc ncxDocument
	if err := xml.Unmarshal(numericEntities(data), &doc); err != nil {
		return nil, fmt.Errorf("epub: parse NCX: %w", err)
	}
	tb := &tocBuilder{base: ncxPath}
	return tb.navPoints(doc.NavPoints, 0), nil
}

func (tb *tocBuilder) navPoints(points []ncxNavPoint, depth int) []book.TocEntry {
	if len(points) == 0 {
		return nil
	}
	out := make([]book.TocEntry, 0, len(points))
	for _, np := range points {
		order, _ := strconv.Atoi(strings.TrimSpace(np.PlayOrder))
		e := tb.entry(strings.TrimSpace(np.ID), np.Label, np.Src.Src, order, depth)
		e.Children = tb.navPoints(np.Children, depth+1)
		out = append(out, e)
	}
	return out
}

// Navigation document (ePub 3)

// parseNav returns the entries of the first <nav epub:type="toc">, nil when
// the document has none.
func parseNav(data []byte, navPath string) ([]book.TocEntry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("epub: parse nav document: %w", err)
	}

	var list *goquery.Selection
	doc.Find("nav").EachWithBreak(func(_ int, nav *goquery.Selection) bool {
		t, _ := nav.Attr("epub:type")
		if !hasToken(t, "toc") {
			return true
		}
		list = nav.Find("ol").First()
		return false
	})
	if list == nil || list.Length() == 0 {
		return nil, nil
	}

	tb := &tocBuilder{base: navPath}
	toc := tb.navList(list, 0)
	if toc == nil {
		toc = []book.TocEntry{}
	}
	return toc, nil
}

func (tb *tocBuilder) navList(ol *goquery.Selection, depth int) []book.TocEntry {
	var out []book.TocEntry
	ol.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		var title, href string
		label := li.ChildrenFiltered("a").First()
		if label.Length() > 0 {
			href, _ = label.Attr("href")
		} else {
			// grouping header
			label = li.ChildrenFiltered("span").First()
		}
		title = label.Text()

		id, _ := li.Attr("id")
		e := tb.entry(strings.TrimSpace(id), title, href, 0, depth)
		if sub := li.ChildrenFiltered("ol").First(); sub.Length() > 0 {
			e.Children = tb.navList(sub, depth+1)
		}
		out = append(out, e)
	})
	return out
}

func hasToken(list, token string) bool {
	for _, f := range strings.Fields(list) {
		if f == token {
			return true
		}
	}
	return false
}
