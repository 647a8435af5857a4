package main

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simp-lee/epubview/state"
	"github.com/simp-lee/epubview/store"
)

var sampleBook = map[string]string{
	"mimetype": "application/epub+zip",
	"META-INF/container.xml": `<container><rootfiles>
<rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
</rootfiles></container>`,
	"OEBPS/content.opf": `<package version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<metadata><dc:title>Sample Tale</dc:title><dc:creator>Ann Author</dc:creator></metadata>
<manifest>
  <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
  <item id="c1" href="ch01.xhtml" media-type="application/xhtml+xml"/>
</manifest>
<spine toc="ncx"><itemref idref="c1"/></spine>
</package>`,
	"OEBPS/toc.ncx": `<ncx><navMap><navPoint id="n1" playOrder="1">
<navLabel><text>Opening</text></navLabel><content src="ch01.xhtml"/>
</navPoint></navMap></ncx>`,
	"OEBPS/ch01.xhtml": `<html><head><title>Opening</title></head><body><p>Once upon a time there was a theme.</p></body></html>`,
}

type fixture struct {
	dir, config, db, epub string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{dir: t.TempDir()}
	f.db = filepath.Join(f.dir, "lib.db")
	f.config = filepath.Join(f.dir, "epubview.yaml")
	require.NoError(t, os.WriteFile(f.config, []byte(`
library:
  database: `+f.db+`
logging:
  console:
    level: none
  file:
    level: none
`), 0o644))

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for _, name := range []string{"mimetype", "META-INF/container.xml", "OEBPS/content.opf", "OEBPS/toc.ncx", "OEBPS/ch01.xhtml"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(sampleBook[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	f.epub = filepath.Join(f.dir, "sample.epub")
	require.NoError(t, os.WriteFile(f.epub, buf.Bytes(), 0o644))
	return f
}

func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(state.ContextWithEnv(context.Background()), append([]string{"epubview", "-c", f.config}, args...))
	return out.String(), err
}

func (f *fixture) importSample(t *testing.T) string {
	t.Helper()
	out, err := f.run(t, "import", f.epub)
	require.NoError(t, err)
	assert.Contains(t, out, "Sample Tale")

	db, err := store.Open(f.db)
	require.NoError(t, err)
	defer db.Close()
	books, err := db.List(context.Background())
	require.NoError(t, err)
	require.Len(t, books, 1)
	return books[0].ID
}

func TestCLI_ImportAndRead(t *testing.T) {
	f := newFixture(t)
	id := f.importSample(t)

	out, err := f.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "Ann Author")

	out, err = f.run(t, "toc", id)
	require.NoError(t, err)
	assert.Contains(t, out, "OEBPS/ch01.xhtml")

	out, err = f.run(t, "chapters", id, "opening")
	require.NoError(t, err)
	assert.Contains(t, out, "Opening")

	out, err = f.run(t, "text", id, "ch01.xhtml")
	require.NoError(t, err)
	assert.Equal(t, "Opening Once upon a time there was a theme.\n", out)

	out, err = f.run(t, "search", "--whole-word", id, "time")
	require.NoError(t, err)
	assert.Contains(t, out, "[time]")

	out, err = f.run(t, "suggest", id, "the")
	require.NoError(t, err)
	assert.Equal(t, "theme\nthere\n", out)
}

func TestCLI_Render(t *testing.T) {
	f := newFixture(t)
	id := f.importSample(t)

	dest := filepath.Join(f.dir, "ch01.html")
	_, err := f.run(t, "render", "--font-size", "24", id, "OEBPS/ch01.xhtml#top", dest)
	require.NoError(t, err)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<style id="reader-style">`)
	assert.Contains(t, string(data), "font-size: 24px")
	assert.Contains(t, string(data), `"top"`)

	out, err := f.run(t, "book", id)
	require.NoError(t, err)
	assert.Contains(t, out, "<title>Sample Tale</title>")

	out, err = f.run(t, "prewarm", "--keys", id)
	require.NoError(t, err)
	assert.Contains(t, out, "rendered 1 chapter(s)")
}

func TestCLI_Heal(t *testing.T) {
	f := newFixture(t)
	id := f.importSample(t)

	_, err := f.run(t, "heal", "--force", id)
	assert.NoError(t, err)
}

func TestCLI_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t, "toc")
	assert.ErrorIs(t, err, errArgs)

	_, err = f.run(t, "toc", "missing")
	assert.Error(t, err)

	_, err = f.run(t, "import", filepath.Join(f.dir, "nope.epub"))
	assert.ErrorContains(t, err, "not imported")
}

func TestCLI_DumpConfig(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "dumpconfig")
	require.NoError(t, err)
	assert.Contains(t, out, f.db)

	out, err = f.run(t, "dumpconfig", "--default")
	require.NoError(t, err)
	assert.Contains(t, out, "database: epubview.db")
}
