// Package archive gives case-insensitive, size-guarded access to the entries
// of a book container and resolves chapter images against it.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/simp-lee/epubview/pathid"
)

// maxDecompressSize is the maximum allowed decompressed size for a single ZIP entry.
// This guards against zip bomb attacks. Defaults to 256 MB.
const maxDecompressSize int64 = 256 * 1024 * 1024

// ErrNotFound indicates the requested entry does not exist in the archive.
var ErrNotFound = errors.New("archive: entry not found")

// Reader is the read side of a book container as seen by renderers.
// Names are archive-internal paths; lookups ignore case.
type Reader interface {
	ReadFile(name string) ([]byte, error)
}

// ReadCloser is a Reader holding resources that must be released.
type ReadCloser interface {
	Reader
	io.Closer
}

// Zip is a Reader over a ZIP container. It is safe for concurrent reads.
type Zip struct {
	zr     *zip.Reader
	exact  map[string]*zip.File
	lower  map[string]*zip.File
	closer io.Closer
	limit  int64
}

// Open opens the ZIP file at path. The caller must call Close.
func Open(path string) (*Zip, error) {
	zrc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	z := newZip(&zrc.Reader)
	z.closer = zrc
	return z, nil
}

// NewReader creates a Zip from an io.ReaderAt with the given size.
// The caller is responsible for the lifetime of r.
func NewReader(r io.ReaderAt, size int64) (*Zip, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("archive: open zip: %w", err)
	}
	return newZip(zr), nil
}

func newZip(zr *zip.Reader) *Zip {
	z := &Zip{
		zr:    zr,
		exact: make(map[string]*zip.File, len(zr.File)),
		lower: make(map[string]*zip.File, len(zr.File)),
		limit: maxDecompressSize,
	}
	for _, f := range zr.File {
		if _, ok := z.exact[f.Name]; !ok {
			z.exact[f.Name] = f
		}
		lower := strings.ToLower(f.Name)
		if _, ok := z.lower[lower]; !ok {
			z.lower[lower] = f
		}
	}
	return z
}

// Close releases the underlying file when the Zip was created by Open.
// Close is idempotent.
func (z *Zip) Close() error {
	if z.closer == nil {
		return nil
	}
	err := z.closer.Close()
	z.closer = nil
	return err
}

// Names returns entry names in archive order.
func (z *Zip) Names() []string {
	names := make([]string, 0, len(z.zr.File))
	for _, f := range z.zr.File {
		names = append(names, f.Name)
	}
	return names
}

// First returns the first entry of the archive or nil for an empty one.
func (z *Zip) First() *zip.File {
	if len(z.zr.File) == 0 {
		return nil
	}
	return z.zr.File[0]
}

// Find looks an entry up by exact name, then by normalized name ignoring case.
func (z *Zip) Find(name string) *zip.File {
	if f, ok := z.exact[name]; ok {
		return f
	}
	if f, ok := z.lower[strings.ToLower(name)]; ok {
		return f
	}
	if f, ok := z.lower[strings.ToLower(pathid.Normalize(name))]; ok {
		return f
	}
	return nil
}

// FindExt returns the first entry whose name ends with ext, ignoring case.
func (z *Zip) FindExt(ext string) *zip.File {
	ext = strings.ToLower(ext)
	for _, f := range z.zr.File {
		if strings.ToLower(path.Ext(f.Name)) == ext {
			return f
		}
	}
	return nil
}

// ReadFile reads the whole entry. Missing entries yield ErrNotFound.
func (z *Zip) ReadFile(name string) ([]byte, error) {
	f := z.Find(name)
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return readEntry(f, z.limit)
}

// ReadText reads an entry and strips a leading UTF-8 BOM.
func (z *Zip) ReadText(name string) ([]byte, error) {
	data, err := z.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return StripBOM(data), nil
}

// ReadEntry reads f under the default decompression limit.
func ReadEntry(f *zip.File) ([]byte, error) {
	return readEntry(f, maxDecompressSize)
}

// readEntry reads the full contents of a ZIP entry, refusing unsafe names
// and anything larger than limit once decompressed.
func readEntry(f *zip.File, limit int64) ([]byte, error) {
	if !isSafePath(f.Name) {
		return nil, fmt.Errorf("archive: unsafe zip entry path: %s", f.Name)
	}
	if f.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("archive: zip entry %s too large: %d bytes (max %d)", f.Name, f.UncompressedSize64, limit)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("archive: open zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	// The declared size may be forged; read one byte past the limit to notice.
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("archive: read zip entry %s: %w", f.Name, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("archive: zip entry %s decompressed size exceeds limit (%d bytes)", f.Name, limit)
	}
	return data, nil
}

// isSafePath checks whether p stays inside the archive root.
func isSafePath(p string) bool {
	cleaned := path.Clean(strings.ReplaceAll(p, `\`, "/"))
	if strings.HasPrefix(cleaned, "/") {
		return false
	}
	return cleaned != ".." && !strings.HasPrefix(cleaned, "../")
}

// StripBOM removes a leading UTF-8 BOM (0xEF 0xBB 0xBF) from data, if present.
func StripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
