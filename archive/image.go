package archive

import (
	"path"
	"strings"

	"github.com/simp-lee/epubview/pathid"
)

// Image is an archive entry referenced from chapter markup.
type Image struct {
	Path      string
	MediaType string
	Data      []byte
}

var externalPrefixes = []string{"http://", "https://", "data:", "file://", "cid:"}

// IsExternal reports whether src points outside the archive.
func IsExternal(src string) bool {
	s := strings.ToLower(strings.TrimSpace(src))
	for _, p := range externalPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// ResolveImage resolves src relative to the chapter at chapterPath and reads
// the matching entry. Any failure (external source, unresolvable path,
// missing entry, read error) reports false so callers keep the original
// markup.
func ResolveImage(r Reader, chapterPath, src string) (Image, bool) {
	if r == nil || strings.TrimSpace(src) == "" || IsExternal(src) {
		return Image{}, false
	}
	target := pathid.Resolve(chapterPath, src)
	if target == "" {
		return Image{}, false
	}
	data, err := r.ReadFile(target)
	if err != nil {
		return Image{}, false
	}
	return Image{Path: target, MediaType: MediaType(target), Data: data}, true
}

// MediaType infers an image MIME type from the file extension only.
func MediaType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	default:
		return "application/octet-stream"
	}
}
