// Package pathid canonicalizes chapter identifiers and archive references.
//
// The same chapter shows up under several spellings: table-of-contents
// sources carry fragments and are often relative ("./ch01.xhtml#note3"),
// chapter records hold fully resolved archive paths ("OEBPS/ch01.xhtml"),
// and navigation events may be percent-escaped. Every place that compares
// or resolves such strings goes through this package.
package pathid

import (
	"net/url"
	"path"
	"strings"
)

// Normalize returns the canonical form of a chapter identifier: fragment
// removed, backslashes turned into slashes, leading "./" and "/" stripped,
// percent-escapes decoded and "." / ".." segments resolved.
//
// Normalize is idempotent. Decoding can surface new "%XX", "#" or dot
// segments, so the transformation is applied until the value stops changing.
func Normalize(raw string) string {
	cur := raw
	for {
		next := normalizeOnce(cur)
		if next == cur {
			return next
		}
		cur = next
	}
}

func normalizeOnce(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, `\`, "/")
	s = strings.TrimPrefix(s, "./")
	s = strings.TrimPrefix(s, "/")
	s = unescape(s)
	return resolveSegments(s)
}

// Matches reports whether two identifiers name the same chapter: equal
// ignoring case after normalization, or one is a "/"-bounded suffix of the
// other. Empty identifiers never match.
func Matches(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	if strings.EqualFold(na, nb) {
		return true
	}
	la, lb := strings.ToLower(na), strings.ToLower(nb)
	return strings.HasSuffix(la, "/"+lb) || strings.HasSuffix(lb, "/"+la)
}

// Split separates an identifier into its path part and fragment (without
// the leading '#'). Both parts are returned untouched otherwise.
func Split(raw string) (string, string) {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		return raw[:i], raw[i+1:]
	}
	return raw, ""
}

// Resolve resolves ref against the directory of base, both archive-internal
// paths. Query and fragment suffixes of ref are dropped and escapes decoded.
// A ref starting with "/" is taken from the archive root. The result is a
// normalized path, empty when nothing is left after resolution.
func Resolve(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	ref = unescape(strings.ReplaceAll(ref, `\`, "/"))
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "/") {
		return resolveSegments(ref)
	}
	dir := path.Dir(Normalize(base))
	if dir == "." {
		return resolveSegments(ref)
	}
	return resolveSegments(dir + "/" + ref)
}

// ResolveRef is Resolve that keeps the fragment of ref, so TOC sources such
// as "../text/ch01.xhtml#sec2" keep pointing at their anchor.
func ResolveRef(base, ref string) string {
	p, frag := Split(ref)
	resolved := Resolve(base, p)
	if resolved == "" || frag == "" {
		return resolved
	}
	return resolved + "#" + frag
}

// resolveSegments walks s segment by segment with a stack: "." and empty
// segments are skipped, ".." pops (never past the root).
func resolveSegments(s string) string {
	parts := strings.Split(s, "/")
	stack := make([]string, 0, len(parts))
	for _, seg := range parts {
		switch seg {
		case "", ".":
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, seg)
		}
	}
	return strings.Join(stack, "/")
}

func unescape(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	if decoded, err := url.PathUnescape(s); err == nil {
		return decoded
	}
	return s
}
