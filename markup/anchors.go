package markup

import (
	"regexp"
	"strings"
)

var (
	// anchorTagPattern matches "<a ...>" openers (including self-closed
	// ones) and "</a>" closers, but not tags like <abbr> or <aside>.
	anchorTagPattern = regexp.MustCompile(`(?is)<a(\s[^>]*)?>|<a/>|</a\s*>`)
	attrPattern      = regexp.MustCompile(`(?s)([^\s=/>"']+)(?:\s*=\s*("[^"]*"|'[^']*'|[^\s>]+))?`)
)

// droppedAnchorAttrs are the navigation attributes removed when an anchor
// is turned into a span.
var droppedAnchorAttrs = map[string]bool{
	"href":   true,
	"target": true,
	"rel":    true,
}

// HasAnchor reports whether s contains at least one anchor opener.
func HasAnchor(s string) bool {
	return anchorTagPattern.MatchString(s)
}

// NormalizeAnchors turns anchors that are not real navigation links into
// inert <span> elements. An anchor is kept when its class or id contains
// "link" (any case). Openers and closers are paired with a stack in document
// order, so every emitted closer matches the element chosen for its opener
// even when the source nests or leaves anchors unbalanced. Stray closers are
// dropped; openers still pending at the end are closed in reverse order.
func NormalizeAnchors(s string) string {
	matches := anchorTagPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	var (
		out   strings.Builder
		stack []bool
		last  int
	)
	out.Grow(len(s) + len(matches)*4)

	for _, m := range matches {
		out.WriteString(s[last:m[0]])
		last = m[1]
		tag := s[m[0]:m[1]]

		if strings.HasPrefix(tag, "</") {
			if len(stack) == 0 {
				continue
			}
			allowed := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			out.WriteString(closerFor(allowed))
			continue
		}

		attrs := ""
		if m[2] >= 0 {
			attrs = s[m[2]:m[3]]
		}
		selfClosed := tag == "<a/>" || strings.HasSuffix(strings.TrimSpace(attrs), "/")
		if selfClosed {
			attrs = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(attrs), "/"))
		}

		allowed := isLinkAnchor(attrs)
		switch {
		case allowed && selfClosed:
			out.WriteString("<a")
			if attrs != "" {
				out.WriteByte(' ')
				out.WriteString(attrs)
			}
			out.WriteString("></a>")
		case allowed:
			out.WriteString(tag)
			stack = append(stack, true)
		case selfClosed:
			out.WriteString(spanOpener(attrs))
			out.WriteString("</span>")
		default:
			out.WriteString(spanOpener(attrs))
			stack = append(stack, false)
		}
	}
	out.WriteString(s[last:])

	for i := len(stack) - 1; i >= 0; i-- {
		out.WriteString(closerFor(stack[i]))
	}
	return out.String()
}

func closerFor(allowed bool) string {
	if allowed {
		return "</a>"
	}
	return "</span>"
}

// isLinkAnchor decides whether an anchor with the given raw attribute text
// is a navigational link.
func isLinkAnchor(attrs string) bool {
	for _, a := range parseAttrs(attrs) {
		switch a.name {
		case "class", "id":
			if strings.Contains(strings.ToLower(a.value), "link") {
				return true
			}
		}
	}
	return false
}

// spanOpener builds "<span ...>" keeping every attribute except the
// navigation ones, in their original spelling.
func spanOpener(attrs string) string {
	var b strings.Builder
	b.WriteString("<span")
	for _, a := range parseAttrs(attrs) {
		if droppedAnchorAttrs[a.name] {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(a.raw)
	}
	b.WriteByte('>')
	return b.String()
}

type attr struct {
	name  string // lowercased
	value string // unquoted
	raw   string // as written in the source
}

func parseAttrs(s string) []attr {
	var attrs []attr
	for _, m := range attrPattern.FindAllStringSubmatch(s, -1) {
		a := attr{name: strings.ToLower(m[1]), raw: m[0]}
		v := m[2]
		if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
			v = v[1 : len(v)-1]
		}
		a.value = v
		attrs = append(attrs, a)
	}
	return attrs
}
