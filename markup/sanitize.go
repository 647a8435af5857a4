// Package markup rewrites chapter HTML: script and event-handler stripping,
// anchor normalization and plain-text extraction. Every function tolerates
// malformed or unbalanced markup and never fails.
package markup

import (
	"regexp"
)

var (
	scriptBlockPattern  = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	scriptSelfPattern   = regexp.MustCompile(`(?is)<script\b[^>]*/>`)
	scriptOpenPattern   = regexp.MustCompile(`(?is)<script\b[^>]*>.*$`)
	eventAttrPattern    = regexp.MustCompile(`(?is)\s+on[a-z0-9_]+\s*=\s*(?:"[^"]*"|'[^']*'|[^\s>]+)`)
	javascriptURIPrefix = regexp.MustCompile(`(?i)javascript\s*:`)
)

// StripScripts removes script blocks, then on* event attributes, then every
// "javascript:" occurrence. An unterminated script runs to the end of the
// document and is removed with it. Scripts go first so their bodies are removed
// whole before the attribute pass looks at them.
func StripScripts(s string) string {
	s = scriptBlockPattern.ReplaceAllString(s, "")
	s = scriptSelfPattern.ReplaceAllString(s, "")
	s = scriptOpenPattern.ReplaceAllString(s, "")
	s = eventAttrPattern.ReplaceAllString(s, "")
	return javascriptURIPrefix.ReplaceAllString(s, "")
}
