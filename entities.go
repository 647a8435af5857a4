package epub

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

var namedEntityPattern = regexp.MustCompile(`&([A-Za-z][A-Za-z0-9]*);`)

// xmlEntities are the only named references encoding/xml understands.
var xmlEntities = map[string]bool{"amp": true, "lt": true, "gt": true, "quot": true, "apos": true}

// numericEntities rewrites HTML named character references, which many
// package and NCX documents carry, into numeric references so encoding/xml
// accepts them. Unknown names are left alone.
func numericEntities(data []byte) []byte {
	return namedEntityPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		name := string(m[1 : len(m)-1])
		if xmlEntities[name] {
			return m
		}
		decoded := html.UnescapeString(string(m))
		if decoded == string(m) {
			return m
		}
		var b strings.Builder
		for _, r := range decoded {
			fmt.Fprintf(&b, "&#%d;", r)
		}
		return []byte(b.String())
	})
}
