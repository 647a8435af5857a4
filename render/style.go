package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ColorScheme holds the six reader colors exposed as CSS custom properties.
type ColorScheme struct {
	Background string `yaml:"background"`
	Text       string `yaml:"text"`
	Link       string `yaml:"link"`
	Selection  string `yaml:"selection"`
	Highlight  string `yaml:"highlight"`
	Code       string `yaml:"code"`
}

// Style describes reader typography and colors. Two styles are
// interchangeable for caching when their Stylesheet output is identical.
type Style struct {
	// FontFamily is a CSS font-family list.
	FontFamily string `yaml:"font_family"`

	// FontSize is the base font size in pixels.
	FontSize float64 `yaml:"font_size"`

	// LineHeight is a unitless line-height multiplier.
	LineHeight float64 `yaml:"line_height"`

	// LetterSpacing is in em.
	LetterSpacing float64 `yaml:"letter_spacing"`

	// MarginH and MarginV are body paddings in pixels.
	MarginH float64 `yaml:"margin_h"`
	MarginV float64 `yaml:"margin_v"`

	Colors ColorScheme `yaml:"colors"`

	// CustomCSS is appended verbatim after the generated rules.
	CustomCSS string `yaml:"custom_css"`
}

// DefaultStyle returns the light reading style.
func DefaultStyle() Style {
	return Style{
		FontFamily:    `Georgia, "Times New Roman", serif`,
		FontSize:      18,
		LineHeight:    1.6,
		LetterSpacing: 0,
		MarginH:       40,
		MarginV:       24,
		Colors: ColorScheme{
			Background: "#fbfaf7",
			Text:       "#222222",
			Link:       "#1a5fb4",
			Selection:  "#c7dcf5",
			Highlight:  "#fff3a3",
			Code:       "#f0eee9",
		},
	}
}

// Stylesheet renders the style as CSS text.
func (s Style) Stylesheet() string {
	var b strings.Builder

	b.WriteString(":root {\n")
	writeVar(&b, "--reader-bg", s.Colors.Background)
	writeVar(&b, "--reader-text", s.Colors.Text)
	writeVar(&b, "--reader-link", s.Colors.Link)
	writeVar(&b, "--reader-selection", s.Colors.Selection)
	writeVar(&b, "--reader-highlight", s.Colors.Highlight)
	writeVar(&b, "--reader-code", s.Colors.Code)
	b.WriteString("}\n")

	fmt.Fprintf(&b, "html, body {\n  background: var(--reader-bg);\n  color: var(--reader-text);\n")
	if f := strings.TrimSpace(s.FontFamily); f != "" {
		fmt.Fprintf(&b, "  font-family: %s;\n", f)
	}
	if s.FontSize > 0 {
		fmt.Fprintf(&b, "  font-size: %spx;\n", num(s.FontSize))
	}
	if s.LineHeight > 0 {
		fmt.Fprintf(&b, "  line-height: %s;\n", num(s.LineHeight))
	}
	fmt.Fprintf(&b, "  letter-spacing: %sem;\n", num(s.LetterSpacing))
	b.WriteString("}\n")

	fmt.Fprintf(&b, "body {\n  margin: 0 auto;\n  padding: %spx %spx;\n  word-wrap: break-word;\n}\n", num(s.MarginV), num(s.MarginH))

	b.WriteString(genericRules)

	if css := strings.TrimSpace(s.CustomCSS); css != "" {
		b.WriteString(css)
		b.WriteByte('\n')
	}
	return b.String()
}

// Hash returns a short digest of the rendered stylesheet text.
func (s Style) Hash() string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s.Stylesheet()))
}

const genericRules = `a { color: var(--reader-link); }
::selection { background: var(--reader-selection); }
mark, .search-hit { background: var(--reader-highlight); }
p { margin: 0 0 1em; }
h1, h2, h3, h4, h5, h6 { line-height: 1.25; margin: 1.2em 0 0.6em; }
img, svg, video { max-width: 100%; height: auto; }
blockquote { margin: 1em 0; padding-left: 1em; border-left: 3px solid var(--reader-selection); }
table { border-collapse: collapse; max-width: 100%; overflow-x: auto; }
th, td { border: 1px solid var(--reader-selection); padding: 0.3em 0.6em; }
pre, code { background: var(--reader-code); font-family: ui-monospace, Menlo, Consolas, monospace; font-size: 0.9em; }
pre { padding: 0.8em; overflow-x: auto; white-space: pre-wrap; }
`

func writeVar(b *strings.Builder, name, value string) {
	if value = strings.TrimSpace(value); value == "" {
		return
	}
	fmt.Fprintf(b, "  %s: %s;\n", name, value)
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
