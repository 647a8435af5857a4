// Package render turns stored chapter markup into a self-contained, styled
// HTML document: scripts are stripped, non-link anchors are made inert,
// archive images are inlined as data URIs and the reader stylesheet is
// injected.
package render

import (
	"encoding/base64"
	"encoding/json"
	"html"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/simp-lee/epubview/archive"
	"github.com/simp-lee/epubview/book"
	"github.com/simp-lee/epubview/markup"
)

var (
	imgSrcPattern    = regexp.MustCompile(`(?is)<img\b[^>]*?\ssrc\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s>"']+))`)
	svgImagePattern  = regexp.MustCompile(`(?is)<image\b[^>]*?\s(?:xlink:)?href\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s>"']+))`)
	headClosePattern = regexp.MustCompile(`(?i)</head\s*>`)
	bodyOpenPattern  = regexp.MustCompile(`(?is)<body\b[^>]*>`)
	codePattern      = regexp.MustCompile(`(?i)<(pre|code)\b`)
)

// Options controls optional parts of the rendered document.
type Options struct {
	// HighlightScript is JavaScript injected into chapters containing
	// <pre> or <code> blocks. Empty disables it.
	HighlightScript string

	// BookStyles embeds the chapter's own linked stylesheets ahead of the
	// reader stylesheet.
	BookStyles bool
}

// Renderer produces reader documents. It holds no per-render state and is
// safe for concurrent use.
type Renderer struct {
	opts Options
	log  *zap.Logger
}

// New creates a Renderer. A nil logger disables logging.
func New(opts Options, log *zap.Logger) *Renderer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Renderer{opts: opts, log: log.Named("render")}
}

// Render produces the document for ch. src provides image and stylesheet
// bytes and may be nil, in which case markup referencing archive entries is
// left as is. fragment, when not empty, is scrolled into view on load.
func (r *Renderer) Render(src archive.Reader, ch book.Chapter, style Style, fragment string) string {
	content := markup.StripScripts(ch.HTML)
	if markup.HasAnchor(content) {
		content = markup.NormalizeAnchors(content)
	}
	content = r.inlineImages(src, ch.ID, content)

	var head strings.Builder
	if r.opts.BookStyles {
		r.writeBookStyles(&head, src, ch)
	}
	head.WriteString(`<style id="reader-style">`)
	head.WriteString("\n")
	head.WriteString(style.Stylesheet())
	head.WriteString("</style>")

	if fragment = strings.TrimPrefix(strings.TrimSpace(fragment), "#"); fragment != "" {
		head.WriteString(fragmentScript(fragment))
	}
	if r.opts.HighlightScript != "" && codePattern.MatchString(content) {
		head.WriteString("<script>")
		head.WriteString(r.opts.HighlightScript)
		head.WriteString("</script>")
	}

	return inject(content, head.String())
}

// RenderBook concatenates every chapter body in reading order, each in its
// own section. Scripts are removed; no reader styling is applied.
func (r *Renderer) RenderBook(b *book.Book) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"/><title>")
	sb.WriteString(html.EscapeString(b.Title))
	sb.WriteString("</title></head><body>\n")
	for _, ch := range b.OrderedChapters() {
		sb.WriteString(`<section id="`)
		sb.WriteString(html.EscapeString(ch.ID))
		sb.WriteString(`" data-order="`)
		sb.WriteString(strconv.Itoa(ch.Order))
		sb.WriteString(`">`)
		sb.WriteString(markup.BodyInner(markup.StripScripts(ch.HTML)))
		sb.WriteString("</section>\n")
	}
	sb.WriteString("</body></html>\n")
	return sb.String()
}

// inlineImages replaces the source of every <img> and SVG <image> that
// resolves inside the archive with a data URI. Each distinct source is
// resolved at most once.
func (r *Renderer) inlineImages(src archive.Reader, chapterPath, content string) string {
	if src == nil {
		return content
	}
	seen := make(map[string]string)
	resolve := func(value string) (string, bool) {
		if uri, ok := seen[value]; ok {
			return uri, uri != ""
		}
		img, ok := archive.ResolveImage(src, chapterPath, html.UnescapeString(value))
		if !ok {
			if !archive.IsExternal(value) {
				r.log.Debug("Image not resolved", zap.String("chapter", chapterPath), zap.String("src", value))
			}
			seen[value] = ""
			return "", false
		}
		uri := "data:" + img.MediaType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
		seen[value] = uri
		return uri, true
	}
	content = replaceAttrValues(content, imgSrcPattern, resolve)
	return replaceAttrValues(content, svgImagePattern, resolve)
}

// replaceAttrValues rewrites the attribute value captured by one of the
// first three groups of re. Values for which fn reports false are kept
// byte for byte.
func replaceAttrValues(s string, re *regexp.Regexp, fn func(string) (string, bool)) string {
	matches := re.FindAllStringSubmatchIndex(s, -1)
	if matches == nil {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, m := range matches {
		for g := 1; g <= 3; g++ {
			start, end := m[2*g], m[2*g+1]
			if start < 0 {
				continue
			}
			if v, ok := fn(s[start:end]); ok {
				b.WriteString(s[last:start])
				b.WriteString(v)
				last = end
			}
			break
		}
	}
	b.WriteString(s[last:])
	return b.String()
}

func (r *Renderer) writeBookStyles(b *strings.Builder, src archive.Reader, ch book.Chapter) {
	if src == nil {
		return
	}
	for _, name := range ch.CSS {
		data, err := src.ReadFile(name)
		if err != nil {
			r.log.Debug("Book stylesheet not readable", zap.String("chapter", ch.ID), zap.String("css", name), zap.Error(err))
			continue
		}
		css := string(archive.StripBOM(data))
		// A literal closer would end the element early.
		css = strings.ReplaceAll(css, "</style", `<\/style`)
		b.WriteString(`<style class="book-style">`)
		b.WriteString("\n")
		b.WriteString(css)
		b.WriteString("\n</style>")
	}
}

func fragmentScript(id string) string {
	quoted, _ := json.Marshal(id)
	return `<script>(function(){var id=` + string(quoted) + `;` +
		`function go(){var el=document.getElementById(id);` +
		`if(!el){var named=document.getElementsByName(id);if(named.length){el=named[0];}}` +
		`if(el){el.scrollIntoView();}else{location.hash=id;}}` +
		`if(document.readyState==="loading"){document.addEventListener("DOMContentLoaded",go);}else{go();}` +
		`})();</script>`
}

// inject places head right before </head>, else right after the opening
// <body> tag, else at the start of the document.
func inject(doc, head string) string {
	if loc := headClosePattern.FindStringIndex(doc); loc != nil {
		return doc[:loc[0]] + head + doc[loc[0]:]
	}
	if loc := bodyOpenPattern.FindStringIndex(doc); loc != nil {
		return doc[:loc[1]] + head + doc[loc[1]:]
	}
	return head + doc
}
