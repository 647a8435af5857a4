package markup

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	skipBlockPattern  = regexp.MustCompile(`(?is)<(script|style)\b[^>]*>.*?</(script|style)\s*>`)
	commentPattern    = regexp.MustCompile(`(?s)<!--.*?-->`)
	tagPattern        = regexp.MustCompile(`(?s)<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`[\s\p{Zs}]+`)
	bodyOpenPattern   = regexp.MustCompile(`(?is)<body\b[^>]*>`)
	bodyClosePattern  = regexp.MustCompile(`(?is)</body\s*>`)
)

// PlainText reduces chapter HTML to searchable text: script and style
// bodies become whitespace, then every remaining tag does, entities are
// decoded and whitespace runs collapse to single spaces.
func PlainText(s string) string {
	s = skipBlockPattern.ReplaceAllString(s, " ")
	s = commentPattern.ReplaceAllString(s, " ")
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// BodyInner returns the markup between <body> and </body>. Documents
// without a body element are returned whole.
func BodyInner(s string) string {
	open := bodyOpenPattern.FindStringIndex(s)
	if open == nil {
		return s
	}
	rest := s[open[1]:]
	if end := bodyClosePattern.FindStringIndex(rest); end != nil {
		rest = rest[:end[0]]
	}
	return rest
}

// Title returns the document <title>, falling back to the first h1-h3
// heading. Empty when neither carries text.
func Title(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return ""
	}
	if t := collapse(doc.Find("head > title").First().Text()); t != "" {
		return t
	}
	return collapse(doc.Find("h1, h2, h3").First().Text())
}

// StylesheetLinks returns the href of every <link rel="stylesheet"> in
// document order.
func StylesheetLinks(s string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return nil
	}
	var hrefs []string
	doc.Find("link[href]").Each(func(_ int, sel *goquery.Selection) {
		rel, _ := sel.Attr("rel")
		if !strings.Contains(strings.ToLower(rel), "stylesheet") {
			return
		}
		if href, ok := sel.Attr("href"); ok && strings.TrimSpace(href) != "" {
			hrefs = append(hrefs, strings.TrimSpace(href))
		}
	})
	return hrefs
}

func collapse(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}
