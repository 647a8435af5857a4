package pathid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "OEBPS/ch01.xhtml", "OEBPS/ch01.xhtml"},
		{"dot slash", "./ch01.xhtml", "ch01.xhtml"},
		{"leading slash with fragment", "/OEBPS/ch01.xhtml#note3", "OEBPS/ch01.xhtml"},
		{"backslashes", `OEBPS\Text\ch01.xhtml`, "OEBPS/Text/ch01.xhtml"},
		{"percent escapes", "OEBPS/chapter%20one.xhtml", "OEBPS/chapter one.xhtml"},
		{"dot segments", "OEBPS/text/../images/./a.png", "OEBPS/images/a.png"},
		{"clamped at root", "../../ch01.xhtml", "ch01.xhtml"},
		{"double slashes", "OEBPS//ch01.xhtml", "OEBPS/ch01.xhtml"},
		{"surrounding space", "  ch01.xhtml \n", "ch01.xhtml"},
		{"fragment only", "#top", ""},
		{"empty", "", ""},
		{"escaped hash", "a%23b.xhtml", "a"},
		{"bad escape kept", "100%.xhtml", "100%.xhtml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"OEBPS/ch01.xhtml",
		"./ch01.xhtml",
		"/OEBPS/ch01.xhtml#note3",
		"a%2541.xhtml",
		"%2E%2E/%2E/x.html",
		"%252E%252E/y.html",
		`.\a\..\b.html`,
		"//a",
		"%20%2F./a",
		"a/%2e%2e/%2e%2e/b",
		"",
		"#",
		"%",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"OEBPS/ch01.xhtml", "ch01.xhtml", true},
		{"ch01.xhtml", "OEBPS/ch01.xhtml", true},
		{"ch01.xhtml", "ch02.xhtml", false},
		{"a/b.html#frag", "a/b.html", true},
		{"/OEBPS/Ch01.XHTML#x", "oebps/ch01.xhtml", true},
		{"OEBPS/ch%2001.xhtml", "ch 01.xhtml", true},
		{"OEBPS/xch01.xhtml", "ch01.xhtml", false},
		{"", "", false},
		{"", "ch01.xhtml", false},
		{"#frag", "#frag", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Matches(tt.a, tt.b), "Matches(%q, %q)", tt.a, tt.b)
	}
}

func TestSplit(t *testing.T) {
	p, frag := Split("text/ch01.xhtml#sec-2")
	assert.Equal(t, "text/ch01.xhtml", p)
	assert.Equal(t, "sec-2", frag)

	p, frag = Split("text/ch01.xhtml")
	assert.Equal(t, "text/ch01.xhtml", p)
	assert.Empty(t, frag)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{"text/ch01.xhtml", "../img/cover.png", "img/cover.png"},
		{"OEBPS/text/ch01.xhtml", "images/a%20b.png?v=2", "OEBPS/text/images/a b.png"},
		{"OEBPS/ch01.xhtml", "pic.jpg#frag", "OEBPS/pic.jpg"},
		{"ch01.xhtml", "pic.jpg", "pic.jpg"},
		{"OEBPS/text/ch01.xhtml", "/OEBPS/img/x.png", "OEBPS/img/x.png"},
		{"OEBPS/ch01.xhtml", "../../../../etc/passwd", "etc/passwd"},
		{"OEBPS/ch01.xhtml", "", ""},
		{"OEBPS/ch01.xhtml", "#only", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Resolve(tt.base, tt.ref), "Resolve(%q, %q)", tt.base, tt.ref)
	}
}

func TestResolveRef(t *testing.T) {
	assert.Equal(t, "OEBPS/text/ch01.xhtml#sec2", ResolveRef("OEBPS/toc.ncx", "text/ch01.xhtml#sec2"))
	assert.Equal(t, "OEBPS/ch02.xhtml", ResolveRef("OEBPS/nav.xhtml", "./ch02.xhtml"))
	assert.Empty(t, ResolveRef("OEBPS/nav.xhtml", "#top"))
}
