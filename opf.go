package epub

import (
	"encoding/xml"
	"fmt"
	"strings"
)

type opfPackage struct {
	XMLName  xml.Name    `xml:"package"`
	Version  string      `xml:"version,attr"`
	Metadata opfMetadata `xml:"metadata"`
	Manifest []opfItem   `xml:"manifest>item"`
	Spine    opfSpine    `xml:"spine"`
}

type opfMetadata struct {
	Titles      []string `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creators    []string `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Languages   []string `xml:"http://purl.org/dc/elements/1.1/ language"`
	Identifiers []string `xml:"http://purl.org/dc/elements/1.1/ identifier"`
}

type opfItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

func (it opfItem) hasProperty(p string) bool {
	return hasToken(it.Properties, p)
}

type opfSpine struct {
	Toc      string `xml:"toc,attr"`
	ItemRefs []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"itemref"`
}

// Metadata is the Dublin Core subset kept for a book.
type Metadata struct {
	// Version is the ePub version of the package document, "2.0" when absent.
	Version    string
	Title      string
	Authors    []string
	Language   string
	Identifier string
}

// Author joins all creators with ", ".
func (m Metadata) Author() string {
	return strings.Join(m.Authors, ", ")
}

func parseOPF(data []byte) (*opfPackage, error) {
	var pkg opfPackage
	if err := xml.Unmarshal(numericEntities(data), &pkg); err != nil {
		return nil, fmt.Errorf("epub: parse OPF: %w", err)
	}
	if pkg.Version == "" {
		pkg.Version = "2.0"
	}
	return &pkg, nil
}

func (pkg *opfPackage) metadata() Metadata {
	md := Metadata{
		Version:    pkg.Version,
		Title:      firstNonEmpty(pkg.Metadata.Titles),
		Language:   firstNonEmpty(pkg.Metadata.Languages),
		Identifier: firstNonEmpty(pkg.Metadata.Identifiers),
	}
	for _, c := range pkg.Metadata.Creators {
		if c = strings.TrimSpace(c); c != "" {
			md.Authors = append(md.Authors, c)
		}
	}
	return md
}

func (pkg *opfPackage) item(id string) (opfItem, bool) {
	for _, it := range pkg.Manifest {
		if it.ID == id {
			return it, true
		}
	}
	return opfItem{}, false
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
