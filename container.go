package epub

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/simp-lee/epubview/archive"
)

type containerXML struct {
	XMLName   xml.Name   `xml:"container"`
	RootFiles []rootFile `xml:"rootfiles>rootfile"`
}

type rootFile struct {
	FullPath  string `xml:"full-path,attr"`
	MediaType string `xml:"media-type,attr"`
}

const (
	containerPath = "META-INF/container.xml"
	opfMediaType  = "application/oebps-package+xml"
)

// findPackage returns the archive path of the OPF package document.
//
// META-INF/container.xml is consulted first; a rootfile with the OPF media
// type wins over the first non-empty one. Without container.xml the first
// ".opf" entry of the archive is used.
func findPackage(z *archive.Zip) (string, error) {
	if z.Find(containerPath) == nil {
		f := z.FindExt(".opf")
		if f == nil {
			return "", fmt.Errorf("epub: no OPF file found in archive: %w", ErrInvalidEPub)
		}
		return f.Name, nil
	}

	data, err := z.ReadText(containerPath)
	if err != nil {
		return "", fmt.Errorf("epub: read container.xml: %w", err)
	}
	var c containerXML
	if err := xml.Unmarshal(data, &c); err != nil {
		return "", fmt.Errorf("epub: parse container.xml: %w", err)
	}

	var first string
	for _, rf := range c.RootFiles {
		p := strings.TrimSpace(rf.FullPath)
		if p == "" {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(rf.MediaType), opfMediaType) {
			return p, nil
		}
		if first == "" {
			first = p
		}
	}
	if first == "" {
		return "", fmt.Errorf("epub: container.xml names no package document: %w", ErrInvalidEPub)
	}
	return first, nil
}
