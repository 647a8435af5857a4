package epub

import (
	"encoding/xml"
	"strings"

	"github.com/simp-lee/epubview/archive"
)

const (
	encryptionPath = "META-INF/encryption.xml"

	// Apple FairPlay leaves this file behind.
	sinfPath = "META-INF/sinf.xml"
)

// Font obfuscation is not DRM: the book stays readable, only embedded fonts
// are mangled.
var fontObfuscation = map[string]bool{
	"http://www.idpf.org/2008/embedding": true,
	"http://ns.adobe.com/pdf/enc#RC":     true,
}

type encryptionXML struct {
	XMLName xml.Name        `xml:"encryption"`
	Data    []encryptedData `xml:"EncryptedData"`
}

type encryptedData struct {
	Method struct {
		Algorithm string `xml:"Algorithm,attr"`
	} `xml:"EncryptionMethod"`
}

// checkDRM rejects encrypted books with ErrDRMProtected. It reports whether
// only font obfuscation was found.
func checkDRM(z *archive.Zip) (obfuscated bool, err error) {
	if z.Find(sinfPath) != nil {
		return false, ErrDRMProtected
	}
	if z.Find(encryptionPath) == nil {
		return false, nil
	}

	data, err := z.ReadText(encryptionPath)
	if err != nil {
		return false, err
	}
	var enc encryptionXML
	if err := xml.Unmarshal(data, &enc); err != nil {
		// unreadable descriptor, assume the worst
		return false, ErrDRMProtected
	}

	for _, d := range enc.Data {
		if !fontObfuscation[strings.TrimSpace(d.Method.Algorithm)] {
			return false, ErrDRMProtected
		}
		obfuscated = true
	}
	return obfuscated, nil
}
