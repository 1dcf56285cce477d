package pipeline

import (
	"archive/zip"
	"bytes"
	"path"
	"strings"

	"polecheck/internal"
)

var zipMagic = []byte("PK\x03\x04")

// DetectDocumentKind decides how a named blob should be parsed. The extension
// wins when it is known; otherwise the content is sniffed.
func DetectDocumentKind(filename string, content []byte) (internal.DocumentKind, bool) {
	switch strings.ToLower(path.Ext(strings.TrimSpace(filename))) {
	case ".kml":
		return internal.DocumentKML, true
	case ".kmz":
		return internal.DocumentKMZ, true
	case ".xlsx":
		return internal.DocumentXLSX, true
	}

	if bytes.HasPrefix(content, zipMagic) {
		return sniffZip(content)
	}
	head := content
	if len(head) > 1024 {
		head = head[:1024]
	}
	if bytes.Contains(bytes.ToLower(head), []byte("<kml")) {
		return internal.DocumentKML, true
	}
	return "", false
}

func sniffZip(content []byte) (internal.DocumentKind, bool) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", false
	}
	for _, zf := range zr.File {
		name := strings.ToLower(zf.Name)
		if strings.HasSuffix(name, ".kml") {
			return internal.DocumentKMZ, true
		}
		if name == "xl/workbook.xml" {
			return internal.DocumentXLSX, true
		}
	}
	return "", false
}
