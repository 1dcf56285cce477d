package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"polecheck/internal"
)

// ExtractRecords parses a map document of the given kind into raw records.
func ExtractRecords(kind internal.DocumentKind, content []byte) ([]internal.RawRecord, error) {
	switch kind {
	case internal.DocumentKML:
		return parseKMLBytes(content)
	case internal.DocumentKMZ:
		return ParseKMZ(content)
	case internal.DocumentXLSX:
		return parseXLSX(content)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDocument, kind)
	}
}

// ProcessFile reads, parses and normalizes a local map document without
// touching storage.
func ProcessFile(path string) (Dataset, internal.Summary, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, internal.Summary{}, err
	}
	kind, ok := DetectDocumentKind(filepath.Base(path), content)
	if !ok {
		return nil, internal.Summary{}, fmt.Errorf("%w: %s", ErrUnsupportedDocument, path)
	}
	records, err := ExtractRecords(kind, content)
	if err != nil {
		return nil, internal.Summary{}, err
	}
	return Normalize(records)
}
