package pipeline

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"polecheck/internal"
	"polecheck/internal/util"
)

var (
	ErrNoRecords           = errors.New("no usable records")
	ErrMalformedDocument   = errors.New("malformed document")
	ErrUnsupportedDocument = errors.New("unsupported document")
)

const kmlNamespace = "http://www.opengis.net/kml/2.2"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// maxKMZInflatedBytes bounds the decompressed size of all .kml entries in one
// KMZ archive.
var maxKMZInflatedBytes int64 = 256 << 20

// DecodeDocument turns uploaded bytes into text: UTF-8 (BOM stripped) when
// valid, ISO-8859-1 otherwise.
func DecodeDocument(blob []byte) (string, error) {
	blob = bytes.TrimPrefix(blob, utf8BOM)
	if utf8.Valid(blob) {
		return string(blob), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(blob)
	if err != nil {
		return "", fmt.Errorf("decode document: %w", err)
	}
	return string(decoded), nil
}

func isKMLNamespace(space string) bool {
	return space == kmlNamespace || strings.HasPrefix(space, "http://earth.google.com/kml/")
}

type placemarkState struct {
	depth      int
	pointDepth int
	name       *string
	coords     *string
}

// ParseKML scans a KML document and returns one record per placemark that has
// both a direct <name> and a <Point><coordinates> pair, in document order.
func ParseKML(r io.Reader) ([]internal.RawRecord, error) {
	dec := xml.NewDecoder(r)
	// Input is already UTF-8; the declared charset is informational only.
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) { return input, nil }

	out := []internal.RawRecord{}
	var pm *placemarkState
	depth := 0

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			if !isKMLNamespace(el.Name.Space) {
				continue
			}
			switch el.Name.Local {
			case "Placemark":
				if pm == nil {
					pm = &placemarkState{depth: depth}
				}
			case "name":
				if pm != nil && pm.name == nil && depth == pm.depth+1 {
					var text string
					if err := dec.DecodeElement(&text, &el); err != nil {
						return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
					}
					depth--
					pm.name = &text
				}
			case "Point":
				if pm != nil && pm.pointDepth == 0 {
					pm.pointDepth = depth
				}
			case "coordinates":
				if pm != nil && pm.coords == nil && pm.pointDepth > 0 && depth == pm.pointDepth+1 {
					var text string
					if err := dec.DecodeElement(&text, &el); err != nil {
						return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
					}
					depth--
					pm.coords = &text
				}
			}
		case xml.EndElement:
			if pm != nil && isKMLNamespace(el.Name.Space) {
				if el.Name.Local == "Point" && depth == pm.pointDepth {
					pm.pointDepth = 0
				}
				if el.Name.Local == "Placemark" && depth == pm.depth {
					record, ok, err := pm.record()
					if err != nil {
						return nil, err
					}
					if ok {
						out = append(out, record)
					}
					pm = nil
				}
			}
			depth--
		}
	}

	return out, nil
}

func (p *placemarkState) record() (internal.RawRecord, bool, error) {
	if p.name == nil || p.coords == nil {
		return internal.RawRecord{}, false, nil
	}
	coords, ok, err := util.ParseCoordinates(*p.coords)
	if err != nil {
		return internal.RawRecord{}, false, fmt.Errorf("%w: placemark %q: %v", ErrMalformedDocument, strings.TrimSpace(*p.name), err)
	}
	if !ok {
		return internal.RawRecord{}, false, nil
	}
	return internal.RawRecord{
		Identifier: strings.TrimSpace(*p.name),
		Latitude:   coords.Latitude,
		Longitude:  coords.Longitude,
	}, true, nil
}

// ParseKMZ reads every .kml entry of a KMZ archive in archive order.
func ParseKMZ(content []byte) ([]internal.RawRecord, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: open kmz: %v", ErrMalformedDocument, err)
	}

	out := []internal.RawRecord{}
	found := false
	budget := maxKMZInflatedBytes
	for _, zf := range zr.File {
		if !strings.EqualFold(path.Ext(zf.Name), ".kml") {
			continue
		}
		found = true
		blob, err := readZipEntry(zf, budget)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrMalformedDocument, zf.Name, err)
		}
		budget -= int64(len(blob))
		records, err := parseKMLBytes(blob)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", zf.Name, err)
		}
		out = append(out, records...)
	}
	if !found {
		return nil, fmt.Errorf("%w: kmz archive has no .kml entry", ErrMalformedDocument)
	}
	return out, nil
}

var errKMZTooLarge = errors.New("kmz content exceeds inflated size limit")

// readZipEntry inflates zf, reading at most limit bytes.
func readZipEntry(zf *zip.File, limit int64) ([]byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	blob, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(blob)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", errKMZTooLarge, maxKMZInflatedBytes)
	}
	return blob, nil
}

func parseKMLBytes(blob []byte) ([]internal.RawRecord, error) {
	text, err := DecodeDocument(blob)
	if err != nil {
		return nil, err
	}
	return ParseKML(strings.NewReader(text))
}

// parseXLSX reads the first sheet that has identifier, latitude and longitude
// header cells. Rows whose coordinates do not parse are skipped.
func parseXLSX(content []byte) ([]internal.RawRecord, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: open xlsx: %v", ErrMalformedDocument, err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) < 2 {
			continue
		}
		idIdx, latIdx, lonIdx := inferRecordColumns(rows[0])
		if idIdx < 0 || latIdx < 0 || lonIdx < 0 {
			continue
		}

		out := []internal.RawRecord{}
		for _, row := range rows[1:] {
			lat, okLat := util.ParseFloatCell(pickCell(row, latIdx))
			lon, okLon := util.ParseFloatCell(pickCell(row, lonIdx))
			if !okLat || !okLon {
				continue
			}
			out = append(out, internal.RawRecord{
				Identifier: pickCell(row, idIdx),
				Latitude:   lat,
				Longitude:  lon,
			})
		}
		return out, nil
	}

	return []internal.RawRecord{}, nil
}

// parseHTMLTable reads pole rows from the first HTML table whose header row
// names identifier, latitude and longitude columns.
func parseHTMLTable(html string) []internal.RawRecord {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var out []internal.RawRecord
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return true
		}

		headers := []string{}
		rows.First().Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			headers = append(headers, strings.TrimSpace(cell.Text()))
		})
		idIdx, latIdx, lonIdx := inferRecordColumns(headers)
		if idIdx < 0 || latIdx < 0 || lonIdx < 0 {
			return true
		}

		out = []internal.RawRecord{}
		rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, strings.TrimSpace(cell.Text()))
			})
			lat, okLat := util.ParseFloatCell(pickCell(cells, latIdx))
			lon, okLon := util.ParseFloatCell(pickCell(cells, lonIdx))
			if !okLat || !okLon {
				return
			}
			out = append(out, internal.RawRecord{Identifier: pickCell(cells, idIdx), Latitude: lat, Longitude: lon})
		})
		return false
	})

	return out
}

// ExtractDocumentsFromEmailRaw returns the map documents attached to a raw
// message, records from a pole table in its HTML body, and its subject.
func ExtractDocumentsFromEmailRaw(raw []byte) ([]internal.MapDocument, []internal.RawRecord, string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, "", err
	}

	docs := []internal.MapDocument{}
	parts := append([]*enmime.Part{}, env.Attachments...)
	parts = append(parts, env.Inlines...)
	parts = append(parts, env.OtherParts...)
	for _, part := range parts {
		filename := strings.TrimSpace(part.FileName)
		kind, ok := DetectDocumentKind(filename, part.Content)
		if !ok {
			continue
		}
		if filename == "" {
			filename = "attachment." + string(kind)
		}
		docs = append(docs, internal.MapDocument{Filename: filename, Kind: kind, Content: part.Content})
	}

	var bodyRecords []internal.RawRecord
	if env.HTML != "" {
		bodyRecords = parseHTMLTable(env.HTML)
	}

	return docs, bodyRecords, env.GetHeader("Subject"), nil
}

func inferRecordColumns(headers []string) (idIdx, latIdx, lonIdx int) {
	norm := make([]string, 0, len(headers))
	for _, h := range headers {
		norm = append(norm, strings.ToLower(strings.TrimSpace(h)))
	}
	idIdx = findHeaderIndex(norm, []string{"id", "name", "label", "pole"})
	latIdx = findHeaderIndex(norm, []string{"latitude", "lat"})
	lonIdx = findHeaderIndex(norm, []string{"longitude", "lon", "lng"})
	return
}

// findHeaderIndex matches probes in priority order, each against every header.
func findHeaderIndex(headers []string, probes []string) int {
	for _, probe := range probes {
		for i, h := range headers {
			if h == probe {
				return i
			}
		}
	}
	return -1
}

func pickCell(cells []string, idx int) string {
	if idx >= 0 && idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	return ""
}
