package pipeline

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
)

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func TestParseXLSX(t *testing.T) {
	blob := mkXLSX([][]any{
		{"Feeder", "Name", "Lat", "Lon"},
		{"F11", "Pole 7", -17.8301, 31.0501},
		{"F11", "P8", "-17,8302", "31,0502"},
		{"F11", "P9", "n/a", 31.0503},
		{"F11", "P10", -17.8304},
	})
	records, err := parseXLSX(blob)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("len=%d records=%+v", len(records), records)
	}
	if records[0].Identifier != "Pole 7" || records[0].Latitude != -17.8301 || records[0].Longitude != 31.0501 {
		t.Fatalf("first=%+v", records[0])
	}
	if records[1].Identifier != "P8" || records[1].Latitude != -17.8302 {
		t.Fatalf("second=%+v", records[1])
	}
}

func TestParseXLSXWithoutPoleColumns(t *testing.T) {
	blob := mkXLSX([][]any{
		{"Item", "Qty"},
		{"Cable", 10},
	})
	records, err := parseXLSX(blob)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Fatalf("len=%d", len(records))
	}
}

func TestParseXLSXNotAWorkbook(t *testing.T) {
	if _, err := parseXLSX([]byte("plain text")); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseHTMLTable(t *testing.T) {
	html := `<html><body>
<table><tr><td>Survey notes</td></tr><tr><td>none</td></tr></table>
<table>
  <tr><th>Pole</th><th>Latitude</th><th>Longitude</th></tr>
  <tr><td>P3</td><td>-17.1</td><td>31.1</td></tr>
  <tr><td>P4</td><td></td><td>31.2</td></tr>
  <tr><td> P5 </td><td>-17.3</td><td>31.3</td></tr>
</table>
</body></html>`
	records := parseHTMLTable(html)
	if len(records) != 2 {
		t.Fatalf("len=%d records=%+v", len(records), records)
	}
	if records[0].Identifier != "P3" || records[1].Identifier != "P5" || records[1].Longitude != 31.3 {
		t.Fatalf("records=%+v", records)
	}
}
