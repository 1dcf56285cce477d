package pipeline

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"polecheck/internal"
)

func TestWriteCSV(t *testing.T) {
	ds, _, err := Normalize([]internal.RawRecord{
		{Identifier: "Pole 7", Latitude: -17.8301, Longitude: 31.0501},
		{Identifier: "ABC, spare", Latitude: -17, Longitude: 31},
		{Identifier: "P007", Latitude: -17.8302, Longitude: 31.0502},
	})
	if err != nil {
		t.Fatal(err)
	}

	buf := bytes.NewBuffer(nil)
	if err := WriteCSV(buf, ds); err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"ID,Latitude,Longitude,number,formatted_ID",
		`"ABC, spare",-17.0,31.0,0,"ABC, SPARE"`,
		"Pole 7,-17.8301,31.0501,7,P7",
		"P007,-17.8302,31.0502,7,P7",
		"",
	}, "\n")
	if buf.String() != want {
		t.Fatalf("csv=\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestFormatCoordinate(t *testing.T) {
	cases := map[float64]string{
		0:          "0.0",
		-17:        "-17.0",
		31.0501:    "31.0501",
		-17.829876: "-17.829876",
	}
	for in, want := range cases {
		if got := formatCoordinate(in); got != want {
			t.Fatalf("formatCoordinate(%v)=%q want %q", in, got, want)
		}
	}
}

func TestExportToXLSX(t *testing.T) {
	ds, _, err := Normalize([]internal.RawRecord{raw("P9"), raw("P4"), raw("P9 east"), raw("ABC")})
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "nested", "poles.xlsx")
	if err := ExportToXLSX(ds, out); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows(polesSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 5 {
		t.Fatalf("rows=%d", len(rows))
	}
	if strings.Join(rows[0], ",") != "ID,Latitude,Longitude,number,formatted_ID" {
		t.Fatalf("header=%v", rows[0])
	}
	if rows[1][0] != "ABC" || rows[2][4] != "P4" || rows[4][0] != "P9 east" {
		t.Fatalf("rows=%v", rows)
	}

	dups, err := f.GetRows(duplicatesSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(dups) != 2 {
		t.Fatalf("duplicates=%v", dups)
	}
	if dups[1][0] != "9" || dups[1][1] != "P9" || dups[1][2] != "2" || dups[1][3] != "P9; P9 east" {
		t.Fatalf("duplicate row=%v", dups[1])
	}
}

func TestExportToCSVCreatesDirectory(t *testing.T) {
	ds, _, err := Normalize([]internal.RawRecord{raw("P1")})
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "a", "b", "poles.csv")
	if err := ExportToCSV(ds, out); err != nil {
		t.Fatal(err)
	}
	blob, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(blob), "ID,Latitude,Longitude,number,formatted_ID\n") {
		t.Fatalf("csv=%q", blob)
	}
}
