package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()

	kmlPath := filepath.Join(dir, "feeder.kml")
	if err := os.WriteFile(kmlPath, []byte(sampleKML), 0o644); err != nil {
		t.Fatal(err)
	}
	ds, summary, err := ProcessFile(kmlPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(ds) != 4 || summary.DuplicateCount != 1 {
		t.Fatalf("len=%d summary=%+v", len(ds), summary)
	}

	xlsxPath := filepath.Join(dir, "export")
	if err := os.WriteFile(xlsxPath, mkXLSX([][]any{{"ID", "Latitude", "Longitude"}, {"P4", -17.1, 31.1}}), 0o644); err != nil {
		t.Fatal(err)
	}
	ds, _, err = ProcessFile(xlsxPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(ds) != 1 || ds[0].DisplayID != "P4" {
		t.Fatalf("ds=%+v", ds)
	}

	txtPath := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txtPath, []byte("pole 4"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ProcessFile(txtPath); !errors.Is(err, ErrUnsupportedDocument) {
		t.Fatalf("err=%v", err)
	}

	if _, _, err := ProcessFile(filepath.Join(dir, "missing.kml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v", err)
	}
}
