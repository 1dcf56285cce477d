package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var exportHeaders = []string{"ID", "Latitude", "Longitude", "number", "formatted_ID"}

const (
	polesSheet      = "Poles"
	duplicatesSheet = "Duplicates"
)

func WriteCSV(w io.Writer, dataset Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeaders); err != nil {
		return err
	}
	for _, rec := range dataset {
		row := []string{
			rec.Identifier,
			formatCoordinate(rec.Latitude),
			formatCoordinate(rec.Longitude),
			strconv.FormatInt(rec.NumberKey, 10),
			rec.DisplayID,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ExportToCSV(dataset Dataset, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, dataset); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ExportToXLSX writes the dataset to a "Poles" sheet, shading rows whose
// number is duplicated, and lists each duplicate group on a "Duplicates" sheet.
func ExportToXLSX(dataset Dataset, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), polesSheet); err != nil {
		return err
	}
	dupStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FFE699"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(polesSheet, cell, h)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(exportHeaders), 1)
	_ = f.SetCellStyle(polesSheet, "A1", lastHeader, headerStyle)

	dup := map[int64]struct{}{}
	for _, key := range DuplicateKeys(dataset) {
		dup[key] = struct{}{}
	}

	for i, rec := range dataset {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(polesSheet, cell, value)
		}

		set(1, rec.Identifier)
		set(2, rec.Latitude)
		set(3, rec.Longitude)
		set(4, rec.NumberKey)
		set(5, rec.DisplayID)

		if _, ok := dup[rec.NumberKey]; ok {
			first, _ := excelize.CoordinatesToCellName(1, r)
			last, _ := excelize.CoordinatesToCellName(len(exportHeaders), r)
			_ = f.SetCellStyle(polesSheet, first, last, dupStyle)
		}
	}
	if len(dataset) > 0 {
		lastCell, _ := excelize.CoordinatesToCellName(len(exportHeaders), len(dataset)+1)
		if err := f.AutoFilter(polesSheet, "A1:"+lastCell, nil); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(duplicatesSheet); err != nil {
		return err
	}
	for i, h := range []string{"number", "formatted_ID", "count", "labels"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(duplicatesSheet, cell, h)
	}
	_ = f.SetCellStyle(duplicatesSheet, "A1", "D1", headerStyle)
	for i, group := range DuplicateGroups(dataset) {
		r := i + 2
		labels := make([]string, 0, len(group.Records))
		for _, rec := range group.Records {
			labels = append(labels, rec.Identifier)
		}
		values := []any{group.Number, group.Records[0].DisplayID, len(group.Records), strings.Join(labels, "; ")}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r)
			_ = f.SetCellValue(duplicatesSheet, cell, v)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}

// formatCoordinate writes the shortest round-trip form, keeping a ".0" on
// integral values so the column reads as decimal.
func formatCoordinate(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
