package pipeline

import (
	"sort"

	"polecheck/internal"
	"polecheck/internal/util"
)

const previewSize = 10

// Dataset is the keyed records ordered by NumberKey, ties in input order.
type Dataset []internal.KeyedRecord

// Normalize keys every record, stable-sorts by number and reports the
// positive numbers shared by more than one record. Empty input is
// ErrNoRecords.
func Normalize(records []internal.RawRecord) (Dataset, internal.Summary, error) {
	if len(records) == 0 {
		return nil, internal.Summary{}, ErrNoRecords
	}

	dataset := make(Dataset, 0, len(records))
	for _, r := range records {
		dataset = append(dataset, KeyRecord(r))
	}
	sort.SliceStable(dataset, func(i, j int) bool {
		return dataset[i].NumberKey < dataset[j].NumberKey
	})

	duplicates := DuplicateKeys(dataset)
	preview := dataset
	if len(preview) > previewSize {
		preview = preview[:previewSize]
	}

	summary := internal.Summary{
		TotalRecords:   len(dataset),
		DuplicateKeys:  duplicates,
		DuplicateCount: len(duplicates),
		Preview:        append([]internal.KeyedRecord(nil), preview...),
	}
	return dataset, summary, nil
}

func KeyRecord(r internal.RawRecord) internal.KeyedRecord {
	number := util.ExtractNumber(r.Identifier)
	return internal.KeyedRecord{
		Identifier: r.Identifier,
		Latitude:   r.Latitude,
		Longitude:  r.Longitude,
		NumberKey:  number,
		DisplayID:  util.DisplayID(r.Identifier, number),
	}
}

// DuplicateKeys scans a sorted dataset once and returns, ascending, every
// key above zero that heads a run of two or more records.
func DuplicateKeys(sorted Dataset) []int64 {
	out := []int64{}
	for i := 0; i < len(sorted); {
		j := i + 1
		for j < len(sorted) && sorted[j].NumberKey == sorted[i].NumberKey {
			j++
		}
		if key := sorted[i].NumberKey; key > 0 && j-i >= 2 {
			out = append(out, key)
		}
		i = j
	}
	return out
}

// DuplicateGroup lists the records behind one duplicated number.
type DuplicateGroup struct {
	Number  int64
	Records []internal.KeyedRecord
}

func DuplicateGroups(sorted Dataset) []DuplicateGroup {
	dup := map[int64]struct{}{}
	for _, key := range DuplicateKeys(sorted) {
		dup[key] = struct{}{}
	}

	groups := []DuplicateGroup{}
	for _, rec := range sorted {
		if _, ok := dup[rec.NumberKey]; !ok {
			continue
		}
		if n := len(groups); n > 0 && groups[n-1].Number == rec.NumberKey {
			groups[n-1].Records = append(groups[n-1].Records, rec)
			continue
		}
		groups = append(groups, DuplicateGroup{Number: rec.NumberKey, Records: []internal.KeyedRecord{rec}})
	}
	return groups
}
