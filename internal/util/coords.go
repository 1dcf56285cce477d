package util

import (
	"fmt"
	"strconv"
	"strings"
)

// Coordinates holds one KML coordinate tuple. KML orders tuples lon,lat[,alt].
type Coordinates struct {
	Longitude float64
	Latitude  float64
}

// ParseCoordinates reads the first tuple of a KML <coordinates> body.
// ok is false when the tuple has fewer than two components; err is set when a
// component is present but not a number.
func ParseCoordinates(text string) (coords Coordinates, ok bool, err error) {
	parts := strings.Split(strings.TrimSpace(text), ",")
	if len(parts) < 2 {
		return Coordinates{}, false, nil
	}

	lon, err := parseFloatToken(parts[0])
	if err != nil {
		return Coordinates{}, false, fmt.Errorf("longitude %q: %w", parts[0], err)
	}
	lat, err := parseFloatToken(parts[1])
	if err != nil {
		return Coordinates{}, false, fmt.Errorf("latitude %q: %w", parts[1], err)
	}
	return Coordinates{Longitude: lon, Latitude: lat}, true, nil
}

// ParseFloatCell parses a spreadsheet cell that may use a decimal comma.
func ParseFloatCell(cell string) (float64, bool) {
	cell = strings.TrimSpace(strings.ReplaceAll(cell, " ", ""))
	if cell == "" {
		return 0, false
	}
	if strings.Contains(cell, ",") && !strings.Contains(cell, ".") {
		cell = strings.ReplaceAll(cell, ",", ".")
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseFloatToken reads the first whitespace-separated field, so a component
// that runs into the next tuple ("lat lon2") still parses.
func parseFloatToken(token string) (float64, error) {
	fields := strings.Fields(token)
	if len(fields) == 0 {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseFloat(fields[0], 64)
}
