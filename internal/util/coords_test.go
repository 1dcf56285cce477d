package util

import "testing"

func TestParseCoordinates(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		wantOK  bool
		wantLon float64
		wantLat float64
	}{
		{name: "lon lat alt", input: "31.05,-17.83,0", wantOK: true, wantLon: 31.05, wantLat: -17.83},
		{name: "lon lat", input: " 31.05,-17.83 ", wantOK: true, wantLon: 31.05, wantLat: -17.83},
		{name: "space after comma", input: "31.05, -17.83", wantOK: true, wantLon: 31.05, wantLat: -17.83},
		{name: "several tuples", input: "31.05,-17.83 31.06,-17.84", wantOK: true, wantLon: 31.05, wantLat: -17.83},
		{name: "multiline", input: "\n\t\t31.05,-17.83,0\n\t", wantOK: true, wantLon: 31.05, wantLat: -17.83},
		{name: "single component", input: "31.05", wantOK: false},
		{name: "empty", input: "", wantOK: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok, err := ParseCoordinates(tc.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tc.wantOK {
				t.Fatalf("ok=%v want %v", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if got.Longitude != tc.wantLon || got.Latitude != tc.wantLat {
				t.Fatalf("got %+v", got)
			}
		})
	}
}

func TestParseCoordinatesRejectsText(t *testing.T) {
	if _, _, err := ParseCoordinates("east,north"); err == nil {
		t.Fatal("expected error")
	}
	if _, _, err := ParseCoordinates("31.05,"); err == nil {
		t.Fatal("expected error for empty latitude")
	}
}

func TestParseFloatCell(t *testing.T) {
	if v, ok := ParseFloatCell("-17,83"); !ok || v != -17.83 {
		t.Fatalf("got %v %v", v, ok)
	}
	if v, ok := ParseFloatCell(" 31.05 "); !ok || v != 31.05 {
		t.Fatalf("got %v %v", v, ok)
	}
	if _, ok := ParseFloatCell("n/a"); ok {
		t.Fatal("expected failure")
	}
}
