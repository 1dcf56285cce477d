package util

import "testing"

func TestExtractNumber(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  int64
	}{
		{name: "empty", input: "", want: 0},
		{name: "blank", input: "   ", want: 0},
		{name: "alphabetic", input: "ABC", want: 0},
		{name: "alphabetic multi word", input: "spare pole", want: 0},
		{name: "alphabetic non latin", input: "Столб", want: 0},
		{name: "word and padded number", input: "Pole 007", want: 7},
		{name: "prefixed padded number", input: "P007", want: 7},
		{name: "bare padded number", input: "007", want: 7},
		{name: "first digit token wins", input: "POLE-12 SPARE", want: 12},
		{name: "later token ignored", input: "Pole 7 Spare 99", want: 7},
		{name: "first run inside token", input: "A12B34", want: 12},
		{name: "skips digitless tokens", input: "north side P15", want: 15},
		{name: "all zeros", input: "0000", want: 0},
		{name: "zero then real token", input: "P000 12", want: 0},
		{name: "lowercase", input: "p42", want: 42},
		{name: "punctuation adjacent", input: "POLE#7", want: 7},
		{name: "surrounding whitespace", input: "\t P 9 \n", want: 9},
		{name: "tab separated", input: "POLE\t31", want: 31},
		{name: "symbols only", input: "-/-", want: 0},
		{name: "arabic-indic digit", input: "Pole ٧", want: 7},
		{name: "fullwidth digits", input: "Ｐ０７", want: 7},
		{name: "devanagari digits", input: "P१२", want: 12},
		{name: "too long for int64", input: "P99999999999999999999999", want: 0},
		{name: "long run with leading zeros", input: "P0000000000000000000000042", want: 42},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractNumber(tc.input); got != tc.want {
				t.Fatalf("ExtractNumber(%q) = %d want %d", tc.input, got, tc.want)
			}
		})
	}
}

func TestExtractNumberNeverNegative(t *testing.T) {
	inputs := []string{"-5", "P-007", "−3", "\x00\xff", "1e9", "#", "  0  ", "P 0007 X"}
	for _, in := range inputs {
		if got := ExtractNumber(in); got < 0 {
			t.Fatalf("ExtractNumber(%q) = %d", in, got)
		}
	}
}

func TestDisplayID(t *testing.T) {
	cases := []struct {
		raw    string
		number int64
		want   string
	}{
		{raw: "Pole 007", number: 7, want: "P7"},
		{raw: "P7", number: 7, want: "P7"},
		{raw: "  abc ", number: 0, want: "ABC"},
		{raw: "0000", number: 0, want: "0000"},
		{raw: "", number: 0, want: ""},
	}
	for _, tc := range cases {
		if got := DisplayID(tc.raw, tc.number); got != tc.want {
			t.Fatalf("DisplayID(%q, %d) = %q want %q", tc.raw, tc.number, got, tc.want)
		}
	}
}

func TestExtractNumberOverflowNeverCollides(t *testing.T) {
	a := ExtractNumber("P11111111111111111111")
	b := ExtractNumber("P22222222222222222222")
	if a != 0 || b != 0 {
		t.Fatalf("a=%d b=%d", a, b)
	}
	if got := DisplayID("P11111111111111111111", a); got != "P11111111111111111111" {
		t.Fatalf("display=%q", got)
	}
}

func TestNormalizeLabelFullCaseMapping(t *testing.T) {
	if got := NormalizeLabel(" straße "); got != "STRASSE" {
		t.Fatalf("got %q", got)
	}
	if got := DisplayID("straße", 0); got != "STRASSE" {
		t.Fatalf("display=%q", got)
	}
}

func TestDisplayIDRoundTrip(t *testing.T) {
	for _, raw := range []string{"Pole 007", "P12", "POLE-12 SPARE", "tower 0450 b", "POLE#7", "Ｐ０７"} {
		number := ExtractNumber(raw)
		if number <= 0 {
			t.Fatalf("expected number for %q", raw)
		}
		display := DisplayID(raw, number)
		if again := ExtractNumber(display); again != number {
			t.Fatalf("%q -> %q -> %d, want %d", raw, display, again, number)
		}
	}
}
