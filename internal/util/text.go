package util

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ExtractNumber reduces a free-text pole label to its canonical number.
// Zero means the label carries no usable number.
//
// The first whitespace-separated token holding a digit run wins, so trailing
// annotations ("POLE 7 SPARE 2") never override the primary number. Only when
// no token holds a digit does the whole string get scanned.
func ExtractNumber(raw string) int64 {
	label := NormalizeLabel(raw)
	if label == "" || isAlphaLabel(label) {
		return 0
	}

	if run, ok := firstTokenDigitRun(label); ok {
		return digitRunValue(run)
	}
	if run, ok := firstDigitRun(label); ok {
		return digitRunValue(run)
	}
	return 0
}

// DisplayID is the user-facing identifier: "P<number>" when a number was
// extracted, otherwise the label itself, trimmed and upper-cased.
func DisplayID(raw string, number int64) string {
	if number > 0 {
		return "P" + strconv.FormatInt(number, 10)
	}
	return NormalizeLabel(raw)
}

// NormalizeLabel trims and upper-cases with full case mapping ("ß" -> "SS").
func NormalizeLabel(raw string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(raw))
}

// isAlphaLabel reports whether the label, ignoring plain spaces, is letters only.
func isAlphaLabel(label string) bool {
	compact := strings.ReplaceAll(label, " ", "")
	if compact == "" {
		return false
	}
	for _, r := range compact {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func firstTokenDigitRun(label string) (string, bool) {
	for _, token := range strings.Fields(label) {
		if run, ok := firstDigitRun(token); ok {
			return run, true
		}
	}
	return "", false
}

// firstDigitRun returns the first run of decimal digits in s, any script,
// rewritten as ASCII.
func firstDigitRun(s string) (string, bool) {
	var run strings.Builder
	for _, r := range s {
		if d, ok := digitValue(r); ok {
			run.WriteByte(byte('0' + d))
			continue
		}
		if run.Len() > 0 {
			break
		}
	}
	return run.String(), run.Len() > 0
}

// digitRunValue strips leading zeros; an all-zero run is 0, and so is a run
// too long for int64.
func digitRunValue(run string) int64 {
	trimmed := strings.TrimLeft(run, "0")
	if trimmed == "" {
		return 0
	}
	value, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0
	}
	return value
}

// digitValue maps a Unicode decimal digit (category Nd) to 0-9. Nd ranges
// are made of whole blocks of ten starting at that script's zero.
func digitValue(r rune) (int, bool) {
	if r >= '0' && r <= '9' {
		return int(r - '0'), true
	}
	if !unicode.IsDigit(r) {
		return 0, false
	}
	for _, rg := range unicode.Nd.R16 {
		if r >= rune(rg.Lo) && r <= rune(rg.Hi) {
			return int(r-rune(rg.Lo)) % 10, true
		}
	}
	for _, rg := range unicode.Nd.R32 {
		if r >= rune(rg.Lo) && r <= rune(rg.Hi) {
			return int(r-rune(rg.Lo)) % 10, true
		}
	}
	return 0, false
}
