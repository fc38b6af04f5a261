package ingest

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseDecimal reads a locale-formatted score. It accepts a decimal comma
// ("8,5"), a thousands dot with decimal comma ("1.234,5") and a thousands
// comma with decimal dot ("1,234.5"). Percent signs and blanks are ignored.
// Empty cells, dashes and unparsable text yield nil. Results are rounded to
// two decimal places.
func ParseDecimal(s string) *float64 {
	s = strings.Map(func(r rune) rune {
		if r == '%' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if strings.Trim(s, "-–—") == "" {
		return nil
	}

	comma := strings.LastIndexByte(s, ',')
	dot := strings.LastIndexByte(s, '.')
	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case dot >= 0 && strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	v = math.Round(v*100) / 100
	return &v
}

// ParseInt keeps the digits of s and a leading minus sign. A value with no
// digits yields nil.
func ParseInt(s string) *int {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	digits := DigitsOnly(s)
	if digits == "" {
		return nil
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}
	if neg {
		n = -n
	}
	return &n
}

// CleanText trims s and collapses internal whitespace to single spaces.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// DigitsOnly drops every character of s that is not an ASCII digit.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// isDigits reports whether s is non-empty and made only of ASCII digits.
func isDigits(s string) bool {
	return s != "" && DigitsOnly(s) == s
}

// isBlankValue reports whether a cell carries no value on purpose.
func isBlankValue(s string) bool {
	return strings.Trim(strings.TrimSpace(s), "-–—") == ""
}
