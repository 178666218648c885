package parse

import (
	"strconv"
	"strings"
)

// The Ensure* family converts vendor numeric fields into typed values.
// Contract: nil on null/empty input, a best-effort numeric on parseable
// input, and nil on unparseable input. They never panic and never return
// the original string: typed CSV columns must not mix strings and numbers.

// EnsureNumber parses a float from a vendor field, stripping thousands
// separators, percent signs and surrounding whitespace.
func EnsureNumber(v any) *float64 {
	switch n := v.(type) {
	case nil:
		return nil
	case float64:
		f := n
		return &f
	case int:
		f := float64(n)
		return &f
	case string:
		s := strings.TrimSpace(n)
		if s == "" || s == "-" || s == "--" {
			return nil
		}
		s = strings.ReplaceAll(s, ",", "")
		s = strings.TrimSuffix(s, "%")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// EnsurePercent parses a percentage: "12.34%" -> 12.34. The value is not
// rescaled; the portals already report ratios in percent units.
func EnsurePercent(v any) *float64 {
	return EnsureNumber(v)
}

// EnsureInt parses an integer count such as a share quantity. Fractional
// inputs are accepted when integral ("1234.0"), otherwise nil.
func EnsureInt(v any) *int64 {
	f := EnsureNumber(v)
	if f == nil {
		return nil
	}
	if *f != float64(int64(*f)) {
		return nil
	}
	i := int64(*f)
	return &i
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatDate normalizes compact vendor dates: "20250103" -> "2025-01-03".
// Already-dashed or unrecognized values pass through unchanged; empty
// input yields "".
func FormatDate(v any) string {
	s := String(v)
	if s == "" {
		return ""
	}
	if strings.Contains(s, "-") {
		return s
	}
	if len(s) == 8 && isDigits(s) {
		return s[:4] + "-" + s[4:6] + "-" + s[6:8]
	}
	return s
}

// PadCode zero-pads a security code to the canonical 6-digit width.
// Empty input stays empty; codes already at or above width pass through.
func PadCode(code string) string {
	c := strings.TrimSpace(code)
	if c == "" {
		return ""
	}
	for len(c) < 6 {
		c = "0" + c
	}
	return c
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
