// Package normalize maps raw vendor payloads into canonical records.
//
// Two concerns live here: company-name cleanup (distinct rules for the
// Chinese and Latin variants) and the data-driven extraction rule tables
// that pick canonical field values out of heterogeneous payload fragments,
// first non-empty candidate wins.
package normalize

import (
	"regexp"
	"strings"
)

var (
	spaceRe = regexp.MustCompile(`\s+`)

	// Corporate suffix noise per script. Longest-first so the broader
	// forms are stripped before their substrings.
	cnSuffixes = []string{
		"集团股份有限公司",
		"股份有限公司",
		"有限责任公司",
		"有限公司",
	}
	enSuffixes = []string{
		"corporation limited",
		"company limited",
		"co., ltd.",
		"co.,ltd.",
		"co., ltd",
		"co.,ltd",
		"co. ltd.",
		"co ltd",
		"limited",
		"corp.",
		"corp",
		"inc.",
		"inc",
		"ltd.",
		"ltd",
	}
)

// CompanyNameCN normalizes a Chinese company name: collapses whitespace
// (full-width spaces included) and strips a trailing corporate suffix.
func CompanyNameCN(name string) string {
	s := strings.TrimSpace(name)
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "　", " ")
	s = spaceRe.ReplaceAllString(s, "")

	// A name that IS a bare suffix is left alone.
	for _, suffix := range cnSuffixes {
		if s == suffix {
			return s
		}
	}
	for _, suffix := range cnSuffixes {
		if trimmed := strings.TrimSuffix(s, suffix); trimmed != s && trimmed != "" {
			s = trimmed
			break
		}
	}
	return s
}

// CompanyNameEN normalizes a Latin company name: collapses runs of
// whitespace to single spaces and strips a trailing corporate suffix,
// case-insensitively, along with any dangling comma.
func CompanyNameEN(name string) string {
	s := strings.TrimSpace(name)
	if s == "" {
		return ""
	}
	s = spaceRe.ReplaceAllString(s, " ")

	lower := strings.ToLower(s)
	for _, suffix := range enSuffixes {
		if strings.HasSuffix(lower, suffix) {
			trimmed := strings.TrimSpace(s[:len(s)-len(suffix)])
			trimmed = strings.TrimSuffix(trimmed, ",")
			trimmed = strings.TrimSpace(trimmed)
			if trimmed != "" {
				s = trimmed
			}
			break
		}
	}
	return s
}
