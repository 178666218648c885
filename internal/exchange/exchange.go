// Package exchange classifies security codes into exchange and board via
// fixed numeric-prefix rules. This table is the single source of truth:
// both universe classification and per-security classification go through
// Classify so the two can never drift apart.
package exchange

import "strings"

// Exchange identifiers.
const (
	SSE  = "SSE"
	SZSE = "SZSE"
	BSE  = "BSE"
)

// Board identifiers.
const (
	BoardMain    = "Main"
	BoardSME     = "SME"
	BoardChiNext = "ChiNext"
	BoardSTAR    = "STAR"
	BoardBSEMain = "BSE-Main"
)

// Classify derives (exchange, board) from a security code.
//
// Prefix rules:
//
//	SSE:  600/601/603/605 -> Main, 688/689 -> STAR, 900 -> Main (B-share)
//	SZSE: 000/001/003 -> Main, 002 -> SME, 300/301 -> ChiNext,
//	      200 -> Main (B-share)
//	BSE:  43x/83x/87x/88x/89x legacy NEEQ ranges and 92x -> BSE-Main
//
// Unknown or malformed codes (non-numeric, empty) yield ("", ""), never
// an error.
func Classify(code string) (string, string) {
	c := strings.TrimSpace(code)
	if c == "" || !isDigits(c) {
		return "", ""
	}

	switch {
	case hasPrefix(c, "600", "601", "603", "605"):
		return SSE, BoardMain
	case hasPrefix(c, "688", "689"):
		return SSE, BoardSTAR
	case hasPrefix(c, "900"):
		return SSE, BoardMain
	case hasPrefix(c, "000", "001", "003"):
		return SZSE, BoardMain
	case hasPrefix(c, "002"):
		return SZSE, BoardSME
	case hasPrefix(c, "200"):
		return SZSE, BoardMain
	case hasPrefix(c, "300", "301"):
		return SZSE, BoardChiNext
	case hasPrefix(c, "43", "83", "87", "88", "89", "92"):
		return BSE, BoardBSEMain
	}
	return "", ""
}

// Board returns a best-effort board for a code, falling back on the
// exchange hint when the code pattern is not board-specific.
func Board(code, exchangeHint string) string {
	c := strings.TrimSpace(code)
	switch {
	case hasPrefix(c, "688", "689"):
		return BoardSTAR
	case hasPrefix(c, "300", "301"):
		return BoardChiNext
	case hasPrefix(c, "002"):
		return BoardSME
	case hasPrefix(c, "43", "83", "87", "88", "89", "92"):
		return BoardBSEMain
	}
	if strings.EqualFold(exchangeHint, BSE) {
		return BoardBSEMain
	}
	return BoardMain
}

// Normalize maps vendor exchange labels ("上交所", "Shanghai", "SSE", ...)
// to the canonical exchange identifier, or "" when unrecognized.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case containsAny(s, "SSE", "SHANGHAI", "上交", "上海"):
		return SSE
	case containsAny(s, "SZSE", "SHENZHEN", "深交", "深圳"):
		return SZSE
	case containsAny(s, "BSE", "BEIJING", "北交", "北京"):
		return BSE
	}
	return ""
}

// ShareClass reports "B" for the B-share ranges (SSE 900xxx, SZSE 200xxx)
// and "A" for everything else.
func ShareClass(code string) string {
	c := strings.TrimSpace(code)
	if hasPrefix(c, "200", "900") {
		return "B"
	}
	return "A"
}

func hasPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
