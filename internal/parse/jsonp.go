// Package parse handles the raw payload shapes returned by the exchange
// data portals: JSON or JSONP bodies, inconsistently nested row containers,
// and loosely typed numeric fields.
package parse

import (
	"encoding/json"
	"strconv"
	"strings"
)

// StripJSONP extracts the JSON object from a JSONP response body.
// It takes the text between the outermost parentheses, strips a UTF-8 BOM
// if present and unmarshals the result. Plain JSON bodies pass through
// unchanged. On any failure an empty map is returned, never an error:
// callers treat an unparseable payload as an absent facet.
func StripJSONP(text string) map[string]any {
	if text == "" {
		return map[string]any{}
	}

	s := text
	left := strings.IndexByte(s, '(')
	right := strings.LastIndexByte(s, ')')
	if left != -1 && right != -1 && right > left {
		s = s[left+1 : right]
	}
	s = strings.TrimSpace(strings.TrimPrefix(s, "\uFEFF"))

	var payload map[string]any
	if err := json.Unmarshal([]byte(s), &payload); err != nil {
		return map[string]any{}
	}
	return payload
}

// Decode unmarshals a body that may be JSON, JSONP, or a bare JSON array.
// Array bodies are wrapped as {"records": [...]} so callers always get a map.
func Decode(body []byte) map[string]any {
	text := strings.TrimSpace(strings.TrimPrefix(string(body), "\uFEFF"))

	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil {
		return obj
	}
	var arr []any
	if err := json.Unmarshal([]byte(text), &arr); err == nil {
		return map[string]any{"records": arr}
	}
	return StripJSONP(text)
}

// Rows picks the row container out of a listing payload. The portals are
// inconsistent about where the list lives: "records", "data", or the root.
func Rows(payload map[string]any) []map[string]any {
	for _, key := range []string{"records", "data", "result", "list"} {
		if rows := asRowSlice(payload[key]); rows != nil {
			return rows
		}
	}
	return nil
}

func asRowSlice(v any) []map[string]any {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	rows := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			rows = append(rows, m)
		}
	}
	return rows
}

// Dig walks nested maps by key path and returns the value, or nil when any
// segment is missing or not a map.
func Dig(payload map[string]any, path ...string) any {
	var cur any = payload
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

// FirstRow returns the first element of a list value as a map, handling the
// common "<block>Data": [ {...} ] shape of the cninfo detail payloads.
func FirstRow(v any) map[string]any {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return nil
	}
	m, _ := arr[0].(map[string]any)
	return m
}

// String returns a trimmed string for v, or "" for nil and non-scalars.
// Numbers are formatted without a trailing ".0" for integral values, since
// vendor payloads deliver codes both as strings and JSON numbers.
func String(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64:
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return formatFloat(s)
	case bool:
		if s {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// Pick returns the first non-empty string value among the given keys.
// This is the "first candidate wins" lookup used across all vendor payloads.
func Pick(row map[string]any, keys ...string) string {
	if row == nil {
		return ""
	}
	for _, key := range keys {
		if s := String(row[key]); s != "" {
			return s
		}
	}
	return ""
}
