package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripJSONP(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]any
	}{
		{
			name: "jsonp wrapper",
			in:   `jsonpCallback123({"code": "600000"})`,
			want: map[string]any{"code": "600000"},
		},
		{
			name: "plain json",
			in:   `{"code": "600000"}`,
			want: map[string]any{"code": "600000"},
		},
		{
			name: "bom prefix",
			in:   "\uFEFF{\"a\": 1}",
			want: map[string]any{"a": float64(1)},
		},
		{
			name: "garbage",
			in:   "<html>blocked</html>",
			want: map[string]any{},
		},
		{
			name: "empty",
			in:   "",
			want: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripJSONP(tt.in))
		})
	}
}

func TestDecode_ArrayBody(t *testing.T) {
	payload := Decode([]byte(`[{"SECCODE": "600000"}]`))
	rows := Rows(payload)
	require.Len(t, rows, 1)
	assert.Equal(t, "600000", String(rows[0]["SECCODE"]))
}

func TestRows_ContainerVariants(t *testing.T) {
	for _, container := range []string{"records", "data", "result", "list"} {
		payload := map[string]any{
			container: []any{map[string]any{"k": "v"}},
		}
		rows := Rows(payload)
		require.Len(t, rows, 1, "container %q", container)
	}

	assert.Nil(t, Rows(map[string]any{"other": "x"}))
	assert.Nil(t, Rows(map[string]any{"records": "not-a-list"}))
}

func TestPick_FirstNonEmptyWins(t *testing.T) {
	row := map[string]any{
		"ORGID":   "",
		"ORGCODE": "gssz0000001",
		"SECID":   "should-not-win",
	}
	assert.Equal(t, "gssz0000001", Pick(row, "ORGID", "ORGCODE", "SECID"))
	assert.Equal(t, "", Pick(row, "MISSING"))
	assert.Equal(t, "", Pick(nil, "ORGID"))
}

func TestString_NumericCodes(t *testing.T) {
	// Portals deliver codes as JSON numbers. Integral values must keep
	// every trailing zero: 600000 is a stock code, not 6.
	assert.Equal(t, "600000", String(float64(600000)))
	assert.Equal(t, "430100", String(float64(430100)))
	assert.Equal(t, "100", String(float64(100)))
	assert.Equal(t, "20150610", String(2.015061e7))
	assert.Equal(t, "0", String(float64(0)))
	assert.Equal(t, "12.5", String(12.5))
	assert.Equal(t, "", String(nil))
	assert.Equal(t, "x", String(" x "))
}

func TestEnsurePercent(t *testing.T) {
	got := EnsurePercent("12.34%")
	require.NotNil(t, got)
	assert.InDelta(t, 12.34, *got, 1e-9)

	assert.Nil(t, EnsurePercent(""))
	assert.Nil(t, EnsurePercent("abc"))
	assert.Nil(t, EnsurePercent(nil))
}

func TestEnsureNumber(t *testing.T) {
	got := EnsureNumber("1,234,567.89")
	require.NotNil(t, got)
	assert.InDelta(t, 1234567.89, *got, 1e-9)

	got = EnsureNumber(float64(42))
	require.NotNil(t, got)
	assert.Equal(t, 42.0, *got)

	assert.Nil(t, EnsureNumber("--"))
	assert.Nil(t, EnsureNumber(map[string]any{}))
}

func TestEnsureInt(t *testing.T) {
	got := EnsureInt("1,234")
	require.NotNil(t, got)
	assert.Equal(t, int64(1234), *got)

	got = EnsureInt("5000.0")
	require.NotNil(t, got)
	assert.Equal(t, int64(5000), *got)

	assert.Nil(t, EnsureInt("12.5"))
	assert.Nil(t, EnsureInt(""))
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "2025-01-03", FormatDate("20250103"))
	assert.Equal(t, "2025-01-03", FormatDate("2025-01-03"))
	assert.Equal(t, "", FormatDate(""))
	assert.Equal(t, "n/a", FormatDate("n/a"))
}

func TestPadCode(t *testing.T) {
	assert.Equal(t, "000008", PadCode("8"))
	assert.Equal(t, "600000", PadCode("600000"))
	assert.Equal(t, "", PadCode("  "))
}
