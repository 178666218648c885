package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		code     string
		exchange string
		board    string
	}{
		{"600000", SSE, BoardMain},
		{"601398", SSE, BoardMain},
		{"603259", SSE, BoardMain},
		{"605001", SSE, BoardMain},
		{"688001", SSE, BoardSTAR},
		{"689009", SSE, BoardSTAR},
		{"900901", SSE, BoardMain},
		{"000001", SZSE, BoardMain},
		{"001201", SZSE, BoardMain},
		{"002594", SZSE, BoardSME},
		{"003000", SZSE, BoardMain},
		{"200011", SZSE, BoardMain},
		{"300750", SZSE, BoardChiNext},
		{"301001", SZSE, BoardChiNext},
		{"430001", BSE, BoardBSEMain},
		{"830799", BSE, BoardBSEMain},
		{"871981", BSE, BoardBSEMain},
		{"889000", BSE, BoardBSEMain},
		{"920001", BSE, BoardBSEMain},
		// Unknown and malformed codes.
		{"", "", ""},
		{"abc123", "", ""},
		{"999999", "", ""},
		{"  ", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			exch, board := Classify(tt.code)
			assert.Equal(t, tt.exchange, exch)
			assert.Equal(t, tt.board, board)
		})
	}
}

func TestClassify_Pure(t *testing.T) {
	// Same input, same output, regardless of call history.
	for i := 0; i < 3; i++ {
		exch, board := Classify("688001")
		assert.Equal(t, SSE, exch)
		assert.Equal(t, BoardSTAR, board)
	}
}

func TestBoard_Fallbacks(t *testing.T) {
	assert.Equal(t, BoardSTAR, Board("688001", ""))
	assert.Equal(t, BoardBSEMain, Board("920001", ""))
	assert.Equal(t, BoardBSEMain, Board("999999", "BSE"))
	assert.Equal(t, BoardMain, Board("600000", SSE))
	assert.Equal(t, BoardMain, Board("999999", ""))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"上交所", SSE},
		{"上海证券交易所", SSE},
		{"Shanghai Stock Exchange", SSE},
		{"sse", SSE},
		{"深交所", SZSE},
		{"Shenzhen", SZSE},
		{"北交所", BSE},
		{"Beijing Stock Exchange", BSE},
		{"", ""},
		{"NYSE", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.raw), "raw=%q", tt.raw)
	}
}

func TestShareClass(t *testing.T) {
	assert.Equal(t, "B", ShareClass("900901"))
	assert.Equal(t, "B", ShareClass("200011"))
	assert.Equal(t, "A", ShareClass("600000"))
	assert.Equal(t, "A", ShareClass(""))
}
