package gnet

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGGEP_RoundTrip(t *testing.T) {
	long := bytes.Repeat([]byte{0x42}, 100)
	huge := bytes.Repeat([]byte{0x17}, 5000)
	raw := EncodeGGEP(
		GGEPExtension{ID: "H", Data: []byte{0x01, 0x02}},
		GGEPExtension{ID: "DU", Data: long},
		GGEPExtension{ID: "PATH", Data: huge},
	)
	raw = append(raw, 0xee)

	block, n, err := ParseGGEP(raw)
	require.NoError(t, err)
	assert.Equal(t, len(raw)-1, n, "trailing data must not be consumed")
	require.Len(t, block, 3)

	data, ok := block.Get("DU")
	assert.True(t, ok)
	assert.Equal(t, long, data)
	data, _ = block.Get("PATH")
	assert.Equal(t, huge, data)
	assert.True(t, block.Has("H"))
	assert.False(t, block.Has("GUE"))
}

func TestGGEP_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"no magic", []byte{0x00, 0x81, 'H', 0x40}},
		{"truncated header", []byte{GGEP_MAGIC}},
		{"reserved flag", []byte{GGEP_MAGIC, GGEP_F_LAST | GGEP_F_RESERVED | 1, 'H', 0x40}},
		{"zero id length", []byte{GGEP_MAGIC, GGEP_F_LAST, 0x40}},
		{"overrun", []byte{GGEP_MAGIC, GGEP_F_LAST | 1, 'H', 0x45, 1}},
		{"no last length byte", []byte{GGEP_MAGIC, GGEP_F_LAST | 1, 'H', 0x81, 0x81, 0x81}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseGGEP(tt.raw)
			assert.ErrorIs(t, err, ERR_GGEP_MALFORMED)
		})
	}
}

func TestGGEP_Deflated(t *testing.T) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write([]byte("compressed extension"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	raw := []byte{GGEP_MAGIC, GGEP_F_LAST | GGEP_F_DEFLATE | 1, 'Z'}
	raw = append(raw, encodeGGEPLength(buf.Len())...)
	raw = append(raw, buf.Bytes()...)

	block, _, err := ParseGGEP(raw)
	require.NoError(t, err)
	data, _ := block.Get("Z")
	assert.Equal(t, []byte("compressed extension"), data)
}

func TestGGEP_BadDeflate(t *testing.T) {
	raw := []byte{GGEP_MAGIC, GGEP_F_LAST | GGEP_F_DEFLATE | 1, 'Z', GGEP_L_LAST | 3, 1, 2, 3}
	_, _, err := ParseGGEP(raw)
	assert.ErrorIs(t, err, ERR_INFLATE)
}

func TestGGEP_COBS(t *testing.T) {
	// "a\x00b" stuffed.
	raw := []byte{GGEP_MAGIC, GGEP_F_LAST | GGEP_F_COBS | 1, 'C', GGEP_L_LAST | 4, 0x02, 'a', 0x02, 'b'}
	block, _, err := ParseGGEP(raw)
	require.NoError(t, err)
	data, _ := block.Get("C")
	assert.Equal(t, []byte{'a', 0, 'b'}, data)
}

func TestInflate_Limit(t *testing.T) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(make([]byte, 4096))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = Inflate(buf.Bytes(), 1024)
	assert.ErrorIs(t, err, ERR_INFLATE_TOO_LARGE)

	out, err := Inflate(buf.Bytes(), 4096)
	require.NoError(t, err)
	assert.Len(t, out, 4096)
}
