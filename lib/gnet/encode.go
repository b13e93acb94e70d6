package gnet

import (
	"bytes"
	"encoding/binary"

	"github.com/klauspost/compress/zlib"
)

// EncodeHeader frames payload behind a classic Gnutella header.
func EncodeHeader(id GUID, function, ttl, hops byte, payload []byte) []byte {
	out := make([]byte, GTA_HEADER_SIZE, GTA_HEADER_SIZE+len(payload))
	copy(out, id[:])
	out[16] = function
	out[17] = ttl
	out[18] = hops
	binary.LittleEndian.PutUint32(out[19:], uint32(len(payload)))
	return append(out, payload...)
}

// EncodeDeflated frames a zlib compressed payload behind a marked header that
// carries flags.
func EncodeDeflated(id GUID, function, ttl, hops byte, payload []byte, flags uint16) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(payload); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	out := EncodeHeader(id, function, ttl, hops, buf.Bytes())
	size := uint32(buf.Len()) | GTA_SIZE_MARKED | uint32(flags|GTA_UDP_DEFLATED)<<GTA_SIZE_FLAGS_SHIFT
	binary.LittleEndian.PutUint32(out[19:], size)
	return out, nil
}

// EncodeG2 frames a G2 packet. Children must already be encoded packets.
func EncodeG2(name string, children [][]byte, body []byte) []byte {
	var payload []byte
	for _, c := range children {
		payload = append(payload, c...)
	}
	compound := len(children) > 0
	if compound && len(body) > 0 {
		payload = append(payload, 0)
	}
	payload = append(payload, body...)

	lenLen := 0
	for n := len(payload); n > 0; n >>= 8 {
		lenLen++
	}
	cb := byte(lenLen<<G2_LEN_LEN_SHIFT) | byte((len(name)-1)&G2_NAME_LEN_MASK)<<G2_NAME_LEN_SHIFT
	if compound {
		cb |= G2_FLAG_COMPOUND
	}
	out := []byte{cb}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	out = append(out, lenBuf[:lenLen]...)
	out = append(out, name...)
	return append(out, payload...)
}

// EncodeGGEP builds a GGEP block holding the given extensions in order.
// Data longer than the 18 bit length field cannot be encoded and is truncated.
func EncodeGGEP(exts ...GGEPExtension) []byte {
	out := []byte{GGEP_MAGIC}
	for i, ext := range exts {
		flags := byte(len(ext.ID)) & GGEP_F_IDLEN
		if i == len(exts)-1 {
			flags |= GGEP_F_LAST
		}
		out = append(out, flags)
		out = append(out, ext.ID...)
		data := ext.Data
		if len(data) >= 1<<18 {
			data = data[:1<<18-1]
		}
		out = append(out, encodeGGEPLength(len(data))...)
		out = append(out, data...)
	}
	return out
}

func encodeGGEPLength(n int) []byte {
	switch {
	case n < 1<<6:
		return []byte{GGEP_L_LAST | byte(n)}
	case n < 1<<12:
		return []byte{GGEP_L_CONTINUE | byte(n>>6), GGEP_L_LAST | byte(n&GGEP_L_VALUE)}
	default:
		return []byte{
			GGEP_L_CONTINUE | byte(n>>12),
			GGEP_L_CONTINUE | byte((n>>6)&GGEP_L_VALUE),
			GGEP_L_LAST | byte(n&GGEP_L_VALUE),
		}
	}
}
