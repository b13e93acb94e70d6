package gnet

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/samber/oops"
)

// GGEPExtension is one decoded extension of a GGEP block.
type GGEPExtension struct {
	ID   string
	Data []byte
}

// GGEPBlock is the decoded content of a GGEP block.
type GGEPBlock []GGEPExtension

// Get returns the data of the first extension named id.
func (b GGEPBlock) Get(id string) ([]byte, bool) {
	for _, ext := range b {
		if ext.ID == id {
			return ext.Data, true
		}
	}
	return nil, false
}

// Has reports whether the block holds an extension named id.
func (b GGEPBlock) Has(id string) bool {
	_, ok := b.Get(id)
	return ok
}

// ParseGGEP decodes a GGEP block starting with the magic byte. It returns the
// extensions and the number of bytes consumed. Deflated extension data is
// inflated; failures wrap ERR_INFLATE, every other anomaly wraps
// ERR_GGEP_MALFORMED.
func ParseGGEP(b []byte) (GGEPBlock, int, error) {
	if len(b) < 1 || b[0] != GGEP_MAGIC {
		return nil, 0, oops.Wrapf(ERR_GGEP_MALFORMED, "missing ggep magic")
	}
	var block GGEPBlock
	pos := 1
	for {
		if pos >= len(b) {
			return nil, 0, oops.Wrapf(ERR_GGEP_MALFORMED, "truncated ggep header at %d", pos)
		}
		flags := b[pos]
		pos++
		if flags&GGEP_F_RESERVED != 0 {
			return nil, 0, oops.Wrapf(ERR_GGEP_MALFORMED, "reserved ggep flag set")
		}
		idLen := int(flags & GGEP_F_IDLEN)
		if idLen == 0 || pos+idLen > len(b) {
			return nil, 0, oops.Wrapf(ERR_GGEP_MALFORMED, "bad ggep id length %d", idLen)
		}
		id := string(b[pos : pos+idLen])
		pos += idLen

		dataLen, n, err := readGGEPLength(b[pos:])
		if err != nil {
			return nil, 0, err
		}
		pos += n
		if pos+dataLen > len(b) {
			return nil, 0, oops.Wrapf(ERR_GGEP_MALFORMED, "ggep %q data overruns block", id)
		}
		data := b[pos : pos+dataLen]
		pos += dataLen

		if flags&GGEP_F_COBS != 0 {
			if data, err = decodeCOBS(data); err != nil {
				return nil, 0, err
			}
		}
		if flags&GGEP_F_DEFLATE != 0 {
			if data, err = Inflate(data, MAX_INFLATED_BYTES); err != nil {
				return nil, 0, err
			}
		}
		block = append(block, GGEPExtension{ID: id, Data: data})
		if flags&GGEP_F_LAST != 0 {
			return block, pos, nil
		}
	}
}

func readGGEPLength(b []byte) (int, int, error) {
	length := 0
	for i := 0; i < 3; i++ {
		if i >= len(b) {
			return 0, 0, oops.Wrapf(ERR_GGEP_MALFORMED, "truncated ggep length")
		}
		c := b[i]
		length = length<<6 | int(c&GGEP_L_VALUE)
		if c&GGEP_L_LAST != 0 {
			return length, i + 1, nil
		}
		if c&GGEP_L_CONTINUE == 0 {
			return 0, 0, oops.Wrapf(ERR_GGEP_MALFORMED, "ggep length byte without continuation")
		}
	}
	return 0, 0, oops.Wrapf(ERR_GGEP_MALFORMED, "ggep length longer than 3 bytes")
}

// decodeCOBS reverses consistent overhead byte stuffing.
func decodeCOBS(b []byte) ([]byte, error) {
	out := make([]byte, 0, len(b))
	for pos := 0; pos < len(b); {
		code := int(b[pos])
		if code == 0 || pos+code > len(b) {
			return nil, oops.Wrapf(ERR_GGEP_UNSUPPORTED, "bad cobs code %d", code)
		}
		out = append(out, b[pos+1:pos+code]...)
		pos += code
		if code < 0xff && pos < len(b) {
			out = append(out, 0)
		}
	}
	return out, nil
}

// Inflate decompresses zlib data, refusing output larger than limit bytes.
func Inflate(b []byte, limit int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, oops.Wrapf(ERR_INFLATE, "zlib header: %v", err)
	}
	defer r.Close()
	out, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, oops.Wrapf(ERR_INFLATE, "zlib stream: %v", err)
	}
	if len(out) > limit {
		return nil, oops.Wrapf(ERR_INFLATE_TOO_LARGE, "inflated beyond %d bytes", limit)
	}
	return out, nil
}
