package gnet

import (
	"bytes"
	"encoding/base32"
	"encoding/binary"
	"strings"

	"github.com/samber/oops"
)

// URN is a content identifier found in a query or hit extension area.
type URN struct {
	Namespace string
	// SHA1 is set for urn:sha1 and urn:bitprint.
	SHA1    [20]byte
	HasSHA1 bool
	Raw     string
}

// Query is a decoded classic query payload.
type Query struct {
	Flags      uint16
	Text       []byte
	Extensions []byte
	URNs       []URN
	GGEP       GGEPBlock
	XML        []byte
}

// IsMarked reports whether the flags field carries query flags rather than a
// legacy minimum speed.
func (q *Query) IsMarked() bool {
	return q.Flags&QUERY_FLAG_MARK != 0
}

// WantsOOB reports whether hits should be delivered out-of-band to the
// address encoded in the query GUID.
func (q *Query) WantsOOB() bool {
	return q.IsMarked() && q.Flags&QUERY_FLAG_OOB != 0
}

// ParseQuery decodes a query payload: flags(2) text NUL extensions.
// Structural failures wrap ERR_QUERY_TOO_SHORT, ERR_QUERY_NO_NUL, ERR_BAD_URN,
// ERR_MALFORMED_SHA1, ERR_GGEP_MALFORMED or ERR_INFLATE.
func ParseQuery(p []byte) (Query, error) {
	var q Query
	if len(p) < 3 {
		return q, oops.Wrapf(ERR_QUERY_TOO_SHORT, "query payload of %d bytes", len(p))
	}
	q.Flags = binary.LittleEndian.Uint16(p[0:2])
	nul := bytes.IndexByte(p[2:], 0)
	if nul < 0 {
		return q, ERR_QUERY_NO_NUL
	}
	q.Text = p[2 : 2+nul]
	q.Extensions = p[2+nul+1:]
	if err := parseExtensions(q.Extensions, &q.URNs, &q.GGEP, &q.XML); err != nil {
		return q, err
	}
	return q, nil
}

// parseExtensions walks a HUGE/GGEP extension area. Fields are separated by
// 0x1C; a GGEP block is self delimiting and may contain separator bytes.
func parseExtensions(ext []byte, urns *[]URN, ggep *GGEPBlock, xml *[]byte) error {
	pos := 0
	for pos < len(ext) {
		switch ext[pos] {
		case HUGE_FIELD_SEP, 0:
			pos++
			continue
		case GGEP_MAGIC:
			block, n, err := ParseGGEP(ext[pos:])
			if err != nil {
				return err
			}
			*ggep = append(*ggep, block...)
			pos += n
			continue
		}
		end := pos
		for end < len(ext) && ext[end] != HUGE_FIELD_SEP && ext[end] != 0 {
			end++
		}
		field := ext[pos:end]
		pos = end
		switch {
		case hasPrefixFold(field, "urn:"):
			urn, err := ParseURN(string(field))
			if err != nil {
				return err
			}
			*urns = append(*urns, urn)
		case field[0] == '<' || field[0] == '{':
			*xml = field
		}
	}
	return nil
}

func hasPrefixFold(b []byte, prefix string) bool {
	return len(b) >= len(prefix) && strings.EqualFold(string(b[:len(prefix)]), prefix)
}

const (
	sha1Base32Len  = 32
	tigerBase32Len = 39
)

// ParseURN validates a "urn:<namespace>:<value>" string.
func ParseURN(s string) (URN, error) {
	urn := URN{Raw: s}
	if !hasPrefixFold([]byte(s), "urn:") {
		return urn, oops.Wrapf(ERR_BAD_URN, "%q is not a urn", s)
	}
	rest := s[len("urn:"):]
	colon := strings.IndexByte(rest, ':')
	if colon <= 0 {
		// A bare "urn:" asks for any URN and is tolerated.
		if rest == "" {
			return urn, nil
		}
		return urn, oops.Wrapf(ERR_BAD_URN, "no namespace in %q", s)
	}
	urn.Namespace = strings.ToLower(rest[:colon])
	value := rest[colon+1:]
	switch urn.Namespace {
	case "sha1":
		digest, err := decodeSHA1(value)
		if err != nil {
			return urn, err
		}
		urn.SHA1, urn.HasSHA1 = digest, true
	case "bitprint", "bp":
		dot := strings.IndexByte(value, '.')
		if dot < 0 || len(value)-dot-1 != tigerBase32Len {
			return urn, oops.Wrapf(ERR_BAD_URN, "bad bitprint %q", value)
		}
		digest, err := decodeSHA1(value[:dot])
		if err != nil {
			return urn, err
		}
		urn.SHA1, urn.HasSHA1 = digest, true
	default:
		if value == "" {
			return urn, oops.Wrapf(ERR_BAD_URN, "empty value in %q", s)
		}
	}
	return urn, nil
}

func decodeSHA1(value string) ([20]byte, error) {
	var digest [20]byte
	if len(value) != sha1Base32Len {
		return digest, oops.Wrapf(ERR_MALFORMED_SHA1, "sha1 of %d chars", len(value))
	}
	raw, err := base32.StdEncoding.DecodeString(strings.ToUpper(value))
	if err != nil || len(raw) != len(digest) {
		return digest, oops.Wrapf(ERR_MALFORMED_SHA1, "sha1 %q is not base32", value)
	}
	copy(digest[:], raw)
	return digest, nil
}

// EncodeSHA1URN formats a digest as urn:sha1.
func EncodeSHA1URN(digest [20]byte) string {
	return "urn:sha1:" + base32.StdEncoding.EncodeToString(digest[:])
}

// MediaMask returns the GGEP "M" media type mask of the query, if present.
// The value is a little endian integer of at most four bytes.
func (q *Query) MediaMask() (uint32, bool) {
	data, ok := q.GGEP.Get(GGEP_ID_MEDIA)
	if !ok || len(data) == 0 || len(data) > 4 {
		return 0, false
	}
	var mask uint32
	for i := len(data) - 1; i >= 0; i-- {
		mask = mask<<8 | uint32(data[i])
	}
	return mask, true
}

// QueryKey returns the GUESS query key carried in GGEP "QK".
func (q *Query) QueryKey() ([]byte, bool) {
	return q.GGEP.Get(GGEP_ID_QUERY_KEY)
}
