package gnet

import (
	"encoding/binary"

	"github.com/samber/oops"
)

// DHT is the decoded RPC header common to every DHT message.
type DHT struct {
	Opcode   byte
	Vendor   string
	Version  uint16
	KUID     [DHT_KUID_SIZE]byte
	Contact  []byte
	Instance byte
	Flags    byte
	Extended []byte
	Body     []byte
}

// DHTStore is the body of a STORE request.
type DHTStore struct {
	Token  []byte
	Values [][]byte
}

// ParseDHT decodes a DHT payload:
//
//	opcode(1) vendor(4) version(2) kuid(20) addrlen(1) addr instance(1)
//	flags(1) extlen(2) ext body
//
// Errors wrap ERR_DHT_UNPARSEABLE.
func ParseDHT(p []byte) (DHT, error) {
	var d DHT
	const fixed = 1 + 4 + 2 + DHT_KUID_SIZE + 1
	if len(p) < fixed {
		return d, oops.Wrapf(ERR_DHT_UNPARSEABLE, "dht header of %d bytes", len(p))
	}
	d.Opcode = p[0]
	d.Vendor = string(p[1:5])
	d.Version = binary.BigEndian.Uint16(p[5:7])
	copy(d.KUID[:], p[7:7+DHT_KUID_SIZE])
	pos := 7 + DHT_KUID_SIZE
	addrLen := int(p[pos])
	pos++
	if pos+addrLen+4 > len(p) {
		return d, oops.Wrapf(ERR_DHT_UNPARSEABLE, "contact of %d bytes overruns header", addrLen)
	}
	d.Contact = p[pos : pos+addrLen]
	pos += addrLen
	d.Instance = p[pos]
	d.Flags = p[pos+1]
	extLen := int(binary.BigEndian.Uint16(p[pos+2 : pos+4]))
	pos += 4
	if pos+extLen > len(p) {
		return d, oops.Wrapf(ERR_DHT_UNPARSEABLE, "extended header of %d bytes overruns payload", extLen)
	}
	d.Extended = p[pos : pos+extLen]
	d.Body = p[pos+extLen:]
	return d, nil
}

// ParseStore decodes the body of a STORE request:
//
//	toklen(1) token count(1) { len(2) value }...
func ParseStore(body []byte) (DHTStore, error) {
	var s DHTStore
	if len(body) < 1 {
		return s, oops.Wrapf(ERR_DHT_UNPARSEABLE, "empty store body")
	}
	tokLen := int(body[0])
	pos := 1
	if pos+tokLen+1 > len(body) {
		return s, oops.Wrapf(ERR_DHT_UNPARSEABLE, "token of %d bytes overruns body", tokLen)
	}
	s.Token = body[pos : pos+tokLen]
	pos += tokLen
	count := int(body[pos])
	pos++
	s.Values = make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		if pos+2 > len(body) {
			return s, oops.Wrapf(ERR_DHT_UNPARSEABLE, "value %d truncated", i)
		}
		n := int(binary.BigEndian.Uint16(body[pos : pos+2]))
		pos += 2
		if pos+n > len(body) {
			return s, oops.Wrapf(ERR_DHT_UNPARSEABLE, "value %d of %d bytes overruns body", i, n)
		}
		s.Values = append(s.Values, body[pos:pos+n])
		pos += n
	}
	return s, nil
}

// EncodeDHT builds a DHT payload; the inverse of ParseDHT.
func EncodeDHT(d DHT) []byte {
	out := make([]byte, 0, 32+len(d.Contact)+len(d.Extended)+len(d.Body))
	out = append(out, d.Opcode)
	vendor := [4]byte{}
	copy(vendor[:], d.Vendor)
	out = append(out, vendor[:]...)
	out = binary.BigEndian.AppendUint16(out, d.Version)
	out = append(out, d.KUID[:]...)
	out = append(out, byte(len(d.Contact)))
	out = append(out, d.Contact...)
	out = append(out, d.Instance, d.Flags)
	out = binary.BigEndian.AppendUint16(out, uint16(len(d.Extended)))
	out = append(out, d.Extended...)
	return append(out, d.Body...)
}

// EncodeStore builds a STORE request body.
func EncodeStore(s DHTStore) []byte {
	out := []byte{byte(len(s.Token))}
	out = append(out, s.Token...)
	out = append(out, byte(len(s.Values)))
	for _, v := range s.Values {
		out = binary.BigEndian.AppendUint16(out, uint16(len(v)))
		out = append(out, v...)
	}
	return out
}
