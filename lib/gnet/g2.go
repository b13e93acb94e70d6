package gnet

import "github.com/go-gnutella/go-gnutella/lib/drop"

// g2Header is the parsed framing of one G2 packet.
type g2Header struct {
	name     []byte
	compound bool
	header   int
	length   int
}

// readG2Header parses the control byte, length and name at the start of b.
// It returns false when b is too short or starts with an end-of-children marker.
func readG2Header(b []byte) (g2Header, bool) {
	var h g2Header
	if len(b) < 1 || b[0] == 0 {
		return h, false
	}
	cb := b[0]
	lenLen := int(cb >> G2_LEN_LEN_SHIFT)
	nameLen := int((cb>>G2_NAME_LEN_SHIFT)&G2_NAME_LEN_MASK) + 1
	h.compound = cb&G2_FLAG_COMPOUND != 0
	h.header = 1 + lenLen + nameLen
	if len(b) < h.header {
		return h, false
	}
	lenBytes := b[1 : 1+lenLen]
	for i := range lenBytes {
		var digit byte
		if cb&G2_FLAG_BIG_END != 0 {
			digit = lenBytes[i]
		} else {
			digit = lenBytes[lenLen-1-i]
		}
		h.length = h.length<<8 | int(digit)
	}
	h.name = b[1+lenLen : h.header]
	return h, true
}

func decodeG2(raw []byte, lim Limits) (Message, drop.Reason) {
	var msg Message
	if len(raw) < 2 {
		return msg, drop.TooSmall
	}
	if lim.MaxSize > 0 && len(raw) > lim.MaxSize {
		return msg, drop.WayTooLarge
	}
	h, ok := readG2Header(raw)
	if !ok {
		if len(raw) > 0 && raw[0] == 0 {
			return msg, drop.BadSize
		}
		return msg, drop.TooSmall
	}
	if h.header+h.length != len(raw) {
		return msg, drop.BadSize
	}
	kind, known := g2Names[string(h.name)]
	if !known {
		return msg, drop.UnknownType
	}
	msg.Kind = kind
	msg.Size = h.length
	msg.Payload = raw[h.header:]
	msg.TTL, msg.Hops = 1, 0

	body, ok := g2Body(msg.Payload, h.compound)
	if !ok {
		return msg, drop.BadSize
	}
	msg.Body = body
	if reason := checkPayloadBounds(kind, len(msg.Payload)); reason != drop.None {
		return msg, reason
	}
	return msg, g2Identifier(&msg)
}

// g2Body skips the child packets of a compound payload and returns what
// follows the end-of-children marker.
func g2Body(payload []byte, compound bool) ([]byte, bool) {
	if !compound {
		return payload, true
	}
	pos := 0
	for pos < len(payload) {
		if payload[pos] == 0 {
			return payload[pos+1:], true
		}
		child, ok := readG2Header(payload[pos:])
		if !ok {
			return nil, false
		}
		next := pos + child.header + child.length
		if next > len(payload) || next <= pos {
			return nil, false
		}
		pos = next
	}
	// Children fill the whole payload; there is no body.
	return payload[len(payload):], true
}

// g2Identifier extracts the search GUID carried by the routed G2 packets.
func g2Identifier(msg *Message) drop.Reason {
	switch msg.Kind {
	case KindG2Query, KindG2QueryAck:
		id, ok := GUIDFromBytes(msg.Body)
		if !ok {
			return drop.BadSize
		}
		msg.ID = id
	case KindG2Hit:
		if len(msg.Body) < 1+GUID_SIZE {
			return drop.BadSize
		}
		msg.ID, _ = GUIDFromBytes(msg.Body[1:])
		msg.Hops = msg.Body[0]
		msg.TTL = 1
	}
	return drop.None
}

// G2ChildNames returns the names of the direct children of a compound G2
// payload, in order. Malformed trailing data is ignored.
func G2ChildNames(payload []byte) []string {
	var names []string
	pos := 0
	for pos < len(payload) && payload[pos] != 0 {
		child, ok := readG2Header(payload[pos:])
		if !ok {
			break
		}
		names = append(names, string(child.name))
		next := pos + child.header + child.length
		if next > len(payload) || next <= pos {
			break
		}
		pos = next
	}
	return names
}
