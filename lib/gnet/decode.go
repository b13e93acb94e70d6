package gnet

import (
	"encoding/binary"
	"time"

	"github.com/go-gnutella/go-gnutella/lib/drop"
	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// Decode validates the framing of raw and returns a typed view of it.
//
// The returned reason is drop.None on success. Otherwise it is one of the
// structural categories (TOO_SMALL, WAY_TOO_LARGE, BAD_SIZE, UNKNOWN_TYPE,
// UNEXPECTED, TOO_LARGE, TOO_OLD) and the message must be discarded. Decode has
// no side effects and never retains raw beyond the returned view.
func Decode(raw []byte, origin Origin, lim Limits, now time.Time) (Message, drop.Reason) {
	var (
		msg    Message
		reason drop.Reason
	)
	switch origin.Variant {
	case VariantClassic, VariantGUESS, VariantDHT:
		msg, reason = decodeGnutella(raw, origin, lim)
	case VariantG2:
		msg, reason = decodeG2(raw, lim)
	default:
		return Message{}, drop.BadSize
	}
	if reason != drop.None {
		return msg, reason
	}
	msg.Variant = origin.Variant
	msg.Raw = raw
	msg.Received = origin.Received
	if lim.MaxQueueDelay > 0 && !msg.Received.IsZero() && now.Sub(msg.Received) > lim.MaxQueueDelay {
		return msg, drop.TooOld
	}
	return msg, drop.None
}

func decodeGnutella(raw []byte, origin Origin, lim Limits) (Message, drop.Reason) {
	if len(raw) < GTA_HEADER_SIZE {
		return Message{}, drop.TooSmall
	}
	if lim.MaxSize > 0 && len(raw) > lim.MaxSize {
		return Message{}, drop.WayTooLarge
	}

	var msg Message
	copy(msg.ID[:], raw[:GUID_SIZE])
	msg.Function = raw[16]
	msg.TTL = raw[17]
	msg.Hops = raw[18]

	size := binary.LittleEndian.Uint32(raw[19:GTA_HEADER_SIZE])
	if size&GTA_SIZE_MARKED != 0 {
		msg.Flags = uint16((size >> GTA_SIZE_FLAGS_SHIFT) & GTA_SIZE_FLAGS_MASK)
		size &= GTA_SIZE_MASK
	}
	if lim.MaxSize > 0 && uint64(size) > uint64(lim.MaxSize) {
		return msg, drop.WayTooLarge
	}
	msg.Size = int(size)
	if msg.Size != len(raw)-GTA_HEADER_SIZE {
		return msg, drop.BadSize
	}
	msg.Payload = raw[GTA_HEADER_SIZE:]

	kind, reason := gnutellaKind(&msg, origin)
	if reason != drop.None {
		return msg, reason
	}
	msg.Kind = kind
	if origin.Variant == VariantDHT {
		// The ttl and hops bytes carry the DHT version; DHT RPCs are never relayed.
		msg.TTL, msg.Hops = 1, 0
	}

	if msg.Flags != 0 && origin.Transport != TransportUDP {
		// Header flags only exist on datagrams.
		return msg, drop.Unexpected
	}
	if msg.Deflated() {
		// Compressed payloads are bounded after inflation.
		return msg, drop.None
	}
	return msg, checkPayloadBounds(kind, len(msg.Payload))
}

func gnutellaKind(msg *Message, origin Origin) (Kind, drop.Reason) {
	if origin.Variant == VariantDHT {
		if msg.Function != GTA_MSG_DHT {
			if _, known := classicFunctions[msg.Function]; known {
				return KindUnknown, drop.Unexpected
			}
			return KindUnknown, drop.UnknownType
		}
		if len(msg.Payload) < 1 {
			return KindUnknown, drop.BadSize
		}
		kind, ok := dhtOpcodes[msg.Payload[0]]
		if !ok {
			return KindUnknown, drop.UnknownType
		}
		if origin.Transport != TransportUDP {
			return kind, drop.Unexpected
		}
		return kind, drop.None
	}

	if msg.Function == GTA_MSG_DHT {
		// DHT traffic has its own socket and framing.
		return KindUnknown, drop.Unexpected
	}
	kind, ok := classicFunctions[msg.Function]
	if !ok {
		log.WithFields(logger.Fields{
			"at":       "gnet.gnutellaKind",
			"function": msg.Function,
		}).Debug("unknown_gnutella_function")
		return KindUnknown, drop.UnknownType
	}
	udp := origin.Variant == VariantGUESS || origin.Transport == TransportUDP
	if udp && !legalOverUDP[kind] {
		return kind, drop.Unexpected
	}
	if !udp && kind == KindRUDP {
		return kind, drop.Unexpected
	}
	return kind, drop.None
}

func checkPayloadBounds(kind Kind, n int) drop.Reason {
	lo, hi := kind.PayloadBounds()
	if hi > 0 && n > hi {
		return drop.TooLarge
	}
	if n < lo {
		return drop.BadSize
	}
	return drop.None
}
