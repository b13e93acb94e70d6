package gnet

import (
	"bytes"
	"time"
)

// Message is a decoded, zero-copy view of an inbound message. Payload aliases
// the buffer handed to Decode and must not be modified.
type Message struct {
	Variant  Variant
	Kind     Kind
	Function byte
	ID       GUID
	TTL      uint8
	Hops     uint8
	// Flags holds the header flags of a "marked" size field.
	Flags   uint16
	Size    int
	Payload []byte
	// Body is the G2 packet body following the child packets; nil otherwise.
	Body []byte
	// Raw is the whole frame as handed to Decode.
	Raw      []byte
	Received time.Time
}

// Clone returns a copy of m that shares no memory with the buffer handed to
// Decode. Payload and Body stay views into the copied Raw when they were
// views into the original.
func (m Message) Clone() Message {
	raw := bytes.Clone(m.Raw)
	m.Payload = Rebase(m.Payload, m.Raw, raw)
	m.Body = Rebase(m.Body, m.Raw, raw)
	m.Raw = raw
	return m
}

// Rebase maps b, a sub-slice of orig, onto the same range of dup. A b that
// does not lie within orig is copied.
func Rebase(b, orig, dup []byte) []byte {
	if b == nil {
		return nil
	}
	if cap(b) > 0 && cap(b) <= cap(orig) {
		off := cap(orig) - cap(b)
		if off+len(b) <= len(orig) && &orig[:cap(orig)][off] == &b[:cap(b)][0] {
			return dup[off : off+len(b) : off+len(b)]
		}
	}
	return bytes.Clone(b)
}

// Deflated reports whether the payload is zlib compressed.
func (m *Message) Deflated() bool {
	return m.Flags&GTA_UDP_DEFLATED != 0
}

// UnknownFlags returns header flag bits this implementation does not define.
func (m *Message) UnknownFlags() uint16 {
	return m.Flags &^ GTA_KNOWN_HEADER_FLAGS
}

// Limits configures the structural checks of Decode.
type Limits struct {
	// MaxSize is the absolute ceiling for a whole message, header included.
	MaxSize int
	// MaxQueueDelay bounds how long a message may wait between reception and
	// decoding. Zero disables the check.
	MaxQueueDelay time.Duration
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxSize:       DEFAULT_MAX_MESSAGE_SIZE,
		MaxQueueDelay: 30 * time.Second,
	}
}
