package gnet

import (
	"encoding/binary"
	"encoding/hex"
	"net/netip"
	"time"

	"github.com/google/uuid"
)

// GUID is the 16 byte opaque message identifier. It also serves as servent
// identifier in query hits and push requests.
type GUID [GUID_SIZE]byte

// ZeroGUID is the all-zero identifier.
var ZeroGUID GUID

const (
	guidModernMarker    = 0xff
	guidModernIndex     = 8
	guidTagIndex        = 15
	guidTagTimestamped  = 0x01
	guidTagChecksum     = 12
	guidChecksumSalt    = 0x5a
	guidTimestampOffset = 4
)

// NewGUID returns a random GUID carrying the modern servent marker.
func NewGUID() GUID {
	var g GUID
	u := uuid.New()
	copy(g[:], u[:])
	g[guidModernIndex] = guidModernMarker
	g[guidTagIndex] = 0
	return g
}

// NewTimestampedGUID returns a random GUID that records its creation time, so
// that relays can recognise queries replayed long after they were issued.
func NewTimestampedGUID(now time.Time) GUID {
	g := NewGUID()
	binary.BigEndian.PutUint32(g[guidTimestampOffset:], uint32(now.Unix()))
	g[guidTagIndex] = guidTagTimestamped
	g[guidTagChecksum] = g.timestampChecksum()
	return g
}

func (g GUID) timestampChecksum() byte {
	c := byte(guidChecksumSalt)
	for _, b := range g[guidTimestampOffset : guidTimestampOffset+4] {
		c ^= b
	}
	return c
}

// Timestamp returns the creation time embedded by NewTimestampedGUID.
func (g GUID) Timestamp() (time.Time, bool) {
	if g[guidModernIndex] != guidModernMarker || g[guidTagIndex] != guidTagTimestamped {
		return time.Time{}, false
	}
	if g[guidTagChecksum] != g.timestampChecksum() {
		return time.Time{}, false
	}
	secs := binary.BigEndian.Uint32(g[guidTimestampOffset:])
	return time.Unix(int64(secs), 0), true
}

// IsZero reports whether every byte is zero.
func (g GUID) IsZero() bool {
	return g == ZeroGUID
}

// OOBAddress returns the out-of-band reply address encoded in a query GUID:
// IPv4 in bytes 0-3 and the port little-endian in bytes 13-14.
func (g GUID) OOBAddress() netip.AddrPort {
	ip := netip.AddrFrom4([4]byte{g[0], g[1], g[2], g[3]})
	port := binary.LittleEndian.Uint16(g[13:15])
	return netip.AddrPortFrom(ip, port)
}

// SetOOBAddress stores addr in the OOB reply positions of the GUID.
func (g *GUID) SetOOBAddress(addr netip.AddrPort) {
	ip := addr.Addr().As4()
	copy(g[0:4], ip[:])
	binary.LittleEndian.PutUint16(g[13:15], addr.Port())
}

func (g GUID) String() string {
	return hex.EncodeToString(g[:])
}

// GUIDFromBytes copies the first 16 bytes of b.
func GUIDFromBytes(b []byte) (GUID, bool) {
	var g GUID
	if len(b) < GUID_SIZE {
		return g, false
	}
	copy(g[:], b[:GUID_SIZE])
	return g, true
}
