package routing

import (
	"net/netip"
	"time"

	"github.com/go-gnutella/go-gnutella/lib/gnet"
)

// Entry is the route state recorded for the first sighting of an identifier.
type Entry struct {
	ID      gnet.GUID
	Origin  gnet.ConnRef
	Addr    netip.AddrPort
	Variant gnet.Variant
	Kind    gnet.Kind
	TTL     uint8
	Hops    uint8
	Arrived time.Time
	// OOB is the out-of-band reply address requested by a query, if any.
	OOB       netip.AddrPort
	Replied   bool
	RepliedAt time.Time
}

// Local reports whether this node originated the identifier.
func (e Entry) Local() bool {
	return e.Origin.IsLocal()
}

// WantsOOB reports whether replies should leave over UDP instead of the
// reverse path.
func (e Entry) WantsOOB() bool {
	return e.OOB.IsValid()
}

// Age returns how long ago the entry was first seen.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.Arrived)
}
