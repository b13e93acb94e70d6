package admission

import (
	"encoding/binary"
	"net/netip"
	"time"

	"github.com/go-gnutella/go-gnutella/lib/gnet"
	"github.com/go-gnutella/go-gnutella/lib/routing"
)

// inspection carries what the stages learn about one message, so that a
// deflated payload is inflated at most once per Classify call.
type inspection struct {
	msg    *gnet.Message
	origin gnet.Origin
	now    time.Time

	inflated   bool
	plain      []byte
	inflateErr error

	route    routing.Entry
	hasRoute bool
	oob      netip.AddrPort
	ownQuery bool
	hit      *gnet.QueryHit
}

// payload returns the inflated payload.
func (in *inspection) payload() ([]byte, error) {
	if !in.msg.Deflated() {
		return in.msg.Payload, nil
	}
	if !in.inflated {
		limit := gnet.MAX_INFLATED_BYTES
		if _, hi := in.msg.Kind.PayloadBounds(); hi > 0 {
			limit = hi
		}
		in.plain, in.inflateErr = gnet.Inflate(in.msg.Payload, limit)
		in.inflated = true
	}
	return in.plain, in.inflateErr
}

// view returns a copy of the message whose payload is plain, for the content
// policies. ok is false when the payload cannot be inflated.
func (in *inspection) view() (*gnet.Message, bool) {
	if !in.msg.Deflated() {
		return in.msg, true
	}
	plain, err := in.payload()
	if err != nil {
		return nil, false
	}
	v := *in.msg
	v.Payload = plain
	v.Flags &^= gnet.GTA_UDP_DEFLATED
	return &v, true
}

// queryFlags returns the flags word of a classic query without a full parse.
func (in *inspection) queryFlags() uint16 {
	if in.msg.Kind != gnet.KindQuery {
		return 0
	}
	p, err := in.payload()
	if err != nil || len(p) < 2 {
		return 0
	}
	return binary.LittleEndian.Uint16(p[0:2])
}

// wantsOOB reports whether a classic query asks for out-of-band hits.
func (in *inspection) wantsOOB() bool {
	f := in.queryFlags()
	return f&gnet.QUERY_FLAG_MARK != 0 && f&gnet.QUERY_FLAG_OOB != 0
}

// hitServent returns the servent identifier trailing a classic query hit.
func (in *inspection) hitServent() (gnet.GUID, bool) {
	if in.msg.Kind != gnet.KindQueryHit {
		return gnet.ZeroGUID, false
	}
	p, err := in.payload()
	if err != nil || len(p) < gnet.GUID_SIZE {
		return gnet.ZeroGUID, false
	}
	return gnet.GUIDFromBytes(p[len(p)-gnet.GUID_SIZE:])
}
