package forward

import (
	"net/netip"
	"testing"
	"time"

	"github.com/go-gnutella/go-gnutella/lib/admission"
	"github.com/go-gnutella/go-gnutella/lib/drop"
	"github.com/go-gnutella/go-gnutella/lib/gnet"
	"github.com/go-gnutella/go-gnutella/lib/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type staticTopology []gnet.ConnRef

func (s staticTopology) BroadcastCandidates(gnet.Network) []gnet.ConnRef { return s }

func conn(id uint32) gnet.ConnRef {
	return gnet.ConnRef{ID: id, Gen: 1}
}

func origin(id uint32) gnet.Origin {
	return gnet.Origin{
		Conn:     conn(id),
		Addr:     netip.MustParseAddrPort("203.0.113.5:6346"),
		Variant:  gnet.VariantClassic,
		Received: testNow,
	}
}

func decode(t *testing.T, raw []byte, o gnet.Origin) *gnet.Message {
	t.Helper()
	msg, reason := gnet.Decode(raw, o, gnet.DefaultLimits(), testNow)
	require.Equal(t, drop.None, reason)
	return &msg
}

func query(ttl, hops byte) []byte {
	return gnet.EncodeHeader(gnet.NewGUID(), gnet.GTA_MSG_SEARCH, ttl, hops, []byte{0, 0, 's', 'i', 'n', 0})
}

func TestRoute_BroadcastSkipsOrigin(t *testing.T) {
	f := New(Config{MaxHops: 14}, staticTopology{conn(1), conn(2), conn(3)})
	msg := decode(t, query(5, 0), origin(2))
	v := admission.Verdict{Reason: drop.None, Payload: msg.Payload}

	copies := f.Route(msg, origin(2), &v)
	require.Len(t, copies, 2)
	for _, c := range copies {
		assert.Equal(t, ToConnection, c.Class)
		assert.NotEqual(t, conn(2), c.Conn)
		assert.Equal(t, uint8(4), c.TTL)
		assert.Equal(t, uint8(1), c.Hops)

		relayed := decode(t, c.Frame, origin(9))
		assert.Equal(t, msg.ID, relayed.ID)
		assert.Equal(t, uint8(4), relayed.TTL)
		assert.Equal(t, uint8(1), relayed.Hops)
		assert.Equal(t, msg.Payload, relayed.Payload)
	}
}

func TestRoute_NeverRelaysTTLZero(t *testing.T) {
	f := New(Config{MaxHops: 14}, staticTopology{conn(1), conn(2)})
	for ttl := byte(1); ttl <= 7; ttl++ {
		for hops := byte(0); hops <= 14; hops++ {
			msg := decode(t, query(ttl, hops), origin(1))
			v := admission.Verdict{Reason: drop.None, Payload: msg.Payload}
			for _, c := range f.Route(msg, origin(1), &v) {
				assert.NotZero(t, c.TTL, "ttl=%d hops=%d", ttl, hops)
				assert.LessOrEqual(t, c.Hops, uint8(14))
			}
		}
	}
}

func TestRoute_LastHopNotRelayed(t *testing.T) {
	f := New(Config{MaxHops: 14}, staticTopology{conn(1), conn(2)})
	msg := decode(t, query(1, 3), origin(1))
	v := admission.Verdict{Reason: drop.None, Payload: msg.Payload}
	assert.Empty(t, f.Route(msg, origin(1), &v))

	msg = decode(t, query(2, 14), origin(1))
	assert.Empty(t, f.Route(msg, origin(1), &v))
}

func TestRoute_DroppedMessage(t *testing.T) {
	f := New(Config{MaxHops: 14}, staticTopology{conn(1), conn(2)})
	msg := decode(t, query(5, 0), origin(1))
	v := admission.Verdict{Reason: drop.Duplicate}
	assert.Nil(t, f.Route(msg, origin(1), &v))
}

func hitFrame(id gnet.GUID, ttl, hops byte) []byte {
	p := []byte{1, 0xca, 0x18, 198, 51, 100, 20, 0, 0, 0, 0}
	p = append(p, 0, 0, 0, 0, 10, 0, 0, 0, 'a', 0, 0)
	servent := gnet.NewGUID()
	p = append(p, servent[:]...)
	return gnet.EncodeHeader(id, gnet.GTA_MSG_SEARCH_RESULTS, ttl, hops, p)
}

func TestRoute_ReplyFollowsReversePath(t *testing.T) {
	f := New(Config{MaxHops: 14}, staticTopology{conn(1), conn(2)})
	id := gnet.NewGUID()
	msg := decode(t, hitFrame(id, 6, 1), origin(2))
	v := admission.Verdict{
		Reason:   drop.None,
		Payload:  msg.Payload,
		HasRoute: true,
		Route:    routing.Entry{ID: id, Origin: conn(1), Kind: gnet.KindQuery},
	}
	copies := f.Route(msg, origin(2), &v)
	require.Len(t, copies, 1)
	assert.Equal(t, ToConnection, copies[0].Class)
	assert.Equal(t, conn(1), copies[0].Conn)
	assert.Equal(t, uint8(5), copies[0].TTL)
	assert.Equal(t, uint8(2), copies[0].Hops)
}

func TestRoute_ReplyToLocalQuery(t *testing.T) {
	f := New(Config{MaxHops: 14}, nil)
	id := gnet.NewGUID()
	raw := hitFrame(id, 6, 1)
	msg := decode(t, raw, origin(2))
	v := admission.Verdict{
		Reason:   drop.None,
		Payload:  msg.Payload,
		HasRoute: true,
		Route:    routing.Entry{ID: id, Origin: gnet.LocalRef, Kind: gnet.KindQuery},
	}
	copies := f.Route(msg, origin(2), &v)
	require.Len(t, copies, 1)
	assert.Equal(t, ToLocal, copies[0].Class)
	assert.Equal(t, raw, copies[0].Frame)
}

func TestRoute_ReplyOutOfBand(t *testing.T) {
	f := New(Config{MaxHops: 14}, nil)
	id := gnet.NewGUID()
	oob := netip.MustParseAddrPort("198.51.100.9:6346")
	msg := decode(t, hitFrame(id, 6, 1), origin(2))
	v := admission.Verdict{
		Reason:   drop.None,
		Payload:  msg.Payload,
		HasRoute: true,
		Route:    routing.Entry{ID: id, Origin: conn(1), Kind: gnet.KindQuery, OOB: oob},
	}
	copies := f.Route(msg, origin(2), &v)
	require.Len(t, copies, 1)
	assert.Equal(t, ToOOB, copies[0].Class)
	assert.Equal(t, oob, copies[0].Addr)
	assert.Equal(t, uint8(1), copies[0].TTL)
}

func TestRoute_ReplyWithoutRoute(t *testing.T) {
	f := New(Config{MaxHops: 14}, nil)
	msg := decode(t, hitFrame(gnet.NewGUID(), 6, 1), origin(2))
	v := admission.Verdict{Reason: drop.None, Payload: msg.Payload}
	assert.Empty(t, f.Route(msg, origin(2), &v))
}

func TestRoute_LocalKind(t *testing.T) {
	f := New(Config{MaxHops: 14}, staticTopology{conn(1)})
	raw := gnet.EncodeHeader(gnet.NewGUID(), gnet.GTA_MSG_BYE, 1, 0, []byte{200, 0})
	msg := decode(t, raw, origin(1))
	v := admission.Verdict{Reason: drop.None, Payload: msg.Payload}
	copies := f.Route(msg, origin(1), &v)
	require.Len(t, copies, 1)
	assert.Equal(t, ToLocal, copies[0].Class)
}

func TestClass_String(t *testing.T) {
	assert.Equal(t, "connection", ToConnection.String())
	assert.Equal(t, "oob", ToOOB.String())
	assert.Equal(t, "local", ToLocal.String())
}
