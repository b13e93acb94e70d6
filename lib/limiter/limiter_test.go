package limiter

import (
	"net/netip"
	"testing"
	"time"

	"github.com/go-gnutella/go-gnutella/lib/drop"
	"github.com/go-gnutella/go-gnutella/lib/gnet"
	"github.com/stretchr/testify/assert"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func origin(id uint32) gnet.Origin {
	return gnet.Origin{Conn: gnet.ConnRef{ID: id, Gen: 1}}
}

func TestLimiter_Throttle(t *testing.T) {
	l := New(Config{Conn: Bucket{Rate: 1, Burst: 2}, MaxTracked: 16})
	o := origin(1)

	assert.Equal(t, drop.None, l.AdmitConn(o, gnet.KindPing, 1, now))
	assert.Equal(t, drop.None, l.AdmitConn(o, gnet.KindPing, 1, now))
	assert.Equal(t, drop.Throttle, l.AdmitConn(o, gnet.KindPing, 1, now))
	assert.Equal(t, drop.None, l.AdmitConn(origin(2), gnet.KindPing, 1, now), "buckets are per connection")

	assert.Equal(t, drop.None, l.AdmitConn(o, gnet.KindPing, 1, now.Add(time.Second)), "bucket refills")
}

func TestLimiter_KindQuotaRefundsConnection(t *testing.T) {
	l := New(Config{
		Conn:       Bucket{Rate: 1, Burst: 3},
		Query:      Bucket{Rate: 1, Burst: 1},
		MaxTracked: 16,
	})
	o := origin(1)

	assert.Equal(t, drop.None, l.AdmitConn(o, gnet.KindQuery, 1, now))
	assert.Equal(t, drop.Limit, l.AdmitConn(o, gnet.KindQuery, 1, now))
	assert.Equal(t, drop.Limit, l.AdmitConn(o, gnet.KindG2Query, 1, now), "G2 queries share the quota")
	assert.Equal(t, drop.None, l.AdmitConn(o, gnet.KindPing, 1, now))
	assert.Equal(t, drop.None, l.AdmitConn(o, gnet.KindPing, 1, now))
	assert.Equal(t, drop.Throttle, l.AdmitConn(o, gnet.KindPing, 1, now))
}

func TestLimiter_FlowControl(t *testing.T) {
	l := New(Config{
		Conn:       Bucket{Rate: 1, Burst: 100},
		Global:     Bucket{Rate: 1, Burst: 2},
		MaxTracked: 16,
	})

	assert.Equal(t, drop.None, l.AdmitGlobal(origin(1), gnet.KindPing, 1, now))
	assert.Equal(t, drop.None, l.AdmitGlobal(origin(2), gnet.KindPing, 1, now))
	assert.Equal(t, drop.FlowControl, l.AdmitGlobal(origin(3), gnet.KindPing, 1, now))
	assert.Equal(t, drop.None, l.AdmitConn(origin(3), gnet.KindPing, 1, now), "the global budget is separate")
}

func TestLimiter_Disabled(t *testing.T) {
	l := New(Config{})
	for i := 0; i < 1000; i++ {
		assert.Equal(t, drop.None, l.AdmitConn(origin(1), gnet.KindQuery, 1, now))
		assert.Equal(t, drop.None, l.AdmitGlobal(origin(1), gnet.KindQuery, 1, now))
	}
	assert.True(t, l.AdmitStore(netip.MustParseAddr("203.0.113.1"), 1000, now))
}

func TestLimiter_Store(t *testing.T) {
	l := New(Config{Store: Bucket{Rate: 1, Burst: 5}, MaxTracked: 16})
	a := netip.MustParseAddr("203.0.113.1")

	assert.True(t, l.AdmitStore(a, 3, now))
	assert.False(t, l.AdmitStore(a, 3, now))
	assert.True(t, l.AdmitStore(a, 2, now))
	assert.True(t, l.AdmitStore(netip.MustParseAddr("203.0.113.2"), 5, now))
}

func TestLimiter_ForgetAndBound(t *testing.T) {
	l := New(Config{Conn: Bucket{Rate: 1, Burst: 1}, MaxTracked: 4})
	for i := uint32(1); i <= 10; i++ {
		l.AdmitConn(origin(i), gnet.KindPing, 1, now)
	}
	assert.Equal(t, 4, l.Tracked())

	l.Forget(origin(10).Conn)
	assert.Equal(t, 3, l.Tracked())
}

func TestClassOf(t *testing.T) {
	assert.Equal(t, ClassQuery, ClassOf(gnet.KindQuery))
	assert.Equal(t, ClassPush, ClassOf(gnet.KindG2Push))
	assert.Equal(t, ClassNone, ClassOf(gnet.KindPong))
}
