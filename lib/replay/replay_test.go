package replay

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gnutella/go-gnutella/lib/config"
	"github.com/go-gnutella/go-gnutella/lib/drop"
	"github.com/go-gnutella/go-gnutella/lib/gnet"
	"github.com/go-gnutella/go-gnutella/lib/router"
	"github.com/go-gnutella/go-gnutella/lib/util/time/monotonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func queryHex(id gnet.GUID, ttl, hops byte) string {
	p := binary.LittleEndian.AppendUint16(nil, 0)
	p = append(p, "big buck bunny"...)
	p = append(p, 0)
	return hex.EncodeToString(gnet.EncodeHeader(id, gnet.GTA_MSG_SEARCH, ttl, hops, p))
}

func hitHex(id gnet.GUID) string {
	servent := gnet.NewGUID()
	p := []byte{1}
	p = binary.LittleEndian.AppendUint16(p, 6346)
	p = append(p, 198, 51, 100, 20)
	p = binary.LittleEndian.AppendUint32(p, 1000)
	p = binary.LittleEndian.AppendUint32(p, 0)
	p = binary.LittleEndian.AppendUint32(p, 4096)
	p = append(p, "bunny.ogv"...)
	p = append(p, 0, 0)
	p = append(p, servent[:]...)
	return hex.EncodeToString(gnet.EncodeHeader(id, gnet.GTA_MSG_SEARCH_RESULTS, 6, 1, p))
}

func newPlayer(t *testing.T) *Player {
	t.Helper()
	cfg := config.DefaultEngineConfig()
	cfg.PolicyPath = ""
	cfg.NTPServers = nil
	clock := monotonic.NewManual(testStart)
	e, err := router.New(cfg, router.WithClock(clock))
	require.NoError(t, err)
	return NewPlayer(e, clock)
}

func TestPlay_Scenario(t *testing.T) {
	q := gnet.NewGUID()
	lost := gnet.NewGUID()
	doc := fmt.Sprintf(`
start: 2024-03-01T12:00:00Z
frames:
  - conn: 1
    hex: %q
  - conn: 2
    hex: %q
  - conn: 3
    hex: %q
  - conn: 2
    after: 2s
    hex: %q
  - conn: 1
    hex: %q
  - conn: 3
    after: 11m
    hex: %q
  - conn: 1
    disconnect: true
`, queryHex(q, 5, 0), queryHex(q, 5, 0), queryHex(lost, 4, 1), hitHex(q), hitHex(gnet.NewGUID()), hitHex(lost))

	c, err := ParseCapture([]byte(doc))
	require.NoError(t, err)
	out := newPlayer(t).Play(c)
	require.Len(t, out, 7)

	assert.True(t, out[0].Accepted())
	assert.Equal(t, gnet.KindQuery, out[0].Kind)
	assert.Zero(t, out[0].Deliveries, "no other peer is connected yet")
	assert.Equal(t, drop.Duplicate, out[1].Reason)
	assert.True(t, out[2].Accepted())
	assert.Equal(t, 2, out[2].Deliveries)
	assert.True(t, out[3].Accepted(), out[3].Reason.Name())
	assert.Equal(t, 1, out[3].Deliveries)
	assert.Equal(t, testStart.Add(2*time.Second), out[3].At)
	assert.Equal(t, drop.NoRoute, out[4].Reason)
	assert.Equal(t, drop.RouteLost, out[5].Reason)
	assert.True(t, out[6].Disconnect)
	assert.False(t, out[6].Accepted())
}

func TestParseCapture_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no conn", "frames:\n  - hex: \"00\"\n"},
		{"bad variant", "frames:\n  - conn: 1\n    variant: gopher\n"},
		{"bad transport", "frames:\n  - conn: 1\n    transport: sctp\n"},
		{"bad addr", "frames:\n  - conn: 1\n    addr: nowhere\n"},
		{"bad hex", "frames:\n  - conn: 1\n    hex: \"zz\"\n"},
		{"negative after", "frames:\n  - conn: 1\n    after: -1s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCapture([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ERR_BAD_FRAME))
		})
	}

	_, err := ParseCapture([]byte("frames: {"))
	assert.True(t, errors.Is(err, ERR_BAD_CAPTURE))
}

func TestFrame_Defaults(t *testing.T) {
	f := Frame{Conn: 7, Variant: "GUESS", Hex: "00 11\n22"}
	d, err := f.decode()
	require.NoError(t, err)
	assert.Equal(t, gnet.VariantGUESS, d.variant)
	assert.Equal(t, gnet.TransportUDP, d.transport)
	assert.Equal(t, "203.0.113.7:6346", d.addr.String())
	assert.Equal(t, []byte{0, 0x11, 0x22}, d.raw)
}

func TestReadCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.yaml")
	require.NoError(t, os.WriteFile(path, []byte("frames:\n  - conn: 1\n    hex: \"0102\"\n"), 0o600))
	c, err := ReadCapture(path)
	require.NoError(t, err)
	require.Len(t, c.Frames, 1)

	out := newPlayer(t).Play(c)
	assert.Equal(t, drop.TooSmall, out[0].Reason)

	_, err = ReadCapture(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
