package gnet

import (
	"bytes"
	"net/netip"
	"testing"
	"time"

	"github.com/go-gnutella/go-gnutella/lib/drop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func tcpOrigin() Origin {
	return Origin{
		Conn:      ConnRef{ID: 1, Gen: 1},
		Addr:      netip.MustParseAddrPort("203.0.113.5:6346"),
		Network:   NetworkGnutella,
		Variant:   VariantClassic,
		Transport: TransportTCP,
		Received:  testNow,
	}
}

func udpOrigin(v Variant) Origin {
	o := tcpOrigin()
	o.Variant = v
	o.Transport = TransportUDP
	o.Network = v.Network()
	return o
}

// =============================================================================
// Classic framing
// =============================================================================

func TestDecode_Ping(t *testing.T) {
	id := NewGUID()
	raw := EncodeHeader(id, GTA_MSG_INIT, 7, 0, nil)

	msg, reason := Decode(raw, tcpOrigin(), DefaultLimits(), testNow)
	require.Equal(t, drop.None, reason)
	assert.Equal(t, KindPing, msg.Kind)
	assert.Equal(t, id, msg.ID)
	assert.Equal(t, uint8(7), msg.TTL)
	assert.Equal(t, uint8(0), msg.Hops)
	assert.Equal(t, VariantClassic, msg.Variant)
	assert.Equal(t, testNow, msg.Received)
}

func TestDecode_TooSmall(t *testing.T) {
	_, reason := Decode(make([]byte, 10), tcpOrigin(), DefaultLimits(), testNow)
	assert.Equal(t, drop.TooSmall, reason)
}

func TestDecode_WayTooLargeBuffer(t *testing.T) {
	raw := EncodeHeader(NewGUID(), GTA_MSG_SEARCH, 3, 0, make([]byte, 200))
	_, reason := Decode(raw, tcpOrigin(), Limits{MaxSize: 100}, testNow)
	assert.Equal(t, drop.WayTooLarge, reason)
}

func TestDecode_WayTooLargeDeclared(t *testing.T) {
	raw := EncodeHeader(NewGUID(), GTA_MSG_SEARCH, 3, 0, []byte("ab\x00"))
	raw[19], raw[20], raw[21], raw[22] = 0x00, 0x10, 0x00, 0x00
	_, reason := Decode(raw, tcpOrigin(), Limits{MaxSize: 1024}, testNow)
	assert.Equal(t, drop.WayTooLarge, reason)
}

func TestDecode_LengthMismatch(t *testing.T) {
	raw := EncodeHeader(NewGUID(), GTA_MSG_SEARCH, 3, 0, []byte("abc\x00"))
	raw[19] = 9
	_, reason := Decode(raw, tcpOrigin(), DefaultLimits(), testNow)
	assert.Equal(t, drop.BadSize, reason)
}

func TestDecode_UnknownFunction(t *testing.T) {
	raw := EncodeHeader(NewGUID(), 0x99, 3, 0, nil)
	_, reason := Decode(raw, tcpOrigin(), DefaultLimits(), testNow)
	assert.Equal(t, drop.UnknownType, reason)
}

func TestDecode_DHTFunctionOnGnutellaLink(t *testing.T) {
	raw := EncodeHeader(NewGUID(), GTA_MSG_DHT, 1, 0, []byte{DHT_OP_PING_REQUEST})
	_, reason := Decode(raw, tcpOrigin(), DefaultLimits(), testNow)
	assert.Equal(t, drop.Unexpected, reason)
}

func TestDecode_PayloadBounds(t *testing.T) {
	raw := EncodeHeader(NewGUID(), GTA_MSG_SEARCH, 3, 0, make([]byte, 5000))
	_, reason := Decode(raw, tcpOrigin(), DefaultLimits(), testNow)
	assert.Equal(t, drop.TooLarge, reason)

	raw = EncodeHeader(NewGUID(), GTA_MSG_INIT_RESPONSE, 3, 1, make([]byte, 10))
	_, reason = Decode(raw, tcpOrigin(), DefaultLimits(), testNow)
	assert.Equal(t, drop.BadSize, reason)
}

func TestDecode_TooOld(t *testing.T) {
	raw := EncodeHeader(NewGUID(), GTA_MSG_INIT, 7, 0, nil)
	origin := tcpOrigin()
	origin.Received = testNow.Add(-time.Minute)
	_, reason := Decode(raw, origin, DefaultLimits(), testNow)
	assert.Equal(t, drop.TooOld, reason)
}

func TestDecode_RUDPOverTCP(t *testing.T) {
	raw := EncodeHeader(NewGUID(), GTA_MSG_RUDP, 1, 0, nil)
	_, reason := Decode(raw, tcpOrigin(), DefaultLimits(), testNow)
	assert.Equal(t, drop.Unexpected, reason)
}

func TestDecode_QRPOverUDP(t *testing.T) {
	raw := EncodeHeader(NewGUID(), GTA_MSG_QRP, 1, 0, []byte{0})
	_, reason := Decode(raw, udpOrigin(VariantGUESS), DefaultLimits(), testNow)
	assert.Equal(t, drop.Unexpected, reason)
}

// =============================================================================
// Header flags
// =============================================================================

func TestDecode_DeflatedDatagram(t *testing.T) {
	payload := append([]byte{0, 0}, bytes.Repeat([]byte("sintel "), 20)...)
	payload = append(payload, 0)
	raw, err := EncodeDeflated(NewGUID(), GTA_MSG_SEARCH, 1, 0, payload, GTA_UDP_CAN_INFLATE)
	require.NoError(t, err)

	msg, reason := Decode(raw, udpOrigin(VariantGUESS), DefaultLimits(), testNow)
	require.Equal(t, drop.None, reason)
	assert.True(t, msg.Deflated())
	assert.Zero(t, msg.UnknownFlags())

	inflated, err := Inflate(msg.Payload, MAX_INFLATED_BYTES)
	require.NoError(t, err)
	assert.Equal(t, payload, inflated)
}

func TestDecode_FlagsOverTCP(t *testing.T) {
	raw, err := EncodeDeflated(NewGUID(), GTA_MSG_SEARCH, 1, 0, []byte("x\x00y"), 0)
	require.NoError(t, err)
	_, reason := Decode(raw, tcpOrigin(), DefaultLimits(), testNow)
	assert.Equal(t, drop.Unexpected, reason)
}

func TestDecode_UnknownFlagBits(t *testing.T) {
	raw, err := EncodeDeflated(NewGUID(), GTA_MSG_SEARCH, 1, 0, []byte("x\x00y"), 0x0100)
	require.NoError(t, err)
	msg, reason := Decode(raw, udpOrigin(VariantGUESS), DefaultLimits(), testNow)
	require.Equal(t, drop.None, reason)
	assert.Equal(t, uint16(0x0100), msg.UnknownFlags())
}

// =============================================================================
// DHT
// =============================================================================

func TestDecode_DHTStore(t *testing.T) {
	payload := EncodeDHT(DHT{Opcode: DHT_OP_STORE_REQUEST, Vendor: "GTKG", Version: 1})
	raw := EncodeHeader(NewGUID(), GTA_MSG_DHT, 0, 5, payload)

	msg, reason := Decode(raw, udpOrigin(VariantDHT), DefaultLimits(), testNow)
	require.Equal(t, drop.None, reason)
	assert.Equal(t, KindDHTStore, msg.Kind)
	assert.Equal(t, uint8(1), msg.TTL)
	assert.Equal(t, uint8(0), msg.Hops)
}

func TestDecode_DHTUnknownOpcode(t *testing.T) {
	raw := EncodeHeader(NewGUID(), GTA_MSG_DHT, 0, 0, []byte{0x7f})
	_, reason := Decode(raw, udpOrigin(VariantDHT), DefaultLimits(), testNow)
	assert.Equal(t, drop.UnknownType, reason)
}

func TestDecode_DHTClassicFunction(t *testing.T) {
	raw := EncodeHeader(NewGUID(), GTA_MSG_INIT, 1, 0, nil)
	_, reason := Decode(raw, udpOrigin(VariantDHT), DefaultLimits(), testNow)
	assert.Equal(t, drop.Unexpected, reason)
}

// =============================================================================
// G2
// =============================================================================

func g2Origin() Origin {
	o := tcpOrigin()
	o.Variant = VariantG2
	o.Network = NetworkG2
	return o
}

func TestDecode_G2Ping(t *testing.T) {
	msg, reason := Decode(EncodeG2("PI", nil, nil), g2Origin(), DefaultLimits(), testNow)
	require.Equal(t, drop.None, reason)
	assert.Equal(t, KindG2Ping, msg.Kind)
	assert.Equal(t, VariantG2, msg.Variant)
}

func TestDecode_G2QueryIdentifier(t *testing.T) {
	id := NewGUID()
	child := EncodeG2("DN", nil, []byte("x"))
	raw := EncodeG2("Q2", [][]byte{child}, id[:])

	msg, reason := Decode(raw, g2Origin(), DefaultLimits(), testNow)
	require.Equal(t, drop.None, reason)
	assert.Equal(t, KindG2Query, msg.Kind)
	assert.Equal(t, id, msg.ID)
	assert.Equal(t, id[:], msg.Body)
	assert.Equal(t, []string{"DN"}, G2ChildNames(msg.Payload))
}

func TestDecode_G2HitIdentifier(t *testing.T) {
	id := NewGUID()
	body := append([]byte{3}, id[:]...)
	msg, reason := Decode(EncodeG2("QH2", nil, body), g2Origin(), DefaultLimits(), testNow)
	require.Equal(t, drop.None, reason)
	assert.Equal(t, KindG2Hit, msg.Kind)
	assert.Equal(t, id, msg.ID)
	assert.Equal(t, uint8(3), msg.Hops)
}

func TestDecode_G2UnknownName(t *testing.T) {
	_, reason := Decode(EncodeG2("ZZ", nil, nil), g2Origin(), DefaultLimits(), testNow)
	assert.Equal(t, drop.UnknownType, reason)
}

func TestDecode_G2LengthMismatch(t *testing.T) {
	raw := append(EncodeG2("PI", nil, []byte("abc")), 'x')
	_, reason := Decode(raw, g2Origin(), DefaultLimits(), testNow)
	assert.Equal(t, drop.BadSize, reason)
}

func TestDecode_G2QueryWithoutGUID(t *testing.T) {
	_, reason := Decode(EncodeG2("Q2", nil, []byte("short")), g2Origin(), DefaultLimits(), testNow)
	assert.Equal(t, drop.BadSize, reason)
}

func TestDecode_G2TooSmall(t *testing.T) {
	_, reason := Decode([]byte{0x08}, g2Origin(), DefaultLimits(), testNow)
	assert.Equal(t, drop.TooSmall, reason)
}
