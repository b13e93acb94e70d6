package gnet

import (
	"crypto/sha1"
	"encoding/binary"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queryPayload(flags uint16, text string, ext []byte) []byte {
	p := binary.LittleEndian.AppendUint16(nil, flags)
	p = append(p, text...)
	p = append(p, 0)
	return append(p, ext...)
}

// =============================================================================
// Query
// =============================================================================

func TestParseQuery_Plain(t *testing.T) {
	q, err := ParseQuery(queryPayload(0, "big buck bunny", nil))
	require.NoError(t, err)
	assert.Equal(t, []byte("big buck bunny"), q.Text)
	assert.False(t, q.IsMarked())
	assert.False(t, q.WantsOOB())
	assert.Empty(t, q.URNs)
}

func TestParseQuery_Structural(t *testing.T) {
	_, err := ParseQuery([]byte{0, 0})
	assert.ErrorIs(t, err, ERR_QUERY_TOO_SHORT)

	_, err = ParseQuery([]byte{0, 0, 'a', 'b'})
	assert.ErrorIs(t, err, ERR_QUERY_NO_NUL)
}

func TestParseQuery_OOBFlag(t *testing.T) {
	q, err := ParseQuery(queryPayload(QUERY_FLAG_MARK|QUERY_FLAG_OOB, "x", nil))
	require.NoError(t, err)
	assert.True(t, q.WantsOOB())

	q, err = ParseQuery(queryPayload(QUERY_FLAG_OOB, "x", nil))
	require.NoError(t, err)
	assert.False(t, q.WantsOOB(), "OOB bit is meaningless without the mark")
}

func TestParseQuery_URNs(t *testing.T) {
	digest := sha1.Sum([]byte("content"))
	ext := []byte(EncodeSHA1URN(digest))
	ext = append(ext, HUGE_FIELD_SEP)
	ext = append(ext, EncodeGGEP(GGEPExtension{ID: "H", Data: digest[:]})...)

	q, err := ParseQuery(queryPayload(0, "", ext))
	require.NoError(t, err)
	require.Len(t, q.URNs, 1)
	assert.Equal(t, "sha1", q.URNs[0].Namespace)
	assert.Equal(t, digest, q.URNs[0].SHA1)
	assert.True(t, q.GGEP.Has("H"))
}

func TestParseQuery_BadURNs(t *testing.T) {
	_, err := ParseQuery(queryPayload(0, "", []byte("urn:sha1:TOOSHORT")))
	assert.ErrorIs(t, err, ERR_MALFORMED_SHA1)

	_, err = ParseQuery(queryPayload(0, "", []byte("urn:sha1:0000000000000000000000000000000!")))
	assert.ErrorIs(t, err, ERR_MALFORMED_SHA1)

	_, err = ParseQuery(queryPayload(0, "", []byte("urn:nonsense")))
	assert.ErrorIs(t, err, ERR_BAD_URN)

	_, err = ParseQuery(queryPayload(0, "", []byte("urn:")))
	assert.NoError(t, err, "a bare urn: requests any URN")
}

func TestParseQuery_BadGGEP(t *testing.T) {
	_, err := ParseQuery(queryPayload(0, "x", []byte{GGEP_MAGIC, GGEP_F_LAST}))
	assert.ErrorIs(t, err, ERR_GGEP_MALFORMED)
}

func TestParseURN_Bitprint(t *testing.T) {
	digest := sha1.Sum([]byte("bitprint"))
	sha := EncodeSHA1URN(digest)[len("urn:sha1:"):]
	tiger := "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567ABCDEFG"
	urn, err := ParseURN("urn:bitprint:" + sha + "." + tiger)
	require.NoError(t, err)
	assert.True(t, urn.HasSHA1)
	assert.Equal(t, digest, urn.SHA1)

	_, err = ParseURN("urn:bitprint:" + sha)
	assert.ErrorIs(t, err, ERR_BAD_URN)
}

// =============================================================================
// Query hit
// =============================================================================

type testResult struct {
	index uint32
	size  uint32
	name  string
	ext   string
}

func hitPayload(results []testResult, trailer []byte, servent GUID) []byte {
	p := []byte{byte(len(results))}
	p = binary.LittleEndian.AppendUint16(p, 6346)
	p = append(p, 203, 0, 113, 9)
	p = binary.LittleEndian.AppendUint32(p, 1000)
	for _, r := range results {
		p = binary.LittleEndian.AppendUint32(p, r.index)
		p = binary.LittleEndian.AppendUint32(p, r.size)
		p = append(p, r.name...)
		p = append(p, 0)
		p = append(p, r.ext...)
		p = append(p, 0)
	}
	p = append(p, trailer...)
	return append(p, servent[:]...)
}

func TestParseQueryHit(t *testing.T) {
	servent := NewGUID()
	digest := sha1.Sum([]byte("file"))
	results := []testResult{
		{index: 1, size: 4096, name: "a.ogg", ext: EncodeSHA1URN(digest)},
		{index: 2, size: 10, name: "b.txt"},
	}
	trailer := []byte{'L', 'I', 'M', 'E', 2, 0x1c, 0x00, 0xaa}

	hit, err := ParseQueryHit(hitPayload(results, trailer, servent))
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddrPort("203.0.113.9:6346"), hit.Addr)
	assert.Equal(t, uint32(1000), hit.Speed)
	require.Len(t, hit.Results, 2)
	assert.Equal(t, []byte("a.ogg"), hit.Results[0].Name)
	assert.Equal(t, uint32(10), hit.Results[1].Size)
	assert.Equal(t, "LIME", hit.Vendor)
	assert.Equal(t, []byte{0x1c, 0x00}, hit.OpenData)
	assert.Equal(t, []byte{0xaa}, hit.Private)
	assert.Equal(t, servent, hit.ServentID)
	assert.Equal(t, [][20]byte{digest}, hit.SHA1s())
}

func TestParseQueryHit_Malformed(t *testing.T) {
	servent := NewGUID()
	one := []testResult{{index: 1, size: 1, name: "x"}}

	_, err := ParseQueryHit(make([]byte, 20))
	assert.ErrorIs(t, err, ERR_BAD_RESULT)

	_, err = ParseQueryHit(hitPayload(nil, nil, servent))
	assert.ErrorIs(t, err, ERR_BAD_RESULT, "no results")

	p := hitPayload(one, nil, servent)
	p[0] = 2
	_, err = ParseQueryHit(p)
	assert.ErrorIs(t, err, ERR_BAD_RESULT, "count exceeds records")

	_, err = ParseQueryHit(hitPayload(one, []byte{'L', 'I', 'M', 'E', 9}, servent))
	assert.ErrorIs(t, err, ERR_BAD_RESULT, "open data overrun")

	_, err = ParseQueryHit(hitPayload(one, []byte{'L', 'I'}, servent))
	assert.ErrorIs(t, err, ERR_BAD_RESULT, "truncated trailer")
}

// =============================================================================
// Pong and push
// =============================================================================

func TestParsePong(t *testing.T) {
	p := binary.LittleEndian.AppendUint16(nil, 6346)
	p = append(p, 203, 0, 113, 1)
	p = binary.LittleEndian.AppendUint32(p, 12)
	p = binary.LittleEndian.AppendUint32(p, 3400)
	p = append(p, EncodeGGEP(GGEPExtension{ID: "DU", Data: []byte{1}})...)

	pong, err := ParsePong(p)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddrPort("203.0.113.1:6346"), pong.Addr)
	assert.Equal(t, uint32(12), pong.Files)
	assert.Equal(t, uint32(3400), pong.Kilobytes)
	assert.True(t, pong.GGEP.Has("DU"))

	_, err = ParsePong(p[:10])
	assert.ErrorIs(t, err, ERR_NOT_ENOUGH_DATA)
}

func TestParsePush(t *testing.T) {
	servent := NewGUID()
	p := append([]byte{}, servent[:]...)
	p = binary.LittleEndian.AppendUint32(p, 7)
	p = append(p, 198, 51, 100, 2)
	p = binary.LittleEndian.AppendUint16(p, 6347)

	push, err := ParsePush(p)
	require.NoError(t, err)
	assert.Equal(t, servent, push.ServentID)
	assert.Equal(t, uint32(7), push.Index)
	assert.Equal(t, netip.MustParseAddrPort("198.51.100.2:6347"), push.Addr)
}

// =============================================================================
// DHT
// =============================================================================

func TestParseDHT_RoundTrip(t *testing.T) {
	in := DHT{
		Opcode:   DHT_OP_STORE_REQUEST,
		Vendor:   "GTKG",
		Version:  0x0100,
		Contact:  []byte{203, 0, 113, 4, 0xca, 0x18},
		Instance: 3,
		Flags:    1,
		Extended: []byte{9, 9},
		Body:     EncodeStore(DHTStore{Token: []byte("tok"), Values: [][]byte{[]byte("v1"), []byte("value2")}}),
	}
	in.KUID[0] = 0xee

	out, err := ParseDHT(EncodeDHT(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	store, err := ParseStore(out.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("tok"), store.Token)
	assert.Equal(t, [][]byte{[]byte("v1"), []byte("value2")}, store.Values)
}

func TestParseDHT_Truncated(t *testing.T) {
	raw := EncodeDHT(DHT{Opcode: DHT_OP_PING_REQUEST, Vendor: "GTKG", Contact: []byte{1, 2, 3, 4, 5, 6}})
	for _, n := range []int{5, 28, 30, len(raw) - 1} {
		_, err := ParseDHT(raw[:n])
		assert.ErrorIs(t, err, ERR_DHT_UNPARSEABLE, "length %d", n)
	}
	_, err := ParseDHT(raw)
	assert.NoError(t, err)
}

func TestParseStore_Truncated(t *testing.T) {
	body := EncodeStore(DHTStore{Token: []byte("tok"), Values: [][]byte{[]byte("abcdef")}})
	for _, n := range []int{0, 2, 5, 7, len(body) - 1} {
		_, err := ParseStore(body[:n])
		assert.ErrorIs(t, err, ERR_DHT_UNPARSEABLE, "length %d", n)
	}
}

func TestParseVariant(t *testing.T) {
	for _, v := range []Variant{VariantClassic, VariantG2, VariantGUESS, VariantDHT} {
		got, ok := ParseVariant(v.String())
		assert.True(t, ok)
		assert.Equal(t, v, got)
	}
	_, ok := ParseVariant("gopher")
	assert.False(t, ok)
}
