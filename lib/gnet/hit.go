package gnet

import (
	"bytes"
	"encoding/binary"
	"net/netip"

	"github.com/samber/oops"
)

const (
	hitHeaderSize  = 11
	hitResultFixed = 8
	hitVendorSize  = 4
)

// HitResult is one file record of a query hit.
type HitResult struct {
	Index      uint32
	Size       uint32
	Name       []byte
	Extensions []byte
	URNs       []URN
	GGEP       GGEPBlock
}

// QueryHit is a decoded classic query hit payload.
type QueryHit struct {
	Addr     netip.AddrPort
	Speed    uint32
	Results  []HitResult
	Vendor   string
	OpenData []byte
	// Private is the trailer area between the open data and the servent ID.
	Private   []byte
	ServentID GUID
}

// ParseQueryHit decodes a query hit payload:
//
//	count(1) port(2) ip(4) speed(4) results... [vendor(4) len(1) open...] servent(16)
//
// Errors wrap ERR_BAD_RESULT.
func ParseQueryHit(p []byte) (QueryHit, error) {
	var hit QueryHit
	if len(p) < hitHeaderSize+GUID_SIZE {
		return hit, oops.Wrapf(ERR_BAD_RESULT, "hit of %d bytes", len(p))
	}
	count := int(p[0])
	hit.Addr = readAddr(p[3:7], p[1:3])
	hit.Speed = binary.LittleEndian.Uint32(p[7:11])
	hit.ServentID, _ = GUIDFromBytes(p[len(p)-GUID_SIZE:])
	if count == 0 {
		return hit, oops.Wrapf(ERR_BAD_RESULT, "hit without results")
	}

	body := p[hitHeaderSize : len(p)-GUID_SIZE]
	pos := 0
	hit.Results = make([]HitResult, 0, count)
	for i := 0; i < count; i++ {
		r, n, err := parseHitResult(body[pos:])
		if err != nil {
			return hit, oops.Wrapf(err, "result %d", i)
		}
		hit.Results = append(hit.Results, r)
		pos += n
	}

	trailer := body[pos:]
	if len(trailer) >= hitVendorSize+1 {
		hit.Vendor = string(trailer[:hitVendorSize])
		openLen := int(trailer[hitVendorSize])
		start := hitVendorSize + 1
		if start+openLen > len(trailer) {
			return hit, oops.Wrapf(ERR_BAD_RESULT, "open data of %d bytes overruns trailer", openLen)
		}
		hit.OpenData = trailer[start : start+openLen]
		hit.Private = trailer[start+openLen:]
	} else if len(trailer) > 0 {
		return hit, oops.Wrapf(ERR_BAD_RESULT, "truncated trailer of %d bytes", len(trailer))
	}
	return hit, nil
}

func parseHitResult(b []byte) (HitResult, int, error) {
	var r HitResult
	if len(b) < hitResultFixed+2 {
		return r, 0, oops.Wrapf(ERR_BAD_RESULT, "truncated record")
	}
	r.Index = binary.LittleEndian.Uint32(b[0:4])
	r.Size = binary.LittleEndian.Uint32(b[4:8])
	pos := hitResultFixed
	nul := bytes.IndexByte(b[pos:], 0)
	if nul < 0 {
		return r, 0, oops.Wrapf(ERR_BAD_RESULT, "unterminated file name")
	}
	r.Name = b[pos : pos+nul]
	pos += nul + 1
	nul = bytes.IndexByte(b[pos:], 0)
	if nul < 0 {
		return r, 0, oops.Wrapf(ERR_BAD_RESULT, "unterminated extension area")
	}
	r.Extensions = b[pos : pos+nul]
	pos += nul + 1
	var xml []byte
	if err := parseExtensions(r.Extensions, &r.URNs, &r.GGEP, &xml); err != nil {
		return r, 0, oops.Wrapf(ERR_BAD_RESULT, "extensions: %v", err)
	}
	return r, pos, nil
}

// SHA1s returns the SHA1 digests advertised by the results.
func (h *QueryHit) SHA1s() [][20]byte {
	var out [][20]byte
	for _, r := range h.Results {
		for _, u := range r.URNs {
			if u.HasSHA1 {
				out = append(out, u.SHA1)
			}
		}
	}
	return out
}
