package gnet

import (
	"encoding/binary"
	"net/netip"
)

// Pong is a decoded classic pong payload.
type Pong struct {
	Addr      netip.AddrPort
	Files     uint32
	Kilobytes uint32
	GGEP      GGEPBlock
}

// ParsePong decodes a pong payload. Trailing data that is not a valid GGEP
// block is reported through err so callers can decide how strict to be.
func ParsePong(p []byte) (Pong, error) {
	var pong Pong
	if len(p) < 14 {
		return pong, ERR_NOT_ENOUGH_DATA
	}
	pong.Addr = readAddr(p[2:6], p[0:2])
	pong.Files = binary.LittleEndian.Uint32(p[6:10])
	pong.Kilobytes = binary.LittleEndian.Uint32(p[10:14])
	if len(p) > 14 && p[14] == GGEP_MAGIC {
		block, _, err := ParseGGEP(p[14:])
		if err != nil {
			return pong, err
		}
		pong.GGEP = block
	}
	return pong, nil
}

// Push is a decoded classic push request payload.
type Push struct {
	ServentID GUID
	Index     uint32
	Addr      netip.AddrPort
	GGEP      GGEPBlock
}

// ParsePush decodes a push payload.
func ParsePush(p []byte) (Push, error) {
	var push Push
	if len(p) < 26 {
		return push, ERR_NOT_ENOUGH_DATA
	}
	push.ServentID, _ = GUIDFromBytes(p)
	push.Index = binary.LittleEndian.Uint32(p[16:20])
	push.Addr = readAddr(p[20:24], p[24:26])
	if len(p) > 26 && p[26] == GGEP_MAGIC {
		block, _, err := ParseGGEP(p[26:])
		if err != nil {
			return push, err
		}
		push.GGEP = block
	}
	return push, nil
}
