package gnet

import "net/netip"

// Routable reports whether addr could be contacted from the public overlay.
// Private, loopback, link-local, multicast, broadcast and unspecified addresses
// are not, and neither is port 0.
func Routable(addr netip.AddrPort) bool {
	ip := addr.Addr()
	if !ip.IsValid() || addr.Port() == 0 {
		return false
	}
	ip = ip.Unmap()
	if ip.IsUnspecified() || ip.IsLoopback() || ip.IsPrivate() || ip.IsMulticast() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsInterfaceLocalMulticast() {
		return false
	}
	if ip.Is4() && ip.As4() == [4]byte{255, 255, 255, 255} {
		return false
	}
	return true
}

// readAddr decodes a 4 byte IPv4 address and a little endian port.
func readAddr(ip []byte, port []byte) netip.AddrPort {
	a := netip.AddrFrom4([4]byte{ip[0], ip[1], ip[2], ip[3]})
	return netip.AddrPortFrom(a, uint16(port[0])|uint16(port[1])<<8)
}
