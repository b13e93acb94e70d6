package gnet

import (
	"fmt"
	"net/netip"
	"time"
)

// Network is the overlay a connection negotiated during its handshake.
type Network uint8

const (
	NetworkGnutella Network = iota
	NetworkG2
)

func (n Network) String() string {
	if n == NetworkG2 {
		return "g2"
	}
	return "gnutella"
}

// Transport is the carrier a message arrived on.
type Transport uint8

const (
	TransportTCP Transport = iota
	TransportUDP
)

func (t Transport) String() string {
	if t == TransportUDP {
		return "udp"
	}
	return "tcp"
}

// ConnState is the lifecycle state of the originating connection as seen by
// the connection layer.
type ConnState uint8

const (
	ConnActive ConnState = iota
	// ConnTransient connections are being set up or torn down; their traffic
	// is not relayed.
	ConnTransient
)

// ConnRef is an opaque reference to a peer connection. Connection slots are
// recycled, so the reference pairs the slot identifier with a generation
// counter; a stale reference never matches the connection that reused its slot.
type ConnRef struct {
	ID  uint32
	Gen uint32
}

// LocalRef designates this node itself.
var LocalRef = ConnRef{}

// IsLocal reports whether the reference designates this node.
func (c ConnRef) IsLocal() bool {
	return c == LocalRef
}

func (c ConnRef) String() string {
	if c.IsLocal() {
		return "local"
	}
	return fmt.Sprintf("conn#%d.%d", c.ID, c.Gen)
}

// Origin describes where a message came from and how it was framed.
type Origin struct {
	Conn      ConnRef
	Addr      netip.AddrPort
	Network   Network
	Variant   Variant
	Transport Transport
	State     ConnState
	// Received is when the connection layer read the message off the wire.
	Received time.Time
}
