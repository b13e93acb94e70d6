package replay

import (
	"encoding/hex"
	"errors"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/go-gnutella/go-gnutella/lib/gnet"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

var (
	ERR_BAD_FRAME   = errors.New("invalid capture frame")
	ERR_BAD_CAPTURE = errors.New("invalid capture")
)

// Capture is the on-disk layout of a recording.
type Capture struct {
	Start  time.Time `yaml:"start"`
	Frames []Frame   `yaml:"frames"`
}

// Frame is one recorded arrival, or a disconnect of Conn when Disconnect is
// set.
type Frame struct {
	Conn       uint32        `yaml:"conn"`
	Addr       string        `yaml:"addr"`
	Variant    string        `yaml:"variant"`
	Transport  string        `yaml:"transport"`
	Transient  bool          `yaml:"transient"`
	After      time.Duration `yaml:"after"`
	Disconnect bool          `yaml:"disconnect"`
	Hex        string        `yaml:"hex"`
}

// ReadCapture loads and parses a capture file.
func ReadCapture(path string) (Capture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Capture{}, oops.Wrapf(err, "read capture %s", path)
	}
	return ParseCapture(data)
}

// ParseCapture parses a capture document and checks every frame.
func ParseCapture(data []byte) (Capture, error) {
	var c Capture
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Capture{}, oops.Wrapf(ERR_BAD_CAPTURE, "%v", err)
	}
	for i := range c.Frames {
		if _, err := c.Frames[i].decode(); err != nil {
			return Capture{}, oops.Wrapf(err, "frame %d", i)
		}
	}
	return c, nil
}

type decoded struct {
	variant   gnet.Variant
	transport gnet.Transport
	addr      netip.AddrPort
	raw       []byte
}

func (f *Frame) decode() (decoded, error) {
	var d decoded
	if f.Disconnect {
		return d, nil
	}
	if f.Conn == 0 {
		return d, oops.Wrapf(ERR_BAD_FRAME, "conn must be positive")
	}
	if f.After < 0 {
		return d, oops.Wrapf(ERR_BAD_FRAME, "negative after %s", f.After)
	}

	d.variant = gnet.VariantClassic
	if f.Variant != "" {
		v, ok := gnet.ParseVariant(strings.ToLower(f.Variant))
		if !ok {
			return d, oops.Wrapf(ERR_BAD_FRAME, "unknown variant %q", f.Variant)
		}
		d.variant = v
	}

	switch strings.ToLower(f.Transport) {
	case "":
		if d.variant == gnet.VariantGUESS || d.variant == gnet.VariantDHT {
			d.transport = gnet.TransportUDP
		}
	case "tcp":
		d.transport = gnet.TransportTCP
	case "udp":
		d.transport = gnet.TransportUDP
	default:
		return d, oops.Wrapf(ERR_BAD_FRAME, "unknown transport %q", f.Transport)
	}

	if f.Addr == "" {
		d.addr = defaultAddr(f.Conn)
	} else {
		addr, err := netip.ParseAddrPort(f.Addr)
		if err != nil {
			return d, oops.Wrapf(ERR_BAD_FRAME, "addr %q: %v", f.Addr, err)
		}
		d.addr = addr
	}

	raw, err := hex.DecodeString(strings.Join(strings.Fields(f.Hex), ""))
	if err != nil {
		return d, oops.Wrapf(ERR_BAD_FRAME, "hex: %v", err)
	}
	d.raw = raw
	return d, nil
}

// defaultAddr places connection n in TEST-NET-3.
func defaultAddr(n uint32) netip.AddrPort {
	return netip.AddrPortFrom(netip.AddrFrom4([4]byte{203, 0, 113, byte(n)}), 6346)
}
