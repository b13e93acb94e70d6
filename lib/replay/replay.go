package replay

import (
	"time"

	"github.com/go-gnutella/go-gnutella/lib/drop"
	"github.com/go-gnutella/go-gnutella/lib/gnet"
	"github.com/go-gnutella/go-gnutella/lib/router"
	"github.com/go-gnutella/go-gnutella/lib/util/time/monotonic"
	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// Outcome is the result of one replayed frame.
type Outcome struct {
	Index      int
	At         time.Time
	Conn       gnet.ConnRef
	Kind       gnet.Kind
	Reason     drop.Reason
	Deliveries int
	Disconnect bool
}

// Accepted reports whether the frame passed admission.
func (o Outcome) Accepted() bool {
	return !o.Disconnect && o.Reason == drop.None
}

// Player applies a capture to an engine built on a manual clock.
type Player struct {
	engine *router.Engine
	clock  *monotonic.Manual
	refs   map[uint32]gnet.ConnRef
}

// NewPlayer binds e, which must have been created WithClock(clock).
func NewPlayer(e *router.Engine, clock *monotonic.Manual) *Player {
	return &Player{engine: e, clock: clock, refs: make(map[uint32]gnet.ConnRef)}
}

// Play applies every frame of c in order. The clock jumps to c.Start first
// when it is set.
func (p *Player) Play(c Capture) []Outcome {
	if !c.Start.IsZero() {
		p.clock.Set(c.Start)
	}
	out := make([]Outcome, 0, len(c.Frames))
	for i := range c.Frames {
		out = append(out, p.apply(i, &c.Frames[i]))
	}
	log.WithFields(logger.Fields{
		"at":     "(Player) Play",
		"frames": len(c.Frames),
	}).Debug("replay_done")
	return out
}

func (p *Player) apply(i int, f *Frame) Outcome {
	now := p.clock.Advance(f.After)
	o := Outcome{Index: i, At: now, Reason: drop.None}

	if f.Disconnect {
		o.Disconnect = true
		if ref, ok := p.refs[f.Conn]; ok {
			p.engine.Disconnect(ref)
			delete(p.refs, f.Conn)
			o.Conn = ref
		}
		return o
	}

	// ParseCapture already validated the frame
	d, _ := f.decode()
	ref, ok := p.refs[f.Conn]
	if !ok {
		ref = p.engine.Connect(f.Conn, d.variant.Network())
		p.refs[f.Conn] = ref
	}
	origin := gnet.Origin{
		Conn:      ref,
		Addr:      d.addr,
		Network:   d.variant.Network(),
		Variant:   d.variant,
		Transport: d.transport,
		Received:  now,
	}
	if f.Transient {
		origin.State = gnet.ConnTransient
	}

	res := p.engine.Submit(d.raw, origin)
	o.Conn = ref
	o.Kind = res.Message.Kind
	o.Reason = res.Reason
	o.Deliveries = len(res.Deliveries)
	return o
}
