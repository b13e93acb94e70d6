package admission

import (
	"github.com/go-gnutella/go-gnutella/lib/drop"
	"github.com/go-gnutella/go-gnutella/lib/gnet"
)

// checkTTL enforces the hop accounting rules.
func (c *Classifier) checkTTL(in *inspection) drop.Reason {
	msg := in.msg
	if msg.TTL == 0 {
		return drop.TTL0
	}
	// Limit violations take precedence over the per-kind shape rules.
	if msg.TTL > c.cfg.MaxTTL {
		return drop.MaxTTLExceeded
	}
	if int(msg.TTL)+int(msg.Hops) > int(c.cfg.HardTTLLimit) {
		return drop.HardTTLLimit
	}
	if msg.Kind.Role() == gnet.RoleLinkLocal && (msg.Hops != 0 || msg.TTL != 1) {
		return drop.ImproperHopsTTL
	}
	datagram := in.origin.Transport == gnet.TransportUDP || msg.Variant == gnet.VariantGUESS
	if datagram && msg.Variant != gnet.VariantG2 && msg.Hops != 0 {
		return drop.ImproperHopsTTL
	}
	if msg.Hops > c.cfg.MaxHops {
		return drop.MaxHopCount
	}
	return drop.None
}

// checkAdmission meters the message against the connection budget, the
// per-kind quota and the global budget.
func (c *Classifier) checkAdmission(in *inspection) drop.Reason {
	if r := c.limiter.AdmitConn(in.origin, in.msg.Kind, c.cfg.Cost, in.now); r != drop.None {
		return r
	}
	if in.origin.State == gnet.ConnTransient {
		return drop.Transient
	}
	if r := c.limiter.AdmitGlobal(in.origin, in.msg.Kind, c.cfg.Cost, in.now); r != drop.None {
		return r
	}
	if c.shutdown.Load() {
		return drop.Shutdown
	}
	return drop.None
}

// checkSource applies the address and content policies.
func (c *Classifier) checkSource(in *inspection) drop.Reason {
	addr := in.origin.Addr.Addr().Unmap()
	switch {
	case c.bans.IsBanned(addr):
		return drop.FromBanned
	case c.bans.IsHostile(addr):
		return drop.HostileIP
	case c.bans.IsShunned(addr):
		return drop.ShunnedIP
	case c.targetBanned(in):
		return drop.ToBanned
	}
	if view, ok := in.view(); ok {
		if c.spam.IsSpam(view) {
			return drop.Spam
		}
		if c.spam.IsEvil(view) {
			return drop.Evil
		}
	}
	return drop.None
}

// targetBanned reports whether the message would make this node contact a
// banned party: the target of a push, or the OOB reply address of a query.
func (c *Classifier) targetBanned(in *inspection) bool {
	switch in.msg.Kind {
	case gnet.KindPush:
		p, err := in.payload()
		if err != nil {
			return false
		}
		push, err := gnet.ParsePush(p)
		if err != nil {
			return false
		}
		return c.bans.IsBannedServent(push.ServentID) || c.bans.IsBanned(push.Addr.Addr())
	case gnet.KindQuery:
		if !in.wantsOOB() {
			return false
		}
		return c.bans.IsBanned(in.msg.ID.OOBAddress().Addr())
	}
	return false
}

// checkRouting resolves duplicates and reverse paths.
func (c *Classifier) checkRouting(in *inspection) drop.Reason {
	switch in.msg.Kind.Role() {
	case gnet.RoleBroadcast:
		return c.checkBroadcast(in)
	case gnet.RoleReply:
		return c.checkReply(in)
	case gnet.RolePush:
		return c.checkPush(in)
	}
	return drop.None
}

func (c *Classifier) checkBroadcast(in *inspection) drop.Reason {
	msg := in.msg
	if e, ok := c.routes.Lookup(msg.ID); ok && !c.routes.Expired(e, in.now) {
		if e.Local() {
			in.ownQuery = true
			return drop.None
		}
		return drop.Duplicate
	}
	if in.wantsOOB() {
		oob := msg.ID.OOBAddress()
		if msg.Hops == 0 && oob.Addr() != in.origin.Addr.Addr().Unmap() {
			return drop.OOBProxyConflict
		}
		in.oob = oob
	}
	return drop.None
}

func (c *Classifier) checkReply(in *inspection) drop.Reason {
	msg := in.msg
	e, ok := c.routes.Lookup(msg.ID)
	if !ok {
		if c.routes.Lost(msg.ID) {
			return drop.RouteLost
		}
		return drop.NoRoute
	}
	if e.Kind != msg.Kind.Request() {
		return drop.NoRoute
	}
	if c.routes.Expired(e, in.now) {
		return drop.RouteLost
	}
	if !e.Local() && !c.live.IsLive(e.Origin) {
		return drop.RouteLost
	}
	in.route, in.hasRoute = e, true
	return drop.None
}

func (c *Classifier) checkPush(in *inspection) drop.Reason {
	msg := in.msg
	if e, ok := c.routes.Lookup(msg.ID); ok && !c.routes.Expired(e, in.now) {
		return drop.Duplicate
	}
	p, err := in.payload()
	if err != nil {
		return drop.None
	}
	push, err := gnet.ParsePush(p)
	if err != nil {
		return drop.None
	}
	if !c.cfg.ServentID.IsZero() && push.ServentID == c.cfg.ServentID {
		in.route.ID = push.ServentID
		in.route.Origin = gnet.LocalRef
		in.route.Kind = gnet.KindQueryHit
		in.hasRoute = true
		return drop.None
	}
	e, ok := c.pushes.Lookup(push.ServentID)
	if !ok {
		if c.pushes.Lost(push.ServentID) {
			return drop.RouteLost
		}
		return drop.NoRoute
	}
	if c.pushes.Expired(e, in.now) || !c.live.IsLive(e.Origin) {
		return drop.RouteLost
	}
	in.route, in.hasRoute = e, true
	return drop.None
}

// checkSelf catches messages that loop back to this node.
func (c *Classifier) checkSelf(in *inspection) drop.Reason {
	msg := in.msg
	if in.ownQuery {
		return drop.OwnQuery
	}
	servent, isHit := in.hitServent()
	if isHit && !c.cfg.ServentID.IsZero() && servent == c.cfg.ServentID {
		return drop.OwnResult
	}
	if (msg.Kind == gnet.KindQuery || msg.Kind == gnet.KindG2Query) && c.cfg.AncientHorizon > 0 {
		if ts, ok := msg.ID.Timestamp(); ok && in.now.Sub(ts) > c.cfg.AncientHorizon {
			return drop.AncientQuery
		}
	}
	if isHit && servent.IsZero() {
		return drop.BlankServentID
	}
	return drop.None
}
