package admission

import (
	"bytes"
	"errors"
	"unicode/utf8"

	"github.com/go-gnutella/go-gnutella/lib/drop"
	"github.com/go-gnutella/go-gnutella/lib/gnet"
	"github.com/go-gnutella/go-gnutella/lib/routing"
	"github.com/go-gnutella/go-gnutella/lib/token"
)

// MORPHEUS_VENDOR is the vendor code of a servent family known to return
// fabricated hits.
const MORPHEUS_VENDOR = "MRPH"

// checkPayload runs the checks that need the decoded payload.
func (c *Classifier) checkPayload(in *inspection) drop.Reason {
	msg := in.msg
	if msg.Variant.Network() != in.origin.Network {
		return drop.NetworkCrossing
	}
	if msg.Kind.Unhandled() {
		return drop.G2Unexpected
	}
	if msg.UnknownFlags() != 0 {
		return drop.UnknownHeaderFlags
	}
	plain, err := in.payload()
	if err != nil {
		return drop.InflateError
	}
	if lo, _ := msg.Kind.PayloadBounds(); len(plain) < lo {
		return drop.BadSize
	}
	switch msg.Kind {
	case gnet.KindQuery:
		return c.checkQuery(in, plain)
	case gnet.KindQueryHit:
		return c.checkHit(in, plain)
	case gnet.KindPong:
		return checkPong(plain)
	case gnet.KindPush:
		return checkPushPayload(plain)
	case gnet.KindDHTPing, gnet.KindDHTPong, gnet.KindDHTStore, gnet.KindDHTStoreAck,
		gnet.KindDHTFindNode, gnet.KindDHTFindNodeReply, gnet.KindDHTFindValue, gnet.KindDHTFindValueReply:
		return c.checkDHT(in, plain)
	}
	return drop.None
}

// parseReason maps a payload parser error onto a drop reason.
func parseReason(err error) drop.Reason {
	switch {
	case errors.Is(err, gnet.ERR_QUERY_TOO_SHORT):
		return drop.QueryTooShort
	case errors.Is(err, gnet.ERR_QUERY_NO_NUL):
		return drop.QueryNoNUL
	case errors.Is(err, gnet.ERR_MALFORMED_SHA1):
		return drop.MalformedSHA1
	case errors.Is(err, gnet.ERR_BAD_URN):
		return drop.BadURN
	case errors.Is(err, gnet.ERR_BAD_RESULT):
		return drop.BadResult
	case errors.Is(err, gnet.ERR_DHT_UNPARSEABLE):
		return drop.DHTUnparseable
	case errors.Is(err, gnet.ERR_INFLATE), errors.Is(err, gnet.ERR_INFLATE_TOO_LARGE):
		return drop.InflateError
	}
	return drop.BadSize
}

func (c *Classifier) checkQuery(in *inspection, plain []byte) drop.Reason {
	q, err := gnet.ParseQuery(plain)
	if err != nil {
		return parseReason(err)
	}
	if len(q.URNs) == 0 && utf8.RuneCount(q.Text) < c.cfg.MinQueryLength {
		return drop.QueryTooShort
	}
	if c.cfg.MaxQueryOverhead > 0 && len(q.Extensions) > c.cfg.MaxQueryOverhead {
		return drop.QueryOverhead
	}
	if !utf8.Valid(q.Text) {
		return drop.MalformedUTF8
	}
	if mask, ok := q.MediaMask(); ok && mask&c.cfg.FilteredMedia != 0 {
		return drop.Media
	}
	if q.WantsOOB() && !gnet.Routable(in.msg.ID.OOBAddress()) {
		return drop.BadReturnAddress
	}
	if in.origin.Variant == gnet.VariantGUESS {
		key, ok := q.QueryKey()
		if !ok {
			return drop.GUESSMissingToken
		}
		if !c.tokens.Valid(token.PurposeGUESS, in.origin.Addr, key) {
			return drop.GUESSInvalidToken
		}
	}
	return drop.None
}

func (c *Classifier) checkHit(in *inspection, plain []byte) drop.Reason {
	hit, err := gnet.ParseQueryHit(plain)
	if err != nil {
		return drop.BadResult
	}
	ip := hit.Addr.Addr()
	if !ip.IsValid() || ip.IsUnspecified() || hit.Addr.Port() == 0 {
		return drop.BadReturnAddress
	}
	if morpheusBogus(&hit) {
		return drop.MorpheusBogus
	}
	for _, r := range hit.Results {
		if !utf8.Valid(r.Name) {
			return drop.MalformedUTF8
		}
	}
	in.hit = &hit
	return drop.None
}

// morpheusBogus recognises the fabricated hits of MORPHEUS_VENDOR servents:
// empty files or the same file name repeated.
func morpheusBogus(hit *gnet.QueryHit) bool {
	if hit.Vendor != MORPHEUS_VENDOR {
		return false
	}
	for i, r := range hit.Results {
		if r.Size == 0 {
			return true
		}
		for _, prev := range hit.Results[:i] {
			if bytes.EqualFold(prev.Name, r.Name) {
				return true
			}
		}
	}
	return false
}

func checkPong(plain []byte) drop.Reason {
	pong, err := gnet.ParsePong(plain)
	if err != nil {
		return parseReason(err)
	}
	if !gnet.Routable(pong.Addr) {
		return drop.PongUnusable
	}
	return drop.None
}

func checkPushPayload(plain []byte) drop.Reason {
	push, err := gnet.ParsePush(plain)
	if err != nil {
		return parseReason(err)
	}
	if !gnet.Routable(push.Addr) {
		return drop.BadReturnAddress
	}
	return drop.None
}

func (c *Classifier) checkDHT(in *inspection, plain []byte) drop.Reason {
	d, err := gnet.ParseDHT(plain)
	if err != nil {
		return drop.DHTUnparseable
	}
	if in.msg.Kind != gnet.KindDHTStore {
		return drop.None
	}
	store, err := gnet.ParseStore(d.Body)
	if err != nil {
		return drop.DHTUnparseable
	}
	if !c.tokens.Valid(token.PurposeDHT, in.origin.Addr, store.Token) {
		return drop.DHTInvalidToken
	}
	if c.cfg.MaxStoreValues > 0 && len(store.Values) > c.cfg.MaxStoreValues {
		return drop.DHTTooManyStore
	}
	if !c.limiter.AdmitStore(in.origin.Addr.Addr(), len(store.Values), in.now) {
		return drop.DHTTooManyStore
	}
	return drop.None
}

// accept records the route left behind by an accepted message.
func (c *Classifier) accept(in *inspection) Verdict {
	msg := in.msg
	plain, _ := in.payload()
	v := Verdict{Reason: drop.None, Payload: plain}

	switch msg.Kind.Role() {
	case gnet.RoleBroadcast, gnet.RolePush:
		e := routing.Entry{
			ID:      msg.ID,
			Origin:  in.origin.Conn,
			Addr:    in.origin.Addr,
			Variant: msg.Variant,
			Kind:    msg.Kind,
			TTL:     msg.TTL,
			Hops:    msg.Hops,
			Arrived: in.now,
			OOB:     in.oob,
		}
		if !c.routes.Insert(e) {
			// Another goroutine recorded the same identifier first.
			return Verdict{Reason: drop.Duplicate}
		}
		if msg.Kind.Role() == gnet.RoleBroadcast {
			v.Route, v.HasRoute = e, true
		} else {
			v.Route, v.HasRoute = in.route, in.hasRoute
		}
	case gnet.RoleReply:
		c.routes.MarkReplied(msg.ID, in.now)
		if in.hit != nil && !in.hit.ServentID.IsZero() {
			c.pushes.InsertOrTouch(routing.Entry{
				ID:      in.hit.ServentID,
				Origin:  in.origin.Conn,
				Addr:    in.hit.Addr,
				Variant: msg.Variant,
				Kind:    gnet.KindQueryHit,
				Arrived: in.now,
			})
		}
		v.Route, v.HasRoute = in.route, in.hasRoute
	}
	return v
}
