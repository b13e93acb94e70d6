package policy

import (
	"encoding/hex"
	"net"
	"net/netip"
	"strings"
	"sync/atomic"

	"github.com/go-gnutella/go-gnutella/lib/gnet"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"github.com/yl2chen/cidranger"
)

var log = logger.GetGoI2PLogger()

type rules struct {
	banned      cidranger.Ranger
	hostile     cidranger.Ranger
	shunned     cidranger.Ranger
	servents    map[gnet.GUID]struct{}
	spamSHA1    map[[20]byte]struct{}
	spamVendors map[string]struct{}
	spamTerms   []string
	evilNames   []string
}

// Policy is safe for concurrent use.
type Policy struct {
	path  string
	rules atomic.Pointer[rules]
}

// New returns a policy with no rules.
func New() *Policy {
	p := &Policy{}
	empty, _ := compile(File{})
	p.rules.Store(empty)
	return p
}

// Load reads rules from path. Reload reads the same path again.
func Load(path string) (*Policy, error) {
	p := New()
	p.path = path
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload re-reads the file given to Load. On error the current rules stay in
// force. A policy built with New has no file and reloads as a no-op.
func (p *Policy) Reload() error {
	if p.path == "" {
		return nil
	}
	f, err := ReadFile(p.path)
	if err != nil {
		return err
	}
	if err := p.Apply(f); err != nil {
		return oops.Wrapf(err, "policy file %s", p.path)
	}
	log.WithFields(logger.Fields{
		"at":   "policy.Reload",
		"path": p.path,
	}).Info("policy_loaded")
	return nil
}

// Apply replaces the rules with those of f. Invalid entries reject the whole
// file.
func (p *Policy) Apply(f File) error {
	r, err := compile(f)
	if err != nil {
		return err
	}
	p.rules.Store(r)
	return nil
}

func compile(f File) (*rules, error) {
	r := &rules{
		servents:    make(map[gnet.GUID]struct{}),
		spamSHA1:    make(map[[20]byte]struct{}),
		spamVendors: make(map[string]struct{}),
	}
	var err error
	if r.banned, err = buildRanger("banned", f.Banned); err != nil {
		return nil, err
	}
	if r.hostile, err = buildRanger("hostile", f.Hostile); err != nil {
		return nil, err
	}
	if r.shunned, err = buildRanger("shunned", f.Shunned); err != nil {
		return nil, err
	}
	for _, s := range f.BannedServents {
		raw, err := hex.DecodeString(strings.TrimSpace(s))
		if err != nil || len(raw) != gnet.GUID_SIZE {
			return nil, oops.Wrapf(ERR_POLICY_INVALID, "banned servent %q is not 32 hex digits", s)
		}
		id, _ := gnet.GUIDFromBytes(raw)
		r.servents[id] = struct{}{}
	}
	for _, s := range f.Spam.SHA1 {
		if !strings.HasPrefix(strings.ToLower(s), "urn:") {
			s = "urn:sha1:" + s
		}
		urn, err := gnet.ParseURN(s)
		if err != nil || !urn.HasSHA1 {
			return nil, oops.Wrapf(ERR_POLICY_INVALID, "spam digest %q", s)
		}
		r.spamSHA1[urn.SHA1] = struct{}{}
	}
	for _, v := range f.Spam.Vendors {
		r.spamVendors[strings.ToUpper(v)] = struct{}{}
	}
	r.spamTerms = lowerAll(f.Spam.Terms)
	r.evilNames = lowerAll(f.Evil.Names)
	return r, nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// buildRanger accepts CIDR prefixes and bare addresses.
func buildRanger(list string, entries []string) (cidranger.Ranger, error) {
	ranger := cidranger.NewPCTrieRanger()
	for _, s := range entries {
		prefix, err := parsePrefix(strings.TrimSpace(s))
		if err != nil {
			return nil, oops.Wrapf(ERR_POLICY_INVALID, "%s entry %q", list, s)
		}
		network := net.IPNet{
			IP:   prefix.Addr().AsSlice(),
			Mask: net.CIDRMask(prefix.Bits(), prefix.Addr().BitLen()),
		}
		if err := ranger.Insert(cidranger.NewBasicRangerEntry(network)); err != nil {
			return nil, oops.Wrapf(err, "%s entry %q", list, s)
		}
	}
	return ranger, nil
}

func parsePrefix(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		return netip.PrefixFrom(p.Addr().Unmap(), p.Bits()).Masked(), nil
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	a = a.Unmap()
	return netip.PrefixFrom(a, a.BitLen()), nil
}

func contains(r cidranger.Ranger, addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}
	ok, err := r.Contains(net.IP(addr.Unmap().AsSlice()))
	return err == nil && ok
}

// IsBanned reports whether addr is on the banned list.
func (p *Policy) IsBanned(addr netip.Addr) bool {
	return contains(p.rules.Load().banned, addr)
}

// IsHostile reports whether addr is on the hostile list.
func (p *Policy) IsHostile(addr netip.Addr) bool {
	return contains(p.rules.Load().hostile, addr)
}

// IsShunned reports whether addr is on the shunned list.
func (p *Policy) IsShunned(addr netip.Addr) bool {
	return contains(p.rules.Load().shunned, addr)
}

// IsBannedServent reports whether id is a banned servent identifier.
func (p *Policy) IsBannedServent(id gnet.GUID) bool {
	_, ok := p.rules.Load().servents[id]
	return ok
}

// Counts returns the number of banned, hostile and shunned ranges.
func (p *Policy) Counts() (banned, hostile, shunned int) {
	r := p.rules.Load()
	return r.banned.Len(), r.hostile.Len(), r.shunned.Len()
}
