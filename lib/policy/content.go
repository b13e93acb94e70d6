package policy

import (
	"bytes"
	"strings"

	"github.com/go-gnutella/go-gnutella/lib/gnet"
)

// IsSpam reports whether a query or query hit matches the spam rules. The
// payload must already be inflated. Payloads that do not parse are left to
// the payload checks and are not spam.
func (p *Policy) IsSpam(msg *gnet.Message) bool {
	r := p.rules.Load()
	switch msg.Kind {
	case gnet.KindQuery:
		q, err := gnet.ParseQuery(msg.Payload)
		if err != nil {
			return false
		}
		text := strings.ToLower(string(q.Text))
		for _, term := range r.spamTerms {
			if strings.Contains(text, term) {
				return true
			}
		}
		for _, urn := range q.URNs {
			if _, ok := r.spamSHA1[urn.SHA1]; ok && urn.HasSHA1 {
				return true
			}
		}
	case gnet.KindQueryHit:
		hit, err := gnet.ParseQueryHit(msg.Payload)
		if err != nil {
			return false
		}
		if _, ok := r.spamVendors[strings.ToUpper(hit.Vendor)]; ok {
			return true
		}
		for _, digest := range hit.SHA1s() {
			if _, ok := r.spamSHA1[digest]; ok {
				return true
			}
		}
	}
	return false
}

// IsEvil reports whether a query hit advertises a file whose name matches the
// evil rules.
func (p *Policy) IsEvil(msg *gnet.Message) bool {
	r := p.rules.Load()
	if msg.Kind != gnet.KindQueryHit || len(r.evilNames) == 0 {
		return false
	}
	hit, err := gnet.ParseQueryHit(msg.Payload)
	if err != nil {
		return false
	}
	for _, res := range hit.Results {
		name := bytes.ToLower(res.Name)
		for _, evil := range r.evilNames {
			if bytes.Contains(name, []byte(evil)) {
				return true
			}
		}
	}
	return false
}
