package gnet

import "fmt"

// Variant is the protocol family a message was framed with.
type Variant uint8

const (
	VariantClassic Variant = iota
	VariantG2
	VariantGUESS
	VariantDHT
	variantCount
)

func (v Variant) String() string {
	switch v {
	case VariantClassic:
		return "classic"
	case VariantG2:
		return "g2"
	case VariantGUESS:
		return "guess"
	case VariantDHT:
		return "dht"
	default:
		return fmt.Sprintf("variant(%d)", uint8(v))
	}
}

// ParseVariant is the inverse of Variant.String.
func ParseVariant(s string) (Variant, bool) {
	for _, v := range []Variant{VariantClassic, VariantG2, VariantGUESS, VariantDHT} {
		if v.String() == s {
			return v, true
		}
	}
	return VariantClassic, false
}

// Network returns the overlay network the variant belongs to.
func (v Variant) Network() Network {
	if v == VariantG2 {
		return NetworkG2
	}
	return NetworkGnutella
}

// Role describes how an accepted message of a kind travels.
type Role uint8

const (
	// RoleLocal messages are consumed by this node and never relayed.
	RoleLocal Role = iota
	// RoleLinkLocal messages concern the link itself and must arrive with hops=0, ttl=1.
	RoleLinkLocal
	// RoleBroadcast messages are flooded and leave a reverse-path route behind.
	RoleBroadcast
	// RoleReply messages follow the reverse path of their request.
	RoleReply
	// RolePush messages are routed by their target servent identifier.
	RolePush
)

// Kind is the decoded message kind, independent of the wire encoding.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindPing
	KindPong
	KindBye
	KindQRP
	KindVendor
	KindStandardVendor
	KindPush
	KindRUDP
	KindQuery
	KindQueryHit
	KindHSEP
	KindG2Ping
	KindG2Pong
	KindG2LNI
	KindG2KHL
	KindG2Query
	KindG2QueryAck
	KindG2Hit
	KindG2QHT
	KindG2QKR
	KindG2QKA
	KindG2Push
	KindG2UPROC
	KindG2UPROD
	KindG2CrawlRequest
	KindG2CrawlAnswer
	KindG2HAW
	KindDHTPing
	KindDHTPong
	KindDHTStore
	KindDHTStoreAck
	KindDHTFindNode
	KindDHTFindNodeReply
	KindDHTFindValue
	KindDHTFindValueReply
	kindCount
)

// KindCount is the number of kinds including KindUnknown.
const KindCount = int(kindCount)

type kindInfo struct {
	name       string
	variant    Variant
	role       Role
	minPayload int
	maxPayload int
	request    Kind
	unhandled  bool
}

var kinds = [kindCount]kindInfo{
	KindUnknown:           {name: "unknown"},
	KindPing:              {name: "ping", role: RoleBroadcast, maxPayload: 1024},
	KindPong:              {name: "pong", role: RoleReply, minPayload: 14, maxPayload: 4096, request: KindPing},
	KindBye:               {name: "bye", role: RoleLinkLocal, minPayload: 2, maxPayload: 4096},
	KindQRP:               {name: "qrp", role: RoleLinkLocal, minPayload: 1, maxPayload: 32768},
	KindVendor:            {name: "vendor", role: RoleLinkLocal, minPayload: 8, maxPayload: 4096},
	KindStandardVendor:    {name: "standard-vendor", role: RoleLinkLocal, minPayload: 8, maxPayload: 4096},
	KindPush:              {name: "push", role: RolePush, minPayload: 26, maxPayload: 4096},
	KindRUDP:              {name: "rudp", role: RoleLocal, maxPayload: 2048},
	KindQuery:             {name: "query", role: RoleBroadcast, maxPayload: 4096},
	KindQueryHit:          {name: "query-hit", role: RoleReply, maxPayload: 65536, request: KindQuery},
	KindHSEP:              {name: "hsep", role: RoleLinkLocal, minPayload: 24, maxPayload: 168},
	KindG2Ping:            {name: "g2-PI", variant: VariantG2, maxPayload: 1024},
	KindG2Pong:            {name: "g2-PO", variant: VariantG2, maxPayload: 1024},
	KindG2LNI:             {name: "g2-LNI", variant: VariantG2, role: RoleLinkLocal, maxPayload: 4096},
	KindG2KHL:             {name: "g2-KHL", variant: VariantG2, role: RoleLinkLocal, maxPayload: 8192},
	KindG2Query:           {name: "g2-Q2", variant: VariantG2, role: RoleBroadcast, minPayload: GUID_SIZE, maxPayload: 4096},
	KindG2QueryAck:        {name: "g2-QA", variant: VariantG2, role: RoleReply, minPayload: GUID_SIZE, maxPayload: 8192, request: KindG2Query},
	KindG2Hit:             {name: "g2-QH2", variant: VariantG2, role: RoleReply, minPayload: GUID_SIZE + 1, maxPayload: 65536, request: KindG2Query},
	KindG2QHT:             {name: "g2-QHT", variant: VariantG2, role: RoleLinkLocal, minPayload: 1, maxPayload: 32768},
	KindG2QKR:             {name: "g2-QKR", variant: VariantG2, maxPayload: 1024},
	KindG2QKA:             {name: "g2-QKA", variant: VariantG2, maxPayload: 1024},
	KindG2Push:            {name: "g2-PUSH", variant: VariantG2, maxPayload: 1024},
	KindG2UPROC:           {name: "g2-UPROC", variant: VariantG2, maxPayload: 4096, unhandled: true},
	KindG2UPROD:           {name: "g2-UPROD", variant: VariantG2, maxPayload: 4096, unhandled: true},
	KindG2CrawlRequest:    {name: "g2-CRAWLR", variant: VariantG2, maxPayload: 4096, unhandled: true},
	KindG2CrawlAnswer:     {name: "g2-CRAWLA", variant: VariantG2, maxPayload: 65536, unhandled: true},
	KindG2HAW:             {name: "g2-HAW", variant: VariantG2, maxPayload: 4096, unhandled: true},
	KindDHTPing:           {name: "dht-ping", variant: VariantDHT, minPayload: 1, maxPayload: 8192},
	KindDHTPong:           {name: "dht-pong", variant: VariantDHT, minPayload: 1, maxPayload: 8192},
	KindDHTStore:          {name: "dht-store", variant: VariantDHT, minPayload: 1, maxPayload: 65536},
	KindDHTStoreAck:       {name: "dht-store-ack", variant: VariantDHT, minPayload: 1, maxPayload: 8192},
	KindDHTFindNode:       {name: "dht-find-node", variant: VariantDHT, minPayload: 1, maxPayload: 8192},
	KindDHTFindNodeReply:  {name: "dht-find-node-reply", variant: VariantDHT, minPayload: 1, maxPayload: 8192},
	KindDHTFindValue:      {name: "dht-find-value", variant: VariantDHT, minPayload: 1, maxPayload: 8192},
	KindDHTFindValueReply: {name: "dht-find-value-reply", variant: VariantDHT, minPayload: 1, maxPayload: 65536},
}

func (k Kind) info() kindInfo {
	if k >= kindCount {
		return kinds[KindUnknown]
	}
	return kinds[k]
}

func (k Kind) String() string {
	if k >= kindCount {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kinds[k].name
}

// Role returns how accepted messages of this kind are routed.
func (k Kind) Role() Role { return k.info().role }

// Request returns the request kind a reply kind answers, or KindUnknown.
func (k Kind) Request() Kind { return k.info().request }

// Unhandled reports whether the kind is known but never accepted by this node.
func (k Kind) Unhandled() bool { return k.info().unhandled }

// Family returns the variant family that defines the kind. GUESS shares the
// classic kinds.
func (k Kind) Family() Variant { return k.info().variant }

// PayloadBounds returns the legal payload length range for the kind.
func (k Kind) PayloadBounds() (lo, hi int) {
	i := k.info()
	return i.minPayload, i.maxPayload
}

// Kinds returns every defined kind except KindUnknown.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount-1)
	for k := KindPing; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

var classicFunctions = map[byte]Kind{
	GTA_MSG_INIT:           KindPing,
	GTA_MSG_INIT_RESPONSE:  KindPong,
	GTA_MSG_BYE:            KindBye,
	GTA_MSG_QRP:            KindQRP,
	GTA_MSG_VENDOR:         KindVendor,
	GTA_MSG_STANDARD:       KindStandardVendor,
	GTA_MSG_PUSH_REQUEST:   KindPush,
	GTA_MSG_RUDP:           KindRUDP,
	GTA_MSG_SEARCH:         KindQuery,
	GTA_MSG_SEARCH_RESULTS: KindQueryHit,
	GTA_MSG_HSEP_DATA:      KindHSEP,
}

var dhtOpcodes = map[byte]Kind{
	DHT_OP_PING_REQUEST:        KindDHTPing,
	DHT_OP_PING_RESPONSE:       KindDHTPong,
	DHT_OP_STORE_REQUEST:       KindDHTStore,
	DHT_OP_STORE_RESPONSE:      KindDHTStoreAck,
	DHT_OP_FIND_NODE_REQUEST:   KindDHTFindNode,
	DHT_OP_FIND_NODE_RESPONSE:  KindDHTFindNodeReply,
	DHT_OP_FIND_VALUE_REQUEST:  KindDHTFindValue,
	DHT_OP_FIND_VALUE_RESPONSE: KindDHTFindValueReply,
}

var g2Names = map[string]Kind{
	"PI":     KindG2Ping,
	"PO":     KindG2Pong,
	"LNI":    KindG2LNI,
	"KHL":    KindG2KHL,
	"Q2":     KindG2Query,
	"QA":     KindG2QueryAck,
	"QH2":    KindG2Hit,
	"QHT":    KindG2QHT,
	"QKR":    KindG2QKR,
	"QKA":    KindG2QKA,
	"PUSH":   KindG2Push,
	"UPROC":  KindG2UPROC,
	"UPROD":  KindG2UPROD,
	"CRAWLR": KindG2CrawlRequest,
	"CRAWLA": KindG2CrawlAnswer,
	"HAW":    KindG2HAW,
}

// legalOverUDP lists the classic kinds a GUESS datagram may carry.
var legalOverUDP = map[Kind]bool{
	KindPing:           true,
	KindPong:           true,
	KindQuery:          true,
	KindQueryHit:       true,
	KindVendor:         true,
	KindStandardVendor: true,
	KindPush:           true,
	KindRUDP:           true,
}
