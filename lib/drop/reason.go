package drop

import "fmt"

// Reason identifies why a message was dropped. The numeric values are part of
// the statistics layout and must not be reordered.
type Reason uint8

const (
	BadSize Reason = iota
	TooSmall
	TooLarge
	WayTooLarge
	TooOld
	UnknownType
	Unexpected
	TTL0
	ImproperHopsTTL
	MaxTTLExceeded
	Throttle
	Limit
	Transient
	PongUnusable
	HardTTLLimit
	MaxHopCount
	RouteLost
	NoRoute
	Duplicate
	OOBProxyConflict
	ToBanned
	FromBanned
	Shutdown
	FlowControl
	QueryNoNUL
	QueryTooShort
	QueryOverhead
	BadURN
	MalformedSHA1
	MalformedUTF8
	BadResult
	BadReturnAddress
	HostileIP
	ShunnedIP
	MorpheusBogus
	Spam
	Evil
	Media
	InflateError
	UnknownHeaderFlags
	OwnResult
	OwnQuery
	AncientQuery
	BlankServentID
	GUESSMissingToken
	GUESSInvalidToken
	DHTInvalidToken
	DHTTooManyStore
	DHTUnparseable
	G2Unexpected
	NetworkCrossing

	// COUNT is the number of reasons. It is not a valid Reason.
	COUNT
)

// None is returned by checks that found nothing to object to.
// It is outside the closed set and never recorded.
const None Reason = 0xff

type info struct {
	name    string
	display string
}

// table is the single source of truth for names and display strings.
var table = [COUNT]info{
	BadSize:            {"BAD_SIZE", "Bad size"},
	TooSmall:           {"TOO_SMALL", "Too small"},
	TooLarge:           {"TOO_LARGE", "Too large"},
	WayTooLarge:        {"WAY_TOO_LARGE", "Way too large"},
	TooOld:             {"TOO_OLD", "Too old"},
	UnknownType:        {"UNKNOWN_TYPE", "Unknown message type"},
	Unexpected:         {"UNEXPECTED", "Unexpected message"},
	TTL0:               {"TTL0", "Message with TTL=0"},
	ImproperHopsTTL:    {"IMPROPER_HOPS_TTL", "Improper hops/ttl combination"},
	MaxTTLExceeded:     {"MAX_TTL_EXCEEDED", "Max TTL exceeded"},
	Throttle:           {"THROTTLE", "Message throttle"},
	Limit:              {"LIMIT", "Message queue limit reached"},
	Transient:          {"TRANSIENT", "Transient node"},
	PongUnusable:       {"PONG_UNUSABLE", "Unusable Pong"},
	HardTTLLimit:       {"HARD_TTL_LIMIT", "Hard TTL limit reached"},
	MaxHopCount:        {"MAX_HOP_COUNT", "Max hop count reached"},
	RouteLost:          {"ROUTE_LOST", "Route lost"},
	NoRoute:            {"NO_ROUTE", "No route"},
	Duplicate:          {"DUPLICATE", "Duplicate message"},
	OOBProxyConflict:   {"OOB_PROXY_CONFLICT", "OOB proxy conflict"},
	ToBanned:           {"TO_BANNED", "Message to banned GUID"},
	FromBanned:         {"FROM_BANNED", "Message from banned host"},
	Shutdown:           {"SHUTDOWN", "Node shutting down"},
	FlowControl:        {"FLOW_CONTROL", "Flow control"},
	QueryNoNUL:         {"QUERY_NO_NUL", "Query text had no trailing NUL"},
	QueryTooShort:      {"QUERY_TOO_SHORT", "Query text too short"},
	QueryOverhead:      {"QUERY_OVERHEAD", "Query had unnecessary overhead"},
	BadURN:             {"BAD_URN", "Message with malformed URN"},
	MalformedSHA1:      {"MALFORMED_SHA1", "Message with malformed SHA1"},
	MalformedUTF8:      {"MALFORMED_UTF_8", "Message with malformed UTF-8"},
	BadResult:          {"BAD_RESULT", "Malformed Query Hit"},
	BadReturnAddress:   {"BAD_RETURN_ADDRESS", "Bad return address"},
	HostileIP:          {"HOSTILE_IP", "Hostile IP address"},
	ShunnedIP:          {"SHUNNED_IP", "Shunned IP address"},
	MorpheusBogus:      {"MORPHEUS_BOGUS", "Bogus result from Morpheus"},
	Spam:               {"SPAM", "Spam"},
	Evil:               {"EVIL", "Evil filename"},
	Media:              {"MEDIA", "Media type not matching"},
	InflateError:       {"INFLATE_ERROR", "Payload inflating error"},
	UnknownHeaderFlags: {"UNKNOWN_HEADER_FLAGS", "Unknown header flags"},
	OwnResult:          {"OWN_RESULT", "Own search results"},
	OwnQuery:           {"OWN_QUERY", "Own queries"},
	AncientQuery:       {"ANCIENT_QUERY", "Ancient query"},
	BlankServentID:     {"BLANK_SERVENT_ID", "Blank Servent ID"},
	GUESSMissingToken:  {"GUESS_MISSING_TOKEN", "GUESS Query Key missing"},
	GUESSInvalidToken:  {"GUESS_INVALID_TOKEN", "GUESS Invalid Query Key"},
	DHTInvalidToken:    {"DHT_INVALID_TOKEN", "DHT Invalid Security Token"},
	DHTTooManyStore:    {"DHT_TOO_MANY_STORE", "DHT Too Many STORE"},
	DHTUnparseable:     {"DHT_UNPARSEABLE", "DHT Malformed Message"},
	G2Unexpected:       {"G2_UNEXPECTED", "Unexpected G2 message"},
	NetworkCrossing:    {"NETWORK_CROSSING", "Network crossing"},
}

// Valid reports whether r belongs to the closed set.
func (r Reason) Valid() bool {
	return r < COUNT
}

// Name returns the short stable identifier of the reason, e.g. "DUPLICATE".
func (r Reason) Name() string {
	if !r.Valid() {
		return fmt.Sprintf("REASON_%d", uint8(r))
	}
	return table[r].name
}

// String returns the human readable description of the reason.
func (r Reason) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Invalid reason %d", uint8(r))
	}
	return table[r].display
}

// All returns every reason in numeric order.
func All() []Reason {
	all := make([]Reason, COUNT)
	for i := range all {
		all[i] = Reason(i)
	}
	return all
}

// ByName resolves a short name back to its reason.
func ByName(name string) (Reason, bool) {
	for i := range table {
		if table[i].name == name {
			return Reason(i), true
		}
	}
	return None, false
}
