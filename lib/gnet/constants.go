package gnet

import "errors"

// Gnutella function codes.
const (
	GTA_MSG_INIT             = 0x00
	GTA_MSG_INIT_RESPONSE    = 0x01
	GTA_MSG_BYE              = 0x02
	GTA_MSG_QRP              = 0x30
	GTA_MSG_VENDOR           = 0x31
	GTA_MSG_STANDARD         = 0x32
	GTA_MSG_PUSH_REQUEST     = 0x40
	GTA_MSG_RUDP             = 0x41
	GTA_MSG_DHT              = 0x44
	GTA_MSG_SEARCH           = 0x80
	GTA_MSG_SEARCH_RESULTS   = 0x81
	GTA_MSG_HSEP_DATA        = 0xcd
	GTA_HEADER_SIZE          = 23
	GTA_SIZE_MARKED          = 0x80000000
	GTA_SIZE_FLAGS_SHIFT     = 16
	GTA_SIZE_FLAGS_MASK      = 0x7fff
	GTA_SIZE_MASK            = 0xffff
	GTA_UDP_DEFLATED         = 0x0001
	GTA_UDP_CAN_INFLATE      = 0x0002
	GTA_KNOWN_HEADER_FLAGS   = GTA_UDP_DEFLATED | GTA_UDP_CAN_INFLATE
	GUID_SIZE                = 16
	DEFAULT_MAX_MESSAGE_SIZE = 65536 + GTA_HEADER_SIZE
)

// DHT opcodes, carried in the first payload byte of a DHT message.
const (
	DHT_OP_PING_REQUEST        = 0x01
	DHT_OP_PING_RESPONSE       = 0x02
	DHT_OP_STORE_REQUEST       = 0x03
	DHT_OP_STORE_RESPONSE      = 0x04
	DHT_OP_FIND_NODE_REQUEST   = 0x05
	DHT_OP_FIND_NODE_RESPONSE  = 0x06
	DHT_OP_FIND_VALUE_REQUEST  = 0x07
	DHT_OP_FIND_VALUE_RESPONSE = 0x08
	DHT_KUID_SIZE              = 20
)

// Query flags, carried in the former "minimum speed" field.
const (
	QUERY_FLAG_MARK       = 0x8000
	QUERY_FLAG_FIREWALLED = 0x4000
	QUERY_FLAG_XML        = 0x2000
	QUERY_FLAG_LEAF_GUIDE = 0x1000
	QUERY_FLAG_GGEP_H     = 0x0800
	QUERY_FLAG_OOB        = 0x0004
)

// G2 control byte layout.
const (
	G2_LEN_LEN_SHIFT  = 6
	G2_NAME_LEN_SHIFT = 3
	G2_NAME_LEN_MASK  = 0x07
	G2_FLAG_COMPOUND  = 0x04
	G2_FLAG_BIG_END   = 0x02
)

// GGEP block layout.
const (
	GGEP_MAGIC         = 0xc3
	GGEP_F_LAST        = 0x80
	GGEP_F_COBS        = 0x40
	GGEP_F_DEFLATE     = 0x20
	GGEP_F_RESERVED    = 0x10
	GGEP_F_IDLEN       = 0x0f
	GGEP_L_CONTINUE    = 0x80
	GGEP_L_LAST        = 0x40
	GGEP_L_VALUE       = 0x3f
	HUGE_FIELD_SEP     = 0x1c
	MAX_INFLATED_BYTES = 65536
)

// GGEP extension identifiers inspected by admission.
const (
	GGEP_ID_QUERY_KEY = "QK"
	GGEP_ID_MEDIA     = "M"
	GGEP_ID_HASH      = "H"
)

// These use errors.New so callers can match them with errors.Is().
var (
	ERR_GGEP_MALFORMED    = errors.New("malformed ggep block")
	ERR_GGEP_UNSUPPORTED  = errors.New("unsupported ggep encoding")
	ERR_INFLATE           = errors.New("payload inflating error")
	ERR_INFLATE_TOO_LARGE = errors.New("inflated payload exceeds limit")
	ERR_NOT_ENOUGH_DATA   = errors.New("not enough payload data")
	ERR_QUERY_TOO_SHORT   = errors.New("query payload too short")
	ERR_QUERY_NO_NUL      = errors.New("query text not NUL terminated")
	ERR_BAD_URN           = errors.New("malformed urn")
	ERR_MALFORMED_SHA1    = errors.New("malformed sha1 urn")
	ERR_BAD_RESULT        = errors.New("malformed query hit")
	ERR_DHT_UNPARSEABLE   = errors.New("malformed dht message")
)
