// Package gnet implements the wire-level view of Gnutella-family messages for the
// admission engine.
//
// Four framings are understood:
//   - classic Gnutella (23 byte header over TCP)
//   - GUESS (the same header carried in UDP datagrams)
//   - DHT RPCs (classic-shaped header with function 0x44, UDP only)
//   - G2 packets (control byte, length, name, children, body)
//
// Decode turns a raw buffer into a Message without copying the payload. The
// payload parsers (ParseQuery, ParseQueryHit, ParsePong, ParsePush, ParseDHT,
// ParseGGEP) are bounds checked and never panic on hostile input.
//
// Classic header layout:
//
//	+----+----+----+----+----+----+----+----+
//	|                 GUID                  |
//	+----+----+----+----+----+----+----+----+
//	|                 GUID                  |
//	+----+----+----+----+----+----+----+----+
//	|func| ttl|hops|   size (LE)       |
//	+----+----+----+----+----+----+----+
//
// When bit 31 of size is set the upper half carries header flags and the payload
// length is the low 16 bits.
package gnet
