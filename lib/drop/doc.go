// Package drop defines the closed set of reasons for which an inbound overlay
// message can be refused by the admission engine.
//
// Every reason has a stable short name (used as a statistics key and in logs)
// and a display string (used by observability front ends). Both are looked up
// from a single table indexed by the reason value, so the two lookups can never
// disagree with the set of reasons.
package drop
