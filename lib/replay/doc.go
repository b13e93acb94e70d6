// Package replay feeds recorded frames through an engine.
//
// A capture is a YAML document listing frames in arrival order:
//
//	start: 2024-03-01T12:00:00Z
//	frames:
//	  - conn: 1
//	    addr: 203.0.113.1:6346
//	    variant: classic
//	    hex: "5e3a...00"
//	  - conn: 2
//	    after: 11m
//	    variant: guess
//	    hex: "..."
//	  - conn: 1
//	    disconnect: true
//
// The clock is a monotonic.Manual positioned at start and advanced by each
// entry's after before the entry is applied, so replays are deterministic.
package replay
