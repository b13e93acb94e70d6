// Package monotonic provides the clocks the admission engine reads.
//
// Clock returns time.Now() shifted by an NTP-derived offset. The offset matters
// because query GUIDs carry wall clock timestamps minted by other nodes, and a
// skewed local clock would misjudge their age. Durations measured between two
// Clock readings keep Go's monotonic reading and are immune to wall clock jumps.
//
// Manual is a settable clock for replaying captures and for tests.
//
//	clock := monotonic.NewClock()
//	if err := clock.Sync(ntp.QueryWithOptions, servers, 5*time.Second); err != nil {
//	    // keep the zero offset
//	}
package monotonic
