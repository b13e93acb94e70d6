// Package router wires the admission pipeline into an Engine.
//
// # Engine
//
// The Engine owns one instance of every shared structure: the route and push
// tables, the flow-control limiter, the policy lists, the token keeper and the
// statistics. The connection layer hands it raw frames:
//
//	engine, err := router.New(config.DefaultEngineConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	engine.Start()
//	defer engine.Close()
//
//	ref := engine.Connect(slot, gnet.NetworkGnutella)
//	res := engine.Submit(frame, gnet.Origin{Conn: ref, Addr: addr})
//	for _, d := range res.Deliveries {
//	    // write d.Frame to d.Conn, or to d.Addr over UDP for OOB deliveries
//	}
//
// Submit never blocks on I/O and never returns an error: every frame ends
// either accepted, with zero or more deliveries, or dropped with exactly one
// drop.Reason. Each call is counted exactly once in the statistics.
//
// # Lifecycle
//
// Start launches the sweeper, which removes expired routes and rotates token
// secrets, and the throughput sampler. BeginShutdown makes every later frame
// drop with SHUTDOWN while state stays readable. Stop ends the background
// loops; Close also releases subscribers.
//
// # Observation
//
// StatsSnapshot returns the counters by stable reason name. Subscribe returns
// a channel of per-frame events; slow subscribers lose events instead of
// slowing the engine down. Register exposes the counters to Prometheus.
package router
