// Package forward turns an accepted message into the copies this node relays.
// Broadcasts fan out to every candidate connection except the one they came
// from, with ttl decremented and hops incremented. Replies and pushes follow
// the route admission resolved for them.
package forward
