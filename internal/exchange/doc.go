// Package exchange implements the federation arbiter.
//
// The exchange is the single authority every federate talks to. It keeps
// the roster of joined federates, the set of announced synchronization
// points, and the per-point achievement tally. When every joined federate
// has achieved a point, the exchange broadcasts the synchronized
// confirmation. There is no peer consensus; the rendezvous is a fan-out
// (announce) followed by a fan-in (achieve) arbitrated here.
//
// MEMBERSHIP:
//
// A point's membership is the set of currently joined federates, not the
// set that existed when the point was announced. A late joiner therefore
// inherits every pending point (it receives a replay of the announce
// history on join) and is expected to achieve them. A resignation removes
// the leaver from every tally and re-checks each pending point, since the
// leaver's achievement is no longer required.
//
// Points that were already synchronized before a federate joined are
// replayed as announce plus synchronized, so the late joiner records them
// as settled instead of waiting on them.
//
// The exchange is mutex-guarded: it is mutated from many connection
// goroutines, unlike the federate-side list which has a single owner.
package exchange
