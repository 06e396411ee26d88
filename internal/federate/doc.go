// Package federate implements the federate-side executive.
//
// The executive owns a syncpoint.List and drives it through the step
// cycle: drain inbound federation traffic, advance the logical timeline
// one step, achieve every point whose action time has come due, and
// periodically checkpoint. All list mutation happens on the goroutine
// that calls Step or Run; Enqueue is the only entry point other
// goroutines may use, feeding an unbounded queue that the next cycle
// drains.
//
// Message application is log and continue. An announce for an unknown
// label, a repeated synchronized, or a federation error report is
// logged and the cycle proceeds; a single bad message must not stall
// the executive.
//
// INIT BARRIER:
//
// Startup points carry no action time, so they are due immediately. The
// executive announces them, achieves them as soon as the federation
// confirms the announcement, and holds in RunInitBarrier until every
// one is synchronized. A late joiner skips the barrier; the federation
// settled those points before it existed, and the replayed history
// records them as such.
package federate
