// Package syncpoint implements named synchronization points for federated
// simulation runs.
//
// A synchronization point is a rendezvous barrier identified by a label.
// Every federate in a federation must achieve the point before the
// federation confirms it, so federates advancing at different rates
// converge on the same boundary without wall-clock coordination.
//
// LIFECYCLE:
//
// A point is created Unregistered, becomes Announced once the federation
// knows about it, Achieved when the local federate reaches the barrier,
// and Synchronized when the federation confirms that every federate has
// achieved it. A gateway failure moves the offending point to Error
// without disturbing the others. Synchronized and Error are terminal;
// points are never removed, so a finished run can still be inspected and
// checkpointed.
//
// TIME GATING:
//
// A point may carry a target logical time. It becomes eligible for
// achievement once the owning federate's time reaches that target; a point
// without a target is eligible as soon as it is announced. A point whose
// target is never reached simply stays Announced. That is a valid resting
// state, not an error.
//
// OWNERSHIP:
//
// A List is mutated only by its owning federate's control loop. There is
// no internal locking; funneling all mutation through one goroutine is an
// assumed external invariant. Batch operations walk points in insertion
// order, which makes achievement order deterministic for equal target
// times.
package syncpoint
