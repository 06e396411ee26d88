// Package gateway provides the ambassadors that connect a federate to
// the federation exchange.
//
// Two implementations of the syncpoint.Gateway contract live here. Local
// attaches directly to an in-process exchange and is used by the scenario
// harness and by single-process federations. Client speaks the federation
// protocol over a websocket to a remote exchange.
//
// Both expose the same shape: Register and Achieve carry this federate's
// requests outward, and Inbound delivers announces, synchronized
// confirmations, and protocol errors from the federation. The welcome
// handshake is consumed during construction, so Inbound carries only
// federation traffic.
//
// Inbound delivery must never block the exchange, so the local ambassador
// buffers and drops on overflow; the websocket ambassador is naturally
// decoupled by the connection and applies backpressure instead.
package gateway
