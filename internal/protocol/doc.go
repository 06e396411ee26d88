// Package protocol defines the wire messages exchanged between federates
// and the federation exchange.
//
// Messages are single JSON objects discriminated by a kind field. Decoding
// is strict: unknown fields and trailing data are rejected so that a
// version skew between federate and exchange surfaces as an explicit
// decode error instead of silently dropped state.
//
// Labels identify barriers federation-wide, so they are canonicalized
// (Unicode NFC, trimmed) at this boundary. Two federates spelling the
// same label with different normalization forms must agree on one barrier.
package protocol
