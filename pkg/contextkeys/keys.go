// Package contextkeys defines the typed context keys threaded between
// pkg/gateway's HTTP transports and pkg/dispatcher's handlers.
package contextkeys

// contextKey is a typed key for context values to avoid conflicts.
type contextKey string

// PeerAddrKey carries the remote address of the client that opened the
// SSE/streamable-HTTP connection, attached by pkg/gateway's transport
// middleware so project open/close actions can be logged against the
// peer that issued them (spec §4.8: operational logging).
const PeerAddrKey contextKey = "peerAddr"
