// Package rate provides a Redis-backed fixed-window throttle for HTTP
// endpoints.
//
// # Window semantics
//
// INCR + conditional EXPIRE on first hit. Keys are "<prefix>:<ip>"; the
// default prefix is mc:ip.
//
// Domain policies, like the per-device confirmation attempt cap, live in
// internal/limiters.
package rate
