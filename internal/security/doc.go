// Package security derives a static posture report from the confirmation
// configuration. It holds no state and performs no I/O.
package security
