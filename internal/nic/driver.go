// Package nic defines the network device abstraction the queue drives and the
// registry that maps driver names to constructors.
package nic

import (
	"firestige.xyz/bypass/internal/core"
)

// Driver is a non-blocking raw-frame port.
type Driver interface {
	// TransmitBurst hands frames to the device and returns how many were
	// accepted, in order. Frames are not retained after the call returns.
	TransmitBurst(frames [][]byte) int

	// ReceiveBurst returns up to max frames without blocking. The caller owns
	// the returned slices.
	ReceiveBurst(max int) [][]byte

	// LinkAddr returns the port's own MAC address.
	LinkAddr() core.LinkAddr

	Close() error
}

// Factory builds a driver from its `nic.options` map.
type Factory func(opts map[string]any) (Driver, error)
