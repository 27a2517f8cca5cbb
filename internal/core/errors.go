// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors shared by the codec, the queue and the drivers.
var (
	// Queue operation errors
	ErrPending      = errors.New("bypass: operation pending")
	ErrUnknownToken = errors.New("bypass: unknown queue token")
	ErrNoPeer       = errors.New("bypass: no default peer")

	// Addressing errors
	ErrAddressFamily = errors.New("bypass: only IPv4 addresses are supported")

	// Wire codec errors
	ErrOversizeMessage = errors.New("bypass: message exceeds frame capacity")
	ErrMalformedFrame  = errors.New("bypass: malformed frame")
	ErrNotForEndpoint  = errors.New("bypass: frame not for this endpoint")

	// Driver errors
	ErrDriverNotFound = errors.New("bypass: nic driver not found")
	ErrDriverClosed   = errors.New("bypass: nic driver closed")

	// Configuration errors
	ErrConfigInvalid = errors.New("bypass: invalid configuration")
)
