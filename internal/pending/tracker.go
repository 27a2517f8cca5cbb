// Package pending tracks the state of asynchronous push and pop operations by token.
package pending

import (
	"net/netip"

	"firestige.xyz/bypass/internal/core"
)

// Operation is the state of one push or pop.
//
// It is created the first time its token is referenced and mutated in place
// afterwards. Once Done is set the result fields never change.
type Operation struct {
	Token core.QToken
	Dir   core.Direction

	Done   bool
	Result int   // payload bytes moved, valid once Done
	Err    error // terminal error, valid once Done

	// Addr is the destination of a push, or the sender of a completed pop.
	Addr netip.AddrPort
	// SGA is the caller's message for a push, or the received message for a pop.
	SGA *core.SGA
}

// Tracker maps tokens to operations. Entries are never evicted implicitly;
// callers drop them with Forget or Reset.
//
// Tracker is not safe for concurrent use.
type Tracker struct {
	ops map[core.QToken]*Operation
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{ops: make(map[core.QToken]*Operation)}
}

// GetOrCreate returns the operation for token, creating it when unseen.
// An existing operation is returned unchanged, whatever dir, addr and sga say.
func (t *Tracker) GetOrCreate(token core.QToken, dir core.Direction, addr netip.AddrPort, sga *core.SGA) *Operation {
	if op, ok := t.ops[token]; ok {
		return op
	}
	op := &Operation{
		Token: token,
		Dir:   dir,
		Addr:  addr,
		SGA:   sga,
	}
	t.ops[token] = op
	return op
}

// MarkDone completes the operation for token. The first completion wins; it
// reports false when the token is unknown or already done.
func (t *Tracker) MarkDone(token core.QToken, n int, err error) bool {
	op, ok := t.ops[token]
	if !ok || op.Done {
		return false
	}
	op.Done = true
	op.Result = n
	op.Err = err
	return true
}

// Lookup returns the operation for token without creating it.
func (t *Tracker) Lookup(token core.QToken) (*Operation, bool) {
	op, ok := t.ops[token]
	return op, ok
}

// Forget drops the operation for token.
func (t *Tracker) Forget(token core.QToken) {
	delete(t.ops, token)
}

// Reset drops every operation.
func (t *Tracker) Reset() {
	clear(t.ops)
}

// Len returns the number of tracked operations.
func (t *Tracker) Len() int {
	return len(t.ops)
}
