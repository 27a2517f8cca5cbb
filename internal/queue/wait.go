package queue

import (
	"context"
	"errors"
	"runtime"

	"firestige.xyz/bypass/internal/core"
)

// Wait repeats push or pop attempts for qt until it completes and returns the
// result. It has no timeout; under WaitSpin it occupies the CPU the whole time.
//
// The direction comes from the token's recorded operation. A token not seen
// before is started from its low bit, as set by NewToken: pushes go to the
// default peer with sga, pops receive into sga.
func (q *Queue) Wait(qt core.QToken, sga *core.SGA) (int, error) {
	return q.WaitContext(context.Background(), qt, sga)
}

// WaitContext is Wait that gives up with ctx's error once ctx is done.
func (q *Queue) WaitContext(ctx context.Context, qt core.QToken, sga *core.SGA) (int, error) {
	done := ctx.Done()
	for {
		n, err := q.attempt(qt, sga)
		if !errors.Is(err, core.ErrPending) {
			return n, err
		}
		if done != nil {
			select {
			case <-done:
				return 0, ctx.Err()
			default:
			}
		}
		if q.policy == WaitYield {
			runtime.Gosched()
		}
	}
}

func (q *Queue) attempt(qt core.QToken, sga *core.SGA) (int, error) {
	dir := core.DirPop
	if op, ok := q.tracker.Lookup(qt); ok {
		dir = op.Dir
	} else if qt.IsPush() {
		dir = core.DirPush
	}

	if dir == core.DirPush {
		if op, ok := q.tracker.Lookup(qt); ok {
			return q.PushTo(qt, op.SGA, op.Addr)
		}
		return q.Push(qt, sga)
	}
	return q.PopFrom(qt, sga, nil)
}
