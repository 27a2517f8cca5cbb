package boot

import (
	"context"
	"errors"
	"net/netip"

	"firestige.xyz/bypass/internal/core"
)

// Echo pops messages and pushes each one back to its sender until ctx is done.
// handled, when set, is called after every reply.
func (e *Endpoint) Echo(ctx context.Context, handled func(n int, from netip.AddrPort)) error {
	q := e.Queue
	sga := &core.SGA{}
	for {
		popQT := q.NewToken(core.DirPop)
		if _, err := q.WaitContext(ctx, popQT, sga); err != nil {
			q.Forget(popQT)
			return err
		}
		var from netip.AddrPort
		if _, err := q.PopFrom(popQT, sga, &from); err != nil {
			q.Forget(popQT)
			return err
		}
		q.Forget(popQT)

		pushQT := q.NewToken(core.DirPush)
		if _, err := q.PushTo(pushQT, sga, from); err != nil && !errors.Is(err, core.ErrPending) {
			e.log.WithError(err).WithField("peer", from.String()).Warn("echo reply rejected")
			q.Forget(pushQT)
			continue
		}
		n, err := q.WaitContext(ctx, pushQT, sga)
		q.Forget(pushQT)
		if err != nil {
			return err
		}
		e.log.WithField("peer", from.String()).WithField("bytes", n).Debug("echoed")
		if handled != nil {
			handled(n, from)
		}
		sga = &core.SGA{}
	}
}

// Send pushes one message built from segs to the default peer and waits for
// the driver to take it.
func (e *Endpoint) Send(ctx context.Context, segs ...[]byte) (int, error) {
	qt := e.Queue.NewToken(core.DirPush)
	defer e.Queue.Forget(qt)
	return e.Queue.WaitContext(ctx, qt, core.NewSGA(segs...))
}

// Receive waits for the next message and reports its sender.
func (e *Endpoint) Receive(ctx context.Context) (*core.SGA, netip.AddrPort, error) {
	qt := e.Queue.NewToken(core.DirPop)
	defer e.Queue.Forget(qt)
	sga := &core.SGA{}
	if _, err := e.Queue.WaitContext(ctx, qt, sga); err != nil {
		return nil, netip.AddrPort{}, err
	}
	var from netip.AddrPort
	if _, err := e.Queue.PopFrom(qt, sga, &from); err != nil {
		return nil, netip.AddrPort{}, err
	}
	return sga, from, nil
}
