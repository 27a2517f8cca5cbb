// Package queue is the asynchronous scatter-gather endpoint applications use.
//
// Every Push and Pop makes at most one non-blocking attempt against the
// driver and returns core.ErrPending until its token completes. Completed
// results stay queryable through Poll until the token is forgotten. Wait and
// WaitContext repeat attempts until completion.
//
// A Queue is not safe for concurrent use.
package queue

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"firestige.xyz/bypass/internal/arp"
	"firestige.xyz/bypass/internal/codec"
	"firestige.xyz/bypass/internal/core"
	"firestige.xyz/bypass/internal/demux"
	"firestige.xyz/bypass/internal/log"
	"firestige.xyz/bypass/internal/metrics"
	"firestige.xyz/bypass/internal/nic"
	"firestige.xyz/bypass/internal/pending"
)

// Queue is one UDP endpoint over a raw-frame driver.
type Queue struct {
	driver  nic.Driver
	codec   *codec.Codec
	arp     *arp.Table
	backlog *demux.Backlog
	tracker *pending.Tracker
	ports   *portAllocator
	policy  WaitPolicy
	log     log.Logger

	bound bool
	local netip.AddrPort
	peer  netip.AddrPort // invalid when not connected
	seq   uint64
}

// New creates an unbound queue on drv. The queue does not close drv.
func New(drv nic.Driver, c *codec.Codec, table *arp.Table, opts Options) *Queue {
	opts.applyDefaults()
	return &Queue{
		driver:  drv,
		codec:   c,
		arp:     table,
		backlog: demux.NewBacklog(drv, opts.BurstSize),
		tracker: pending.NewTracker(),
		ports:   newPortAllocator(opts.EphemeralPortStart),
		policy:  opts.WaitPolicy,
		log:     log.GetLogger().WithField("component", "queue"),
	}
}

// Bind sets the local address. A zero port takes the next ephemeral port and a
// zero or invalid address takes the driver's IPv4 address from the ARP table.
// Binding again replaces the previous address.
func (q *Queue) Bind(addr netip.AddrPort) error {
	ip := addr.Addr()
	if !ip.IsValid() || ip.IsUnspecified() {
		var ok bool
		if ip, ok = q.arp.ResolveIP(q.driver.LinkAddr()); !ok {
			q.log.WithField("mac", q.driver.LinkAddr().String()).
				Warn("no arp entry for the local link address, binding to 0.0.0.0")
			ip = netip.IPv4Unspecified()
		}
	}
	if !ip.Is4() {
		return fmt.Errorf("bind %s: %w", addr, core.ErrAddressFamily)
	}

	port := addr.Port()
	if port == 0 {
		port = q.ports.allocate()
	}

	local := netip.AddrPortFrom(ip, port)
	if q.bound {
		q.log.WithField("old", q.local.String()).WithField("new", local.String()).Debug("rebinding queue")
	}
	q.local = local
	q.bound = true
	return nil
}

// Connect sets the default peer used by Push.
func (q *Queue) Connect(peer netip.AddrPort) error {
	if !peer.Addr().Is4() {
		return fmt.Errorf("connect %s: %w", peer, core.ErrAddressFamily)
	}
	q.peer = peer
	return nil
}

// Close forgets the default peer and every tracked operation. The local
// address and the driver are left alone.
func (q *Queue) Close() error {
	q.peer = netip.AddrPort{}
	q.tracker.Reset()
	return nil
}

// Bound reports whether the queue has a local address.
func (q *Queue) Bound() bool { return q.bound }

// LocalAddr returns the bound address, or the zero value before binding.
func (q *Queue) LocalAddr() netip.AddrPort { return q.local }

// PeerAddr returns the default peer and whether one is set.
func (q *Queue) PeerAddr() (netip.AddrPort, bool) { return q.peer, q.peer.IsValid() }

// NewToken issues a token that is unique within this queue and records dir in
// its low bit.
func (q *Queue) NewToken(dir core.Direction) core.QToken {
	q.seq++
	return core.MakeQToken(q.seq, dir)
}

// Forget drops a token's state. A forgotten token may be reused.
func (q *Queue) Forget(qt core.QToken) {
	q.tracker.Forget(qt)
}

// Pending returns the number of tracked operations, done or not.
func (q *Queue) Pending() int {
	return q.tracker.Len()
}

func (q *Queue) ensureBound() error {
	if q.bound {
		return nil
	}
	if err := q.Bind(netip.AddrPort{}); err != nil {
		return err
	}
	q.log.WithField("local", q.local.String()).Debug("queue bound implicitly")
	return nil
}

// Push sends sga to the default peer. A token already in flight keeps the
// destination it was first pushed to.
func (q *Queue) Push(qt core.QToken, sga *core.SGA) (int, error) {
	if op, ok := q.tracker.Lookup(qt); ok && op.Dir == core.DirPush {
		return q.PushTo(qt, op.SGA, op.Addr)
	}
	if !q.peer.IsValid() {
		return 0, core.ErrNoPeer
	}
	return q.PushTo(qt, sga, q.peer)
}

// PushTo makes one attempt to send sga to the given address as a single frame.
//
// It returns the payload byte count once the driver has accepted the frame,
// core.ErrPending while the driver is busy, and core.ErrOversizeMessage
// (recorded as the token's result) when sga cannot fit in one frame. Once a
// token is done, further calls return its stored result without sending.
func (q *Queue) PushTo(qt core.QToken, sga *core.SGA, to netip.AddrPort) (int, error) {
	if op, ok := q.tracker.Lookup(qt); ok {
		if op.Done {
			return op.Result, op.Err
		}
		// retries send what the first call recorded
		sga, to = op.SGA, op.Addr
	} else if !to.Addr().Is4() {
		return 0, fmt.Errorf("push to %s: %w", to, core.ErrAddressFamily)
	}

	if err := q.ensureBound(); err != nil {
		return 0, err
	}
	if sga == nil {
		sga = &core.SGA{}
	}
	q.tracker.GetOrCreate(qt, core.DirPush, to, sga)

	start := time.Now()
	frame, err := q.codec.Encode(sga, codec.Route{
		Src:    q.local,
		Dst:    to,
		SrcMAC: q.driver.LinkAddr(),
		DstMAC: q.arp.Resolve(to.Addr()),
	})
	if err != nil {
		q.tracker.MarkDone(qt, 0, err)
		q.log.WithError(err).WithField("token", uint64(qt)).Debug("push rejected")
		return 0, err
	}

	txStart := time.Now()
	sent := q.driver.TransmitBurst([][]byte{frame})
	metrics.DevWriteLatencySeconds.Observe(time.Since(txStart).Seconds())
	codec.Release(frame)
	if sent == 0 {
		return 0, core.ErrPending
	}

	n := sga.TotalLen()
	q.tracker.MarkDone(qt, n, nil)
	metrics.PushLatencySeconds.Observe(time.Since(start).Seconds())
	metrics.FramesTxTotal.Inc()
	metrics.BytesTotal.WithLabelValues(metrics.DirectionTx).Add(float64(n))
	return n, nil
}

// Pop receives the next message for this endpoint from any sender.
func (q *Queue) Pop(qt core.QToken, sga *core.SGA) (int, error) {
	return q.PopFrom(qt, sga, nil)
}

// PopFrom makes one attempt to receive a message addressed to the local
// endpoint.
//
// It takes one frame from the receive backlog, polling the driver only when
// the backlog is empty. Frames that are not addressed to this endpoint or do
// not parse are dropped and the call returns core.ErrPending, as it does when
// nothing has arrived. On success the received segments are stored in sga,
// the sender is stored in from when non-nil, and the payload byte count is
// returned.
func (q *Queue) PopFrom(qt core.QToken, sga *core.SGA, from *netip.AddrPort) (int, error) {
	if op, ok := q.tracker.Lookup(qt); ok && op.Done {
		fill(op, sga, from)
		return op.Result, op.Err
	}

	if err := q.ensureBound(); err != nil {
		return 0, err
	}
	op := q.tracker.GetOrCreate(qt, core.DirPop, netip.AddrPort{}, sga)

	start := time.Now()
	frame, ok := q.backlog.Next()
	if !ok {
		return 0, core.ErrPending
	}
	metrics.FramesRxTotal.Inc()

	d, err := q.codec.Decode(frame, q.local)
	if err != nil {
		q.drop(frame, err)
		return 0, core.ErrPending
	}

	if q.arp.Learning() {
		q.arp.Learn(d.IP.SrcIP, d.Ethernet.SrcMAC)
	}

	if op.SGA == nil {
		op.SGA = &core.SGA{}
	}
	op.SGA.Segments = d.SGA.Segments
	op.Addr = d.Peer()
	n := d.SGA.TotalLen()
	q.tracker.MarkDone(qt, n, nil)

	fill(op, sga, from)
	metrics.PopLatencySeconds.Observe(time.Since(start).Seconds())
	metrics.BytesTotal.WithLabelValues(metrics.DirectionRx).Add(float64(n))
	return n, nil
}

func (q *Queue) drop(frame []byte, err error) {
	reason := metrics.ReasonMalformed
	if errors.Is(err, core.ErrNotForEndpoint) {
		reason = metrics.ReasonNotForEndpoint
	}
	metrics.FramesDroppedTotal.WithLabelValues(reason).Inc()
	if q.log.IsDebugEnabled() {
		q.log.WithError(err).WithField("len", len(frame)).Debug("frame dropped")
	}
}

// fill copies a completed pop's message and sender into the caller's outputs.
func fill(op *pending.Operation, sga *core.SGA, from *netip.AddrPort) {
	if op.Dir != core.DirPop {
		return
	}
	if sga != nil && sga != op.SGA && op.SGA != nil {
		sga.Segments = op.SGA.Segments
	}
	if from != nil {
		*from = op.Addr
	}
}

// Poll reports a token's state without touching the driver. It returns
// core.ErrPending until the token is done and core.ErrUnknownToken for tokens
// never used or already forgotten. For a completed pop, sga receives the
// message when non-nil.
func (q *Queue) Poll(qt core.QToken, sga *core.SGA) (int, error) {
	op, ok := q.tracker.Lookup(qt)
	if !ok {
		return 0, core.ErrUnknownToken
	}
	if !op.Done {
		return 0, core.ErrPending
	}
	fill(op, sga, nil)
	return op.Result, op.Err
}
