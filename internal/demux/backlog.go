// Package demux buffers the frames of one driver receive burst so the queue can
// consume them one at a time.
package demux

import (
	"time"

	"firestige.xyz/bypass/internal/metrics"
)

// DefaultBatch is the receive burst size used when none is configured.
const DefaultBatch = 64

// Receiver is the receive side of a nic.Driver.
type Receiver interface {
	ReceiveBurst(max int) [][]byte
}

// Backlog is a FIFO of received frames. It polls the device only when empty,
// once per Next call, so frames from one burst are always consumed before the
// next burst is requested.
//
// Backlog is not safe for concurrent use.
type Backlog struct {
	rx     Receiver
	batch  int
	frames [][]byte
	head   int
}

// NewBacklog creates a backlog reading up to batch frames per burst.
func NewBacklog(rx Receiver, batch int) *Backlog {
	if batch <= 0 {
		batch = DefaultBatch
	}
	return &Backlog{
		rx:     rx,
		batch:  batch,
		frames: make([][]byte, 0, batch),
	}
}

// Next returns the oldest buffered frame. When the backlog is empty it issues
// exactly one receive burst first; an empty burst reports false.
func (b *Backlog) Next() ([]byte, bool) {
	if b.head == len(b.frames) {
		b.refill()
		if len(b.frames) == 0 {
			return nil, false
		}
	}
	f := b.frames[b.head]
	b.frames[b.head] = nil
	b.head++
	return f, true
}

func (b *Backlog) refill() {
	b.frames = b.frames[:0]
	b.head = 0

	start := time.Now()
	burst := b.rx.ReceiveBurst(b.batch)
	metrics.DevReadLatencySeconds.Observe(time.Since(start).Seconds())

	if len(burst) == 0 {
		return
	}
	metrics.RxBurstSize.Observe(float64(len(burst)))
	b.frames = append(b.frames, burst...)
}

// Len returns the number of buffered frames.
func (b *Backlog) Len() int {
	return len(b.frames) - b.head
}

// Reset discards every buffered frame.
func (b *Backlog) Reset() {
	clear(b.frames)
	b.frames = b.frames[:0]
	b.head = 0
}
