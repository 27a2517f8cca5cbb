package queue

// portAllocator hands out ephemeral ports in sequence from start through
// 65535, then wraps back to start.
type portAllocator struct {
	start uint16
	next  uint16
}

func newPortAllocator(start uint16) *portAllocator {
	if start == 0 {
		start = DefaultEphemeralPortStart
	}
	return &portAllocator{start: start, next: start}
}

func (a *portAllocator) allocate() uint16 {
	p := a.next
	if a.next == 0xFFFF {
		a.next = a.start
	} else {
		a.next++
	}
	return p
}
