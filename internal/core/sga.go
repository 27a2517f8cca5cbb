package core

// SGA is a scatter-gather array: the ordered segments of one logical message.
// Segment order is preserved across the wire.
type SGA struct {
	Segments [][]byte
}

// NewSGA builds an SGA from the given segments without copying them.
func NewSGA(segs ...[]byte) *SGA {
	return &SGA{Segments: segs}
}

// NumSegments returns the segment count.
func (s *SGA) NumSegments() int {
	if s == nil {
		return 0
	}
	return len(s.Segments)
}

// TotalLen returns the sum of all segment lengths.
func (s *SGA) TotalLen() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, seg := range s.Segments {
		n += len(seg)
	}
	return n
}

// Reset drops all segments, keeping the backing array.
func (s *SGA) Reset() {
	clear(s.Segments)
	s.Segments = s.Segments[:0]
}
