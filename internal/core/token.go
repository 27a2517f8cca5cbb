package core

// Direction tells whether a queue operation sends or receives.
type Direction uint8

const (
	DirPop Direction = iota
	DirPush
)

func (d Direction) String() string {
	switch d {
	case DirPush:
		return "push"
	case DirPop:
		return "pop"
	default:
		return "unknown"
	}
}

// QToken identifies one asynchronous queue operation for its whole lifetime.
// Queue-issued tokens carry their direction in the lowest bit.
type QToken uint64

// MakeQToken combines a sequence number with a direction.
func MakeQToken(seq uint64, dir Direction) QToken {
	t := QToken(seq << 1)
	if dir == DirPush {
		t |= 1
	}
	return t
}

// IsPush reports whether the token's direction bit marks a push.
func (t QToken) IsPush() bool {
	return t&1 == 1
}
