package queue

import (
	"fmt"
	"strings"

	"firestige.xyz/bypass/internal/core"
	"firestige.xyz/bypass/internal/demux"
)

// WaitPolicy selects how Wait behaves between attempts.
type WaitPolicy int

const (
	// WaitSpin retries immediately, burning the CPU for the lowest latency.
	WaitSpin WaitPolicy = iota
	// WaitYield calls runtime.Gosched between attempts.
	WaitYield
)

func (p WaitPolicy) String() string {
	switch p {
	case WaitSpin:
		return "spin"
	case WaitYield:
		return "yield"
	default:
		return fmt.Sprintf("WaitPolicy(%d)", int(p))
	}
}

// ParseWaitPolicy maps "spin" and "yield" to a policy. Empty means spin.
func ParseWaitPolicy(s string) (WaitPolicy, error) {
	switch strings.ToLower(s) {
	case "", "spin":
		return WaitSpin, nil
	case "yield":
		return WaitYield, nil
	default:
		return WaitSpin, fmt.Errorf("unknown wait policy %q (must be spin/yield): %w", s, core.ErrConfigInvalid)
	}
}

// DefaultEphemeralPortStart is the first port handed out by implicit binds.
const DefaultEphemeralPortStart = 1024

// Options configures a Queue.
type Options struct {
	BurstSize          int        // frames per receive burst, default 64
	EphemeralPortStart uint16     // default 1024
	WaitPolicy         WaitPolicy // default WaitSpin
}

func (o *Options) applyDefaults() {
	if o.BurstSize <= 0 {
		o.BurstSize = demux.DefaultBatch
	}
	if o.EphemeralPortStart == 0 {
		o.EphemeralPortStart = DefaultEphemeralPortStart
	}
}
