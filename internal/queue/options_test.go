package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/bypass/internal/core"
)

func TestParseWaitPolicy(t *testing.T) {
	tests := []struct {
		input string
		want  WaitPolicy
	}{
		{"", WaitSpin},
		{"spin", WaitSpin},
		{"Yield", WaitYield},
	}
	for _, tt := range tests {
		got, err := ParseWaitPolicy(tt.input)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseWaitPolicy("sleep")
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
	assert.Equal(t, "WaitPolicy(7)", WaitPolicy(7).String())
}

func TestPortAllocatorWraps(t *testing.T) {
	a := newPortAllocator(65534)
	assert.Equal(t, uint16(65534), a.allocate())
	assert.Equal(t, uint16(65535), a.allocate())
	assert.Equal(t, uint16(65534), a.allocate())

	d := newPortAllocator(0)
	assert.Equal(t, uint16(DefaultEphemeralPortStart), d.allocate())
	assert.Equal(t, uint16(DefaultEphemeralPortStart+1), d.allocate())
}
