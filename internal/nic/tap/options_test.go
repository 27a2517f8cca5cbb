package tap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/bypass/internal/core"
	"firestige.xyz/bypass/internal/nic"
)

func TestDecodeOptions(t *testing.T) {
	o := defaultOptions()
	err := nic.DecodeOptions(map[string]any{
		"name":       "bypass0",
		"queue_size": 16,
		"persist":    "true",
	}, &o)
	require.NoError(t, err)

	assert.Equal(t, Options{
		Name:      "bypass0",
		MAC:       "02:00:00:00:00:01",
		QueueSize: 16,
		MTU:       defaultMTU,
		Persist:   true,
	}, o)

	mac, err := core.ParseLinkAddr(o.MAC)
	require.NoError(t, err)
	assert.False(t, mac.IsZero())
}

func TestDecodeOptionsRejectsUnknownKeys(t *testing.T) {
	o := defaultOptions()
	err := nic.DecodeOptions(map[string]any{"interface": "eth0"}, &o)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}
