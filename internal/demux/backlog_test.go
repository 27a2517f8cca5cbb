package demux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockReceiver struct {
	mock.Mock
}

func (m *mockReceiver) ReceiveBurst(max int) [][]byte {
	args := m.Called(max)
	frames, _ := args.Get(0).([][]byte)
	return frames
}

func TestNextDrainsBurstBeforePolling(t *testing.T) {
	rx := &mockReceiver{}
	rx.On("ReceiveBurst", 4).Return([][]byte{{1}, {2}, {3}}).Once()
	rx.On("ReceiveBurst", 4).Return([][]byte{{4}}).Once()

	b := NewBacklog(rx, 4)

	f, ok := b.Next()
	assert.True(t, ok)
	assert.Equal(t, []byte{1}, f)
	assert.Equal(t, 2, b.Len())

	f, _ = b.Next()
	assert.Equal(t, []byte{2}, f)
	f, _ = b.Next()
	assert.Equal(t, []byte{3}, f)
	rx.AssertNumberOfCalls(t, "ReceiveBurst", 1)

	f, ok = b.Next()
	assert.True(t, ok)
	assert.Equal(t, []byte{4}, f)
	rx.AssertNumberOfCalls(t, "ReceiveBurst", 2)
	rx.AssertExpectations(t)
}

func TestNextEmptyBurst(t *testing.T) {
	rx := &mockReceiver{}
	rx.On("ReceiveBurst", DefaultBatch).Return(nil)

	b := NewBacklog(rx, 0)

	f, ok := b.Next()
	assert.False(t, ok)
	assert.Nil(t, f)

	// each empty Next polls exactly once
	b.Next()
	rx.AssertNumberOfCalls(t, "ReceiveBurst", 2)
	assert.Equal(t, 0, b.Len())
}

func TestReset(t *testing.T) {
	rx := &mockReceiver{}
	rx.On("ReceiveBurst", 8).Return([][]byte{{1}, {2}}).Once()
	rx.On("ReceiveBurst", 8).Return([][]byte{{3}}).Once()

	b := NewBacklog(rx, 8)
	b.Next()
	assert.Equal(t, 1, b.Len())

	b.Reset()
	assert.Equal(t, 0, b.Len())

	f, ok := b.Next()
	assert.True(t, ok)
	assert.Equal(t, []byte{3}, f)
	rx.AssertExpectations(t)
}
