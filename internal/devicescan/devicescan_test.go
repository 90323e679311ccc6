package devicescan

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStartRunsAnInitialScan(t *testing.T) {
	var calls atomic.Int32
	s := New(func(devs []Device) { calls.Add(1) })
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
}

func TestRefreshCoalescesPendingRequests(t *testing.T) {
	s := New(func(devs []Device) {})
	// Refresh is non-blocking and must not panic even when called many
	// times before Start, or back-to-back with a full channel.
	s.refreshCh = make(chan struct{}, 1)
	s.Refresh()
	s.Refresh()
	s.Refresh()
	assert.Len(t, s.refreshCh, 1)
}

func TestStopIsIdempotentBeforeStart(t *testing.T) {
	s := New(func(devs []Device) {})
	assert.True(t, s.Stop())
}

func TestStopWaitsForLoopExit(t *testing.T) {
	var calls atomic.Int32
	s := New(func(devs []Device) { calls.Add(1) })
	s.Start()
	clean := s.Stop()
	assert.True(t, clean)
}
