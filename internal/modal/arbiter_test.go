package modal

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConcurrentRequestsOpenOnce(t *testing.T) {
	var opens atomic.Int32
	a := New(10*time.Millisecond, func(kind string, payload any) {
		opens.Add(1)
	})

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if a.Request("poll_vote", nil) {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), accepted.Load(), "only one of the racing requests may win the slot")
	require.Eventually(t, func() bool {
		return opens.Load() == 1
	}, time.Second, 5*time.Millisecond)

	_, open := a.State("poll_vote")
	require.True(t, open)
}

func TestRequestDroppedWhileOpen(t *testing.T) {
	opened := make(chan string, 1)
	a := New(time.Millisecond, func(kind string, payload any) {
		opened <- kind
	})

	require.True(t, a.Request("poll_vote", nil))
	require.Equal(t, "poll_vote", <-opened)

	require.False(t, a.Request("poll_vote", nil), "an open prompt blocks further requests of the kind")
	require.True(t, a.Request("payment_reminder", nil), "other kinds are unaffected")
}

func TestCloseReleasesSlot(t *testing.T) {
	opened := make(chan struct{}, 2)
	a := New(time.Millisecond, func(kind string, payload any) {
		opened <- struct{}{}
	})

	require.True(t, a.Request("poll_vote", nil))
	<-opened
	a.Close("poll_vote")

	pending, open := a.State("poll_vote")
	require.False(t, pending)
	require.False(t, open)
	require.True(t, a.Request("poll_vote", nil))
	<-opened
}

func TestClosePendingCancelsOpener(t *testing.T) {
	var opens atomic.Int32
	a := New(50*time.Millisecond, func(kind string, payload any) {
		opens.Add(1)
	})

	require.True(t, a.Request("poll_vote", nil))
	a.Close("poll_vote")

	time.Sleep(100 * time.Millisecond)
	require.Zero(t, opens.Load(), "closing a pending slot must cancel the delayed open")
}

func TestForceCloseCancelsEverything(t *testing.T) {
	var opens atomic.Int32
	a := New(50*time.Millisecond, func(kind string, payload any) {
		opens.Add(1)
	})

	require.True(t, a.Request("poll_vote", nil))
	require.True(t, a.Request("payment_reminder", nil))
	a.ForceClose()

	time.Sleep(100 * time.Millisecond)
	require.Zero(t, opens.Load())

	for _, kind := range []string{"poll_vote", "payment_reminder"} {
		pending, open := a.State(kind)
		require.False(t, pending)
		require.False(t, open)
	}
}

func TestPayloadReachesOpener(t *testing.T) {
	got := make(chan any, 1)
	a := New(time.Millisecond, func(kind string, payload any) {
		got <- payload
	})

	require.True(t, a.Request("poll_vote", map[string]string{"event_id": "e1"}))
	require.Equal(t, map[string]string{"event_id": "e1"}, <-got)
}
