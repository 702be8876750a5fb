package presence

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clubsync/internal/mocks"
	"clubsync/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func typingEvent(t *testing.T, roomID, userID, name string, typing bool) models.ChannelEvent {
	t.Helper()
	raw, err := json.Marshal(models.TypingChangedPayload{
		RoomID: roomID, UserID: userID, UserName: name, IsTyping: typing,
	})
	require.NoError(t, err)
	return models.ChannelEvent{Type: models.EventTypingChanged, Payload: raw}
}

func TestStartTypingDebouncesToOneStartOneStop(t *testing.T) {
	var stops atomic.Int32
	sender := new(mocks.TypingSenderMock)
	sender.On("SendTyping", "r1", true).Return(nil).Once()
	sender.On("SendTyping", "r1", false).
		Run(func(mock.Arguments) { stops.Add(1) }).
		Return(nil).Once()

	tracker := NewTracker(sender, 30*time.Millisecond, time.Second, nil)

	// A burst of keystrokes: one start goes out, the timer is rearmed, and
	// exactly one stop follows once the burst ends.
	require.NoError(t, tracker.StartTyping("r1"))
	require.NoError(t, tracker.StartTyping("r1"))
	require.NoError(t, tracker.StartTyping("r1"))

	require.Eventually(t, func() bool {
		return stops.Load() == 1
	}, time.Second, 5*time.Millisecond, "exactly one stop must follow the burst")
	sender.AssertExpectations(t)
}

func TestStopTypingCancelsTimer(t *testing.T) {
	sender := new(mocks.TypingSenderMock)
	sender.On("SendTyping", "r1", true).Return(nil).Once()
	sender.On("SendTyping", "r1", false).Return(nil).Once()

	tracker := NewTracker(sender, 30*time.Millisecond, time.Second, nil)

	require.NoError(t, tracker.StartTyping("r1"))
	require.NoError(t, tracker.StopTyping("r1"))

	// The debounce timer was cancelled, so no second stop may fire.
	time.Sleep(60 * time.Millisecond)
	sender.AssertNumberOfCalls(t, "SendTyping", 2)
	sender.AssertExpectations(t)
}

func TestInboundFactExpiresAfterTTL(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	sender := new(mocks.TypingSenderMock)
	sender.On("SendTyping", mock.Anything, mock.Anything).Return(nil).Maybe()

	tracker := NewTracker(sender, time.Second, 5*time.Second, clock.Now)

	tracker.HandleEvent(typingEvent(t, "r1", "u2", "Ana", true))
	require.Equal(t, []string{"Ana"}, tracker.Typing("r1"))

	// A refresh extends the expiry.
	clock.Advance(3 * time.Second)
	tracker.HandleEvent(typingEvent(t, "r1", "u2", "Ana", true))
	clock.Advance(3 * time.Second)
	require.Equal(t, []string{"Ana"}, tracker.Typing("r1"))

	// Past the TTL with no refresh: invisible even before any sweep runs.
	clock.Advance(3 * time.Second)
	require.Empty(t, tracker.Typing("r1"))
}

func TestTypingFalseRemovesImmediately(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	sender := new(mocks.TypingSenderMock)
	tracker := NewTracker(sender, time.Second, 5*time.Second, clock.Now)

	tracker.HandleEvent(typingEvent(t, "r1", "u2", "Ana", true))
	tracker.HandleEvent(typingEvent(t, "r1", "u2", "Ana", false))
	require.Empty(t, tracker.Typing("r1"))
}

func TestTypingTextComposition(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	sender := new(mocks.TypingSenderMock)
	tracker := NewTracker(sender, time.Second, time.Minute, clock.Now)

	require.Empty(t, tracker.TypingText("r1"))

	tracker.HandleEvent(typingEvent(t, "r1", "u2", "Ana", true))
	require.Equal(t, "Ana is typing…", tracker.TypingText("r1"))

	tracker.HandleEvent(typingEvent(t, "r1", "u3", "Ben", true))
	require.Equal(t, "Ana and Ben are typing…", tracker.TypingText("r1"))

	tracker.HandleEvent(typingEvent(t, "r1", "u4", "Cho", true))
	require.Equal(t, "3 people are typing…", tracker.TypingText("r1"))
}

func TestSweepRemovesExpiredFacts(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	sender := new(mocks.TypingSenderMock)
	tracker := NewTracker(sender, time.Second, 5*time.Second, clock.Now)

	tracker.HandleEvent(typingEvent(t, "r1", "u2", "Ana", true))
	tracker.HandleEvent(typingEvent(t, "r2", "u3", "Ben", true))

	clock.Advance(6 * time.Second)
	tracker.Sweep()

	require.Empty(t, tracker.Typing("r1"))
	require.Empty(t, tracker.Typing("r2"))
}
