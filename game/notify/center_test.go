package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/cuonghoang741/vivivi-server/cache"
	"github.com/cuonghoang741/vivivi-server/model"
	"github.com/cuonghoang741/vivivi-server/scheduler"
	"github.com/cuonghoang741/vivivi-server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMultiplier(t *testing.T) {
	cases := []struct {
		backlog int
		want    float64
	}{
		{0, 1.0},
		{1, 1.0},
		{2, 1.0},
		{3, 0.7},
		{4, 0.7},
		{5, 0.5},
		{7, 0.5},
		{8, 0.35},
		{20, 0.35},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Multiplier(tc.backlog), "backlog=%d", tc.backlog)
	}
}

func TestRemaining(t *testing.T) {
	nominal := 1800 * time.Millisecond
	min := 600 * time.Millisecond

	// Backlog 5 halves the window: 1800*0.5 - 200 elapsed = 700ms left.
	assert.Equal(t, 700*time.Millisecond,
		Remaining(nominal, 200*time.Millisecond, 5, min))

	// Empty backlog keeps the full window.
	assert.Equal(t, 1600*time.Millisecond,
		Remaining(nominal, 200*time.Millisecond, 0, min))

	// Elapsed past the accelerated window floors at the minimum.
	assert.Equal(t, min,
		Remaining(nominal, 1700*time.Millisecond, 8, min))
	assert.Equal(t, min,
		Remaining(nominal, 5*time.Second, 0, min))
}

func newTestCenter(t *testing.T, cfg Config) (*Center, cache.PubSub) {
	t.Helper()
	logger := zap.NewNop()
	_, ps := testutil.SetupTestCache(t)
	sched := scheduler.New(logger)
	t.Cleanup(sched.Stop)
	return NewCenter(sched, ps, cfg, logger), ps
}

func subscribe(t *testing.T, ps cache.PubSub, owner model.Owner) <-chan *cache.Message {
	t.Helper()
	ch, cancel, err := ps.Subscribe(context.Background(), Channel(owner))
	require.NoError(t, err)
	t.Cleanup(cancel)
	return ch
}

func recvNotification(t *testing.T, ch <-chan *cache.Message, timeout time.Duration) *Notification {
	t.Helper()
	select {
	case msg := <-ch:
		var n Notification
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))
		return &n
	case <-time.After(timeout):
		t.Fatal("timed out waiting for notification")
		return nil
	}
}

func TestPushShowsImmediatelyWhenIdle(t *testing.T) {
	c, ps := newTestCenter(t, Config{
		NominalDuration: 50 * time.Millisecond,
		MinDuration:     10 * time.Millisecond,
		BasePause:       5 * time.Millisecond,
	})
	owner := model.UserOwner(1)
	ch := subscribe(t, ps, owner)

	c.Push(owner, &Notification{Kind: KindCurrency, Title: "vcoin", Amount: 50})

	n := recvNotification(t, ch, time.Second)
	assert.Equal(t, KindCurrency, n.Kind)
	assert.EqualValues(t, 50, n.DurationMs, "idle queue gets the full nominal window")
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, 0, c.Backlog(owner))
}

func TestBurstDrainsInOrder(t *testing.T) {
	c, ps := newTestCenter(t, Config{
		NominalDuration: 40 * time.Millisecond,
		MinDuration:     10 * time.Millisecond,
		BasePause:       5 * time.Millisecond,
	})
	owner := model.UserOwner(1)
	ch := subscribe(t, ps, owner)

	const total = 10
	for i := 0; i < total; i++ {
		c.Push(owner, &Notification{
			Kind:  KindQuestProgress,
			Title: fmt.Sprintf("n%d", i),
		})
	}

	for i := 0; i < total; i++ {
		n := recvNotification(t, ch, 2*time.Second)
		assert.Equal(t, fmt.Sprintf("n%d", i), n.Title, "FIFO order")
	}

	// Queue is fully drained.
	assert.Eventually(t, func() bool {
		return c.Backlog(owner) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestBurstAcceleratesDisplay(t *testing.T) {
	c, ps := newTestCenter(t, Config{
		NominalDuration: 100 * time.Millisecond,
		MinDuration:     10 * time.Millisecond,
		BasePause:       5 * time.Millisecond,
	})
	owner := model.UserOwner(1)
	ch := subscribe(t, ps, owner)

	// 9 pushes: one showing, 8 queued behind it.
	for i := 0; i < 9; i++ {
		c.Push(owner, &Notification{Kind: KindXP, Title: fmt.Sprintf("n%d", i)})
	}

	first := recvNotification(t, ch, time.Second)
	assert.EqualValues(t, 100, first.DurationMs, "first was shown before the backlog built up")

	// The next item is shown against a backlog of 7: 100ms * 0.5 = 50ms.
	second := recvNotification(t, ch, time.Second)
	assert.EqualValues(t, 50, second.DurationMs)
}

func TestQueuesAreIndependentPerOwner(t *testing.T) {
	c, ps := newTestCenter(t, Config{
		NominalDuration: 40 * time.Millisecond,
		MinDuration:     10 * time.Millisecond,
		BasePause:       5 * time.Millisecond,
	})
	alice := model.UserOwner(1)
	bob := model.GuestOwner("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
	aliceCh := subscribe(t, ps, alice)
	bobCh := subscribe(t, ps, bob)

	c.Push(alice, &Notification{Kind: KindCurrency, Title: "for-alice"})
	c.Push(bob, &Notification{Kind: KindCurrency, Title: "for-bob"})

	assert.Equal(t, "for-alice", recvNotification(t, aliceCh, time.Second).Title)
	assert.Equal(t, "for-bob", recvNotification(t, bobCh, time.Second).Title)
}

func TestPushIgnoresInvalidInput(t *testing.T) {
	c, _ := newTestCenter(t, Config{})
	c.Push(model.Owner{}, &Notification{Kind: KindXP})
	c.Push(model.UserOwner(1), nil)
	assert.Equal(t, 0, c.Backlog(model.UserOwner(1)))
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, 1800*time.Millisecond, cfg.NominalDuration)
	assert.Equal(t, 600*time.Millisecond, cfg.MinDuration)
	assert.Equal(t, 250*time.Millisecond, cfg.BasePause)
}
