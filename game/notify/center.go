package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cuonghoang741/vivivi-server/cache"
	"github.com/cuonghoang741/vivivi-server/model"
	"github.com/cuonghoang741/vivivi-server/scheduler"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Kind categorizes a notification.
type Kind string

const (
	KindQuestProgress Kind = "quest_progress"
	KindQuestComplete Kind = "quest_complete"
	KindQuestUnlocked Kind = "quest_unlocked"
	KindCurrency      Kind = "currency"
	KindXP            Kind = "xp"
	KindLevelUp       Kind = "level_up"
	KindLoginReward   Kind = "login_reward"
	KindMilestone     Kind = "milestone"
)

// Notification is one transient announcement. It is never persisted; its
// lifetime is bounded to the display window the queue assigns it.
type Notification struct {
	ID         string `json:"id"`
	Kind       Kind   `json:"kind"`
	Title      string `json:"title"`
	Amount     int    `json:"amount,omitempty"`
	Progress   int    `json:"progress,omitempty"`
	Target     int    `json:"target,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Config tunes display timing.
type Config struct {
	NominalDuration time.Duration
	MinDuration     time.Duration
	BasePause       time.Duration
}

func (c Config) withDefaults() Config {
	if c.NominalDuration <= 0 {
		c.NominalDuration = 1800 * time.Millisecond
	}
	if c.MinDuration <= 0 {
		c.MinDuration = 600 * time.Millisecond
	}
	if c.BasePause <= 0 {
		c.BasePause = 250 * time.Millisecond
	}
	return c
}

// Multiplier returns the display-time multiplier for a backlog depth.
// Deeper backlogs shrink the display window so announcements drain faster.
func Multiplier(backlog int) float64 {
	switch {
	case backlog >= 8:
		return 0.35
	case backlog >= 5:
		return 0.5
	case backlog >= 3:
		return 0.7
	default:
		return 1.0
	}
}

// Remaining recomputes how long the currently-showing item has left after
// elapsed time with the given backlog, floored at min. Acceleration applies
// retroactively: the already-showing item is cut short, not just future ones.
func Remaining(nominal, elapsed time.Duration, backlog int, min time.Duration) time.Duration {
	rem := time.Duration(float64(nominal)*Multiplier(backlog)) - elapsed
	if rem < min {
		rem = min
	}
	return rem
}

// Center serializes reward/progress announcements per owner: at most one
// notification is showing at a time, arrivals while one is showing join a
// FIFO backlog. Shown items are published on the owner's pub/sub channel
// for the SSE feed.
type Center struct {
	mu     sync.Mutex
	queues map[string]*ownerQueue
	sched  *scheduler.Scheduler
	pubsub cache.PubSub
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

type ownerQueue struct {
	showing   *Notification
	startedAt time.Time
	backlog   []*Notification
}

// NewCenter creates a notification Center.
func NewCenter(sched *scheduler.Scheduler, pubsub cache.PubSub, cfg Config, logger *zap.Logger) *Center {
	return &Center{
		queues: make(map[string]*ownerQueue),
		sched:  sched,
		pubsub: pubsub,
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

// Channel returns the pub/sub channel name for an owner's feed.
func Channel(owner model.Owner) string {
	return "notify:" + owner.Key()
}

// Push enqueues a notification for the owner. If nothing is showing it is
// shown immediately; otherwise it joins the backlog and the showing item's
// dismissal deadline is recomputed against the new backlog depth.
func (c *Center) Push(owner model.Owner, n *Notification) {
	if !owner.Valid() || n == nil {
		return
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	key := owner.Key()

	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.queues[key]
	if !ok {
		q = &ownerQueue{}
		c.queues[key] = q
	}

	if q.showing == nil {
		c.show(key, q, n)
		return
	}

	q.backlog = append(q.backlog, n)

	// Reschedule the showing item against the deeper backlog. AddDelay
	// replaces the pending timer, so the old deadline is cleared first.
	elapsed := c.now().Sub(q.startedAt)
	rem := Remaining(c.cfg.NominalDuration, elapsed, len(q.backlog), c.cfg.MinDuration)
	c.sched.AddDelay(timerName(key), rem, func() { c.dismiss(key) })
}

// Backlog returns the owner's queued-but-not-shown count; used by tests
// and the admin surface.
func (c *Center) Backlog(owner model.Owner) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if q, ok := c.queues[owner.Key()]; ok {
		return len(q.backlog)
	}
	return 0
}

// show must be called with c.mu held.
func (c *Center) show(key string, q *ownerQueue, n *Notification) {
	duration := time.Duration(float64(c.cfg.NominalDuration) * Multiplier(len(q.backlog)))
	if duration < c.cfg.MinDuration {
		duration = c.cfg.MinDuration
	}
	n.DurationMs = duration.Milliseconds()
	q.showing = n
	q.startedAt = c.now()

	payload, err := json.Marshal(n)
	if err != nil {
		c.logger.Error("notify marshal failed", zap.Error(err))
	} else if err := c.pubsub.Publish(context.Background(), "notify:"+key, string(payload)); err != nil {
		c.logger.Warn("notify publish failed", zap.String("owner", key), zap.Error(err))
	}

	c.sched.AddDelay(timerName(key), duration, func() { c.dismiss(key) })
}

func (c *Center) dismiss(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.queues[key]
	if !ok {
		return
	}
	q.showing = nil
	if len(q.backlog) == 0 {
		delete(c.queues, key)
		return
	}

	// Next item appears after a pause scaled by backlog depth.
	pause := time.Duration(float64(c.cfg.BasePause) * Multiplier(len(q.backlog)))
	c.sched.AddDelay(timerName(key), pause, func() { c.showNext(key) })
}

func (c *Center) showNext(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.queues[key]
	if !ok || q.showing != nil || len(q.backlog) == 0 {
		return
	}
	n := q.backlog[0]
	q.backlog = q.backlog[1:]
	c.show(key, q, n)
}

func timerName(key string) string {
	return "notify:" + key
}
