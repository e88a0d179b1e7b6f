package progress

import (
	"context"
	"sort"
	"sync"

	"github.com/cuonghoang741/vivivi-server/model"
	"go.uber.org/zap"
)

// Event is one gameplay action reported by the client, fanned out to every
// quest engine that tracks the matching quest type.
type Event struct {
	Owner     model.Owner
	QuestType string
	Increment int
}

// SinkFunc applies an event to one quest engine.
type SinkFunc func(ctx context.Context, ev Event) error

type sinkEntry struct {
	name     string
	priority int
	fn       SinkFunc
}

// Dispatcher routes progress events to registered sinks in priority order
// (lower runs first). The first sink error aborts the dispatch.
type Dispatcher struct {
	mu     sync.RWMutex
	sinks  []sinkEntry
	logger *zap.Logger
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{logger: logger}
}

// Register adds a sink under the given name. Re-registering a name replaces
// the previous sink.
func (d *Dispatcher) Register(name string, priority int, fn SinkFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeLocked(name)
	d.sinks = append(d.sinks, sinkEntry{name: name, priority: priority, fn: fn})
	sort.SliceStable(d.sinks, func(i, j int) bool {
		return d.sinks[i].priority < d.sinks[j].priority
	})
}

// Unregister removes the sink with the given name, if present.
func (d *Dispatcher) Unregister(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeLocked(name)
}

func (d *Dispatcher) removeLocked(name string) {
	n := 0
	for _, s := range d.sinks {
		if s.name != name {
			d.sinks[n] = s
			n++
		}
	}
	d.sinks = d.sinks[:n]
}

// Dispatch delivers the event to every sink in priority order. It stops at
// the first sink error and returns it.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	d.mu.RLock()
	sinks := make([]sinkEntry, len(d.sinks))
	copy(sinks, d.sinks)
	d.mu.RUnlock()

	for _, s := range sinks {
		if err := s.fn(ctx, ev); err != nil {
			d.logger.Warn("progress sink failed",
				zap.String("sink", s.name),
				zap.String("quest_type", ev.QuestType),
				zap.Error(err))
			return err
		}
	}
	return nil
}
