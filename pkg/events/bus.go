// Package events carries notifications from the frame loop to the operator
// surfaces (dashboard, recorder) without blocking the loop.
package events

import (
	"sync"
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"

	"github.com/teslashibe/go-targetlink/internal/log"
)

// Defaults for New.
const (
	DefaultWorkers = 2
	DefaultQueue   = 256
)

// Bus is an asynchronous event bus. PublishAsync enqueues and returns
// immediately; worker goroutines deliver to subscribers. When the queue is
// full the event is dropped and counted.
type Bus struct {
	bus      evbus.Bus
	workers  int
	work     chan event
	stop     chan struct{}
	wg       sync.WaitGroup
	started  atomic.Bool
	stopOnce sync.Once

	dropped   atomic.Uint64
	delivered atomic.Uint64
}

type event struct {
	topic string
	args  []any
}

// New creates a bus with the given worker count and queue capacity.
// Non-positive values use the defaults.
func New(workers, queue int) *Bus {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queue <= 0 {
		queue = DefaultQueue
	}
	return &Bus{
		bus:     evbus.New(),
		workers: workers,
		work:    make(chan event, queue),
		stop:    make(chan struct{}),
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (b *Bus) Start() {
	if !b.started.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}
}

// Stop stops the workers. Queued events that were not delivered are discarded.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		close(b.stop)
		b.wg.Wait()
	})
}

func (b *Bus) worker() {
	defer b.wg.Done()

	for {
		select {
		case <-b.stop:
			return
		case ev := <-b.work:
			b.deliver(ev)
		}
	}
}

func (b *Bus) deliver(ev event) {
	defer func() {
		if r := recover(); r != nil {
			log.Component("events").Error("subscriber panic", "topic", ev.topic, "panic", r)
		}
	}()
	b.bus.Publish(ev.topic, ev.args...)
	b.delivered.Add(1)
}

// Publish delivers synchronously on the caller's goroutine.
func (b *Bus) Publish(topic string, args ...any) {
	b.bus.Publish(topic, args...)
}

// PublishAsync enqueues an event. It never blocks; it reports false when
// the event was dropped because the queue is full.
func (b *Bus) PublishAsync(topic string, args ...any) bool {
	select {
	case b.work <- event{topic: topic, args: args}:
		return true
	default:
		b.dropped.Add(1)
		return false
	}
}

// Subscribe registers fn for topic. fn's parameters must match the
// published arguments.
func (b *Bus) Subscribe(topic string, fn any) error {
	return b.bus.Subscribe(topic, fn)
}

// Unsubscribe removes fn from topic.
func (b *Bus) Unsubscribe(topic string, fn any) error {
	return b.bus.Unsubscribe(topic, fn)
}

// HasSubscribers reports whether topic has any subscriber.
func (b *Bus) HasSubscribers(topic string) bool {
	return b.bus.HasCallback(topic)
}

// Dropped returns the number of events dropped on a full queue.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Delivered returns the number of events handed to subscribers.
func (b *Bus) Delivered() uint64 { return b.delivered.Load() }
