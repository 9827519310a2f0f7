package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishAsyncDelivers(t *testing.T) {
	b := New(1, 8)
	b.Start()
	defer b.Stop()

	got := make(chan RateEvent, 1)
	require.NoError(t, b.OnRate(func(ev RateEvent) { got <- ev }))

	assert.True(t, b.PublishAsync(TopicRate, RateEvent{FPS: 29.5, Frames: 30}))

	select {
	case ev := <-got:
		assert.Equal(t, 29.5, ev.FPS)
		assert.Equal(t, uint64(30), ev.Frames)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_PublishAsyncNeverBlocks(t *testing.T) {
	b := New(1, 2) // not started: nothing drains the queue

	start := time.Now()
	for i := 0; i < 10; i++ {
		b.PublishAsync(TopicFrame, FrameEvent{Seq: uint64(i)})
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, uint64(8), b.Dropped())
}

func TestBus_SlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	b := New(1, 1)
	b.Start()
	defer b.Stop()

	release := make(chan struct{})
	require.NoError(t, b.OnFrame(func(FrameEvent) { <-release }))

	start := time.Now()
	for i := 0; i < 50; i++ {
		b.PublishAsync(TopicFrame, FrameEvent{Seq: uint64(i)})
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Positive(t, b.Dropped())
	close(release)
}

func TestBus_SubscriberPanicRecovered(t *testing.T) {
	b := New(1, 4)
	b.Start()
	defer b.Stop()

	got := make(chan LinkEvent, 1)
	calls := 0
	require.NoError(t, b.OnLink(func(ev LinkEvent) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		got <- ev
	}))

	b.PublishAsync(TopicLink, LinkEvent{Active: true, ConnID: "a"})
	b.PublishAsync(TopicLink, LinkEvent{Active: false, ConnID: "b"})

	select {
	case ev := <-got:
		assert.Equal(t, "b", ev.ConnID)
	case <-time.After(time.Second):
		t.Fatal("worker died after panic")
	}
}

func TestBus_StopIdempotent(t *testing.T) {
	b := New(0, 0)
	b.Start()
	b.Start()
	b.Stop()
	b.Stop()
	assert.False(t, b.HasSubscribers(TopicRate))
}
