package core

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedFanOut(t *testing.T) {
	f := NewFeed(nil)
	a := f.Subscribe(4)
	b := f.Subscribe(4)
	require.Equal(t, 2, f.Subscribers())

	f.Publish(&Event{Kind: EventChat, Text: "hi"})
	f.Publish(nil)

	assert.Equal(t, "hi", (<-a.Events).Text)
	assert.Equal(t, "hi", (<-b.Events).Text)
	assert.Empty(t, drain(a))
}

func TestFeedDropsForSlowSubscriber(t *testing.T) {
	f := NewFeed(nil)
	sub := f.Subscribe(1)

	f.Publish(&Event{Text: "one"})
	f.Publish(&Event{Text: "two"})

	events := drain(sub)
	require.Len(t, events, 1)
	assert.Equal(t, "one", events[0].Text)
}

func TestFeedLosslessWaitsForReader(t *testing.T) {
	f := NewFeed(nil)
	sub := f.SubscribeLossless(1)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			f.Publish(&Event{Text: strconv.Itoa(i)})
		}
	}()

	for i := 0; i < 100; i++ {
		select {
		case ev := <-sub.Events:
			require.Equal(t, strconv.Itoa(i), ev.Text)
		case <-time.After(2 * time.Second):
			t.Fatalf("event %d not delivered", i)
		}
	}
	<-done
}

func TestFeedLosslessCloseReleasesPublisher(t *testing.T) {
	f := NewFeed(nil)
	sub := f.SubscribeLossless(1)
	f.Publish(&Event{Text: "fills the buffer"})

	published := make(chan struct{})
	go func() {
		defer close(published)
		f.Publish(&Event{Text: "waits"})
	}()

	select {
	case <-published:
		t.Fatal("publish returned while the lossless buffer was full")
	case <-time.After(50 * time.Millisecond):
	}

	sub.Close()
	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("close did not release the waiting publisher")
	}
	assert.Zero(t, f.Subscribers())
}

func TestFeedSubscriptionClose(t *testing.T) {
	f := NewFeed(nil)
	sub := f.Subscribe(1)
	sub.Close()
	sub.Close()

	assert.Zero(t, f.Subscribers())
	_, open := <-sub.Events
	assert.False(t, open)
	f.Publish(&Event{Text: "after close"})
}

func TestFeedConcurrentPublishersKeepOrderPerSubscriber(t *testing.T) {
	f := NewFeed(nil)
	a := f.Subscribe(1000)
	b := f.Subscribe(1000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				f.Publish(&Event{User: string(rune('a' + i))})
			}
		}(i)
	}
	wg.Wait()

	ea, eb := drain(a), drain(b)
	require.Len(t, ea, 500)
	for i := range ea {
		assert.Same(t, ea[i], eb[i])
	}
}

func TestSerializedSink(t *testing.T) {
	var (
		mu     sync.Mutex
		active int
		seen   int
	)
	sink := Serialized(func(*Event) {
		mu.Lock()
		active++
		overlap := active > 1
		mu.Unlock()
		assert.False(t, overlap)
		mu.Lock()
		active--
		seen++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.Publish(&Event{})
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, seen)
}
