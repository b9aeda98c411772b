package server

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_SubscribeUnsubscribe(t *testing.T) {
	n := NewNotifier()

	ch := n.Subscribe()
	require.NotNil(t, ch)
	assert.Equal(t, 1, n.Listeners())

	n.Unsubscribe(ch)
	assert.Zero(t, n.Listeners())

	_, open := <-ch
	assert.False(t, open, "unsubscribed channel is closed")
}

func TestNotifier_Broadcast(t *testing.T) {
	n := NewNotifier()
	ch1 := n.Subscribe()
	ch2 := n.Subscribe()
	defer n.Unsubscribe(ch1)
	defer n.Unsubscribe(ch2)

	n.Broadcast(ReloadEvent{Path: "fixture.yaml"})

	for _, ch := range []chan ReloadEvent{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, "fixture.yaml", ev.Path)
		case <-time.After(100 * time.Millisecond):
			t.Error("listener did not receive broadcast")
		}
	}
}

func TestNotifier_BroadcastNonBlocking(t *testing.T) {
	n := NewNotifier()
	ch := n.Subscribe()
	defer n.Unsubscribe(ch)

	// Fill the channel buffer
	ch <- ReloadEvent{}

	done := make(chan struct{})
	go func() {
		n.Broadcast(ReloadEvent{Path: "late"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Error("Broadcast blocked on full channel")
	}
}

func TestNotifier_Concurrent(t *testing.T) {
	n := NewNotifier()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := n.Subscribe()
			n.Broadcast(ReloadEvent{})
			n.Unsubscribe(ch)
		}()
	}
	wg.Wait()

	assert.Zero(t, n.Listeners())
}
