package events

import (
	"testing"
	"time"
)

func receive(t *testing.T, sub Subscriber) Event {
	t.Helper()
	select {
	case e, ok := <-sub:
		if !ok {
			t.Fatal("subscriber closed")
		}
		return e
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for broadcast event")
	}
	return Event{}
}

func TestSubscriberCountTracksSubscriptions(t *testing.T) {
	base := SubscriberCount()
	subs := []Subscriber{Subscribe(), Subscribe()}
	if got := SubscriberCount(); got != base+2 {
		t.Fatalf("expected %d subscribers, got %d", base+2, got)
	}
	for i, s := range subs {
		Unsubscribe(s)
		if got := SubscriberCount(); got != base+1-i {
			t.Errorf("after %d unsubscribes: got %d", i+1, got)
		}
	}
}

func TestEverySubscriberSeesEmittedEvents(t *testing.T) {
	a, b := Subscribe(), Subscribe()
	defer Unsubscribe(a)
	defer Unsubscribe(b)

	Emit("info", "link.assigned", "", map[string]interface{}{"pos": "1,2,3", "target": "0,0,5"})

	for _, sub := range []Subscriber{a, b} {
		e := receive(t, sub)
		if e.Name != "link.assigned" || e.Fields["target"] != "0,0,5" {
			t.Errorf("unexpected event %+v", e)
		}
	}
}

func TestSlowSubscriberDoesNotBlockEmit(t *testing.T) {
	sub := Subscribe()
	defer Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			Emit("debug", "node.powered", "", nil)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emit blocked on a full subscriber")
	}
	if n := len(sub); n != cap(sub) {
		t.Errorf("subscriber buffer should be full, has %d of %d", n, cap(sub))
	}
}

func TestRecentEventsWindow(t *testing.T) {
	Clear()
	for i := 0; i < 10; i++ {
		Emit("info", "node.placed", "", map[string]interface{}{"i": i})
	}

	tests := []struct {
		n, wantLen, wantFirst int
	}{
		{5, 5, 5},
		{100, 10, 0},
		{0, 10, 0},
		{-1, 10, 0},
	}
	for _, tt := range tests {
		got := RecentEvents(tt.n)
		if len(got) != tt.wantLen {
			t.Errorf("RecentEvents(%d): %d events, want %d", tt.n, len(got), tt.wantLen)
			continue
		}
		if got[0].Fields["i"] != tt.wantFirst {
			t.Errorf("RecentEvents(%d): first i=%v, want %d", tt.n, got[0].Fields["i"], tt.wantFirst)
		}
	}
}

func TestUnsubscribeClosesOnce(t *testing.T) {
	sub := Subscribe()
	Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Error("expected channel to be closed after unsubscribe")
	}
	Unsubscribe(sub)
}

func TestCloseAllSubscribers(t *testing.T) {
	CloseAllSubscribers()
	subs := []Subscriber{Subscribe(), Subscribe(), Subscribe()}
	CloseAllSubscribers()
	for i, s := range subs {
		if _, ok := <-s; ok {
			t.Errorf("subscriber %d still open", i)
		}
	}
	if n := SubscriberCount(); n != 0 {
		t.Errorf("expected 0 subscribers, got %d", n)
	}
	// Unsubscribing after shutdown is a no-op.
	Unsubscribe(subs[0])
}
