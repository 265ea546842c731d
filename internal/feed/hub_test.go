package feed

import "testing"

func TestHubBroadcast(t *testing.T) {
	h := NewHub()

	a := h.Subscribe()
	b := h.Subscribe()
	if h.ClientCount() != 2 {
		t.Fatalf("ClientCount = %d, want 2", h.ClientCount())
	}

	h.Broadcast(Event{Name: "timers:update"})
	for _, ch := range []chan Event{a, b} {
		select {
		case ev := <-ch:
			if ev.Name != "timers:update" {
				t.Errorf("event = %+v", ev)
			}
		default:
			t.Error("subscriber missed broadcast")
		}
	}

	h.Unsubscribe(a)
	if h.ClientCount() != 1 {
		t.Errorf("ClientCount after unsubscribe = %d", h.ClientCount())
	}
	if _, open := <-a; open {
		t.Error("unsubscribed channel left open")
	}

	// Double unsubscribe is safe.
	h.Unsubscribe(a)
}

func TestHubSlowSubscriberDropsEvents(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()

	// Fill the buffer and then some; Broadcast must not block.
	for i := 0; i < 200; i++ {
		h.Broadcast(Event{Name: "combat:update"})
	}

	drained := 0
	for {
		select {
		case <-ch:
			drained++
			continue
		default:
		}
		break
	}
	if drained != cap(ch) {
		t.Errorf("drained %d events, want buffer size %d", drained, cap(ch))
	}
}
