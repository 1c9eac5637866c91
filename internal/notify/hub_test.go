package notify

import (
	"testing"
	"time"

	"github.com/mnemohq/mnemo/internal/domain"
	"go.uber.org/zap"
)

func testEvent(userID, eventType string) domain.ChangeEvent {
	return domain.ChangeEvent{
		UserID:    userID,
		Type:      eventType,
		Data:      map[string]any{"memoryId": "m1"},
		Timestamp: time.Now().UTC(),
	}
}

func TestHub_PublishReachesTenantSubscribers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	a := hub.Subscribe("tenant-a")
	defer a.Close()
	b := hub.Subscribe("tenant-b")
	defer b.Close()

	hub.Publish(testEvent("tenant-a", domain.EventMemoryCreated))

	select {
	case ev := <-a.Events:
		if ev.Type != domain.EventMemoryCreated {
			t.Fatalf("unexpected event type %q", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("expected subscriber a to receive the event")
	}

	select {
	case ev := <-b.Events:
		t.Fatalf("tenant-b must not see tenant-a events, got %v", ev)
	default:
	}
}

func TestHub_MultipleSubscribersEachReceive(t *testing.T) {
	hub := NewHub(zap.NewNop())
	first := hub.Subscribe("tenant-a")
	defer first.Close()
	second := hub.Subscribe("tenant-a")
	defer second.Close()

	hub.Publish(testEvent("tenant-a", domain.EventMemoryUpdated))

	for _, sub := range []*Subscription{first, second} {
		select {
		case <-sub.Events:
		case <-time.After(time.Second):
			t.Fatal("expected every subscriber to receive the event")
		}
	}
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(zap.NewNop())
	sub := hub.Subscribe("tenant-a")
	defer sub.Close()

	// Publish past the buffer without reading; none of these may block.
	for i := 0; i < subscriberBuffer+5; i++ {
		hub.Publish(testEvent("tenant-a", domain.EventMemoryCreated))
	}

	received := 0
	for {
		select {
		case <-sub.Events:
			received++
			continue
		default:
		}
		break
	}
	if received != subscriberBuffer {
		t.Fatalf("expected exactly %d buffered events, got %d", subscriberBuffer, received)
	}
}

func TestHub_CloseDetaches(t *testing.T) {
	hub := NewHub(zap.NewNop())
	sub := hub.Subscribe("tenant-a")

	if got := hub.SubscriberCount("tenant-a"); got != 1 {
		t.Fatalf("expected 1 subscriber, got %d", got)
	}
	sub.Close()
	if got := hub.SubscriberCount("tenant-a"); got != 0 {
		t.Fatalf("expected 0 subscribers, got %d", got)
	}
	if _, open := <-sub.Events; open {
		t.Fatal("expected channel to be closed")
	}
	// Closing twice is harmless.
	sub.Close()

	// Publishing to a tenant with no subscribers is a no-op.
	hub.Publish(testEvent("tenant-a", domain.EventMemoryDeleted))
}

func TestHub_Shutdown(t *testing.T) {
	hub := NewHub(zap.NewNop())
	a := hub.Subscribe("tenant-a")
	b := hub.Subscribe("tenant-b")

	hub.Shutdown(domain.ChangeEvent{Type: domain.EventServerShutdown, Timestamp: time.Now().UTC()})

	for _, sub := range []*Subscription{a, b} {
		ev, open := <-sub.Events
		if !open {
			t.Fatal("expected a terminal event before close")
		}
		if ev.Type != domain.EventServerShutdown {
			t.Fatalf("expected shutdown event, got %q", ev.Type)
		}
		// The shutdown record names the subscriber's own tenant.
		if ev.UserID == "" {
			t.Fatal("expected the tenant id to be filled in")
		}
		if _, open := <-sub.Events; open {
			t.Fatal("expected channel closed after the terminal event")
		}
	}

	if got := hub.SubscriberCount("tenant-a"); got != 0 {
		t.Fatalf("expected no subscribers after shutdown, got %d", got)
	}
}
