package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mnemohq/mnemo/internal/api/middleware"
	"github.com/mnemohq/mnemo/internal/domain"
	"github.com/mnemohq/mnemo/internal/notify"
)

// streamUntilDone runs Stream in a goroutine and returns a channel that
// closes when the handler exits.
func streamUntilDone(h *EventHandler, r *http.Request, w http.ResponseWriter) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		h.Stream(w, r)
		close(done)
	}()
	return done
}

func TestEventStream_ClosesAfterIdleTimeout(t *testing.T) {
	hub := notify.NewHub(zap.NewNop())
	h := NewEventHandler(hub, zap.NewNop())
	h.maxIdle = 50 * time.Millisecond

	tenant := &domain.Tenant{ID: uuid.New()}
	r := httptest.NewRequest(http.MethodGet, "/v1/events", nil)
	r = r.WithContext(middleware.ContextWithTenant(r.Context(), tenant))
	rec := httptest.NewRecorder()

	done := streamUntilDone(h, r, rec)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not close after the idle timeout")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if hub.SubscriberCount(tenant.ID.String()) != 0 {
		t.Fatal("subscription should be released on idle close")
	}
}

func TestEventStream_DeliversEventsBeforeIdleClose(t *testing.T) {
	hub := notify.NewHub(zap.NewNop())
	h := NewEventHandler(hub, zap.NewNop())
	h.maxIdle = 200 * time.Millisecond

	tenant := &domain.Tenant{ID: uuid.New()}
	r := httptest.NewRequest(http.MethodGet, "/v1/events", nil)
	r = r.WithContext(middleware.ContextWithTenant(r.Context(), tenant))
	rec := httptest.NewRecorder()

	done := streamUntilDone(h, r, rec)

	// Wait for the subscription before publishing.
	deadline := time.Now().Add(3 * time.Second)
	for hub.SubscriberCount(tenant.ID.String()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish(domain.ChangeEvent{
		UserID: tenant.ID.String(),
		Type:   domain.EventMemoryCreated,
		Data:   map[string]any{"module": "technical"},
	})

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not close after going idle")
	}

	body := rec.Body.String()
	if !strings.Contains(body, "data: ") || !strings.Contains(body, domain.EventMemoryCreated) {
		t.Fatalf("published event missing from stream: %q", body)
	}
}

func TestEventStream_RequiresTenant(t *testing.T) {
	hub := notify.NewHub(zap.NewNop())
	h := NewEventHandler(hub, zap.NewNop())

	rec := httptest.NewRecorder()
	h.Stream(rec, httptest.NewRequest(http.MethodGet, "/v1/events", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}
