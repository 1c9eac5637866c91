package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mnemohq/mnemo/internal/api/middleware"
	"github.com/mnemohq/mnemo/internal/domain"
	"github.com/mnemohq/mnemo/internal/notify"
	"go.uber.org/zap"
)

const (
	pingInterval = 30 * time.Second
	idleTimeout  = 5 * time.Minute
)

type EventHandler struct {
	hub     *notify.Hub
	logger  *zap.Logger
	maxIdle time.Duration
}

func NewEventHandler(hub *notify.Hub, logger *zap.Logger) *EventHandler {
	return &EventHandler{hub: hub, logger: logger, maxIdle: idleTimeout}
}

// Stream serves the tenant's change feed over server-sent events. Each event
// is one "data:" frame; a comment ping goes out every 30 seconds to keep
// intermediaries from closing the connection. Because the ping also keeps an
// abandoned connection looking alive, a stream that delivers no events for
// five minutes is closed server-side. The stream ends on client disconnect,
// idle expiry, or hub shutdown.
func (h *EventHandler) Stream(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := h.hub.Subscribe(tenant.ID.String())
	defer sub.Close()

	h.logger.Debug("event stream opened", zap.String("tenant_id", tenant.ID.String()))

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	idle := time.NewTimer(h.maxIdle)
	defer idle.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-idle.C:
			h.logger.Debug("event stream idle, closing", zap.String("tenant_id", tenant.ID.String()))
			return
		case <-ticker.C:
			fmt.Fprint(w, ":ping\n\n")
			flusher.Flush()
		case event, open := <-sub.Events:
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn("failed to encode change event", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			if event.Type == domain.EventServerShutdown {
				return
			}
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(h.maxIdle)
		}
	}
}
