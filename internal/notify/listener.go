package notify

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mnemohq/mnemo/internal/domain"
	"go.uber.org/zap"
)

// Channels the database publishes row-change payloads on.
var listenChannels = []string{"memory_changes", "project_changes", "task_changes", "person_changes"}

// Listener subscribes to the database notification channels on a dedicated
// connection and routes payloads into the hub by tenant.
type Listener struct {
	db     *pgxpool.Pool
	hub    *Hub
	logger *zap.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewListener(db *pgxpool.Pool, hub *Hub, logger *zap.Logger) *Listener {
	return &Listener{
		db:     db,
		hub:    hub,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start runs the listen loop in a background goroutine, reconnecting with a
// short delay when the connection drops.
func (l *Listener) Start() {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.logger.Info("change listener started", zap.Strings("channels", listenChannels))

		for {
			select {
			case <-l.stopCh:
				l.logger.Info("change listener stopped")
				return
			default:
			}

			if err := l.listen(); err != nil {
				l.logger.Warn("change listener connection lost", zap.Error(err))
			}

			select {
			case <-l.stopCh:
				l.logger.Info("change listener stopped")
				return
			case <-time.After(2 * time.Second):
			}
		}
	}()
}

// Stop terminates the listen loop.
func (l *Listener) Stop() {
	close(l.stopCh)
	l.wg.Wait()
}

func (l *Listener) listen() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel the blocking wait when Stop is called.
	go func() {
		select {
		case <-l.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	conn, err := l.db.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	for _, channel := range listenChannels {
		if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
			return err
		}
	}

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.dispatch(notification.Channel, notification.Payload)
	}
}

func (l *Listener) dispatch(channel, payload string) {
	var event domain.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		l.logger.Warn("malformed change payload",
			zap.String("channel", channel),
			zap.Error(err))
		return
	}
	if strings.TrimSpace(event.UserID) == "" {
		l.logger.Warn("change payload missing userId", zap.String("channel", channel))
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	l.hub.Publish(event)
}
