package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mnemohq/mnemo/internal/domain"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerProvider wraps another provider with a circuit breaker so a failing
// embedding backend sheds load fast instead of tying up request deadlines.
type BreakerProvider struct {
	inner  domain.EmbeddingProvider
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

func NewBreakerProvider(inner domain.EmbeddingProvider, logger *zap.Logger) *BreakerProvider {
	b := &BreakerProvider{inner: inner, logger: logger}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "embedding",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("embedding breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return b
}

func (b *BreakerProvider) Embed(ctx context.Context, text string, dim int) ([]float32, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.inner.Embed(ctx, text, dim)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
		}
		return nil, err
	}
	return out.([]float32), nil
}
