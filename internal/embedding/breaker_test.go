package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/mnemohq/mnemo/internal/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type flakyProvider struct {
	err   error
	calls int
}

func (f *flakyProvider) Embed(ctx context.Context, text string, dim int) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return make([]float32, dim), nil
}

func TestBreakerProvider_PassThrough(t *testing.T) {
	inner := &flakyProvider{}
	p := NewBreakerProvider(inner, zap.NewNop())

	vec, err := p.Embed(context.Background(), "hello", domain.RoutingDim)
	assert.NoError(t, err)
	assert.Len(t, vec, domain.RoutingDim)
	assert.Equal(t, 1, inner.calls)
}

func TestBreakerProvider_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyProvider{err: errors.New("backend down")}
	p := NewBreakerProvider(inner, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := p.Embed(ctx, "hello", domain.RoutingDim)
		assert.Error(t, err)
	}
	callsWhenTripped := inner.calls

	// The open breaker fails fast without reaching the backend.
	_, err := p.Embed(ctx, "hello", domain.RoutingDim)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Equal(t, callsWhenTripped, inner.calls)
}
