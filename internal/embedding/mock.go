package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand"
	"strings"

	"github.com/mnemohq/mnemo/internal/domain"
)

// MockProvider generates deterministic unit vectors without network calls.
// The same (text, dim) always yields the same vector, and texts sharing
// tokens land closer together than unrelated texts, which is enough for
// similarity ordering in tests and local development.
type MockProvider struct{}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) Embed(_ context.Context, text string, dim int) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty embedding input", domain.ErrInvalid)
	}
	if !validDim(dim) {
		return nil, fmt.Errorf("%w: unsupported embedding dimension %d", domain.ErrInvalid, dim)
	}

	// Sum token vectors so overlapping tokens pull texts together.
	vec := make([]float32, dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		addTokenVector(vec, tok)
	}
	if allZero(vec) {
		addTokenVector(vec, text)
	}
	return normalize(vec), nil
}

func addTokenVector(vec []float32, token string) {
	sum := sha256.Sum256([]byte(token))
	seed := int64(binary.BigEndian.Uint64(sum[:8]))
	rng := rand.New(rand.NewSource(seed))
	for i := range vec {
		vec[i] += float32(rng.NormFloat64())
	}
}

func allZero(vec []float32) bool {
	for _, x := range vec {
		if x != 0 {
			return false
		}
	}
	return true
}
