package embedding

import (
	"fmt"
	"math"

	"github.com/mnemohq/mnemo/internal/domain"
)

// Provider constants
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// NewProvider creates an embedding provider based on the provider name.
// Returns an error if the provider is unknown or the API key is empty
// (except for mock).
func NewProvider(provider, apiKey string) (domain.EmbeddingProvider, error) {
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI embedding provider")
		}
		return NewOpenAIProvider(apiKey), nil

	case ProviderMock:
		return NewMockProvider(), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (valid options: openai, mock)", provider)
	}
}

// normalize scales v to unit L2 norm in place and returns it.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}

func validDim(dim int) bool {
	return dim == domain.RoutingDim || dim == domain.FullDim
}
