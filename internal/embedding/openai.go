package embedding

import (
	"context"
	"fmt"

	"github.com/mnemohq/mnemo/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const model = openai.LargeEmbedding3

// OpenAIProvider produces embeddings via the OpenAI embeddings API. The
// requested dimension is passed through so the same model serves both the
// compressed routing vectors and the full vectors.
type OpenAIProvider struct {
	client *openai.Client
}

func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{client: openai.NewClient(apiKey)}
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string, dim int) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty embedding input", domain.ErrInvalid)
	}
	if !validDim(dim) {
		return nil, fmt.Errorf("%w: unsupported embedding dimension %d", domain.ErrInvalid, dim)
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      model,
		Dimensions: dim,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: embedding API returned no data", domain.ErrEmbeddingUnavailable)
	}

	vec := resp.Data[0].Embedding
	if len(vec) != dim {
		return nil, fmt.Errorf("%w: embedding API returned %d dims, want %d", domain.ErrEmbeddingUnavailable, len(vec), dim)
	}
	return normalize(vec), nil
}
