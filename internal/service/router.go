package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mnemohq/mnemo/internal/domain"
	"go.uber.org/zap"
)

const (
	// routeSimilarityFloor is the cosine similarity at which an index row
	// contributes to its module's routing confidence.
	routeSimilarityFloor = 0.7
	defaultRouteTopK     = 3
	routingCacheSize     = 4096
)

// Router decides which modules to probe for a query. Decisions are cached
// per (tenant, normalized query) with a TTL and invalidated on any index
// write for that tenant.
type Router struct {
	index    domain.IndexStore
	embedder domain.EmbeddingProvider
	cache    *expirable.LRU[string, domain.RoutingDecision]
	logger   *zap.Logger
}

func NewRouter(index domain.IndexStore, embedder domain.EmbeddingProvider, ttl time.Duration, logger *zap.Logger) *Router {
	return &Router{
		index:    index,
		embedder: embedder,
		cache:    expirable.NewLRU[string, domain.RoutingDecision](routingCacheSize, nil, ttl),
		logger:   logger,
	}
}

// RouteQuery returns the top modules to consult, confidence descending with
// ties broken by module id.
func (r *Router) RouteQuery(ctx context.Context, tenantID uuid.UUID, query string, topK int) ([]domain.RouteMatch, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalid)
	}
	if topK <= 0 {
		topK = defaultRouteTopK
	}

	key := cacheKey(tenantID, query)
	if decision, ok := r.cache.Get(key); ok {
		return topMatches(decision.Matches, topK), nil
	}

	embedding, err := r.embedder.Embed(ctx, normalizeQuery(query), domain.RoutingDim)
	if err != nil {
		return nil, err
	}

	rows, err := r.index.RoutingRows(ctx, tenantID, embedding)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	matches := aggregateRouting(rows, query)
	r.cache.Add(key, domain.RoutingDecision{Matches: matches, ComputedAt: time.Now()})
	return topMatches(matches, topK), nil
}

// InvalidateTenant drops every cached decision for the tenant. Called on any
// index write.
func (r *Router) InvalidateTenant(tenantID uuid.UUID) {
	prefix := tenantID.String() + "|"
	for _, key := range r.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			r.cache.Remove(key)
		}
	}
}

func cacheKey(tenantID uuid.UUID, query string) string {
	return tenantID.String() + "|" + normalizeQuery(query)
}

func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// aggregateRouting folds index rows into per-module confidence. A row
// contributes when its cosine similarity clears the floor or any of its
// keywords appears in the query.
func aggregateRouting(rows []domain.RoutingRow, query string) []domain.RouteMatch {
	lowerQuery := normalizeQuery(query)

	type acc struct {
		sum      float64
		count    int
		keywords map[string]struct{}
	}
	perModule := make(map[string]*acc)

	for _, row := range rows {
		var matched []string
		for _, kw := range row.Keywords {
			if kw != "" && strings.Contains(lowerQuery, strings.ToLower(kw)) {
				matched = append(matched, strings.ToLower(kw))
			}
		}
		if row.Similarity < routeSimilarityFloor && len(matched) == 0 {
			continue
		}

		a := perModule[row.ModuleID]
		if a == nil {
			a = &acc{keywords: make(map[string]struct{})}
			perModule[row.ModuleID] = a
		}
		a.sum += float64(row.Similarity)
		a.count++
		for _, kw := range matched {
			a.keywords[kw] = struct{}{}
		}
	}

	matches := make([]domain.RouteMatch, 0, len(perModule))
	for moduleID, a := range perModule {
		keywords := make([]string, 0, len(a.keywords))
		for kw := range a.keywords {
			keywords = append(keywords, kw)
		}
		sort.Strings(keywords)
		matches = append(matches, domain.RouteMatch{
			ModuleID:        moduleID,
			Confidence:      float32(a.sum / float64(a.count)),
			MatchedKeywords: keywords,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].ModuleID < matches[j].ModuleID
	})
	return matches
}

func topMatches(matches []domain.RouteMatch, topK int) []domain.RouteMatch {
	if len(matches) > topK {
		matches = matches[:topK]
	}
	out := make([]domain.RouteMatch, len(matches))
	copy(out, matches)
	return out
}
