package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mnemohq/mnemo/internal/domain"
)

type contextKey string

const tenantContextKey contextKey = "tenant"

// tokenCacheTTL bounds how long a resolved token is trusted before the
// database is consulted again.
const tokenCacheTTL = time.Minute

func TenantFromContext(ctx context.Context) *domain.Tenant {
	t, _ := ctx.Value(tenantContextKey).(*domain.Tenant)
	return t
}

// ContextWithTenant attaches an authenticated tenant to the context.
func ContextWithTenant(ctx context.Context, t *domain.Tenant) context.Context {
	return context.WithValue(ctx, tenantContextKey, t)
}

type cachedTenant struct {
	tenant  *domain.Tenant
	expires time.Time
}

// BearerAuth resolves the Bearer token to a tenant via its sha256 hash.
// Successful lookups are cached briefly so hot clients do not hit the
// tenants table on every request.
func BearerAuth(tenants domain.TenantStore) func(http.Handler) http.Handler {
	var (
		mu    sync.RWMutex
		cache = make(map[string]cachedTenant)
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeAuthError(w)
				return
			}

			hash := HashToken(parts[1])

			mu.RLock()
			entry, ok := cache[hash]
			mu.RUnlock()
			if !ok || time.Now().After(entry.expires) {
				tenant, err := tenants.GetByTokenHash(r.Context(), hash)
				if err != nil {
					writeAuthError(w)
					return
				}
				entry = cachedTenant{tenant: tenant, expires: time.Now().Add(tokenCacheTTL)}
				mu.Lock()
				cache[hash] = entry
				mu.Unlock()
			}

			ctx := ContextWithTenant(r.Context(), entry.tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// HashToken returns the hex sha256 of a bearer token, the form stored in the
// tenants table.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// writeAuthError emits the same body regardless of why authentication
// failed, matching the not-found shape so the response does not reveal
// whether a token exists.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
}
