package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/mnemohq/mnemo/internal/api/middleware"
	"github.com/mnemohq/mnemo/internal/domain"
)

type stubTenantStore struct {
	created *domain.Tenant
}

func (s *stubTenantStore) Create(ctx context.Context, t *domain.Tenant) error {
	t.ID = uuid.New()
	s.created = t
	return nil
}

func (s *stubTenantStore) GetByTokenHash(ctx context.Context, hash string) (*domain.Tenant, error) {
	return nil, domain.ErrNotFound
}

func (s *stubTenantStore) ListIDs(ctx context.Context) ([]uuid.UUID, error) { return nil, nil }

func TestTenantCreate_IssuesUUIDToken(t *testing.T) {
	store := &stubTenantStore{}
	h := NewTenantHandler(store)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/tenants", strings.NewReader(`{"name":"acme"}`))
	h.Create(rec, r)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	token, err := uuid.Parse(resp.Token)
	if err != nil {
		t.Fatalf("token %q is not a UUID: %v", resp.Token, err)
	}
	if token.Version() != 4 {
		t.Fatalf("token version = %d, want 4", token.Version())
	}
	if store.created == nil {
		t.Fatal("tenant was not persisted")
	}
	if store.created.TokenHash != middleware.HashToken(resp.Token) {
		t.Fatal("stored hash does not match the issued token")
	}
	if store.created.TokenHash == resp.Token {
		t.Fatal("token must not be stored in the clear")
	}
}

func TestTenantCreate_RequiresName(t *testing.T) {
	h := NewTenantHandler(&stubTenantStore{})

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/tenants", strings.NewReader(`{}`))
	h.Create(rec, r)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}
