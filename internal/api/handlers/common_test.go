package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mnemohq/mnemo/internal/domain"
)

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid", fmt.Errorf("%w: query is required", domain.ErrInvalid), http.StatusBadRequest},
		{"not found", fmt.Errorf("%w: memory x", domain.ErrNotFound), http.StatusNotFound},
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized},
		{"conflict", fmt.Errorf("%w: project p1", domain.ErrConflict), http.StatusConflict},
		{"embedding down", domain.ErrEmbeddingUnavailable, http.StatusServiceUnavailable},
		{"store down", fmt.Errorf("%w: timeout", domain.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{"deadline", domain.ErrDeadlineExceeded, http.StatusGatewayTimeout},
		{"context deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, tt.err)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("content type = %q", ct)
			}
		})
	}
}

func TestWriteServiceError_DoesNotLeakInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, errors.New("pq: connection refused at 10.0.0.5"))
	if strings.Contains(rec.Body.String(), "10.0.0.5") {
		t.Fatalf("response leaked internals: %s", rec.Body.String())
	}
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		url  string
		want int
	}{
		{"/x?limit=25", 25},
		{"/x", 10},
		{"/x?limit=abc", 10},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, tt.url, nil)
		if got := queryInt(r, "limit", 10); got != tt.want {
			t.Fatalf("queryInt(%q) = %d, want %d", tt.url, got, tt.want)
		}
	}
}
