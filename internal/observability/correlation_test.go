// ABOUTME: Tests for correlation ID extraction and middleware
// ABOUTME: Validates header passthrough, generation, and context plumbing

package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractOrGenerate(t *testing.T) {
	t.Parallel()

	t.Run("uses inbound header", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(CorrelationIDHeader, "req-42")

		if got := ExtractOrGenerate(r); got != "req-42" {
			t.Errorf("ExtractOrGenerate() = %q, want %q", got, "req-42")
		}
	})

	t.Run("generates when absent", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		if got := ExtractOrGenerate(r); got == "" {
			t.Error("ExtractOrGenerate() returned empty ID")
		}
	})
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	if got := FromContext(context.Background()); got != "" {
		t.Errorf("FromContext(empty) = %q, want empty", got)
	}

	ctx := WithCorrelationID(context.Background(), "abc")
	if got := FromContext(ctx); got != "abc" {
		t.Errorf("FromContext() = %q, want %q", got, "abc")
	}
}

func TestCorrelationMiddleware(t *testing.T) {
	t.Parallel()

	var seen CorrelationID
	h := CorrelationMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationIDHeader, "req-7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "req-7" {
		t.Errorf("handler saw correlation ID %q, want %q", seen, "req-7")
	}
	if got := rec.Header().Get(CorrelationIDHeader); got != "req-7" {
		t.Errorf("response header = %q, want %q", got, "req-7")
	}
}
