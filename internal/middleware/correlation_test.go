package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrelationID(t *testing.T) {
	var seen string
	handler := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "unknown", seen)
	assert.Equal(t, seen, w.Header().Get(CorrelationHeader))
}

func TestCorrelationID_PropagatesHeader(t *testing.T) {
	var seen string
	handler := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(CorrelationHeader, "abc-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", w.Header().Get(CorrelationHeader))
}

func TestContextIDs(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "unknown", GetCorrelationID(ctx))
	assert.Equal(t, "", GetGenerationID(ctx))

	ctx = WithGenerationID(WithCorrelationID(ctx, "c1"), "g1")
	assert.Equal(t, "c1", GetCorrelationID(ctx))
	assert.Equal(t, "g1", GetGenerationID(ctx))
}
