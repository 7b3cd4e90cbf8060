package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/haven/pkg/contextkeys"
	"github.com/platinummonkey/haven/pkg/observability"
	"github.com/platinummonkey/haven/pkg/storage/postgres"
)

func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 5,
		WindowDuration:    time.Minute,
		BurstSize:         0,
	})

	for i := 0; i < 5; i++ {
		if !limiter.Allow("client-1") {
			t.Fatalf("Request %d should be allowed", i+1)
		}
	}
	if limiter.Allow("client-1") {
		t.Error("Request over the limit should be denied")
	}

	// Independent keys
	if !limiter.Allow("client-2") {
		t.Error("Other clients should not share the bucket")
	}
}

func TestRateLimitMiddleware_KeysByUserThenIP(t *testing.T) {
	m := &RateLimitMiddleware{
		userLimiter: NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}),
		anonLimiter: NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}),
	}
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	// Anonymous: limit of 1 per IP
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("First anonymous request should pass, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Second anonymous request should be limited, got %d", rec.Code)
	}

	// Authenticated requests use the per-user bucket
	authed := req.WithContext(contextkeys.WithUserID(context.Background(), "user-1"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authed)
	if rec.Code != http.StatusOK {
		t.Errorf("Authenticated request should use its own bucket, got %d", rec.Code)
	}
}

func TestDistributedRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := postgres.NewRedisClientFromExisting(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{
		RequestsPerWindow: 3,
		WindowDuration:    time.Minute,
	}, "")

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "client-1")
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !allowed {
			t.Fatalf("Request %d should be allowed", i+1)
		}
	}

	allowed, err := limiter.Allow(ctx, "client-1")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if allowed {
		t.Error("Request over the limit should be denied")
	}

	if err := limiter.Reset(ctx, "client-1"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if allowed, _ := limiter.Allow(ctx, "client-1"); !allowed {
		t.Error("Request after reset should be allowed")
	}
}

func TestDistributedRateLimiter_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := postgres.NewRedisClientFromExisting(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	limiter := NewDistributedRateLimiter(client, nil, "")

	// Take Redis down, requests must still flow
	mr.Close()

	allowed, err := limiter.Allow(context.Background(), "client-1")
	if err == nil {
		t.Error("Expected an error with Redis down")
	}
	if !allowed {
		t.Error("Limiter should fail open when Redis is unavailable")
	}
}

func TestDistributedRateLimitMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	client := postgres.NewRedisClientFromExisting(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)

	m := NewDistributedRateLimitMiddleware(client, logger)
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	for i := 0; i < DefaultRateLimitConfig().RequestsPerWindow; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Request %d should pass, got %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 over the limit, got %d", rec.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var got string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = contextkeys.RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if got == "" {
		t.Error("Expected a generated request ID in context")
	}
	if rec.Header().Get(RequestIDHeader) != got {
		t.Error("Response header should echo the request ID")
	}

	// Client-supplied IDs are honored
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got != "req-123" {
		t.Errorf("Expected client request ID to be kept, got %q", got)
	}
}
