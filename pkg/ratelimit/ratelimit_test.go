package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	// burst of 2 means two immediate requests pass
	limiter := NewLimiter(10, 2)

	if !limiter.Allow("test-key") {
		t.Error("First request should be allowed")
	}
	if !limiter.Allow("test-key") {
		t.Error("Second request should be allowed")
	}
	if limiter.Allow("test-key") {
		t.Error("Third request should be rate limited")
	}

	// 10 req/s = 100ms per token
	time.Sleep(150 * time.Millisecond)

	if !limiter.Allow("test-key") {
		t.Error("Request after waiting should be allowed")
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	limiter := NewLimiter(1, 1)

	if !limiter.Allow("a") {
		t.Error("first request for a should be allowed")
	}
	if !limiter.Allow("b") {
		t.Error("first request for b should be allowed")
	}
	if limiter.Allow("a") {
		t.Error("second request for a should be limited")
	}
}

func TestMiddleware(t *testing.T) {
	limiter := NewLimiter(10, 2)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := limiter.Middleware(func(r *http.Request) string { return "test-key" })(handler)

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		wrapped.ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))
		if rr.Code != http.StatusOK {
			t.Errorf("request %d should succeed, got status %d", i+1, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("third request should be rate limited, got status %d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Errorf("expected JSON error body, got %q", rr.Header().Get("Content-Type"))
	}
}

func TestCleanupOldLimiters(t *testing.T) {
	limiter := NewLimiter(1, 1)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	limiter.Allow("old")
	now = now.Add(time.Hour)
	limiter.Allow("fresh")

	if removed := limiter.CleanupOldLimiters(30 * time.Minute); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if limiter.Size() != 1 {
		t.Errorf("Size() = %d, want 1", limiter.Size())
	}
}

func TestIPKeyFunc(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:41234"
	if got := IPKeyFunc(req); got != "10.0.0.5" {
		t.Errorf("IPKeyFunc() = %q, want 10.0.0.5", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := IPKeyFunc(req); got != "203.0.113.7" {
		t.Errorf("IPKeyFunc() = %q, want 203.0.113.7", got)
	}
}
