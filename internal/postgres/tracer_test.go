package postgres

import (
	"context"
	"testing"
	"time"
)

func TestQueryObserver_SetAndGet(t *testing.T) {
	defer SetQueryObserver(nil)

	var calls int
	SetQueryObserver(QueryObserverFunc(func(_ context.Context, method, route, outcome string, _ time.Duration) {
		calls++
		if method != "POST" {
			t.Errorf("method = %q, want POST", method)
		}
		if route != "/api/v1/sessions" {
			t.Errorf("route = %q, want /api/v1/sessions", route)
		}
		if outcome != "ok" {
			t.Errorf("outcome = %q, want ok", outcome)
		}
	}))

	obs := getQueryObserver()
	if obs == nil {
		t.Fatal("expected non-nil observer after SetQueryObserver")
	}
	obs.ObserveQuery(context.Background(), "POST", "/api/v1/sessions", "ok", time.Millisecond)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}

	SetQueryObserver(nil)
	if getQueryObserver() != nil {
		t.Error("expected nil observer after SetQueryObserver(nil)")
	}
}

func TestWithHTTPMethod_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := WithHTTPMethod(context.Background(), "DELETE")
	if got := httpMethodFromContext(ctx); got != "DELETE" {
		t.Errorf("httpMethodFromContext = %q, want DELETE", got)
	}

	// Empty method leaves the context untouched.
	ctx2 := WithHTTPMethod(context.Background(), "")
	if got := httpMethodFromContext(ctx2); got != "" {
		t.Errorf("httpMethodFromContext = %q, want empty", got)
	}
}
