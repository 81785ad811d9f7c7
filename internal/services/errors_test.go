package services_test

import (
	"errors"
	"strings"
	"testing"

	"leadflow/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransient, "dispatch", "claim", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"dispatch", "claim", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"plain", errors.New("network down"), true},
		{"transient", services.Wrap(services.ErrTransient, "worker", "call", "timeout", nil), true},
		{"stale", services.Wrap(services.ErrStaleClaim, "dispatch", "reclaim", "expired", nil), true},
		{"permanent", services.Wrap(services.ErrPermanent, "worker", "call", "rejected", nil), false},
		{"invalid", services.Invalid("dispatch", "enqueue", "bad priority"), false},
	}
	for _, tc := range cases {
		if got := services.IsRetryable(tc.err); got != tc.want {
			t.Fatalf("%s: expected retryable=%v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestKindLabels(t *testing.T) {
	if got := services.Kind(services.Wrap(services.ErrStaleClaim, "", "", "", nil)); got != "stale_claim" {
		t.Fatalf("unexpected kind %q", got)
	}
	if got := services.Kind(errors.New("x")); got != "transient" {
		t.Fatalf("unexpected kind %q", got)
	}
	if got := services.Kind(nil); got != "" {
		t.Fatalf("expected empty kind for nil, got %q", got)
	}
}
