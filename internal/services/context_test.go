package services_test

import (
	"context"
	"testing"

	"leadflow/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithTaskID(ctx, 42)
	ctx = services.WithCustomerID(ctx, 7)
	ctx = services.WithRole(ctx, "content")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.TaskIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected task id: %v %v", id, ok)
	}
	if id, ok := services.CustomerIDFromContext(ctx); !ok || id != 7 {
		t.Fatalf("unexpected customer id: %v %v", id, ok)
	}
	if role, ok := services.RoleFromContext(ctx); !ok || role != "content" {
		t.Fatalf("unexpected role: %v %v", role, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestRoleBlankPreservesContext(t *testing.T) {
	ctx := services.WithRole(context.Background(), "")
	if _, ok := services.RoleFromContext(ctx); ok {
		t.Fatal("expected no role value")
	}
}
