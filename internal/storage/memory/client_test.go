package memory

import (
	"context"
	"testing"
)

func TestGrantRoundTrip(t *testing.T) {
	c := New(0)
	ctx := context.Background()

	if _, ok, _ := c.GetGrant(ctx, 1, 2); ok {
		t.Fatal("empty cache returned a grant")
	}
	if err := c.SetGrant(ctx, 1, 2, 10); err != nil {
		t.Fatal(err)
	}
	chatID, ok, err := c.GetGrant(ctx, 1, 2)
	if err != nil || !ok || chatID != 10 {
		t.Fatalf("GetGrant = (%d, %v, %v), want (10, true, nil)", chatID, ok, err)
	}
	// Грант привязан к паре (activity, user).
	if _, ok, _ := c.GetGrant(ctx, 1, 3); ok {
		t.Error("grant leaked to another user")
	}
	if _, ok, _ := c.GetGrant(ctx, 2, 2); ok {
		t.Error("grant leaked to another activity")
	}
}

func TestAllowEventLimit(t *testing.T) {
	c := New(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := c.AllowEvent(ctx, 7)
		if err != nil || !allowed {
			t.Fatalf("event %d: (%v, %v), want allowed", i, allowed, err)
		}
	}
	if allowed, _ := c.AllowEvent(ctx, 7); allowed {
		t.Error("4th event allowed, limit is 3")
	}
	// Лимит на пользователя, другой не задет.
	if allowed, _ := c.AllowEvent(ctx, 8); !allowed {
		t.Error("another user blocked")
	}
}

func TestAllowEventDisabled(t *testing.T) {
	c := New(0)
	for i := 0; i < 100; i++ {
		if allowed, _ := c.AllowEvent(context.Background(), 1); !allowed {
			t.Fatal("limit disabled but event blocked")
		}
	}
}
