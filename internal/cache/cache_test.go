package cache

import (
	"testing"
	"time"
)

func TestTTLCache_SetGet_NoTTL(t *testing.T) {
	c := New[string, int]()
	c.Set("a", 1, 0)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected hit with value 1, got ok=%v v=%v", ok, v)
	}
	if c.Len() != 1 {
		t.Fatalf("expected Len=1, got %d", c.Len())
	}
}

func TestTTLCache_Expiry(t *testing.T) {
	c := New[string, string]()

	// Freeze time via now indirection
	base := time.Now()
	now = func() time.Time { return base }
	t.Cleanup(func() { now = time.Now })

	c.Set("k", "v", time.Second)
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("expected hit before expiry")
	}

	// advance time beyond TTL
	base = base.Add(2 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected miss after expiry")
	}
	c.PurgeExpired()
	if c.Len() != 0 {
		t.Fatalf("expected Len=0 after purge, got %d", c.Len())
	}
}

func TestTTLCache_Delete(t *testing.T) {
	c := New[int, int]()
	c.Set(1, 10, 0)
	c.Set(2, 20, 0)
	c.Delete(1)
	if _, ok := c.Get(1); ok {
		t.Fatalf("expected key 1 to be deleted")
	}
	if c.Len() != 1 {
		t.Fatalf("expected Len=1, got %d", c.Len())
	}
}
