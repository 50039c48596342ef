package cache

import (
	"testing"
	"time"
)

func TestGetSet(t *testing.T) {
	c := New[int](time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("hit on missing key")
	}

	c.Set("a", 42)
	v, ok := c.Get("a")
	if !ok || v != 42 {
		t.Errorf("Get = (%d, %v), want (42, true)", v, ok)
	}
}

func TestExpiry(t *testing.T) {
	c := New[string](time.Minute)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	if _, ok := c.Get("k"); !ok {
		t.Fatal("miss before expiry")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Error("hit after expiry")
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d after expiry", c.Len())
	}
}

func TestSetRefreshesTTL(t *testing.T) {
	c := New[string](time.Minute)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", "v1")
	now = now.Add(50 * time.Second)
	c.Set("k", "v2")
	now = now.Add(30 * time.Second) // 80s after first set, 30s after second

	v, ok := c.Get("k")
	if !ok || v != "v2" {
		t.Errorf("Get = (%q, %v), want (v2, true)", v, ok)
	}
}

func TestInvalidateAndClear(t *testing.T) {
	c := New[int](time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Invalidate("a")
	if _, ok := c.Get("a"); ok {
		t.Error("hit after Invalidate")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("Invalidate removed the wrong key")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len = %d after Clear", c.Len())
	}
}
