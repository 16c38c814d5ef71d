package cache

import (
	"testing"
	"time"
)

func TestLRUEvictsOldest(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("a should be cached")
	}
	c.Set("c", 3) // evicts b, the least recently used
	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Fatalf("c should be cached")
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	c.Set("k", "v")
	c.Set("j", "w")

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expired entry returned")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("expected 1 cleaned entry, got %d", n)
	}
	st := c.Stats()
	if st.Size != 0 || st.Misses != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestLRUPurgeAndJanitor(t *testing.T) {
	c := NewLRUCache[int](10, time.Nanosecond)
	c.Set("a", 1)
	c.Set("b", 2)
	time.Sleep(time.Millisecond)
	j := NewJanitor(nil)
	j.Register(c)
	if n := j.Sweep(); n != 2 {
		t.Fatalf("expected janitor to remove 2 entries, got %d", n)
	}
	c2 := NewLRUCache[int](10, time.Minute)
	c2.Set("a", 1)
	c2.Purge()
	if c2.Size() != 0 {
		t.Fatalf("purge should empty the cache")
	}
}
