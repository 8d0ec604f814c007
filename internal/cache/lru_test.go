package cache

import (
	"fmt"
	"testing"
)

func TestCache_SetGet(t *testing.T) {
	c := New(4)
	c.Set("hello", []byte{1, 2, 3})
	got, ok := c.Get("hello")
	if !ok {
		t.Fatal("expected hit")
	}
	if len(got) != 3 || got[0] != 1 {
		t.Errorf("got %v", got)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss")
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New(3)
	c.Set("a", []byte("a"))
	c.Set("b", []byte("b"))
	c.Set("c", []byte("c"))

	// Touch "a" so "b" becomes the oldest.
	c.Get("a")
	c.Set("d", []byte("d"))

	if c.Has("b") {
		t.Error("expected b evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if !c.Has(k) {
			t.Errorf("expected %s present", k)
		}
	}
	if c.Len() != 3 {
		t.Errorf("len = %d, want 3", c.Len())
	}
}

func TestCache_CapacityPlusOne(t *testing.T) {
	c := New(5)
	for i := 0; i < 6; i++ {
		c.Set(fmt.Sprintf("k%d", i), []byte{byte(i)})
	}
	if c.Has("k0") {
		t.Error("expected k0 evicted after capacity+1 inserts")
	}
	if c.Len() != 5 {
		t.Errorf("len = %d, want 5", c.Len())
	}
}

func TestCache_UpdateRefreshesRecency(t *testing.T) {
	c := New(2)
	c.Set("a", []byte("a"))
	c.Set("b", []byte("b"))
	c.Set("a", []byte("a2")) // refresh a
	c.Set("c", []byte("c"))  // evicts b

	if c.Has("b") {
		t.Error("expected b evicted")
	}
	got, ok := c.Get("a")
	if !ok || string(got) != "a2" {
		t.Errorf("a = %q, %v", got, ok)
	}
}

func TestCache_Clear(t *testing.T) {
	c := New(3)
	c.Set("a", []byte("a"))
	c.Set("b", []byte("b"))
	c.Clear()
	if c.Len() != 0 || c.Has("a") || c.Has("b") {
		t.Error("expected empty cache after Clear")
	}
	// Still usable after clear.
	c.Set("x", []byte("x"))
	if !c.Has("x") {
		t.Error("expected x present after re-insert")
	}
}

func TestCache_OnEvict(t *testing.T) {
	var evicted []string
	c := New(1)
	c.OnEvict = func(key string) { evicted = append(evicted, key) }
	c.Set("a", []byte("a"))
	c.Set("b", []byte("b"))
	if len(evicted) != 1 || evicted[0] != "a" {
		t.Errorf("evicted = %v, want [a]", evicted)
	}
}
