package service

import (
	"testing"
	"time"

	"mediagate/internal/video"
)

func TestInfoCache_GetSet(t *testing.T) {
	c := NewInfoCache(10, time.Minute)

	c.Set("abc", &video.Info{ID: "abc", Title: "test"})
	got, ok := c.Get("abc")
	if !ok {
		t.Fatal("expected entry to exist")
	}
	if got.Title != "test" {
		t.Errorf("expected title 'test', got %s", got.Title)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown id")
	}

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("expected 1 hit 1 miss, got %d/%d", hits, misses)
	}
}

func TestInfoCache_Expiration(t *testing.T) {
	c := NewInfoCache(10, 20*time.Millisecond)
	c.Set("abc", &video.Info{ID: "abc"})

	time.Sleep(60 * time.Millisecond)

	if _, ok := c.Get("abc"); ok {
		t.Error("expected entry to be expired")
	}
}

func TestInfoCache_SizeLimit(t *testing.T) {
	c := NewInfoCache(2, time.Minute)

	for _, id := range []string{"a", "b", "c"} {
		c.Set(id, &video.Info{ID: id})
	}

	if c.Len() != 2 {
		t.Errorf("expected size 2, got %d", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("expected least recently used entry to be evicted")
	}
}
