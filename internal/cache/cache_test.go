package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheSetGet(t *testing.T) {
	c := New(time.Minute)

	c.Set("k", "v")
	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	c := New(10 * time.Millisecond)

	c.Set("k", "v")
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCacheInvalidate(t *testing.T) {
	c := New(time.Minute)

	c.Set("k", "v")
	c.Invalidate("k")

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestKeyDeterministicAndDistinct(t *testing.T) {
	a := Key("composite", "vitality", "acme/widget", "180")
	b := Key("composite", "vitality", "acme/widget", "180")
	assert.Equal(t, a, b)

	// Segment boundaries matter: ("ab","c") must not collide with ("a","bc").
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
	assert.NotEqual(t, a, Key("composite", "resilience", "acme/widget", "180"))
}
