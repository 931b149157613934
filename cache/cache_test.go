package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheExpiresEntries(t *testing.T) {
	c, err := New[int](4)
	require.NoError(t, err)

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("a", 1, time.Minute)
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, got)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, err := New[string](2)
	require.NoError(t, err)

	c.Set("a", "x", time.Hour)
	c.Set("b", "y", time.Hour)
	_, _ = c.Get("a")
	c.Set("c", "z", time.Hour)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
}

func TestCacheIgnoresNonPositiveTTL(t *testing.T) {
	c, err := New[int](2)
	require.NoError(t, err)
	c.Set("a", 1, 0)
	assert.Equal(t, 0, c.Len())
}

func TestNilCacheIsEmpty(t *testing.T) {
	var c *Cache[int]
	c.Set("a", 1, time.Hour)
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestNewRejectsBadSize(t *testing.T) {
	_, err := New[int](0)
	require.Error(t, err)
}
