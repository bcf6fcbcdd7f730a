package memory

import (
	"context"
	"testing"
	"time"

	"tourbook/listing/internal/cache"
	"tourbook/listing/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache(t *testing.T) {
	ctx := context.Background()
	c := New(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ref := model.BusinessRef("b1")
	_, err := c.Get(ctx, ref)
	assert.ErrorIs(t, err, cache.ErrNotFound)

	avg := 4.33
	v, err := c.Version(ctx, ref)
	require.NoError(t, err)
	stored, err := c.Fill(ctx, ref, model.Aggregate{AverageRating: &avg, ReviewCount: 3}, v)
	require.NoError(t, err)
	require.True(t, stored)
	avg = 1
	got, err := c.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, 4.33, *got.AverageRating)
	assert.Equal(t, 3, got.ReviewCount)

	_, err = c.Get(ctx, model.EventRef("b1"))
	assert.ErrorIs(t, err, cache.ErrNotFound, "kinds must not share entries")

	now = now.Add(2 * time.Minute)
	_, err = c.Get(ctx, ref)
	assert.ErrorIs(t, err, cache.ErrNotFound, "entry should expire")
}

func TestCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c := New(0)
	ref := model.TouristSpotRef("t1")
	_, err := c.Fill(ctx, ref, model.Aggregate{}, 0)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, ref))
	_, err = c.Get(ctx, ref)
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestCacheFillAfterInvalidateIsDropped(t *testing.T) {
	ctx := context.Background()
	c := New(0)
	ref := model.EventRef("e1")

	v, err := c.Version(ctx, ref)
	require.NoError(t, err)
	// A writer commits and invalidates while the reader is still at the store.
	require.NoError(t, c.Invalidate(ctx, ref))
	stored, err := c.Fill(ctx, ref, model.Aggregate{ReviewCount: 0}, v)
	require.NoError(t, err)
	assert.False(t, stored)
	_, err = c.Get(ctx, ref)
	assert.ErrorIs(t, err, cache.ErrNotFound)

	v, err = c.Version(ctx, ref)
	require.NoError(t, err)
	stored, err = c.Fill(ctx, ref, model.Aggregate{ReviewCount: 1}, v)
	require.NoError(t, err)
	assert.True(t, stored)
}
