package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"teetime/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *CourseCache {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	c, err := NewCourseCache(Config{Addr: addr, TTL: time.Minute})
	if err != nil {
		t.Skipf("skipping cache tests: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCourseCacheRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	course := &models.Course{
		ID:           uuid.NewString(),
		Slug:         "pine-valley-" + uuid.NewString()[:8],
		Name:         "Pine Valley",
		Timezone:     "America/New_York",
		WeekdayPrice: decimal.RequireFromString("120.00"),
		WeekendPrice: decimal.RequireFromString("150.00"),
		Currency:     "USD",
	}

	miss, err := c.GetBySlug(ctx, course.Slug)
	require.NoError(t, err)
	assert.Nil(t, miss)

	require.NoError(t, c.Set(ctx, course))

	bySlug, err := c.GetBySlug(ctx, course.Slug)
	require.NoError(t, err)
	require.NotNil(t, bySlug)
	assert.Equal(t, course.ID, bySlug.ID)
	assert.True(t, course.WeekendPrice.Equal(bySlug.WeekendPrice))

	byID, err := c.GetByID(ctx, course.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, course.Slug, byID.Slug)

	require.NoError(t, c.Invalidate(ctx, course))
	gone, err := c.GetByID(ctx, course.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}
