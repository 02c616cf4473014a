package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/attendance"
)

func sampleRecords() []attendance.HistoryRecord {
	closed := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	return []attendance.HistoryRecord{{
		SessionID: "sess-1",
		Code:      "7X4QQ",
		OpenedAt:  closed.Add(-time.Hour),
		Date:      closed,
		Students: []attendance.Submission{
			{StudentID: "a", FullName: "Student A", Email: "a@school.test", SubmittedAt: closed.Add(-30 * time.Minute)},
		},
	}}
}

func exercise(t *testing.T, c attendance.HistoryCache) {
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "C101")
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := c.Version(ctx, "C101")
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "C101", v, sampleRecords()))
	got, ok, err := c.Get(ctx, "C101")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleRecords(), got)

	require.NoError(t, c.Set(ctx, "C102", 0, nil))
	got, ok, err = c.Get(ctx, "C102")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	require.NoError(t, c.Invalidate(ctx, "C101"))
	_, ok, err = c.Get(ctx, "C101")
	require.NoError(t, err)
	assert.False(t, ok)

	// A load that started before the invalidation must not land.
	require.NoError(t, c.Set(ctx, "C101", v, sampleRecords()))
	_, ok, err = c.Get(ctx, "C101")
	require.NoError(t, err)
	assert.False(t, ok)

	current, err := c.Version(ctx, "C101")
	require.NoError(t, err)
	assert.Greater(t, current, v)
	require.NoError(t, c.Set(ctx, "C101", current, sampleRecords()))
	_, ok, err = c.Get(ctx, "C101")
	require.NoError(t, err)
	assert.True(t, ok)

	other, err := c.Version(ctx, "C102")
	require.NoError(t, err)
	assert.Zero(t, other)
}

func TestMemoryHistory(t *testing.T) {
	exercise(t, NewMemoryHistory())
}

func TestRedisHistory(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisHistory(client, time.Minute)
	exercise(t, c)

	v, err := c.Version(context.Background(), "C101")
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), "C101", v, sampleRecords()))
	mr.FastForward(2 * time.Minute)
	_, ok, err := c.Get(context.Background(), "C101")
	require.NoError(t, err)
	assert.False(t, ok)
}
