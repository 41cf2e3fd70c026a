package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisStatsCache) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { client.Close() })

	return mr, NewRedisStatsCache(client, 5*time.Minute, zap.NewNop())
}

func TestRedisStatsCache_SetGet(t *testing.T) {
	mr, cache := setupTestRedis(t)
	ctx := context.Background()

	_, err := cache.Get(ctx, "p1", model.ConditionEpilepsy)
	assert.ErrorIs(t, err, ErrMiss)

	trend := model.TrendWorsening
	percent := 200
	stats := model.Statistics{TotalEvents: 5, Trend: &trend, TrendPercent: &percent, TypeCounts: map[string]int{"focal": 3}}
	require.NoError(t, cache.Set(ctx, "p1", model.ConditionEpilepsy, stats))

	assert.True(t, mr.Exists("rarecare:stats:p1:epilepsy"))
	assert.Equal(t, 5*time.Minute, mr.TTL("rarecare:stats:p1:epilepsy"))

	got, err := cache.Get(ctx, "p1", model.ConditionEpilepsy)
	require.NoError(t, err)
	assert.Equal(t, 5, got.TotalEvents)
	assert.Equal(t, model.TrendWorsening, *got.Trend)
	assert.Equal(t, 3, got.TypeCounts["focal"])

	mr.FastForward(6 * time.Minute)
	_, err = cache.Get(ctx, "p1", model.ConditionEpilepsy)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisStatsCache_Invalidate(t *testing.T) {
	mr, cache := setupTestRedis(t)
	ctx := context.Background()

	for _, c := range []model.ConditionType{model.ConditionEpilepsy, model.ConditionMigraine} {
		require.NoError(t, cache.Set(ctx, "p1", c, model.Statistics{TotalEvents: 1}))
	}
	require.NoError(t, cache.Set(ctx, "p2", model.ConditionEpilepsy, model.Statistics{TotalEvents: 1}))

	require.NoError(t, cache.Invalidate(ctx, "p1", model.ConditionMigraine))
	assert.False(t, mr.Exists("rarecare:stats:p1:migraine"))
	assert.True(t, mr.Exists("rarecare:stats:p1:epilepsy"))

	require.NoError(t, cache.Invalidate(ctx, "p1"))
	assert.False(t, mr.Exists("rarecare:stats:p1:epilepsy"))
	assert.True(t, mr.Exists("rarecare:stats:p2:epilepsy"))

	require.NoError(t, cache.Invalidate(ctx, "nobody"))
}

func TestRedisStatsCache_CorruptValueIsMiss(t *testing.T) {
	mr, cache := setupTestRedis(t)
	require.NoError(t, mr.Set("rarecare:stats:p1:diabetes", "{not json"))

	_, err := cache.Get(context.Background(), "p1", model.ConditionDiabetes)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisStatsCache_Unavailable(t *testing.T) {
	mr, cache := setupTestRedis(t)
	mr.Close()

	_, err := cache.Get(context.Background(), "p1", model.ConditionDiabetes)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}

func TestNopStatsCache(t *testing.T) {
	var cache StatsCache = NopStatsCache{}
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "p1", model.ConditionCustom, model.Statistics{TotalEvents: 3}))
	_, err := cache.Get(ctx, "p1", model.ConditionCustom)
	assert.ErrorIs(t, err, ErrMiss)
	assert.NoError(t, cache.Invalidate(ctx, "p1"))
}
