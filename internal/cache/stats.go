package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
	"go.uber.org/zap"
)

// ErrMiss is returned when no cached value exists
var ErrMiss = errors.New("cache miss")

const keyPrefix = "rarecare:stats:"

// StatsCache caches derived statistics per (patient, condition)
type StatsCache interface {
	Get(ctx context.Context, patientID string, condition model.ConditionType) (*model.Statistics, error)
	Set(ctx context.Context, patientID string, condition model.ConditionType, stats model.Statistics) error
	// Invalidate drops the given conditions, or every condition of the patient when none are given
	Invalidate(ctx context.Context, patientID string, conditions ...model.ConditionType) error
}

// NewRedisClient creates a go-redis client
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// RedisStatsCache stores statistics as JSON strings with a TTL
type RedisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStatsCache creates a StatsCache on top of a redis client
func NewRedisStatsCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStatsCache {
	return &RedisStatsCache{client: client, ttl: ttl, logger: logger}
}

func statsKey(patientID string, condition model.ConditionType) string {
	return keyPrefix + patientID + ":" + string(condition)
}

// Get returns the cached statistics or ErrMiss
func (c *RedisStatsCache) Get(ctx context.Context, patientID string, condition model.ConditionType) (*model.Statistics, error) {
	val, err := c.client.Get(ctx, statsKey(patientID, condition)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("failed to read cached statistics: %w", err)
	}

	var stats model.Statistics
	if err := json.Unmarshal(val, &stats); err != nil {
		c.logger.Warn("dropping undecodable cached statistics", zap.Error(err), zap.String("patient_id", patientID))
		return nil, ErrMiss
	}
	return &stats, nil
}

// Set stores statistics for the configured TTL
func (c *RedisStatsCache) Set(ctx context.Context, patientID string, condition model.ConditionType, stats model.Statistics) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode statistics: %w", err)
	}
	if err := c.client.Set(ctx, statsKey(patientID, condition), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache statistics: %w", err)
	}
	return nil
}

// Invalidate deletes cached statistics of a patient
func (c *RedisStatsCache) Invalidate(ctx context.Context, patientID string, conditions ...model.ConditionType) error {
	var keys []string
	if len(conditions) > 0 {
		for _, condition := range conditions {
			keys = append(keys, statsKey(patientID, condition))
		}
	} else {
		var err error
		if keys, err = c.scanKeys(ctx, keyPrefix+patientID+":*"); err != nil {
			return err
		}
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate statistics: %w", err)
	}
	return nil
}

func (c *RedisStatsCache) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		k, next, err := c.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan cached statistics: %w", err)
		}
		keys = append(keys, k...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// NopStatsCache never stores anything
type NopStatsCache struct{}

func (NopStatsCache) Get(context.Context, string, model.ConditionType) (*model.Statistics, error) {
	return nil, ErrMiss
}

func (NopStatsCache) Set(context.Context, string, model.ConditionType, model.Statistics) error {
	return nil
}

func (NopStatsCache) Invalidate(context.Context, string, ...model.ConditionType) error {
	return nil
}
