package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"skillsnap_backend/internal/model"

	"github.com/go-redis/redis/v8"
)

const assessmentCachePrefix = "skillsnap:assessment:public:"

// AssessmentCache 在 Redis 中缓存测评的公开投影
type AssessmentCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewAssessmentCache(rdb *redis.Client, ttl time.Duration) *AssessmentCache {
	if rdb == nil {
		return nil
	}
	return &AssessmentCache{rdb: rdb, ttl: ttl}
}

// Get 未命中时返回 nil, nil
func (c *AssessmentCache) Get(ctx context.Context, skillID string) (*model.PublicAssessment, error) {
	raw, err := c.rdb.Get(ctx, assessmentCachePrefix+skillID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var a model.PublicAssessment
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *AssessmentCache) Set(ctx context.Context, skillID string, a *model.PublicAssessment) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, assessmentCachePrefix+skillID, raw, c.ttl).Err()
}

func (c *AssessmentCache) Invalidate(ctx context.Context, skillID string) error {
	return c.rdb.Del(ctx, assessmentCachePrefix+skillID).Err()
}
