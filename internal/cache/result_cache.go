package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"assessd/internal/model"
)

// ResultCache holds completed score results. Results never change once
// stored, so entries are only ever added or expire.
type ResultCache interface {
	Set(ctx context.Context, result *model.ScoreResult) error
	// Get returns nil, nil on a miss
	Get(ctx context.Context, sessionID string) (*model.ScoreResult, error)
}

type resultCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResultCache(client *redis.Client, ttl time.Duration) ResultCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &resultCache{
		client: client,
		ttl:    ttl,
	}
}

func resultKey(sessionID string) string {
	return "assessment:result:" + sessionID
}

func (c *resultCache) Set(ctx context.Context, result *model.ScoreResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.SetNX(ctx, resultKey(result.SessionID), data, c.ttl).Err()
}

func (c *resultCache) Get(ctx context.Context, sessionID string) (*model.ScoreResult, error) {
	data, err := c.client.Get(ctx, resultKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var result model.ScoreResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Nop is a ResultCache that stores nothing
type Nop struct{}

func (Nop) Set(context.Context, *model.ScoreResult) error { return nil }

func (Nop) Get(context.Context, string) (*model.ScoreResult, error) { return nil, nil }
