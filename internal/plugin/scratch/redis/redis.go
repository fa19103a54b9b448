// Package redis backs the scratchpad with Redis; the server's key TTLs
// do the expiry work.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/forgeos/graph-service/internal/config"
	registryscratch "github.com/forgeos/graph-service/internal/registry/scratch"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
	goredis "github.com/redis/go-redis/v9"
)

func init() {
	registryscratch.Register(registryscratch.Plugin{
		Name:   "redis",
		Loader: load,
	})
}

func load(ctx context.Context) (registryscratch.Pad, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil || cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis scratchpad: FORGE_REDIS_URL is required")
	}
	opts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis scratchpad: invalid URL: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis scratchpad: ping failed: %w", err)
	}
	return &redisPad{client: client}, nil
}

type redisPad struct {
	client *goredis.Client
}

func padKey(contextID, key string) string {
	return fmt.Sprintf("scratch:%s:%s", contextID, key)
}

func padPattern(contextID string) string {
	return fmt.Sprintf("scratch:%s:*", contextID)
}

func (p *redisPad) Set(ctx context.Context, contextID, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return p.client.Set(ctx, padKey(contextID, key), data, ttl).Err()
}

func (p *redisPad) Get(ctx context.Context, contextID, key string) (any, error) {
	data, err := p.client.Get(ctx, padKey(contextID, key)).Bytes()
	if err == goredis.Nil {
		return nil, &registrystore.NotFoundError{Resource: "scratchpad key", ID: key}
	}
	if err != nil {
		return nil, err
	}
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	return value, nil
}

func (p *redisPad) Delete(ctx context.Context, contextID, key string) (bool, error) {
	n, err := p.client.Del(ctx, padKey(contextID, key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *redisPad) Clear(ctx context.Context, contextID string) (int64, error) {
	var deleted int64
	iter := p.client.Scan(ctx, 0, padPattern(contextID), 0).Iterator()
	for iter.Next(ctx) {
		n, err := p.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			return deleted, err
		}
		deleted += n
	}
	return deleted, iter.Err()
}

func (p *redisPad) List(ctx context.Context, contextID string) (map[string]any, error) {
	out := map[string]any{}
	prefix := fmt.Sprintf("scratch:%s:", contextID)
	iter := p.client.Scan(ctx, 0, padPattern(contextID), 0).Iterator()
	for iter.Next(ctx) {
		fullKey := iter.Val()
		data, err := p.client.Get(ctx, fullKey).Bytes()
		if err == goredis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var value any
		if err := json.Unmarshal(data, &value); err != nil {
			return nil, err
		}
		out[fullKey[len(prefix):]] = value
	}
	return out, iter.Err()
}

var _ registryscratch.Pad = (*redisPad)(nil)
