package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/intakehub/intake-go/internal/store"
)

const formKeyPrefix = "intake:form"

// ErrCacheMiss reports that no entry exists for the key.
var ErrCacheMiss = errors.New("cache miss")

// FormCache stores serialized forms under "intake:form:{id}" with a TTL.
// Writers invalidate on every mutation, so a stale entry at worst survives
// until its TTL after a missed invalidation.
type FormCache struct {
	client *RedisClient
	ttl    time.Duration
}

func NewFormCache(client *RedisClient, ttl time.Duration) *FormCache {
	return &FormCache{client: client, ttl: ttl}
}

// Get returns the cached form or ErrCacheMiss.
func (c *FormCache) Get(ctx context.Context, id uuid.UUID) (store.Form, error) {
	raw, err := c.client.Client().Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return store.Form{}, ErrCacheMiss
	}
	if err != nil {
		return store.Form{}, fmt.Errorf("cache get: %w", err)
	}

	var form store.Form
	if err := json.Unmarshal(raw, &form); err != nil {
		// A corrupt entry is treated as a miss so the caller refills it.
		return store.Form{}, ErrCacheMiss
	}
	return form, nil
}

// Set writes the form with the configured TTL.
func (c *FormCache) Set(ctx context.Context, form store.Form) error {
	raw, err := json.Marshal(form)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Client().Set(ctx, c.key(form.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate removes the entry for a form.
func (c *FormCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	if err := c.client.Client().Del(ctx, c.key(id)).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

func (c *FormCache) key(id uuid.UUID) string {
	return fmt.Sprintf("%s:%s", formKeyPrefix, id)
}
