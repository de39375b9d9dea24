package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"messageboard/internal/model"
)

const (
	listKey           = "messages:all"
	listGenerationKey = "messages:all:gen"
)

// MessageCache is a read-through cache for single messages and the full
// listing. Writers invalidate; they never update cached entries in place.
//
// Every invalidation bumps a generation counter. A reader takes the
// generation before it reads the store and fills only if the counter has not
// moved, so a fill can never overwrite a newer invalidation.
type MessageCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewMessageCache(client *redisv9.Client, ttl time.Duration) *MessageCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &MessageCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *MessageCache) GetMessage(ctx context.Context, id uint) (*model.Message, bool, error) {
	var message model.Message
	hit, err := c.get(ctx, c.messageKey(id), &message)
	if err != nil || !hit {
		return nil, false, err
	}
	return &message, true, nil
}

func (c *MessageCache) MessageGeneration(ctx context.Context, id uint) (int64, error) {
	return generation(ctx, c.client, c.generationKey(id))
}

// SetMessage stores message only while the generation still equals gen. A
// skipped fill is not an error.
func (c *MessageCache) SetMessage(ctx context.Context, message model.Message, gen int64) error {
	return c.setIfGeneration(ctx, c.messageKey(message.ID), c.generationKey(message.ID), gen, message)
}

func (c *MessageCache) GetList(ctx context.Context) ([]model.Message, bool, error) {
	var messages []model.Message
	hit, err := c.get(ctx, listKey, &messages)
	if err != nil || !hit {
		return nil, false, err
	}
	return messages, true, nil
}

func (c *MessageCache) ListGeneration(ctx context.Context) (int64, error) {
	return generation(ctx, c.client, listGenerationKey)
}

func (c *MessageCache) SetList(ctx context.Context, messages []model.Message, gen int64) error {
	return c.setIfGeneration(ctx, listKey, listGenerationKey, gen, messages)
}

// Invalidate drops the cached message and the cached listing.
func (c *MessageCache) Invalidate(ctx context.Context, id uint) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		pipe.Incr(ctx, c.generationKey(id))
		pipe.Incr(ctx, listGenerationKey)
		pipe.Del(ctx, c.messageKey(id), listKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate message %d failed: %w", id, err)
	}
	return nil
}

// InvalidateList drops only the cached listing.
func (c *MessageCache) InvalidateList(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		pipe.Incr(ctx, listGenerationKey)
		pipe.Del(ctx, listKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate list failed: %w", err)
	}
	return nil
}

func (c *MessageCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *MessageCache) get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s failed: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("unmarshal cached %s failed: %w", key, err)
	}
	return true, nil
}

func (c *MessageCache) setIfGeneration(ctx context.Context, key, genKey string, gen int64, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache %s failed: %w", key, err)
	}

	err = c.client.Watch(ctx, func(tx *redisv9.Tx) error {
		current, err := generation(ctx, tx, genKey)
		if err != nil {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
			pipe.Set(ctx, key, payload, c.ttl)
			return nil
		})
		return err
	}, genKey)
	// The generation moved between WATCH and EXEC.
	if errors.Is(err, redisv9.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis set %s failed: %w", key, err)
	}
	return nil
}

type getter interface {
	Get(ctx context.Context, key string) *redisv9.StringCmd
}

// generation reads a counter; a missing key is generation zero.
func generation(ctx context.Context, client getter, key string) (int64, error) {
	gen, err := client.Get(ctx, key).Int64()
	if errors.Is(err, redisv9.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s failed: %w", key, err)
	}
	return gen, nil
}

func (c *MessageCache) messageKey(id uint) string {
	return fmt.Sprintf("messages:%d", id)
}

func (c *MessageCache) generationKey(id uint) string {
	return fmt.Sprintf("messages:%d:gen", id)
}
