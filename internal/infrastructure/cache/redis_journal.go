package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/personal/adunit-lifecycle/internal/domain/journal"
	"github.com/personal/adunit-lifecycle/pkg/monitoring"
)

// RedisJournal implements journal.Repository and journal.Publisher using
// Redis. Entries are kept in a capped list and announced on a pub/sub
// channel for out-of-process consumers.
type RedisJournal struct {
	client  *redis.Client
	channel string
	listKey string
	maxLen  int64
}

// NewRedisJournal creates a new RedisJournal
func NewRedisJournal(client *redis.Client, channel string, maxLen int64) *RedisJournal {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisJournal{
		client:  client,
		channel: channel,
		listKey: channel + ":recent",
		maxLen:  maxLen,
	}
}

// Append stores an entry in the recent list
func (r *RedisJournal) Append(ctx context.Context, e *journal.Entry) error {
	return r.push(ctx, e, false)
}

// Publish stores an entry and announces it on the channel
func (r *RedisJournal) Publish(ctx context.Context, e *journal.Entry) error {
	return r.push(ctx, e, true)
}

func (r *RedisJournal) push(ctx context.Context, e *journal.Entry, announce bool) error {
	if err := e.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}

	start := time.Now()
	pipe := r.client.Pipeline()
	pipe.LPush(ctx, r.listKey, data)
	pipe.LTrim(ctx, r.listKey, 0, r.maxLen-1)
	if announce {
		pipe.Publish(ctx, r.channel, data)
	}
	_, err = pipe.Exec(ctx)
	monitoring.RecordRedisCommand("journal_push", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to push journal entry: %w", err)
	}
	return nil
}

// FindRecent returns the most recent entries
func (r *RedisJournal) FindRecent(ctx context.Context, limit int) ([]*journal.Entry, error) {
	return r.scan(ctx, limit, func(*journal.Entry) bool { return true })
}

// FindByGroup returns the most recent entries of a group
func (r *RedisJournal) FindByGroup(ctx context.Context, group string, limit int) ([]*journal.Entry, error) {
	return r.scan(ctx, limit, func(e *journal.Entry) bool { return e.Group == group })
}

// Count returns the number of entries in the recent list
func (r *RedisJournal) Count(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := r.client.LLen(ctx, r.listKey).Result()
	monitoring.RecordRedisCommand("llen", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to count journal entries: %w", err)
	}
	return n, nil
}

func (r *RedisJournal) scan(ctx context.Context, limit int, match func(*journal.Entry) bool) ([]*journal.Entry, error) {
	start := time.Now()
	items, err := r.client.LRange(ctx, r.listKey, 0, r.maxLen-1).Result()
	monitoring.RecordRedisCommand("lrange", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal entries: %w", err)
	}

	result := make([]*journal.Entry, 0)
	for _, item := range items {
		var e journal.Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			// Skip malformed entries
			continue
		}
		if !match(&e) {
			continue
		}
		result = append(result, &e)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// Subscribe delivers announced entries to handle until ctx ends. Malformed
// messages are reported to onError and skipped.
func (r *RedisJournal) Subscribe(ctx context.Context, handle func(*journal.Entry), onError func(error)) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	// Wait for confirmation that subscription is created
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var e journal.Entry
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				if onError != nil {
					onError(fmt.Errorf("malformed journal message: %w", err))
				}
				continue
			}
			handle(&e)
		}
	}
}
