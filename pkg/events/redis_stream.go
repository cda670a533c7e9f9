package events

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStreamPublisher appends events to a capped Redis stream.
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStreamPublisher builds a publisher on an existing client. maxLen
// bounds the stream approximately (default 10000).
func NewRedisStreamPublisher(client *redis.Client, stream string, maxLen int64) (*RedisStreamPublisher, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	stream = strings.TrimSpace(stream)
	if stream == "" {
		return nil, errors.New("event stream required")
	}
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisStreamPublisher{client: client, stream: stream, maxLen: maxLen}, nil
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := encode(e)
	if err != nil {
		return err
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"event_id":     e.ID,
			"type":         e.Type,
			"inventory_id": strconv.FormatUint(uint64(e.InventoryID), 10),
			"payload":      string(payload),
		},
	}).Err()
}
