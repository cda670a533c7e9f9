package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisStreamPublisherAppendsEvent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	pub, err := NewRedisStreamPublisher(client, "library:events", 0)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	ev := Event{
		ID:          "evt-1",
		Type:        TypeInventoryBorrowed,
		OccurredAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ReaderID:    2,
		InventoryID: 7,
		RecordID:    11,
	}
	ctx := context.Background()
	if err := pub.Publish(ctx, ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	msgs, err := client.XRange(ctx, "library:events", "-", "+").Result()
	if err != nil {
		t.Fatalf("xrange: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}
	values := msgs[0].Values
	if values["type"] != TypeInventoryBorrowed || values["inventory_id"] != "7" {
		t.Fatalf("unexpected stream values: %+v", values)
	}
	var decoded Event
	if err := json.Unmarshal([]byte(values["payload"].(string)), &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded.RecordID != 11 || !decoded.OccurredAt.Equal(ev.OccurredAt) {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
}

func TestNewRedisStreamPublisherValidates(t *testing.T) {
	if _, err := NewRedisStreamPublisher(nil, "s", 0); err == nil {
		t.Fatalf("expected nil client to fail")
	}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	if _, err := NewRedisStreamPublisher(client, " ", 0); err == nil {
		t.Fatalf("expected empty stream to fail")
	}
}

func TestLogPublisherNeverFails(t *testing.T) {
	if err := NewLogPublisher(nil).Publish(context.Background(), Event{Type: TypeInventoryReturned}); err != nil {
		t.Fatalf("log publish: %v", err)
	}
}
