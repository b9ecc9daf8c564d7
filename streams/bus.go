package streams

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	streamKeyFormat   = "user:%s:triage"
	defaultBlock      = 5 * time.Second
	defaultBatchCount = 50
)

// Event is the typed form of a triage feed entry: batch progress, queue
// snapshots, escalations.
type Event struct {
	ID     string         `json:"id"`
	Stream string         `json:"stream"`
	UserID string         `json:"user_id"`
	Kind   string         `json:"kind"`
	Values map[string]any `json:"values"`
}

// Bus provides typed helpers for the per-user triage feed stream.
type Bus struct {
	client *redis.Client
}

func NewBus(client *redis.Client) *Bus {
	return &Bus{client: client}
}

// StreamKey returns the canonical triage feed key for a user.
func StreamKey(userID string) string {
	if strings.TrimSpace(userID) == "" {
		userID = "default"
	}
	return fmt.Sprintf(streamKeyFormat, userID)
}

// Append writes an event to the user's feed, attaching a timestamp if the
// payload has none. A nil bus is a silent no-op so callers never have to
// guard the feed being unconfigured.
func (b *Bus) Append(ctx context.Context, userID, kind string, values map[string]any) (string, error) {
	if b == nil || b.client == nil {
		return "", nil
	}
	if values == nil {
		values = make(map[string]any)
	}
	values["kind"] = kind
	if _, ok := values["ts"]; !ok {
		values["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	}
	return b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey(userID),
		Values: values,
	}).Result()
}

// Tail blocks for new events after afterID and returns them with the latest
// id observed.
func (b *Bus) Tail(ctx context.Context, userID, afterID string) ([]Event, string, error) {
	if b == nil || b.client == nil {
		return nil, afterID, fmt.Errorf("streams: bus not configured")
	}
	if strings.TrimSpace(afterID) == "" {
		afterID = "$"
	}

	res, err := b.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{StreamKey(userID), afterID},
		Count:   defaultBatchCount,
		Block:   defaultBlock,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, afterID, nil
		}
		return nil, afterID, err
	}

	events := make([]Event, 0)
	nextID := afterID
	for _, stream := range res {
		for _, msg := range stream.Messages {
			values := make(map[string]any, len(msg.Values))
			for k, v := range msg.Values {
				values[k] = v
			}
			events = append(events, Event{
				ID:     msg.ID,
				Stream: stream.Stream,
				UserID: userIDFromStream(stream.Stream),
				Kind:   stringVal(values["kind"]),
				Values: values,
			})
			nextID = msg.ID
		}
	}
	return events, nextID, nil
}

func stringVal(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return ""
	}
}

func userIDFromStream(stream string) string {
	parts := strings.Split(stream, ":")
	if len(parts) >= 2 {
		return parts[1]
	}
	return ""
}
