package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
)

// StreamPublisher appends notification events to a Redis stream consumed by
// the realtime push layer.
type StreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewStreamPublisher(client *redis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, maxLen: 10000}
}

// Publish adds n to the stream and returns the entry id.
func (p *StreamPublisher) Publish(ctx context.Context, n Notification) (string, error) {
	values := map[string]any{
		"kind":       "notification",
		"id":         n.ID,
		"user_id":    n.UserID,
		"title":      n.Title,
		"message":    n.Message,
		"type":       string(n.Type),
		"link":       n.Link,
		"created_at": strconv.FormatInt(n.CreatedAt.Unix(), 10),
	}
	return p.add(ctx, values)
}

// PublishEvent forwards an outbox event onto the stream. It has the Handler
// shape so the Worker can route domain topics here.
func (p *StreamPublisher) PublishEvent(topic string) Handler {
	return func(ctx context.Context, payload []byte) error {
		if !json.Valid(payload) {
			return fmt.Errorf("notify: event payload for %s is not json", topic)
		}
		_, err := p.add(ctx, map[string]any{
			"kind":    "event",
			"topic":   topic,
			"payload": string(payload),
		})
		return err
	}
}

func (p *StreamPublisher) add(ctx context.Context, values map[string]any) (string, error) {
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("notify: xadd %s: %w", p.stream, err)
	}
	return id, nil
}
