package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/campusflow/gateway/internal/core/domain"
)

// Stream entry field names shared by producer and consumer.
const (
	fieldID      = "id"
	fieldKey     = "key"
	fieldPayload = "payload"
)

// Message is one serialized event bound for a topic.
type Message struct {
	ID      string
	Topic   string
	Key     string
	Payload []byte
}

// Channel is the durable transport behind the publisher. Send returns the
// transport-assigned message id once the message is durably accepted.
type Channel interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// StreamChannel writes messages to Redis Streams, one stream per topic.
type StreamChannel struct {
	client *redis.Client
	maxLen int64
}

// NewStreamChannel returns a channel that approximately caps each stream at
// maxLen entries. maxLen <= 0 disables trimming.
func NewStreamChannel(client *redis.Client, maxLen int64) *StreamChannel {
	return &StreamChannel{client: client, maxLen: maxLen}
}

func (c *StreamChannel) Send(ctx context.Context, msg Message) (string, error) {
	args := &redis.XAddArgs{
		Stream: msg.Topic,
		Values: map[string]any{
			fieldID:      msg.ID,
			fieldKey:     msg.Key,
			fieldPayload: msg.Payload,
		},
	}
	if c.maxLen > 0 {
		args.MaxLen = c.maxLen
		args.Approx = true
	}

	id, err := c.client.XAdd(ctx, args).Result()
	if err != nil {
		// A key of the wrong type never becomes a stream by retrying.
		if strings.HasPrefix(err.Error(), "WRONGTYPE") {
			return "", fmt.Errorf("%w: xadd %s: %v", domain.ErrPublishRejected, msg.Topic, err)
		}
		return "", fmt.Errorf("xadd %s: %w", msg.Topic, err)
	}
	return id, nil
}
