package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/campusflow/gateway/internal/core/domain"
	"github.com/campusflow/gateway/internal/pkg/metrics"
)

// ConsumerConfig identifies a consumer within a Redis Streams group.
type ConsumerConfig struct {
	Stream   string
	Group    string
	Consumer string
	// Count caps entries fetched per read.
	Count int64
	// Block is how long a read waits for new entries. A negative value
	// disables blocking entirely.
	Block time.Duration
	// RetryDelay is the pause after a failed read.
	RetryDelay time.Duration
	// ClaimMinIdle is how long an entry must sit unacknowledged before it
	// is redelivered, whichever consumer it was first handed to.
	ClaimMinIdle time.Duration
	// ClaimInterval is the pause between sweeps for such entries.
	ClaimInterval time.Duration
}

// Consumer reads user-registered events from a stream group and hands them to
// the dispatcher. Entries are acknowledged by the dispatcher after the
// handler succeeds, so a crash before that point leaves them pending.
type Consumer struct {
	client     *redis.Client
	cfg        ConsumerConfig
	dispatcher *Dispatcher
	log        zerolog.Logger
}

func NewConsumer(client *redis.Client, cfg ConsumerConfig, dispatcher *Dispatcher, log zerolog.Logger) *Consumer {
	if cfg.Count <= 0 {
		cfg.Count = 32
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	// BLOCK 0 would wait forever and ignore shutdown.
	if cfg.Block == 0 {
		cfg.Block = 2 * time.Second
	}
	if cfg.ClaimMinIdle <= 0 {
		cfg.ClaimMinIdle = 30 * time.Second
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = 15 * time.Second
	}
	return &Consumer{client: client, cfg: cfg, dispatcher: dispatcher, log: log}
}

// EnsureGroup creates the stream and group if missing.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group %s on %s: %w", c.cfg.Group, c.cfg.Stream, err)
	}
	return nil
}

// Run creates the group, redelivers this consumer's pending entries, and
// then polls for new ones until ctx is cancelled. Entries left pending by a
// failed handler are reclaimed every ClaimInterval once they have been idle
// for ClaimMinIdle.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}
	if _, err := c.read(ctx, "0"); err != nil && ctx.Err() == nil {
		c.log.Warn().Err(err).Msg("pending redelivery failed")
	}

	lastClaim := time.Now()
	for {
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(lastClaim) >= c.cfg.ClaimInterval {
			lastClaim = time.Now()
			if n, err := c.Reclaim(ctx); err != nil && ctx.Err() == nil {
				c.log.Warn().Err(err).Str("stream", c.cfg.Stream).Msg("reclaim failed")
			} else if n > 0 {
				c.log.Info().Int("entries", n).Str("stream", c.cfg.Stream).Msg("reclaimed idle entries")
			}
		}
		if _, err := c.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error().Err(err).Str("stream", c.cfg.Stream).Msg("stream read failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.cfg.RetryDelay):
			}
		}
	}
}

// Reclaim takes over entries that have stayed unacknowledged for at least
// ClaimMinIdle and dispatches them again. It returns the number claimed.
func (c *Consumer) Reclaim(ctx context.Context) (int, error) {
	total := 0
	start := "0-0"
	for {
		msgs, next, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   c.cfg.Stream,
			Group:    c.cfg.Group,
			Consumer: c.cfg.Consumer,
			MinIdle:  c.cfg.ClaimMinIdle,
			Start:    start,
			Count:    c.cfg.Count,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return total, nil
			}
			return total, fmt.Errorf("xautoclaim %s: %w", c.cfg.Stream, err)
		}
		total += len(msgs)
		if err := c.dispatch(ctx, msgs); err != nil {
			return total, err
		}
		if next == "0-0" || next == "" || len(msgs) == 0 {
			return total, nil
		}
		start = next
	}
}

// Poll reads one batch of new entries and enqueues them. It returns the
// number of entries read.
func (c *Consumer) Poll(ctx context.Context) (int, error) {
	return c.read(ctx, ">")
}

func (c *Consumer) read(ctx context.Context, from string) (int, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, from},
		Count:    c.cfg.Count,
		Block:    c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("xreadgroup %s: %w", c.cfg.Stream, err)
	}

	n := 0
	for _, s := range streams {
		n += len(s.Messages)
		if err := c.dispatch(ctx, s.Messages); err != nil {
			return n, err
		}
	}
	return n, nil
}

// dispatch decodes a batch and enqueues it in stream order. Undecodable
// entries are acknowledged and dropped.
func (c *Consumer) dispatch(ctx context.Context, msgs []redis.XMessage) error {
	dels := make([]Delivery, 0, len(msgs))
	for _, msg := range msgs {
		evt, err := decodeRegistered(msg)
		if err != nil {
			metrics.ConsumerMessagesTotal.WithLabelValues("dropped").Inc()
			c.log.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping undecodable entry")
			if err := c.ack(ctx, msg.ID); err != nil {
				c.log.Error().Err(err).Str("message_id", msg.ID).Msg("ack failed")
			}
			continue
		}

		id := msg.ID
		dels = append(dels, Delivery{
			MessageID: id,
			Event:     evt,
			Ack:       func(ctx context.Context) error { return c.ack(ctx, id) },
		})
	}
	return c.dispatcher.EnqueueBatch(ctx, dels)
}

func (c *Consumer) ack(ctx context.Context, id string) error {
	return c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, id).Err()
}

func decodeRegistered(msg redis.XMessage) (domain.UserRegistered, error) {
	var evt domain.UserRegistered
	raw, ok := msg.Values[fieldPayload].(string)
	if !ok {
		return evt, fmt.Errorf("entry %s has no %q field", msg.ID, fieldPayload)
	}
	if err := json.Unmarshal([]byte(raw), &evt); err != nil {
		return evt, fmt.Errorf("decode entry %s: %w", msg.ID, err)
	}
	return evt, nil
}
