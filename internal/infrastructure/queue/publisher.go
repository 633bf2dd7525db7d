package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/campusflow/gateway/internal/core/domain"
	"github.com/campusflow/gateway/internal/core/ports"
	"github.com/campusflow/gateway/internal/pkg/metrics"
)

// RetryConfig configures the exponential backoff between publish attempts.
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	// Jitter is the randomization factor in [0,1]; 0 gives a fixed schedule.
	Jitter float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       5,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          2 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.2,
	}
}

func (c RetryConfig) normalize() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.MaxDelay < c.InitialDelay {
		c.MaxDelay = c.InitialDelay
	}
	if c.BackoffMultiplier < 1.0 {
		c.BackoffMultiplier = d.BackoffMultiplier
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		c.Jitter = d.Jitter
	}
	return c
}

// schedule builds a fresh backoff for one publish call. The context bounds
// both the waits and the number of attempts.
func (c RetryConfig) schedule(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.InitialDelay
	eb.MaxInterval = c.MaxDelay
	eb.Multiplier = c.BackoffMultiplier
	eb.RandomizationFactor = c.Jitter
	eb.MaxElapsedTime = 0
	eb.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.MaxAttempts-1)), ctx)
}

// PublisherConfig bounds a Publisher.
type PublisherConfig struct {
	Retry RetryConfig
	// Timeout caps one Publish call, including waits for a slot and retries.
	Timeout time.Duration
	// MaxInFlight is the number of concurrent sends allowed on the channel.
	MaxInFlight int64
}

const (
	defaultPublishTimeout = 5 * time.Second
	defaultMaxInFlight    = 64
)

// Publisher implements ports.EventPublisher with at-least-once semantics on
// top of a Channel. It holds no locks; backpressure comes from a weighted
// semaphore acquired under the call deadline.
type Publisher struct {
	channel Channel
	retry   RetryConfig
	timeout time.Duration
	slots   *semaphore.Weighted
	log     zerolog.Logger
}

func NewPublisher(channel Channel, cfg PublisherConfig, log zerolog.Logger) *Publisher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPublishTimeout
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = defaultMaxInFlight
	}
	return &Publisher{
		channel: channel,
		retry:   cfg.Retry.normalize(),
		timeout: cfg.Timeout,
		slots:   semaphore.NewWeighted(cfg.MaxInFlight),
		log:     log,
	}
}

var _ ports.EventPublisher = (*Publisher)(nil)

// Publish serializes env.Payload and sends it until the channel accepts it,
// the attempts run out, or the timeout elapses. Once started, a publish is
// not abandoned when the caller's context is cancelled.
func (p *Publisher) Publish(ctx context.Context, env ports.Envelope) (*domain.PublishReceipt, error) {
	if env.Topic == "" {
		return nil, fmt.Errorf("%w: empty topic", domain.ErrPublishRejected)
	}
	payload, err := json.Marshal(env.Payload)
	if err != nil {
		metrics.PublishTotal.WithLabelValues(env.Topic, "rejected").Inc()
		return nil, fmt.Errorf("%w: encode payload: %v", domain.ErrPublishRejected, err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.slots.Acquire(ctx, 1); err != nil {
		metrics.PublishTotal.WithLabelValues(env.Topic, "saturated").Inc()
		p.log.Warn().Str("topic", env.Topic).Msg("publish channel saturated")
		return nil, fmt.Errorf("%w: channel saturated", domain.ErrPublishUnavailable)
	}
	defer p.slots.Release(1)

	metrics.PublishInFlight.Inc()
	defer metrics.PublishInFlight.Dec()

	msg := Message{
		ID:      uuid.NewString(),
		Topic:   env.Topic,
		Key:     env.Key,
		Payload: payload,
	}

	var (
		attempts  int
		messageID string
	)
	send := func() error {
		attempts++
		id, err := p.channel.Send(ctx, msg)
		if err != nil {
			if errors.Is(err, domain.ErrPublishRejected) {
				return backoff.Permanent(err)
			}
			return err
		}
		messageID = id
		return nil
	}
	notify := func(err error, wait time.Duration) {
		metrics.PublishRetriesTotal.WithLabelValues(env.Topic).Inc()
		p.log.Warn().Err(err).
			Str("topic", env.Topic).
			Str("event_id", msg.ID).
			Int("attempt", attempts).
			Dur("retry_in", wait).
			Msg("publish attempt failed")
	}

	start := time.Now()
	err = backoff.RetryNotify(send, p.retry.schedule(ctx), notify)
	metrics.PublishDuration.WithLabelValues(env.Topic).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, domain.ErrPublishRejected) {
			metrics.PublishTotal.WithLabelValues(env.Topic, "rejected").Inc()
			p.log.Error().Err(err).Str("topic", env.Topic).Str("event_id", msg.ID).Msg("publish rejected")
			return nil, err
		}
		metrics.PublishTotal.WithLabelValues(env.Topic, "unavailable").Inc()
		p.log.Error().Err(err).
			Str("topic", env.Topic).
			Str("event_id", msg.ID).
			Int("attempts", attempts).
			Msg("publish failed")
		return nil, fmt.Errorf("%w: after %d attempts: %v", domain.ErrPublishUnavailable, attempts, err)
	}

	metrics.PublishTotal.WithLabelValues(env.Topic, "ok").Inc()
	return &domain.PublishReceipt{
		EventID:     msg.ID,
		MessageID:   messageID,
		Topic:       env.Topic,
		Attempts:    attempts,
		PublishedAt: time.Now().UTC(),
	}, nil
}
