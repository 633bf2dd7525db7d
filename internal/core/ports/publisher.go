package ports

import (
	"context"
	"time"

	"github.com/campusflow/gateway/internal/core/domain"
)

// Envelope is an event addressed to a topic. Key groups related events on
// the channel; Payload is serialized as JSON.
type Envelope struct {
	Topic   string
	Key     string
	Payload any
}

// EventPublisher delivers an event to the durable channel at least once.
// Errors match domain.ErrPublishUnavailable (transient) or
// domain.ErrPublishRejected (terminal).
type EventPublisher interface {
	Publish(ctx context.Context, env Envelope) (*domain.PublishReceipt, error)
}

// SubmissionDedup reserves submission fingerprints for a time window.
type SubmissionDedup interface {
	// Reserve returns false when the fingerprint is already held.
	Reserve(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, fingerprint string) error
}
