package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SubmissionDedup reserves submission fingerprints with SET NX so that only
// the first of several identical submissions inside the window is published.
// Key format: dedup:submission:<sha256 hex>
type SubmissionDedup struct {
	client *redis.Client
}

func NewSubmissionDedup(client *redis.Client) *SubmissionDedup {
	return &SubmissionDedup{client: client}
}

// Reserve returns true when this call took the reservation.
func (d *SubmissionDedup) Reserve(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.key(fingerprint), time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup reserve: %w", err)
	}
	return ok, nil
}

// Release drops a reservation, used when the publish it guarded failed.
func (d *SubmissionDedup) Release(ctx context.Context, fingerprint string) error {
	if err := d.client.Del(ctx, d.key(fingerprint)).Err(); err != nil {
		return fmt.Errorf("dedup release: %w", err)
	}
	return nil
}

func (d *SubmissionDedup) key(fingerprint string) string {
	return fmt.Sprintf("dedup:submission:%s", fingerprint)
}
