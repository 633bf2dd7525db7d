package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/campusflow/gateway/internal/core/domain"
	"github.com/campusflow/gateway/internal/core/ports"
	"github.com/campusflow/gateway/internal/pkg/metrics"
)

const defaultSubmissionTopic = "sf.events"

type SubmissionConfig struct {
	Topic string
	// DedupWindow is how long an identical submission is suppressed. Zero
	// disables suppression.
	DedupWindow time.Duration
}

type submissionService struct {
	publisher ports.EventPublisher
	dedup     ports.SubmissionDedup
	topic     string
	window    time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

// NewSubmissionService returns a SubmissionService. dedup may be nil.
func NewSubmissionService(
	publisher ports.EventPublisher,
	dedup ports.SubmissionDedup,
	cfg SubmissionConfig,
	log zerolog.Logger,
) ports.SubmissionService {
	if cfg.Topic == "" {
		cfg.Topic = defaultSubmissionTopic
	}
	return &submissionService{
		publisher: publisher,
		dedup:     dedup,
		topic:     cfg.Topic,
		window:    cfg.DedupWindow,
		log:       log,
		now:       time.Now,
	}
}

// Submit builds the submission event and hands it to the publisher.
func (s *submissionService) Submit(ctx context.Context, submitter domain.Principal, in ports.SubmitInput) (*ports.SubmitResult, error) {
	if submitter.Subject == "" {
		return nil, domain.ErrInvalidToken
	}
	if strings.TrimSpace(in.FullName) == "" || strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.Message) == "" {
		return nil, fmt.Errorf("%w: fullName, email and message are required", domain.ErrValidation)
	}

	sub := domain.NewSubmission(submitter, in.FullName, in.Email, in.Message, s.now())

	// 1. Optional suppression of identical submissions.
	reserved := false
	fp := ""
	if s.dedup != nil && s.window > 0 {
		fp = sub.Fingerprint()
		ok, err := s.dedup.Reserve(ctx, fp, s.window)
		switch {
		case err != nil:
			metrics.SubmissionDedupTotal.WithLabelValues("error").Inc()
			s.log.Warn().Err(err).Str("submitter", sub.SubmitterUsername).Msg("dedup reserve failed, publishing anyway")
		case !ok:
			metrics.SubmissionDedupTotal.WithLabelValues("duplicate").Inc()
			s.log.Debug().Str("submitter", sub.SubmitterUsername).Msg("duplicate submission ignored")
			return &ports.SubmitResult{Duplicate: true}, nil
		default:
			metrics.SubmissionDedupTotal.WithLabelValues("reserved").Inc()
			reserved = true
		}
	}

	// 2. Publish.
	receipt, err := s.publisher.Publish(ctx, ports.Envelope{
		Topic:   s.topic,
		Key:     sub.Email,
		Payload: sub.Event(),
	})
	if err != nil {
		// 3. Free the fingerprint so a retry after an outage is not suppressed.
		if reserved {
			if relErr := s.dedup.Release(context.WithoutCancel(ctx), fp); relErr != nil {
				s.log.Warn().Err(relErr).Msg("dedup release failed")
			}
		}
		return nil, fmt.Errorf("submit: %w", err)
	}

	s.log.Info().
		Str("submitter", sub.SubmitterUsername).
		Str("event_id", receipt.EventID).
		Int("attempts", receipt.Attempts).
		Msg("submission queued")

	return &ports.SubmitResult{Receipt: receipt}, nil
}
