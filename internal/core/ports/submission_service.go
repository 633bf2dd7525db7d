package ports

import (
	"context"

	"github.com/campusflow/gateway/internal/core/domain"
)

// SubmitInput is the DTO passed from the transport layer to SubmissionService.
type SubmitInput struct {
	FullName string
	Email    string
	Message  string
}

// SubmitResult reports either a published receipt or a suppressed duplicate.
type SubmitResult struct {
	Duplicate bool
	Receipt   *domain.PublishReceipt
}

type SubmissionService interface {
	Submit(ctx context.Context, submitter domain.Principal, in SubmitInput) (*SubmitResult, error)
}

// RegistrationService applies user-registered events read from the channel.
type RegistrationService interface {
	Process(ctx context.Context, evt domain.UserRegistered) error
}
