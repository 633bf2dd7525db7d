package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/campusflow/gateway/internal/core/domain"
	"github.com/campusflow/gateway/internal/core/ports"
)

type stubSubmissionService struct {
	submitFn func(ctx context.Context, submitter domain.Principal, in ports.SubmitInput) (*ports.SubmitResult, error)
}

func (s *stubSubmissionService) Submit(ctx context.Context, submitter domain.Principal, in ports.SubmitInput) (*ports.SubmitResult, error) {
	return s.submitFn(ctx, submitter, in)
}

const validForm = `{"fullName":"Alice Liddell","email":"alice@example.com","message":"hello"}`

func TestSubmissionHandler_Queued(t *testing.T) {
	stub := &stubSubmissionService{
		submitFn: func(ctx context.Context, submitter domain.Principal, in ports.SubmitInput) (*ports.SubmitResult, error) {
			if submitter.Subject != "alice" || in.Email != "alice@example.com" {
				t.Fatalf("unexpected args %+v %+v", submitter, in)
			}
			return &ports.SubmitResult{Receipt: &domain.PublishReceipt{EventID: "evt-1", MessageID: "1-0", Topic: "sf.events", Attempts: 1}}, nil
		},
	}

	c, rec := newContext(http.MethodPost, "/sf/submit", validForm, &domain.Principal{Subject: "alice", Role: domain.RoleStudent})
	if err := NewSubmissionHandler(stub).Submit(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	var resp struct {
		Status  string                `json:"status"`
		Receipt domain.PublishReceipt `json:"receipt"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Status != "queued" || resp.Receipt.EventID != "evt-1" {
		t.Fatalf("unexpected payload %+v", resp)
	}
}

func TestSubmissionHandler_Duplicate(t *testing.T) {
	stub := &stubSubmissionService{
		submitFn: func(ctx context.Context, submitter domain.Principal, in ports.SubmitInput) (*ports.SubmitResult, error) {
			return &ports.SubmitResult{Duplicate: true}, nil
		},
	}

	c, rec := newContext(http.MethodPost, "/sf/submit", validForm, &domain.Principal{Subject: "alice", Role: domain.RoleStudent})
	if err := NewSubmissionHandler(stub).Submit(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusAccepted || rec.Body.String() != "{\"status\":\"duplicate_ignored\"}\n" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
}

func TestSubmissionHandler_Errors(t *testing.T) {
	alice := &domain.Principal{Subject: "alice", Role: domain.RoleStudent}
	cases := []struct {
		name    string
		body    string
		svcErr  error
		wantErr error
	}{
		{name: "bad email", body: `{"fullName":"A","email":"nope","message":"m"}`, wantErr: domain.ErrValidation},
		{name: "missing message", body: `{"fullName":"A","email":"a@x.io"}`, wantErr: domain.ErrValidation},
		{name: "channel down", body: validForm, svcErr: domain.ErrPublishUnavailable, wantErr: domain.ErrPublishUnavailable},
		{name: "rejected", body: validForm, svcErr: domain.ErrPublishRejected, wantErr: domain.ErrPublishRejected},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubSubmissionService{
				submitFn: func(ctx context.Context, submitter domain.Principal, in ports.SubmitInput) (*ports.SubmitResult, error) {
					if tc.svcErr == nil {
						t.Fatalf("service must not be called")
					}
					return nil, tc.svcErr
				},
			}
			c, _ := newContext(http.MethodPost, "/sf/submit", tc.body, alice)
			if err := NewSubmissionHandler(stub).Submit(c); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}
