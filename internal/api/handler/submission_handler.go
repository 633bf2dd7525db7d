package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/campusflow/gateway/internal/core/ports"
)

type SubmissionHandler struct {
	submissionService ports.SubmissionService
}

func NewSubmissionHandler(submissionService ports.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissionService: submissionService}
}

// Submit handles POST /sf/submit. The event is durable once 202 is returned.
func (h *SubmissionHandler) Submit(c echo.Context) error {
	submitter, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	var req submitRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.submissionService.Submit(c.Request().Context(), submitter, ports.SubmitInput{
		FullName: req.FullName,
		Email:    req.Email,
		Message:  req.Message,
	})
	if err != nil {
		return err
	}

	if res.Duplicate {
		return c.JSON(http.StatusAccepted, submitResponse{Status: "duplicate_ignored"})
	}
	return c.JSON(http.StatusAccepted, submitResponse{Status: "queued", Receipt: res.Receipt})
}
