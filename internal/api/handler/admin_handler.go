package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/campusflow/gateway/internal/core/ports"
)

// AdminHandler serves the ADMIN-only routes. The router applies the role
// guard; the handler only needs the actor for auditing.
type AdminHandler struct {
	adminService ports.AdminService
}

func NewAdminHandler(adminService ports.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

func (h *AdminHandler) ListUsers(c echo.Context) error {
	users, err := h.adminService.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return c.JSON(http.StatusOK, out)
}

// RotatePassword handles PUT /admin/users/:username/password.
func (h *AdminHandler) RotatePassword(c echo.Context) error {
	actor, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	var req rotatePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.adminService.RotatePassword(c.Request().Context(), actor, c.Param("username"), req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusResponse{Status: "ok"})
}
