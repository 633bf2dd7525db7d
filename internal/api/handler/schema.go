package handler

import "github.com/campusflow/gateway/internal/core/domain"

type registerRequest struct {
	Username string `json:"username" validate:"required,max=64,printascii"`
	Password string `json:"password" validate:"required,max=72"`
	Role     string `json:"role"     validate:"required"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,max=72"`
}

type rotatePasswordRequest struct {
	NewPassword string `json:"newPassword" validate:"required,max=72"`
}

type submitRequest struct {
	FullName string `json:"fullName" validate:"required,max=200"`
	Email    string `json:"email"    validate:"required,email,max=254"`
	Message  string `json:"message"  validate:"required,max=5000"`
}

type userResponse struct {
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
}

type loginResponse struct {
	Token        string      `json:"token"`
	ExpiresInSec int64       `json:"expiresInSec"`
	Username     string      `json:"username"`
	Role         domain.Role `json:"role"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type submitResponse struct {
	Status  string                 `json:"status"`
	Receipt *domain.PublishReceipt `json:"receipt,omitempty"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{Username: u.Username, Role: u.Role}
}
