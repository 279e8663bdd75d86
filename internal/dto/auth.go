package dto

import (
	"time"

	"invoicepro/internal/domain"
)

type SignupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifyTwoFactorRequest struct {
	Code string `json:"code"`
}

// UserResponse is the public view of a user; it never carries the password hash.
type UserResponse struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	Name              string    `json:"name"`
	TwoFactorEnabled  bool      `json:"twoFactorEnabled"`
	TwoFactorVerified bool      `json:"twoFactorVerified"`
	LastIP            string    `json:"lastIp,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func NewUserResponse(u *domain.User) *UserResponse {
	if u == nil {
		return nil
	}
	return &UserResponse{
		ID:                u.ID.String(),
		Email:             u.Email,
		Name:              u.Name,
		TwoFactorEnabled:  u.TwoFactorEnabled,
		TwoFactorVerified: u.TwoFactorVerified,
		LastIP:            u.LastIP,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

type TwoFactorStatus struct {
	IsTwoFactorVerified bool `json:"isTwoFactorVerified"`
	NeedsVerification   bool `json:"needsVerification"`
}

type SessionResponse struct {
	Authenticated       bool          `json:"authenticated"`
	User                *UserResponse `json:"user,omitempty"`
	NeedsVerification   bool          `json:"needsVerification"`
	IsTwoFactorVerified bool          `json:"isTwoFactorVerified"`
}

type LoginResponse struct {
	User                *UserResponse `json:"user"`
	NeedsVerification   bool          `json:"needsVerification"`
	IsTwoFactorVerified bool          `json:"isTwoFactorVerified"`
}
