package service

import (
	"context"

	"invoicepro/internal/domain"
	"invoicepro/internal/dto"
)

type AuthService interface {
	Signup(ctx context.Context, r dto.SignupRequest, ip string) (*domain.User, error)
	Login(ctx context.Context, r dto.LoginRequest, ip string) (*domain.User, error)
	// VerifyTwoFactor checks submitted against the code stored for the
	// browser and, on a match, marks the session's user as verified.
	VerifyTwoFactor(ctx context.Context, submitted, stored, sessionToken string) (*domain.User, error)
	// CurrentUser resolves the session token to its user.
	CurrentUser(ctx context.Context, sessionToken string) (*domain.User, error)
}
