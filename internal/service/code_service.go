package service

import (
	"context"

	"invoicepro/internal/domain"
)

// CodeService owns the verification-code channel: generation, out-of-band
// delivery and comparison. Storage is the caller's cookie.
type CodeService interface {
	Issue(ctx context.Context, user *domain.User, flow string) (string, error)
	Matches(submitted, stored string) bool
}

type CodeSender interface {
	SendCode(ctx context.Context, to, code string) error
}
