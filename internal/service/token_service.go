package service

import (
	"time"

	"invoicepro/internal/domain"
)

type TokenService interface {
	Issue(userID domain.UserID) (token string, expiresAt time.Time, err error)
	// Resolve is deterministic and side-effect free.
	Resolve(token string) (domain.UserID, error)
	PublicJWK() map[string]any
}
