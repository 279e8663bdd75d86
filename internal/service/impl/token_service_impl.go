package impl

import (
	"errors"
	"time"

	"invoicepro/internal/domain"
	"invoicepro/internal/jwtsigner"

	"github.com/google/uuid"
)

var ErrInvalidSession = errors.New("invalid session token")

type TokenConfig struct {
	TTL time.Duration // session lifetime, e.g. 7 * 24h
}

// TokenServiceImpl mints and reads the auth_token session JWT. Sessions are
// not stored server side; the signature and expiry are the whole contract.
type TokenServiceImpl struct {
	cfg    TokenConfig
	signer *jwtsigner.Signer
	now    func() time.Time
}

func NewTokenServiceEdDSA(cfg TokenConfig, signer *jwtsigner.Signer) *TokenServiceImpl {
	return &TokenServiceImpl{
		cfg:    cfg,
		signer: signer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (t *TokenServiceImpl) Issue(userID domain.UserID) (string, time.Time, error) {
	now := t.now()
	tok, err := t.signer.Sign(userID.String(), now, t.cfg.TTL)
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, now.Add(t.cfg.TTL), nil
}

func (t *TokenServiceImpl) Resolve(token string) (domain.UserID, error) {
	if token == "" {
		return uuid.Nil, ErrInvalidSession
	}
	sub, err := t.signer.Subject(token)
	if err != nil {
		return uuid.Nil, ErrInvalidSession
	}
	id, err := uuid.Parse(sub)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, ErrInvalidSession
	}
	return id, nil
}

func (t *TokenServiceImpl) PublicJWK() map[string]any {
	return t.signer.PublicJWK()
}
