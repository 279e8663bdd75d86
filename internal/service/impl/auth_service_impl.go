package impl

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"invoicepro/internal/domain"
	"invoicepro/internal/dto"
	"invoicepro/internal/observability/metrics"
	"invoicepro/internal/observability/middleware"
	"invoicepro/internal/service"
	"invoicepro/internal/store"

	"github.com/google/uuid"
)

var _ service.AuthService = (*AuthServiceImpl)(nil)

type AuthServiceImpl struct {
	Users           UserStore
	PasswordService service.PasswordService
	TService        service.TokenService
	Codes           service.CodeService

	// dummyHash is verified against on unknown emails so a miss costs the
	// same argon2 work as a wrong password.
	dummyOnce sync.Once
	dummyHash string
}

// UserStore is satisfied by both *store.UserStore and *mongostore.UserStore.
type UserStore interface {
	Create(ctx context.Context, usr *domain.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Save(ctx context.Context, usr *domain.User) error
}

func NewAuthServiceImpl(users UserStore, passwordService service.PasswordService, tokenService service.TokenService, codes service.CodeService) *AuthServiceImpl {
	return &AuthServiceImpl{
		Users:           users,
		PasswordService: passwordService,
		TService:        tokenService,
		Codes:           codes,
	}
}

func (a *AuthServiceImpl) Signup(ctx context.Context, r dto.SignupRequest, ip string) (*domain.User, error) {
	result := "success"
	defer func() {
		metrics.AuthSignupsTotal.WithLabelValues(result).Inc()
	}()
	log := middleware.Logger(ctx)

	if err := validateSignup(&r); err != nil {
		result = "invalid"
		return nil, err
	}
	email := store.NormalizeEmail(r.Email)

	// Pre-check for a friendly 409. It is not atomic; the unique index on
	// email catches concurrent signups in Create below.
	if _, err := a.Users.FindByEmail(ctx, email); err == nil {
		result = "conflict"
		return nil, domain.Conflict("User with this email already exists")
	} else if !errors.Is(err, store.ErrRecordNotFound) {
		result = "failure"
		return nil, domain.Transport(err)
	}

	hash, err := a.PasswordService.Hash(r.Password)
	if err != nil {
		result = "failure"
		return nil, domain.Transport(err)
	}

	u := &domain.User{
		ID:                uuid.New(),
		Email:             email,
		PasswordHash:      hash,
		Name:              r.Name,
		TwoFactorEnabled:  true,
		TwoFactorVerified: false,
		LastIP:            ip,
	}
	if err := a.Users.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			result = "conflict"
			log.Warn("signup lost race on unique email", "email", email)
			return nil, domain.Conflict("User with this email already exists")
		}
		result = "failure"
		return nil, domain.Transport(err)
	}

	log.Info("user signed up", "user_id", u.ID, "ip", ip)
	return u, nil
}

func (a *AuthServiceImpl) Login(ctx context.Context, r dto.LoginRequest, ip string) (*domain.User, error) {
	result := "success"
	defer func() {
		metrics.AuthLoginsTotal.WithLabelValues(result).Inc()
	}()
	log := middleware.Logger(ctx)

	email := store.NormalizeEmail(r.Email)
	if email == "" || r.Password == "" {
		result = "invalid"
		return nil, domain.Validation("Email and password are required")
	}

	user, err := a.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			result = "failure"
			a.verifyDummy(r.Password)
			return nil, domain.Unauthenticated("Invalid email or password") // don't leak which field failed
		}
		result = "failure"
		return nil, domain.Transport(err)
	}

	ok, rehashNeeded := a.PasswordService.Verify(r.Password, user.PasswordHash)
	if !ok {
		result = "failure"
		return nil, domain.Unauthenticated("Invalid email or password")
	}

	// transparent rehash (policy upgrade)
	if rehashNeeded {
		if newHash, err := a.PasswordService.Hash(r.Password); err == nil {
			user.PasswordHash = newHash
		} else {
			log.Warn("password rehash failed", "user_id", user.ID, "error", err)
		}
	}

	user.LastIP = ip
	// Verification is per session; a new login owes a new code.
	if user.TwoFactorEnabled {
		user.TwoFactorVerified = false
	}
	if err := a.Users.Save(ctx, user); err != nil {
		result = "failure"
		return nil, domain.Transport(err)
	}

	log.Info("user logged in", "user_id", user.ID, "ip", ip, "rehashed", rehashNeeded)
	return user, nil
}

func (a *AuthServiceImpl) verifyDummy(password string) {
	a.dummyOnce.Do(func() {
		hash, err := a.PasswordService.Hash(uuid.NewString())
		if err != nil {
			slog.Warn("dummy password hash failed", "error", err)
			return
		}
		a.dummyHash = hash
	})
	if a.dummyHash != "" {
		_, _ = a.PasswordService.Verify(password, a.dummyHash)
	}
}

// VerifyTwoFactor checks the code before touching the session so a wrong
// code never reveals whether the session is valid.
func (a *AuthServiceImpl) VerifyTwoFactor(ctx context.Context, submitted, stored, sessionToken string) (*domain.User, error) {
	result := "success"
	defer func() {
		metrics.TwoFactorVerificationsTotal.WithLabelValues(result).Inc()
	}()

	submitted = strings.TrimSpace(submitted)
	if submitted == "" {
		result = "invalid"
		return nil, domain.Validation("Verification code is required")
	}
	if stored == "" {
		result = "expired"
		return nil, domain.Validation("Verification code expired or not found")
	}
	if !a.Codes.Matches(submitted, stored) {
		result = "mismatch"
		return nil, domain.Unauthenticated("Invalid verification code")
	}

	user, err := a.CurrentUser(ctx, sessionToken)
	if err != nil {
		result = "failure"
		return nil, err
	}

	user.TwoFactorVerified = true
	if err := a.Users.Save(ctx, user); err != nil {
		result = "failure"
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, domain.NotFound("User not found")
		}
		return nil, domain.Transport(err)
	}

	middleware.Logger(ctx).Info("two-factor verified", "user_id", user.ID)
	return user, nil
}

func (a *AuthServiceImpl) CurrentUser(ctx context.Context, sessionToken string) (*domain.User, error) {
	userID, err := a.TService.Resolve(sessionToken)
	if err != nil {
		return nil, domain.Unauthenticated("Not authenticated")
	}
	user, err := a.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, domain.NotFound("User not found")
		}
		return nil, domain.Transport(err)
	}
	return user, nil
}
