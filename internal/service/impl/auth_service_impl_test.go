package impl

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"invoicepro/internal/domain"
	"invoicepro/internal/dto"
	"invoicepro/internal/store"

	"github.com/google/uuid"
)

type memoryUserStore struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]domain.User
	saveErr error
	findErr error
	saves   int

	// raceOnCreate simulates a concurrent signup that wins the unique index.
	raceOnCreate bool
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{byID: map[uuid.UUID]domain.User{}}
}

func (m *memoryUserStore) Create(ctx context.Context, usr *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raceOnCreate {
		return store.ErrDuplicateEmail
	}
	for _, u := range m.byID {
		if u.Email == usr.Email {
			return store.ErrDuplicateEmail
		}
	}
	now := time.Now().UTC()
	usr.CreatedAt, usr.UpdatedAt = now, now
	m.byID[usr.ID] = *usr
	return nil
}

func (m *memoryUserStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, store.ErrRecordNotFound
	}
	return &u, nil
}

func (m *memoryUserStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, u := range m.byID {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, store.ErrRecordNotFound
}

func (m *memoryUserStore) Save(ctx context.Context, usr *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, ok := m.byID[usr.ID]; !ok {
		return store.ErrRecordNotFound
	}
	m.byID[usr.ID] = *usr
	return nil
}

func (m *memoryUserStore) get(id uuid.UUID) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

type authFixture struct {
	svc    *AuthServiceImpl
	users  *memoryUserStore
	tokens *TokenServiceImpl
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	users := newMemoryUserStore()
	tokens := newTokenService(t, time.Hour)
	svc := NewAuthServiceImpl(users, fastPasswordService(1), tokens, NewCodeServiceImpl(6, &recordingSender{}))
	return &authFixture{svc: svc, users: users, tokens: tokens}
}

func validSignup() dto.SignupRequest {
	return dto.SignupRequest{
		Name:            "Ann",
		Email:           "Ann@X.com",
		Password:        "Passw0rdX",
		ConfirmPassword: "Passw0rdX",
	}
}

func requireKind(t *testing.T, err error, kind error, msg string) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
	var de *domain.Error
	if !errors.As(err, &de) {
		t.Fatalf("expected *domain.Error, got %T", err)
	}
	if msg != "" && de.Message != msg {
		t.Fatalf("expected message %q, got %q", msg, de.Message)
	}
}

func TestAuthServiceSignupCreatesUser(t *testing.T) {
	f := newAuthFixture(t)

	u, err := f.svc.Signup(context.Background(), validSignup(), "203.0.113.7")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if u.Email != "ann@x.com" {
		t.Fatalf("expected normalized email, got %q", u.Email)
	}
	if !u.TwoFactorEnabled || u.TwoFactorVerified {
		t.Fatalf("unexpected 2fa flags: enabled=%v verified=%v", u.TwoFactorEnabled, u.TwoFactorVerified)
	}
	if u.LastIP != "203.0.113.7" {
		t.Fatalf("expected last ip recorded, got %q", u.LastIP)
	}
	if u.PasswordHash == "" || strings.Contains(u.PasswordHash, "Passw0rdX") {
		t.Fatalf("password not hashed: %q", u.PasswordHash)
	}
	stored := f.users.get(u.ID)
	if stored.Email != "ann@x.com" {
		t.Fatalf("user not persisted")
	}
}

func TestAuthServiceSignupValidations(t *testing.T) {
	f := newAuthFixture(t)

	cases := []struct {
		name   string
		mutate func(r *dto.SignupRequest)
		msg    string
	}{
		{"missing name", func(r *dto.SignupRequest) { r.Name = "   " }, "All fields are required"},
		{"missing confirm", func(r *dto.SignupRequest) { r.ConfirmPassword = "" }, "All fields are required"},
		{"bad email", func(r *dto.SignupRequest) { r.Email = "ann@x" }, "Invalid email format"},
		{"email with surrounding space", func(r *dto.SignupRequest) { r.Email = " ann@x.com" }, "Invalid email format"},
		{"blank email", func(r *dto.SignupRequest) { r.Email = "  " }, "All fields are required"},
		{"weak password", func(r *dto.SignupRequest) { r.Password, r.ConfirmPassword = "password1", "password1" }, "Password must be at least 8 characters and contain uppercase, lowercase and a number"},
		{"short password", func(r *dto.SignupRequest) { r.Password, r.ConfirmPassword = "Pa1", "Pa1" }, "Password must be at least 8 characters and contain uppercase, lowercase and a number"},
		// strength is checked before the match
		{"weak and mismatched", func(r *dto.SignupRequest) { r.Password = "weak" }, "Password must be at least 8 characters and contain uppercase, lowercase and a number"},
		{"mismatch", func(r *dto.SignupRequest) { r.ConfirmPassword = "Passw0rdY" }, "Passwords do not match"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validSignup()
			tc.mutate(&req)
			_, err := f.svc.Signup(context.Background(), req, "")
			requireKind(t, err, domain.ErrValidation, tc.msg)
		})
	}
	if len(f.users.byID) != 0 {
		t.Fatalf("no user should be created on validation failure")
	}
}

func TestAuthServiceSignupDuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	if _, err := f.svc.Signup(context.Background(), validSignup(), ""); err != nil {
		t.Fatalf("first signup: %v", err)
	}

	again := validSignup()
	again.Email = "ANN@x.com"
	_, err := f.svc.Signup(context.Background(), again, "")
	requireKind(t, err, domain.ErrConflict, "User with this email already exists")
}

func TestAuthServiceSignupLostRaceIsConflict(t *testing.T) {
	f := newAuthFixture(t)
	f.users.raceOnCreate = true

	_, err := f.svc.Signup(context.Background(), validSignup(), "")
	requireKind(t, err, domain.ErrConflict, "User with this email already exists")
}

func TestAuthServiceSignupStoreFailureIsTransport(t *testing.T) {
	f := newAuthFixture(t)
	f.users.findErr = errors.New("connection refused")

	_, err := f.svc.Signup(context.Background(), validSignup(), "")
	requireKind(t, err, domain.ErrTransport, "Internal server error")
}

func TestAuthServiceLoginResetsVerification(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	u, err := f.svc.Signup(ctx, validSignup(), "10.0.0.1")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	stored := f.users.get(u.ID)
	stored.TwoFactorVerified = true
	f.users.byID[u.ID] = stored

	got, err := f.svc.Login(ctx, dto.LoginRequest{Email: " ann@X.com ", Password: "Passw0rdX"}, "10.0.0.2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("wrong user")
	}
	after := f.users.get(u.ID)
	if after.TwoFactorVerified {
		t.Fatalf("login must reset two-factor verification")
	}
	if after.LastIP != "10.0.0.2" {
		t.Fatalf("expected last ip refreshed, got %q", after.LastIP)
	}
}

func TestAuthServiceLoginRejectsBadCredentials(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Signup(ctx, validSignup(), ""); err != nil {
		t.Fatalf("signup: %v", err)
	}

	_, err := f.svc.Login(ctx, dto.LoginRequest{Email: "ann@x.com", Password: "Wrong0ne"}, "")
	requireKind(t, err, domain.ErrAuthentication, "Invalid email or password")

	_, err = f.svc.Login(ctx, dto.LoginRequest{Email: "bob@x.com", Password: "Passw0rdX"}, "")
	requireKind(t, err, domain.ErrAuthentication, "Invalid email or password")

	_, err = f.svc.Login(ctx, dto.LoginRequest{Email: "", Password: "Passw0rdX"}, "")
	requireKind(t, err, domain.ErrValidation, "")
}

type countingPasswordService struct {
	*PasswordServiceImpl
	verifies int
}

func (c *countingPasswordService) Verify(password, encoded string) (bool, bool) {
	c.verifies++
	return c.PasswordServiceImpl.Verify(password, encoded)
}

func TestAuthServiceLoginUnknownEmailStillVerifies(t *testing.T) {
	f := newAuthFixture(t)
	counting := &countingPasswordService{PasswordServiceImpl: fastPasswordService(1)}
	f.svc.PasswordService = counting
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.Login(ctx, dto.LoginRequest{Email: "nobody@x.com", Password: "Passw0rdX"}, "")
		requireKind(t, err, domain.ErrAuthentication, "Invalid email or password")
	}
	if counting.verifies != 2 {
		t.Fatalf("expected a password verification per unknown-email login, got %d", counting.verifies)
	}
}

func TestAuthServiceLoginRehashesWhenNeeded(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	u, err := f.svc.Signup(ctx, validSignup(), "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	oldHash := f.users.get(u.ID).PasswordHash

	// policy bump
	f.svc.PasswordService = fastPasswordService(2)
	if _, err := f.svc.Login(ctx, dto.LoginRequest{Email: "ann@x.com", Password: "Passw0rdX"}, ""); err != nil {
		t.Fatalf("login: %v", err)
	}
	newHash := f.users.get(u.ID).PasswordHash
	if newHash == oldHash {
		t.Fatalf("expected hash to be upgraded")
	}
	if ok, rehash := f.svc.PasswordService.Verify("Passw0rdX", newHash); !ok || rehash {
		t.Fatalf("upgraded hash should verify under the new policy: ok=%v rehash=%v", ok, rehash)
	}
}

func TestAuthServiceVerifyTwoFactorOrderedChecks(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	u, err := f.svc.Signup(ctx, validSignup(), "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	token, _, err := f.tokens.Issue(u.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	orphan, _, err := f.tokens.Issue(uuid.New())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	cases := []struct {
		name                     string
		submitted, stored, token string
		kind                     error
		msg                      string
	}{
		{"empty code", "", "123456", token, domain.ErrValidation, "Verification code is required"},
		{"no stored code", "123456", "", token, domain.ErrValidation, "Verification code expired or not found"},
		// code mismatch wins over a missing session
		{"mismatch", "654321", "123456", "", domain.ErrAuthentication, "Invalid verification code"},
		{"no session", "123456", "123456", "", domain.ErrAuthentication, "Not authenticated"},
		{"garbage session", "123456", "123456", "not-a-jwt", domain.ErrAuthentication, "Not authenticated"},
		{"unknown user", "123456", "123456", orphan, domain.ErrNotFound, "User not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.VerifyTwoFactor(ctx, tc.submitted, tc.stored, tc.token)
			requireKind(t, err, tc.kind, tc.msg)
		})
	}
	if f.users.get(u.ID).TwoFactorVerified {
		t.Fatalf("failed verifications must not change state")
	}

	got, err := f.svc.VerifyTwoFactor(ctx, "123456", "123456", token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !got.TwoFactorVerified || got.NeedsVerification() {
		t.Fatalf("expected verified user")
	}
	if !f.users.get(u.ID).TwoFactorVerified {
		t.Fatalf("verification not persisted")
	}
}

func TestAuthServiceVerifyTwoFactorSaveFailure(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	u, err := f.svc.Signup(ctx, validSignup(), "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	token, _, _ := f.tokens.Issue(u.ID)
	f.users.saveErr = errors.New("disk full")

	_, err = f.svc.VerifyTwoFactor(ctx, "123456", "123456", token)
	requireKind(t, err, domain.ErrTransport, "Internal server error")
}

func TestAuthServiceCurrentUser(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	u, err := f.svc.Signup(ctx, validSignup(), "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	token, _, _ := f.tokens.Issue(u.ID)

	got, err := f.svc.CurrentUser(ctx, token)
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if got.ID != u.ID || !got.NeedsVerification() {
		t.Fatalf("unexpected user state: %+v", got)
	}

	_, err = f.svc.CurrentUser(ctx, "")
	requireKind(t, err, domain.ErrAuthentication, "Not authenticated")

	f.users.findErr = errors.New("timeout")
	_, err = f.svc.CurrentUser(ctx, token)
	requireKind(t, err, domain.ErrTransport, "Internal server error")
}
