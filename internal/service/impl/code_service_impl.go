package impl

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"

	"invoicepro/internal/domain"
	"invoicepro/internal/observability/metrics"
	"invoicepro/internal/observability/middleware"
	"invoicepro/internal/service"
)

var _ service.CodeService = (*CodeServiceImpl)(nil)

type CodeServiceImpl struct {
	length int
	sender service.CodeSender
}

func NewCodeServiceImpl(length int, sender service.CodeSender) *CodeServiceImpl {
	return &CodeServiceImpl{length: length, sender: sender}
}

// Issue generates a fresh numeric code and hands it to the sender. The caller
// stores the returned code in the verification cookie.
func (c *CodeServiceImpl) Issue(ctx context.Context, user *domain.User, flow string) (string, error) {
	result := "success"
	defer func() {
		metrics.VerificationCodesIssuedTotal.WithLabelValues(flow, result).Inc()
	}()

	code, err := randomDigits(c.length)
	if err != nil {
		result = "failure"
		return "", err
	}
	if err := c.sender.SendCode(ctx, user.Email, code); err != nil {
		result = "failure"
		return "", fmt.Errorf("deliver verification code: %w", err)
	}
	return code, nil
}

// Matches compares in constant time for equal-length inputs.
func (c *CodeServiceImpl) Matches(submitted, stored string) bool {
	if submitted == "" || stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(stored)) == 1
}

func randomDigits(n int) (string, error) {
	digits := make([]byte, n)
	ten := big.NewInt(10)
	for i := range digits {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate verification code: %w", err)
		}
		digits[i] = byte('0' + d.Int64())
	}
	return string(digits), nil
}

// LogCodeSender "delivers" codes by writing them to the log. There is no
// mail transport yet.
type LogCodeSender struct{}

func (LogCodeSender) SendCode(ctx context.Context, to, code string) error {
	middleware.Logger(ctx).Info("verification code issued", "to", to, "code", code)
	return nil
}
