package impl

import (
	"regexp"
	"strings"

	"invoicepro/internal/domain"
	"invoicepro/internal/dto"
)

const minPasswordLength = 8

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func validEmail(email string) bool { return emailPattern.MatchString(email) }

// strongPassword requires minPasswordLength characters with at least one
// of each ASCII class: A-Z, a-z and 0-9. Other characters count toward the
// length only.
func strongPassword(pw string) bool {
	if len([]rune(pw)) < minPasswordLength {
		return false
	}
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	return upper && lower && digit
}

func validateSignup(r *dto.SignupRequest) error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" || strings.TrimSpace(r.Email) == "" || r.Password == "" || r.ConfirmPassword == "" {
		return domain.Validation("All fields are required")
	}
	// checked as submitted; surrounding whitespace is a format error
	if !validEmail(r.Email) {
		return domain.Validation("Invalid email format")
	}
	if !strongPassword(r.Password) {
		return domain.Validation("Password must be at least 8 characters and contain uppercase, lowercase and a number")
	}
	if r.Password != r.ConfirmPassword {
		return domain.Validation("Passwords do not match")
	}
	return nil
}
