package service

type PasswordService interface {
	// Hash returns a self-describing encoded hash of password.
	Hash(password string) (string, error)
	// Verify reports whether password matches encoded, and whether encoded
	// was produced under an outdated policy and should be replaced.
	Verify(password, encoded string) (ok bool, rehashNeeded bool)
}
