package impl

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

type Argon2Params struct {
	// Encoded alongside the hash so verification uses the original cost.
	Time    uint32 // iterations
	Memory  uint32 // KiB (e.g., 64*1024 = 64MB)
	Threads uint8  // parallelism
	KeyLen  uint32 // bytes (e.g., 32)
	SaltLen uint32 // bytes (e.g., 16)
}

// PasswordServiceImpl produces hashes of the form
// $argon2id$v=<policy>$t=<time>,m=<memory>,p=<threads>$<salt>$<key>
// with unpadded base64 salt and key.
type PasswordServiceImpl struct {
	currentVer int          // bump when you change policy
	cur        Argon2Params // current policy used for new hashes
	algoName   string       // "argon2id"
}

func NewPasswordServiceArgon2id() *PasswordServiceImpl {
	return NewPasswordServiceWithParams(1, Argon2Params{
		Time:    3,
		Memory:  64 * 1024, // 64 MiB
		Threads: 1,
		KeyLen:  32,
		SaltLen: 16,
	})
}

func NewPasswordServiceWithParams(ver int, p Argon2Params) *PasswordServiceImpl {
	return &PasswordServiceImpl{currentVer: ver, cur: p, algoName: "argon2id"}
}

func (p *PasswordServiceImpl) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	salt := make([]byte, p.cur.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, p.cur.Time, p.cur.Memory, p.cur.Threads, p.cur.KeyLen)
	return fmt.Sprintf("$%s$v=%d$t=%d,m=%d,p=%d$%s$%s",
		p.algoName, p.currentVer,
		p.cur.Time, p.cur.Memory, p.cur.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (p *PasswordServiceImpl) Verify(password, encoded string) (ok bool, rehashNeeded bool) {
	algo, ver, stored, salt, key, err := decodeHash(encoded)
	if err != nil || algo != p.algoName {
		return false, false
	}
	calculated := argon2.IDKey([]byte(password), salt, stored.Time, stored.Memory, stored.Threads, uint32(len(key)))
	ok = subtle.ConstantTimeCompare(calculated, key) == 1

	// Rehash if policy changed (params or version)
	rehashNeeded = ok && (ver != p.currentVer ||
		stored.Time != p.cur.Time ||
		stored.Memory != p.cur.Memory ||
		stored.Threads != p.cur.Threads ||
		uint32(len(key)) != p.cur.KeyLen ||
		uint32(len(salt)) != p.cur.SaltLen)

	return ok, rehashNeeded
}

func decodeHash(encoded string) (algo string, ver int, params Argon2Params, salt, key []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return "", 0, params, nil, nil, ErrMalformedHash
	}
	algo = parts[1]
	if _, err = fmt.Sscanf(parts[2], "v=%d", &ver); err != nil {
		return "", 0, params, nil, nil, ErrMalformedHash
	}
	if _, err = fmt.Sscanf(parts[3], "t=%d,m=%d,p=%d", &params.Time, &params.Memory, &params.Threads); err != nil {
		return "", 0, params, nil, nil, ErrMalformedHash
	}
	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return "", 0, params, nil, nil, ErrMalformedHash
	}
	if key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(key) == 0 {
		return "", 0, params, nil, nil, ErrMalformedHash
	}
	params.SaltLen = uint32(len(salt))
	params.KeyLen = uint32(len(key))
	return algo, ver, params, salt, key, nil
}
