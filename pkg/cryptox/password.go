package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters. RFC 9106 second recommended option; tuned for an
// interactive login path rather than offline key derivation.
const (
	saltLength  = 16
	iterations  = 3
	memory      = 64 * 1024
	parallelism = 4
	keyLength   = 32
)

// HashPassword generates a PHC-format Argon2id hash string including salt
// and parameters.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, keyLength)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf(
		"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memory, iterations, parallelism, b64Salt, b64Hash,
	), nil
}

// VerifyPassword compares a plaintext password against a PHC-style
// Argon2id hash in constant time.
func VerifyPassword(password, encodedHash string) error {
	// PHC format: $argon2id$v=19$m=X,t=Y,p=Z$salt$hash
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != "v=19" {
		return errors.New("invalid hash format")
	}

	var (
		mem, iters uint32
		par        uint8
	)
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &par); err != nil {
		return errors.New("invalid hash format: bad parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return errors.New("invalid hash format: bad salt")
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return errors.New("invalid hash format: bad hash")
	}

	got := argon2.IDKey([]byte(password), salt, iters, mem, par, uint32(len(expected)))
	if subtle.ConstantTimeCompare(got, expected) != 1 {
		return errors.New("password mismatch")
	}
	return nil
}
