package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
)

// Token size constants (in bytes before encoding).
const (
	// TokenSize128 provides 128 bits of entropy (22 chars base64url).
	TokenSize128 = 16
	// TokenSize256 provides 256 bits of entropy (43 chars base64url).
	TokenSize256 = 32
)

// CodeAlphabet is the fixed alphabet used for human-pasteable codes such
// as invite codes. Alphanumeric only so codes survive URLs and email
// clients unescaped.
const CodeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateToken creates a cryptographically secure random token of the
// specified byte length, returned base64url-encoded without padding.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateCode creates a cryptographically random code of the given
// length over CodeAlphabet. Used for invite codes where the value is
// typed or pasted by a person rather than a client library.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("code length must be positive, got %d", length)
	}

	max := big.NewInt(int64(len(CodeAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random code: %w", err)
		}
		out[i] = CodeAlphabet[n.Int64()]
	}

	return string(out), nil
}

// FingerprintToken returns a deterministic SHA-256 fingerprint of a token.
// This is used as the cache key for one-time tokens so the raw secret is
// never stored verbatim in the backend.
//
// The fingerprint is returned as a base64url-encoded string (43 chars).
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
