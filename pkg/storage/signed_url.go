package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Token validation failures callers may want to distinguish.
var (
	ErrTokenMalformed = errors.New("malformed download token")
	ErrTokenSignature = errors.New("download token signature mismatch")
	ErrTokenExpired   = errors.New("download token expired")
)

// SignedURLSigner mints and verifies HMAC download tokens. A token binds a
// job id and a relative file path to an expiry timestamp, so links can be
// shared without authentication and still go stale on schedule.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewSignedURLSigner builds a signer. A non-positive ttl falls back to 24h.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl}
}

// Generate signs jobID and relPath into an opaque token with the signer's TTL.
func (s *SignedURLSigner) Generate(jobID, relPath string) (string, time.Time, error) {
	if jobID == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("signing requires a job id and file path")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret is empty")
	}

	expiresAt := time.Now().Add(s.ttl)
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	encPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))

	token := strings.Join([]string{jobID, exp, encPath, s.sign(jobID, exp, encPath)}, ".")
	return token, expiresAt, nil
}

// Parse verifies a token and returns its embedded job id, file path and
// expiry. Cleanup routines pass allowExpired to resolve paths of tokens
// that are already stale.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (string, string, time.Time, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, ErrTokenMalformed
	}
	jobID, exp, encPath, sig := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(jobID, exp, encPath)), []byte(sig)) {
		return "", "", time.Time{}, ErrTokenSignature
	}

	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return "", "", time.Time{}, ErrTokenMalformed
	}
	expiresAt := time.Unix(expUnix, 0)
	if !allowExpired && time.Now().After(expiresAt) {
		return "", "", time.Time{}, ErrTokenExpired
	}

	rawPath, err := base64.RawURLEncoding.DecodeString(encPath)
	if err != nil {
		return "", "", time.Time{}, ErrTokenMalformed
	}
	return jobID, string(rawPath), expiresAt, nil
}

func (s *SignedURLSigner) sign(jobID, exp, encPath string) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%s|%s", jobID, exp, encPath)
	return hex.EncodeToString(mac.Sum(nil))
}
