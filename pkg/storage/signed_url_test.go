package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("unit-secret", time.Hour)

	token, expiresAt, err := signer.Generate("job-1", "reports_20260901.csv")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	jobID, relPath, parsedExp, err := signer.Parse(token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, "reports_20260901.csv", relPath)
	assert.Equal(t, expiresAt.Unix(), parsedExp.Unix())
}

func TestSignedURLRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("unit-secret", time.Hour)

	token, _, err := signer.Generate("job-1", "reports.csv")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	parts[0] = "job-2"
	_, _, _, err = signer.Parse(strings.Join(parts, "."), false)
	assert.ErrorIs(t, err, ErrTokenSignature)
}

func TestSignedURLRejectsForeignSecret(t *testing.T) {
	signer := NewSignedURLSigner("unit-secret", time.Hour)
	other := NewSignedURLSigner("another-secret", time.Hour)

	token, _, err := signer.Generate("job-1", "reports.csv")
	require.NoError(t, err)

	_, _, _, err = other.Parse(token, false)
	assert.ErrorIs(t, err, ErrTokenSignature)
}

func TestSignedURLExpiry(t *testing.T) {
	signer := &SignedURLSigner{secret: []byte("unit-secret"), ttl: -time.Minute}

	token, _, err := signer.Generate("job-1", "reports.csv")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token, false)
	assert.ErrorIs(t, err, ErrTokenExpired)

	jobID, relPath, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, "reports.csv", relPath)
}

func TestSignedURLMalformedToken(t *testing.T) {
	signer := NewSignedURLSigner("unit-secret", time.Hour)

	_, _, _, err := signer.Parse("not-a-token", false)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}
