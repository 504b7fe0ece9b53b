package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignerGenerateAndParse(t *testing.T) {
	signer := NewSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("job-1", "job-1/attendance-summary.csv")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := signer.Parse(token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", claims.JobID)
	assert.Equal(t, "job-1/attendance-summary.csv", claims.Path)
	assert.WithinDuration(t, expiresAt, claims.ExpiresAt, time.Second)
}

func TestSignerRejectsExpiredUnlessAllowed(t *testing.T) {
	signer := NewSigner("secret", time.Minute)
	issued := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return issued }
	token, _, err := signer.Generate("job-1", "job-1/grades.pdf")
	require.NoError(t, err)

	signer.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = signer.Parse(token, false)
	assert.ErrorIs(t, err, ErrTokenExpired)

	claims, err := signer.Parse(token, true)
	require.NoError(t, err)
	assert.Equal(t, "job-1/grades.pdf", claims.Path)
}

func TestSignerRejectsTampering(t *testing.T) {
	signer := NewSigner("secret", time.Hour)
	token, _, err := signer.Generate("job-1", "job-1/a.csv")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	parts[0] = "job-2"
	_, err = signer.Parse(strings.Join(parts, "."), false)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewSigner("other", time.Hour).Parse(token, false)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = signer.Parse("not-a-token", false)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignerRequiresSecret(t *testing.T) {
	_, _, err := NewSigner("", time.Hour).Generate("job-1", "a.csv")
	assert.Error(t, err)
}
