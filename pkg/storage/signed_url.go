package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken covers malformed tokens and signature mismatches.
	ErrInvalidToken = errors.New("storage: invalid download token")
	// ErrTokenExpired is returned once the token's expiry has passed.
	ErrTokenExpired = errors.New("storage: download token expired")
)

// DownloadClaims is the content of a download token.
type DownloadClaims struct {
	JobID     string
	Path      string
	ExpiresAt time.Time
}

// Signer issues HMAC-SHA256 download tokens of the form
// jobID.expiryUnix.base64(path).signature.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner builds a signer. A non-positive ttl defaults to 24h.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate signs a token for the stored file of a job.
func (s *Signer) Generate(jobID, path string) (string, time.Time, error) {
	if jobID == "" || path == "" || strings.Contains(jobID, ".") {
		return "", time.Time{}, ErrInvalidToken
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("storage: signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	payload := strings.Join([]string{
		jobID,
		strconv.FormatInt(expiresAt.Unix(), 10),
		base64.RawURLEncoding.EncodeToString([]byte(path)),
	}, ".")
	return payload + "." + s.sign(payload), expiresAt, nil
}

// Parse verifies token. With allowExpired the expiry check is skipped so cleanup
// can still locate files of stale tokens.
func (s *Signer) Parse(token string, allowExpired bool) (*DownloadClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return nil, ErrInvalidToken
	}
	payload := strings.Join(parts[:3], ".")
	if !hmac.Equal([]byte(s.sign(payload)), []byte(parts[3])) {
		return nil, ErrInvalidToken
	}
	unix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}
	path, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims := &DownloadClaims{JobID: parts[0], Path: string(path), ExpiresAt: time.Unix(unix, 0)}
	if !allowExpired && s.now().After(claims.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}

func (s *Signer) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
