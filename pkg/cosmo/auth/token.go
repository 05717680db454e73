package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ExpirySkew is how far ahead of the real expiry a token is already treated
// as expired.
const ExpirySkew = 60 * time.Second

var ErrMalformedToken = errors.New("token has no payload segment")

type TokenFile struct {
	Token string `json:"token"`
}

func LoadTokenFile(path string) (*TokenFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tf TokenFile
	if err := json.Unmarshal(content, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return &tf, nil
}

func SaveTokenFile(path string, tf *TokenFile) error {
	if tf == nil {
		return errors.New("token file is nil")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create token dir: %w", err)
	}
	content, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token file: %w", err)
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return err
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(path, 0o600)
}

// Claims is the subset of the token payload the CLI cares about. Nothing is
// verified; the API is the authority on whether a token is accepted.
type Claims struct {
	jwt.RegisteredClaims
	Email             string `json:"email,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
}

// Identity returns the most readable identifier carried by the token.
func (c *Claims) Identity() string {
	if c.Email != "" {
		return c.Email
	}
	if c.PreferredUsername != "" {
		return c.PreferredUsername
	}
	return c.Subject
}

// Expiry returns the exp claim, or the zero time when the token does not
// expire.
func (c *Claims) Expiry() time.Time {
	if c.RegisteredClaims.ExpiresAt == nil || c.RegisteredClaims.ExpiresAt.Unix() == 0 {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}

// ParseClaims decodes the payload segment of a JWT without checking the
// signature.
func ParseClaims(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 || parts[1] == "" {
		return nil, ErrMalformedToken
	}
	payload, err := decodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode token payload: %w", err)
	}
	if !bytes.HasPrefix(bytes.TrimSpace(payload), []byte("{")) {
		return nil, errors.New("token payload is not a JSON object")
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("failed to parse token payload: %w", err)
	}
	return &claims, nil
}

// IsTokenExpired reports whether token is unusable at now: a token without a
// decodable payload is expired, one without exp never expires, and one whose
// exp falls within ExpirySkew of now is expired.
func IsTokenExpired(token string, now time.Time) bool {
	claims, err := ParseClaims(token)
	if err != nil {
		return true
	}
	exp := claims.Expiry()
	if exp.IsZero() {
		return false
	}
	// Whole seconds, like the exp claim itself.
	return exp.Unix() < now.Unix()+int64(ExpirySkew/time.Second)
}

// decodeSegment accepts both the base64url alphabet used by JWTs and the
// standard alphabet, with or without padding.
func decodeSegment(seg string) ([]byte, error) {
	seg = strings.TrimRight(seg, "=")
	seg = strings.NewReplacer("+", "-", "/", "_").Replace(seg)
	return jwt.DecodeSegment(seg)
}
