package utils // package utils provides helpers for token creation and password hashing

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTokenLifetime applies when TokenParams.Lifetime is zero.
	DefaultTokenLifetime = 8 * time.Hour
	// ClockSkew is tolerated on exp and nbf during validation.
	ClockSkew = 2 * time.Minute

	defaultKeyID = "v1"
	minKeyBytes  = 32
)

var ErrMissingSecret = errors.New("jwt secret missing")

// TokenClaims is the JWT payload.  sub carries the user id as a string.
type TokenClaims struct {
	Username string `json:"unique_name"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenParams describes a token to issue.  Zero Now means time.Now().
type TokenParams struct {
	UserID   int64
	Username string
	Role     string
	KeyID    string
	Lifetime time.Duration
	Issuer   string
	Audience string
	Now      time.Time
}

// TokenExpectations are checked during validation.  Issuer and Audience are
// only enforced when non-empty.
type TokenExpectations struct {
	Issuer   string
	Audience string
	Now      time.Time
}

// TokenIdentity is what a valid token says about its bearer.  A UserID of 0
// means the subject could not be parsed and must be treated as anonymous.
type TokenIdentity struct {
	UserID   int64
	Username string
	Role     string
}

// SigningKey turns the configured secret into HMAC key bytes.  Accepted
// forms are "base64:<data>", "hex:<data>", bare base64 and plain text.  Keys
// shorter than 32 bytes are stretched with SHA-256.
func SigningKey(secret string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrMissingSecret
	}
	var key []byte
	lower := strings.ToLower(secret)
	switch {
	case strings.HasPrefix(lower, "base64:"):
		b, err := base64.StdEncoding.DecodeString(secret[len("base64:"):])
		if err != nil {
			return nil, fmt.Errorf("decode base64 secret: %w", err)
		}
		key = b
	case strings.HasPrefix(lower, "hex:"):
		b, err := hex.DecodeString(secret[len("hex:"):])
		if err != nil {
			return nil, fmt.Errorf("decode hex secret: %w", err)
		}
		key = b
	default:
		if b, err := base64.StdEncoding.DecodeString(secret); err == nil && len(b) > 0 {
			key = b
		} else {
			key = []byte(secret)
		}
	}
	if len(key) < minKeyBytes {
		sum := sha256.Sum256(key)
		key = sum[:]
	}
	return key, nil
}

// IssueToken signs an HS256 access token for a user.
func IssueToken(secret string, p TokenParams) (string, time.Time, error) {
	key, err := SigningKey(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	lifetime := p.Lifetime
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	exp := now.Add(lifetime)

	claims := TokenClaims{
		Username: p.Username,
		Role:     p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.UserID, 10),
			Issuer:    p.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	if p.Audience != "" {
		claims.Audience = jwt.ClaimStrings{p.Audience}
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	kid := strings.TrimSpace(p.KeyID)
	if kid == "" {
		kid = defaultKeyID
	}
	t.Header["kid"] = kid

	signed, err := t.SignedString(key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ValidateToken checks signature, expiry, not-before and, when configured,
// issuer and audience.  Every failure is reported as ok == false.
func ValidateToken(raw, secret string, want TokenExpectations) (TokenIdentity, bool) {
	key, err := SigningKey(secret)
	if err != nil || strings.TrimSpace(raw) == "" {
		return TokenIdentity{}, false
	}
	now := want.Now
	if now.IsZero() {
		now = time.Now()
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(ClockSkew),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if want.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(want.Issuer))
	}
	if want.Audience != "" {
		opts = append(opts, jwt.WithAudience(want.Audience))
	}

	var claims TokenClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, opts...)
	if err != nil || !tok.Valid {
		return TokenIdentity{}, false
	}

	uid, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		uid = 0
	}
	return TokenIdentity{UserID: uid, Username: claims.Username, Role: claims.Role}, true
}
