package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

// Stored hashes look like
//
//	pbkdf2$<iterations>$<salt base64>$<key base64>$<prf>
//
// so the iteration count and PRF can change without a schema migration.
const (
	hashPrefix        = "pbkdf2"
	DefaultIterations = 120_000
	saltSize          = 16
	keySize           = 32
	prfSHA256         = "HMACSHA256"
	prfSHA512         = "HMACSHA512"
)

var ErrEmptyPassword = errors.New("empty password")

var prfs = map[string]func() hash.Hash{
	prfSHA256: sha256.New,
	prfSHA512: sha512.New,
}

// PasswordHasher derives PBKDF2-HMAC-SHA256 keys.  A zero Iterations uses
// DefaultIterations.
type PasswordHasher struct {
	Iterations int
}

func NewPasswordHasher(iterations int) PasswordHasher {
	return PasswordHasher{Iterations: iterations}
}

func (h PasswordHasher) iterations() int {
	if h.Iterations <= 0 {
		return DefaultIterations
	}
	return h.Iterations
}

// Hash returns the encoded hash of plain with a fresh random salt.
func (h PasswordHasher) Hash(plain string) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	iter := h.iterations()
	key := pbkdf2.Key([]byte(plain), salt, iter, keySize, sha256.New)
	return strings.Join([]string{
		hashPrefix,
		strconv.Itoa(iter),
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
		prfSHA256,
	}, "$"), nil
}

// Verify re-derives the key with the stored salt and iteration count and
// compares in constant time.  A malformed encoding is simply a mismatch.
func (h PasswordHasher) Verify(plain, encoded string) bool {
	if strings.TrimSpace(plain) == "" || strings.TrimSpace(encoded) == "" {
		return false
	}
	parts := strings.Split(encoded, "$")
	if len(parts) < 5 || parts[0] != hashPrefix {
		return false
	}
	iter, err := strconv.Atoi(parts[1])
	if err != nil || iter <= 0 {
		return false
	}
	salt, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil || len(want) == 0 {
		return false
	}
	prf, ok := prfs[parts[4]]
	if !ok {
		return false
	}
	got := pbkdf2.Key([]byte(plain), salt, iter, len(want), prf)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// LooksHashed reports whether v is in the pbkdf2 format.  Anything else is a
// legacy credential that login will migrate.
func LooksHashed(v string) bool {
	return strings.HasPrefix(v, hashPrefix+"$")
}

// VerifyLegacy checks a password against a credential stored before the
// pbkdf2 format: either a bcrypt hash or plaintext.
func VerifyLegacy(plain, stored string) bool {
	if plain == "" || stored == "" {
		return false
	}
	if isBcrypt(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(plain)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(plain), []byte(stored)) == 1
}

func isBcrypt(v string) bool {
	return strings.HasPrefix(v, "$2a$") || strings.HasPrefix(v, "$2b$") || strings.HasPrefix(v, "$2y$")
}
