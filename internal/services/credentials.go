package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kumudkode/lms-apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	// minBcryptCost is the floor for the password hashing work factor.
	minBcryptCost = 10

	defaultTokenTTL = 24 * time.Hour
)

// ErrWeakSecret is returned when the signing secret is missing or a known
// placeholder. The server must not start with it.
var ErrWeakSecret = errors.New("jwt secret is missing or insecure")

// insecureSecrets are placeholder values that must never sign real tokens.
var insecureSecrets = map[string]struct{}{
	"secret":    {},
	"secretKey": {},
	"changeme":  {},
}

// SessionClaims are the signed claims carried by a session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// CredentialService hashes and verifies passwords and issues signed session
// tokens. It holds the process-wide signing secret; construction fails fast
// on an absent or placeholder secret.
type CredentialService struct {
	secret     []byte
	bcryptCost int
	tokenTTL   time.Duration
}

func NewCredentialService(secret string, bcryptCost int, tokenTTL time.Duration) (*CredentialService, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrWeakSecret
	}
	if _, known := insecureSecrets[secret]; known {
		return nil, ErrWeakSecret
	}

	if bcryptCost < minBcryptCost {
		bcryptCost = minBcryptCost
	}
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}

	return &CredentialService{
		secret:     []byte(secret),
		bcryptCost: bcryptCost,
		tokenTTL:   tokenTTL,
	}, nil
}

// HashPassword produces a salted bcrypt hash of the password.
func (s *CredentialService) HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// VerifyPassword reports whether password matches the stored hash. A
// mismatch is a plain false, never an error.
func (s *CredentialService) VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IssueToken signs a session token embedding the user's identity, profile,
// and role.
func (s *CredentialService) IssueToken(user types.User) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ParseToken validates signature and expiry and returns the claims.
func (s *CredentialService) ParseToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("missing subject")
	}
	return claims, nil
}

// TokenTTL returns the configured token lifetime.
func (s *CredentialService) TokenTTL() time.Duration {
	return s.tokenTTL
}
