package service

import (
	"errors"
	"fmt"
	"time"

	"taskmanager/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// TokenLifetime is fixed; tokens are neither renewable nor revocable.
const TokenLifetime = time.Hour

// MinSecretLength is the HS256 key size in bytes.
const MinSecretLength = 32

// TokenCodec issues and verifies HS256 bearer tokens carrying a user email
// as subject. It holds no mutable state and is safe for concurrent use.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
}

func NewTokenCodec(secret []byte) (*TokenCodec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes, got %d", MinSecretLength, len(secret))
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &TokenCodec{secret: key, now: time.Now}, nil
}

// WithClock returns a copy of the codec reading time from now.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := *c
	cp.now = now
	return &cp
}

func (c *TokenCodec) Issue(subject string) (string, error) {
	issued := c.now().Truncate(time.Second)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(issued.Add(TokenLifetime)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Validate reports whether the token is well formed, signed with the codec
// secret and not expired. All failures collapse to false.
func (c *TokenCodec) Validate(token string) bool {
	_, err := c.parse(token)
	return err == nil
}

// ExtractSubject repeats the checks of Validate and returns the subject.
func (c *TokenCodec) ExtractSubject(token string) (string, error) {
	claims, err := c.parse(token)
	if err != nil {
		return "", &domain.Error{Kind: domain.ErrInvalidToken, Message: "Invalid token"}
	}
	return claims.Subject, nil
}

func (c *TokenCodec) parse(token string) (*jwt.RegisteredClaims, error) {
	if token == "" {
		return nil, errors.New("empty token")
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("subject not found")
	}
	return claims, nil
}
