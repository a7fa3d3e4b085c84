package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"taskmanager/internal/domain"
	"taskmanager/internal/logger"

	"golang.org/x/crypto/bcrypt"
)

// CredentialMode selects how stored credentials are compared.
type CredentialMode string

const (
	// CredentialsPlain compares the stored credential as a literal string.
	CredentialsPlain CredentialMode = "plain"
	// CredentialsBcrypt treats the stored credential as a bcrypt hash.
	CredentialsBcrypt CredentialMode = "bcrypt"
)

func ParseCredentialMode(raw string) (CredentialMode, error) {
	switch CredentialMode(raw) {
	case "", CredentialsPlain:
		return CredentialsPlain, nil
	case CredentialsBcrypt:
		return CredentialsBcrypt, nil
	default:
		return "", fmt.Errorf("unknown credential mode %q", raw)
	}
}

// AuthService checks email/password pairs and issues tokens. It creates no
// session state.
type AuthService struct {
	users  UserStore
	tokens *TokenCodec
	mode   CredentialMode
}

func NewAuthService(users UserStore, tokens *TokenCodec, mode CredentialMode) *AuthService {
	if mode == "" {
		mode = CredentialsPlain
	}
	return &AuthService{users: users, tokens: tokens, mode: mode}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return "", domain.Errorf(domain.ErrUserNotFound, "User %s is not found", email)
	}
	if err != nil {
		return "", fmt.Errorf("find user: %w", err)
	}

	if !s.matches(user.Password, password) {
		logger.Debug("login rejected", "email", email)
		return "", domain.Errorf(domain.ErrBadCredentials, "Wrong password")
	}

	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	logger.Info("user logged in", "email", user.Email)
	return token, nil
}

func (s *AuthService) matches(stored, supplied string) bool {
	if s.mode == CredentialsBcrypt {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(supplied)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}

// HashCredential prepares a credential for storage under the given mode.
func HashCredential(mode CredentialMode, password string) (string, error) {
	if mode != CredentialsBcrypt {
		return password, nil
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash credential: %w", err)
	}
	return string(b), nil
}
