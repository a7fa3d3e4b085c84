package service

import (
	"context"
	"errors"
	"testing"

	"taskmanager/internal/domain"
	"taskmanager/internal/repository/memory"
)

func newAuth(t *testing.T, mode CredentialMode) (*AuthService, *TokenCodec) {
	t.Helper()
	st := memory.New()
	if _, err := ProvisionUsers(context.Background(), st, st, mode, DemoUsers()); err != nil {
		t.Fatalf("ProvisionUsers: %v", err)
	}
	codec, err := NewTokenCodec(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	return NewAuthService(st, codec, mode), codec
}

func TestLogin(t *testing.T) {
	for _, mode := range []CredentialMode{CredentialsPlain, CredentialsBcrypt} {
		t.Run(string(mode), func(t *testing.T) {
			auth, codec := newAuth(t, mode)
			ctx := context.Background()

			token, err := auth.Login(ctx, "user1@mail.com", "password1")
			if err != nil {
				t.Fatalf("Login: %v", err)
			}
			if sub, err := codec.ExtractSubject(token); err != nil || sub != "user1@mail.com" {
				t.Fatalf("subject = %q, %v", sub, err)
			}

			_, err = auth.Login(ctx, "user1@mail.com", "password2")
			if !errors.Is(err, domain.ErrBadCredentials) {
				t.Fatalf("expected ErrBadCredentials, got %v", err)
			}

			_, err = auth.Login(ctx, "nobody@mail.com", "x")
			if !errors.Is(err, domain.ErrUserNotFound) {
				t.Fatalf("expected ErrUserNotFound, got %v", err)
			}
			if err.Error() != "User nobody@mail.com is not found" {
				t.Fatalf("unexpected message %q", err.Error())
			}
		})
	}
}

func TestParseCredentialMode(t *testing.T) {
	if m, err := ParseCredentialMode(""); err != nil || m != CredentialsPlain {
		t.Fatalf("empty mode: %v %v", m, err)
	}
	if m, err := ParseCredentialMode("bcrypt"); err != nil || m != CredentialsBcrypt {
		t.Fatalf("bcrypt mode: %v %v", m, err)
	}
	if _, err := ParseCredentialMode("sha1"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestProvisionUsersIsIdempotent(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	n, err := ProvisionUsers(ctx, st, st, CredentialsPlain, DemoUsers())
	if err != nil || n != DemoUserCount {
		t.Fatalf("first run: n=%d err=%v", n, err)
	}

	// existing users keep their stored credential
	n, err = ProvisionUsers(ctx, st, st, CredentialsPlain, []domain.User{{Email: "user1@mail.com", Password: "changed"}})
	if err != nil || n != 0 {
		t.Fatalf("second run: n=%d err=%v", n, err)
	}
	u, err := st.FindByEmail(ctx, "user1@mail.com")
	if err != nil || u.Password != "password1" {
		t.Fatalf("user1 changed: %+v %v", u, err)
	}
}
