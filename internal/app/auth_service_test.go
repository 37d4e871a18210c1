package app

import (
	"errors"
	"testing"
	"time"

	"lexibot/internal/repository"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	db := newTestDB(t)
	return NewAuthService(repository.NewUserRepository(db), "test-secret", time.Hour)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newAuthService(t)

	reg, err := svc.Register(RegisterInput{
		Username: "paralegal",
		Email:    "Paralegal@Example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.Token == "" {
		t.Fatalf("register must issue a token")
	}
	if reg.User.Email != "paralegal@example.com" {
		t.Fatalf("email must be lowercased, got %q", reg.User.Email)
	}
	if !reg.User.IsActive {
		t.Fatalf("new accounts must be active")
	}

	login, err := svc.Login(LoginInput{Username: "paralegal", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.Token == "" {
		t.Fatalf("login must issue a token")
	}
	if login.User.LastLogin == nil {
		t.Fatalf("login must stamp last_login")
	}
}

func TestRegisterDuplicates(t *testing.T) {
	svc := newAuthService(t)

	if _, err := svc.Register(RegisterInput{Username: "alice", Email: "alice@example.com", Password: "password1"}); err != nil {
		t.Fatalf("first register: %v", err)
	}

	_, err := svc.Register(RegisterInput{Username: "alice", Email: "other@example.com", Password: "password1"})
	if !errors.Is(err, ErrUsernameExists) {
		t.Fatalf("duplicate username: got %v, want ErrUsernameExists", err)
	}

	_, err = svc.Register(RegisterInput{Username: "alice2", Email: "alice@example.com", Password: "password1"})
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("duplicate email: got %v, want ErrEmailExists", err)
	}
}

func TestLoginRejections(t *testing.T) {
	svc := newAuthService(t)

	reg, err := svc.Register(RegisterInput{Username: "bob", Email: "bob@example.com", Password: "password1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Login(LoginInput{Username: "bob", Password: "wrong-password"}); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("wrong password: got %v, want ErrInvalidCredential", err)
	}
	if _, err := svc.Login(LoginInput{Username: "nobody", Password: "password1"}); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("unknown user: got %v, want ErrInvalidCredential", err)
	}

	if err := svc.Deactivate(reg.User.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.Login(LoginInput{Username: "bob", Password: "password1"}); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("deactivated account: got %v, want ErrInvalidCredential", err)
	}
}

func TestRegisterRejectsBlankFields(t *testing.T) {
	svc := newAuthService(t)
	if _, err := svc.Register(RegisterInput{Username: "  ", Email: "x@example.com", Password: "password1"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank username: got %v, want ErrInvalidInput", err)
	}
}
