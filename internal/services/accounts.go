package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/diewo77/briefly/internal/access"
	"github.com/diewo77/briefly/internal/models"
	"github.com/diewo77/briefly/internal/store"
	"github.com/diewo77/briefly/internal/validation"
)

// ErrBadCredentials is returned by Authenticate for an unknown email or a
// wrong password alike.
var ErrBadCredentials = errors.New("bad credentials")

const minAccountPasswordLength = 8

// AccountService handles signup and login.
type AccountService struct {
	users  *store.UserStore
	hasher access.Hasher
}

func NewAccountService(users *store.UserStore, hasher access.Hasher) *AccountService {
	return &AccountService{users: users, hasher: hasher}
}

func (s *AccountService) Signup(ctx context.Context, email, name, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	v := validation.Violations{}
	validation.Required("email", email, v)
	if _, err := mail.ParseAddress(email); email != "" && err != nil {
		v["email"] = "invalid"
	}
	validation.MinLength("password", password, minAccountPasswordLength, v)
	if _, ok := v["email"]; !ok {
		taken, err := s.users.EmailTaken(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if taken {
			v["email"] = "email_taken"
		}
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &models.User{Email: email, Name: strings.TrimSpace(name), Password: digest}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(password, u.Password) {
		return nil, ErrBadCredentials
	}
	return u, nil
}

// Exists reports whether the user is still present, for session checks.
func (s *AccountService) Exists(ctx context.Context, id uint) bool {
	_, err := s.users.FindByID(ctx, id)
	return err == nil
}
