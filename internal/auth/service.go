// Package auth implements the login boundary: an account is created the
// first time a username is seen, later logins must present the same password.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gibridargos/live-suhbat/internal/domain"
	"github.com/gibridargos/live-suhbat/internal/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingCredentials = errors.New("username and password are required")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*storage.User, error)
	CreateUser(ctx context.Context, username string, passwordHash []byte) (*storage.User, error)
}

type Service struct {
	store UserStore
	cost  int
}

func NewService(store UserStore) *Service {
	return &Service{store: store, cost: bcrypt.DefaultCost}
}

// WithCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

// Authenticate returns the account for username, creating it on first use.
func (s *Service) Authenticate(ctx context.Context, username, password string) (domain.Account, bool, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.Account{}, false, ErrMissingCredentials
	}
	if len(username) > domain.MaxUsernameLen {
		return domain.Account{}, false, domain.ErrUsernameTooLong
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return domain.Account{}, false, err
	}
	if user != nil {
		return s.verify(user, password)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return domain.Account{}, false, err
	}
	user, err = s.store.CreateUser(ctx, username, hash)
	if errors.Is(err, storage.ErrUserExists) {
		// a concurrent first login won the insert
		user, err = s.store.GetUserByUsername(ctx, username)
		if err != nil {
			return domain.Account{}, false, err
		}
		if user == nil {
			return domain.Account{}, false, storage.ErrUserExists
		}
		return s.verify(user, password)
	}
	if err != nil {
		return domain.Account{}, false, err
	}
	log.Info().Str("module", "auth").Str("username", username).Msg("account created")
	return user.Account(), true, nil
}

func (s *Service) verify(user *storage.User, password string) (domain.Account, bool, error) {
	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		return domain.Account{}, false, ErrInvalidCredentials
	}
	return user.Account(), false, nil
}
