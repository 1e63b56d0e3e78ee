// Package authpw provides advisor email/password sign-up and sign-in.
package authpw

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"showcase/api/internal/store"
)

var (
	ErrMissingFields      = errors.New("email, password, first name and last name are required")
	ErrInvalidEmail       = errors.New("email address is not valid")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type AdvisorStore interface {
	GetAdvisorByEmail(ctx context.Context, email string) (store.Advisor, error)
	CreateAdvisor(ctx context.Context, advisor store.Advisor) (store.Advisor, error)
}

type Service struct {
	store AdvisorStore
	cost  int
}

func NewService(store AdvisorStore) *Service {
	return &Service{store: store, cost: bcrypt.DefaultCost}
}

type SignUpRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (store.Advisor, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" || strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		return store.Advisor{}, ErrMissingFields
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return store.Advisor{}, ErrInvalidEmail
	}
	if len(req.Password) < 8 {
		return store.Advisor{}, ErrWeakPassword
	}

	_, err := s.store.GetAdvisorByEmail(ctx, email)
	if err == nil {
		return store.Advisor{}, ErrEmailTaken
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return store.Advisor{}, fmt.Errorf("lookup advisor: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return store.Advisor{}, fmt.Errorf("hash password: %w", err)
	}
	advisor, err := s.store.CreateAdvisor(ctx, store.Advisor{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Role:         "advisor",
		Phone:        strings.TrimSpace(req.Phone),
		Email:        email,
		PasswordHash: string(hash),
	})
	if err != nil {
		return store.Advisor{}, fmt.Errorf("create advisor: %w", err)
	}
	return advisor, nil
}

// SignIn returns the advisor when the password matches. Unknown emails and wrong
// passwords both yield ErrInvalidCredentials.
func (s *Service) SignIn(ctx context.Context, email, password string) (store.Advisor, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return store.Advisor{}, ErrInvalidCredentials
	}
	advisor, err := s.store.GetAdvisorByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, sql.ErrNoRows) {
		return store.Advisor{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.Advisor{}, fmt.Errorf("lookup advisor: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(advisor.PasswordHash), []byte(password)); err != nil {
		return store.Advisor{}, ErrInvalidCredentials
	}
	return advisor, nil
}
