// Package auth handles accounts, password hashing and session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Clark-Hu/media-catalog/internal/domain"
	"github.com/Clark-Hu/media-catalog/internal/repository"
)

// ErrInvalidCredentials is returned by Login for an unknown email or wrong password.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// SignupParams is the input to Signup.
type SignupParams struct {
	Username string
	Email    string
	Password string
	Role     string
}

// Session is a user plus a freshly issued token.
type Session struct {
	Token string
	User  domain.User
}

// Service implements signup, login and profile lookup.
type Service struct {
	users  repository.UserStore
	tokens *Tokens
	logger *slog.Logger
}

// NewService wires a Service.
func NewService(users repository.UserStore, tokens *Tokens, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, tokens: tokens, logger: logger.With(slog.String("component", "auth"))}
}

// Tokens exposes the token signer for request authentication.
func (s *Service) Tokens() *Tokens {
	return s.tokens
}

// Signup creates an account. Unknown roles become CONSUMER.
func (s *Service) Signup(ctx context.Context, params SignupParams) (Session, error) {
	username := strings.TrimSpace(params.Username)
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if username == "" {
		return Session{}, domain.Invalid("username", "required")
	}
	if email == "" {
		return Session{}, domain.Invalid("email", "required")
	}
	if params.Password == "" {
		return Session{}, domain.Invalid("password", "required")
	}

	hash, err := HashPassword(params.Password)
	if err != nil {
		return Session{}, domain.Invalid("password", err.Error())
	}

	user, err := s.users.Create(ctx, domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.ParseRole(params.Role),
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return Session{}, domain.Invalid("email", "already registered")
		}
		return Session{}, s.storeFailure("create", email, err)
	}
	s.logger.Info("user registered", slog.String("user_id", user.ID), slog.String("role", string(user.Role)))
	return s.session(user)
}

// Login checks credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	if strings.TrimSpace(email) == "" {
		return Session{}, domain.Invalid("email", "required")
	}
	if password == "" {
		return Session{}, domain.Invalid("password", "required")
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, s.storeFailure("get_by_email", "", err)
	}
	if !CheckPassword(user.PasswordHash, password) {
		return Session{}, ErrInvalidCredentials
	}
	return s.session(user)
}

// Me loads the profile of the authenticated user.
func (s *Service) Me(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, err
		}
		return domain.User{}, s.storeFailure("get", userID, err)
	}
	return user, nil
}

func (s *Service) session(user domain.User) (Session, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: user}, nil
}

func (s *Service) storeFailure(op, id string, err error) error {
	s.logger.Error("user store failure",
		slog.String("collection", "users"),
		slog.String("op", op),
		slog.String("id", id),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("users %s: %w", op, domain.ErrUpstreamUnavailable)
}
