// Package service holds warbler's business rules. Handlers translate HTTP
// into calls on these services; the services validate input, run each
// mutation inside one store transaction and return apperror values the
// handlers map to status codes.
//
//	Handler (HTTP) → Service (rules) → repository.Store (SQL)
//
// The caller's identity is always an explicit argument (callerID, authorID,
// followerID). Nothing here reads the session.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/warbler/internal/apperror"
	"github.com/sakif/warbler/internal/auth"
	"github.com/sakif/warbler/internal/model"
	"github.com/sakif/warbler/internal/repository"
)

// InvalidCredentialsMessage is the single message for every failed login,
// whether the username or the password was wrong.
const InvalidCredentialsMessage = "Invalid credentials."

// AuthService signs users up and checks their credentials.
type AuthService struct {
	store     repository.Store
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	logger    *slog.Logger
}

func NewAuthService(
	store repository.Store,
	passwords *auth.PasswordService,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		store:     store,
		passwords: passwords,
		tokens:    tokens,
		logger:    logger,
	}
}

// SignupInput is what the signup form and POST /api/auth/signup collect.
type SignupInput struct {
	Email    string
	Username string
	Password string
	ImageURL string
}

// AuthResult bundles the user with a freshly issued bearer token.
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// Signup hashes the password and stores a new user.
//
// Blank email or username are not checked here: they reach the store as
// NULL and come back as apperror.ErrIntegrity, exactly like a duplicate.
// The insert runs in its own transaction, so a failure leaves nothing behind.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	hashed, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:          strings.TrimSpace(in.Email),
		Username:       strings.TrimSpace(in.Username),
		Password:       hashed,
		ImageURL:       orDefault(strings.TrimSpace(in.ImageURL), model.DefaultImageURL),
		HeaderImageURL: model.DefaultHeaderImageURL,
	}

	err = s.store.WithTx(ctx, func(tx repository.Repos) error {
		return tx.CreateUser(ctx, user)
	})
	if err != nil {
		if !errors.Is(err, apperror.ErrIntegrity) {
			s.logger.Error("signup failed",
				slog.String("username", user.Username),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("signing up %q: %w", user.Username, err)
	}

	s.logger.Info("user signed up",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Authenticate checks username and password.
//
// It returns (user, true, nil) on a match and (nil, false, nil) when either
// the user does not exist or the password is wrong. A missing user still
// costs one bcrypt comparison. A non-nil error means the store or the
// stored hash is broken.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*model.User, bool, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.passwords.VerifyDummy(password)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("authenticating %q: %w", username, err)
	}

	if err := s.passwords.Verify(user.Password, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("authenticating %q: %w", username, err)
	}

	return user, true, nil
}

// Login authenticates and issues a bearer token. Bad credentials come back
// as apperror.ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	user, ok, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Info("login rejected", slog.String("username", username))
		return nil, apperror.Unauthorized(InvalidCredentialsMessage)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.IssueToken(user)
}

// IssueToken signs a bearer token for an already authenticated user, such
// as one who just signed up.
func (s *AuthService) IssueToken(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// ValidateToken returns the user id a bearer token was issued to.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", apperror.Unauthorized(err.Error())
	}
	return userID, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
