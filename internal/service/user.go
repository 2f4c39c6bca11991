// Package service implements the user directory: credential issuance,
// rotation, and stateless token resolution.
package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/tagtrail/tagtrail/internal/auth"
	"github.com/tagtrail/tagtrail/internal/model"
	"github.com/tagtrail/tagtrail/internal/repository"
)

// TokenDelim joins username and credential inside a token's plaintext.
// The credential envelope itself starts with the same character, which is
// what makes the resolution segment count exact.
const TokenDelim = "$"

// tokenSegments is the expected split count for a decrypted token:
// the username plus the four segments of the credential envelope.
const tokenSegments = 5

// Bootstrap account created when the directory is empty. Operators must
// rotate it before real use.
const (
	BootstrapUsername = "admin"
	BootstrapPassword = "admin"
)

// ErrUnauthorized is returned for every token resolution failure. The
// cause is deliberately collapsed so callers cannot distinguish a missing
// user from a stale or tampered token.
var ErrUnauthorized = errors.New("unauthorized")

// UserStore is the slice of the record store the directory needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	UpdateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByCredentials(ctx context.Context, username, credential string) (*model.User, error)
	DeleteUser(ctx context.Context, id string) error
	CountUsers(ctx context.Context) (int64, error)
}

// UserService owns user records and the tokens derived from them.
type UserService struct {
	store  UserStore
	secret *auth.Secret
	logger *slog.Logger
}

// NewUserService creates a UserService. The secret is the process-wide
// token secret, constructed once at startup.
func NewUserService(store UserStore, secret *auth.Secret, logger *slog.Logger) *UserService {
	return &UserService{
		store:  store,
		secret: secret,
		logger: logger,
	}
}

// Create hashes the password and persists a new user.
// Returns repository.ErrUsernameExists on a duplicate username and
// auth.ErrPasswordTooLong on an oversized password.
func (s *UserService) Create(ctx context.Context, username, password string) (*model.User, error) {
	credential, err := auth.HashPassword([]byte(password))
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:   username,
		Credential: credential,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Rotate re-hashes the password and overwrites the stored record in place.
// This is the sole mechanism that invalidates previously issued tokens:
// the fresh credential makes every old token's exact-match lookup miss.
func (s *UserService) Rotate(ctx context.Context, id, username, password string) (*model.User, error) {
	credential, err := auth.HashPassword([]byte(password))
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:         id,
		Username:   username,
		Credential: credential,
	}
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Delete removes a user record. No token-side bookkeeping exists; the
// user's tokens become unresolvable on their own.
func (s *UserService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteUser(ctx, id)
}

// Resolve maps an external bearer token back to its user. Every failure
// mode (bad base64, cipher error, invalid UTF-8, wrong segment count, no
// matching record) comes back as ErrUnauthorized.
func (s *UserService) Resolve(ctx context.Context, externalToken string) (*model.User, error) {
	ciphertext, err := base64.URLEncoding.DecodeString(externalToken)
	if err != nil {
		return nil, ErrUnauthorized
	}

	plaintext, err := auth.Decrypt(ciphertext, s.secret.Key(), s.secret.IV())
	if err != nil {
		return nil, ErrUnauthorized
	}
	if !utf8.Valid(plaintext) {
		return nil, ErrUnauthorized
	}

	parts := strings.Split(string(plaintext), TokenDelim)
	if len(parts) != tokenSegments {
		return nil, ErrUnauthorized
	}
	username := parts[0]
	credential := strings.Join(parts[1:], TokenDelim)

	user, err := s.store.GetUserByCredentials(ctx, username, credential)
	if err != nil {
		return nil, ErrUnauthorized
	}

	return user, nil
}

// Token serializes a user into its external bearer token: the encrypted,
// base64-encoded "username$credential" pair. Rotating the credential or
// changing the secret invalidates it.
func (s *UserService) Token(user *model.User) (string, error) {
	seed := user.Username + TokenDelim + user.Credential

	ciphertext, err := auth.Encrypt([]byte(seed), s.secret.Key(), s.secret.IV())
	if err != nil {
		return "", fmt.Errorf("encrypt token: %w", err)
	}

	// URL-safe so the token survives the /users/token/{token} path segment.
	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

// EnsureAdmin bootstraps the directory with the default admin account when
// no users exist yet. Runs once at startup, before traffic is served.
func (s *UserService) EnsureAdmin(ctx context.Context) error {
	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	s.logger.Warn("bootstrapping auth by creating admin:admin user")
	s.logger.Warn("remember to update the username and password of the admin:admin user")

	if _, err := s.Create(ctx, BootstrapUsername, BootstrapPassword); err != nil {
		// Another instance may have bootstrapped concurrently.
		if errors.Is(err, repository.ErrUsernameExists) {
			return nil
		}
		return fmt.Errorf("create bootstrap admin: %w", err)
	}

	return nil
}
