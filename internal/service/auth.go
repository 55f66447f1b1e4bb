// Package service contains application services for accounts, friendships, events and messaging.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pkgcrypto "github.com/and161185/whosfree/internal/crypto"
	"github.com/and161185/whosfree/internal/errs"
	"github.com/and161185/whosfree/internal/limiter"
	"github.com/and161185/whosfree/internal/model"
	"github.com/and161185/whosfree/internal/repository"
	"github.com/and161185/whosfree/internal/validate"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// Account field limits.
const (
	MaxUsernameLen = 64
	MaxEmailLen    = 120
	MinPasswordLen = 8
	MaxPasswordLen = 256

	maxSearchLimit = 50
)

// AuthService defines account and token operations.
type AuthService interface {
	// Register creates a new user with secure password hashing.
	Register(ctx context.Context, username, email, password string) (uuid.UUID, error)
	// LoginWithIP applies rate-limiting and authenticates the user by email.
	LoginWithIP(ctx context.Context, email, password, ip string) (model.Tokens, model.User, error)
	// ParseToken validates an access token and returns its subject.
	ParseToken(token string) (uuid.UUID, error)
	// GetUser returns the account with the given id.
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	// SearchUsers finds users whose username contains query.
	SearchUsers(ctx context.Context, query string, limit int) ([]model.UserSummary, error)
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	signKey   []byte
	accessTTL time.Duration
	lim       limiter.Limiter
	now       func() time.Time
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, signKey []byte, accessTTL time.Duration, lim limiter.Limiter) *AuthServiceImpl {
	return &AuthServiceImpl{users: users, signKey: signKey, accessTTL: accessTTL, lim: lim, now: time.Now}
}

// NormalizeEmail trims and lower-cases an address for storage and lookup.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Register validates input and creates a user. A taken username or email yields errs.ErrAlreadyExists.
func (s *AuthServiceImpl) Register(ctx context.Context, username, email, password string) (uuid.UUID, error) {
	email = NormalizeEmail(email)
	err := validate.Chain(
		validate.Required("username", username),
		validate.MaxLen("username", username, MaxUsernameLen),
		validate.Check(strings.TrimSpace(username) == username, "username must not have surrounding spaces"),
		validate.Required("email", email),
		validate.MaxLen("email", email, MaxEmailLen),
		validate.Email("email", email),
		validate.MinLen("password", password, MinPasswordLen),
		validate.MaxLen("password", password, MaxPasswordLen),
	)
	if err != nil {
		return uuid.Nil, err
	}

	uid, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, err
	}
	hash, err := pkgcrypto.HashPassword(password)
	if err != nil {
		return uuid.Nil, err
	}
	u := &model.User{
		ID:       uid,
		Username: username,
		Email:    email,
		PwdHash:  hash,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return uuid.Nil, err
	}
	return uid, nil
}

// LoginWithIP authenticates with rate limiting by (email, ip).
// Unknown email and wrong password are indistinguishable to the caller.
func (s *AuthServiceImpl) LoginWithIP(ctx context.Context, email, password, ip string) (model.Tokens, model.User, error) {
	email = NormalizeEmail(email)
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if !allowed {
		return model.Tokens{}, model.User{}, errs.ErrRateLimited
	}

	ok, u, err := s.checkPassword(ctx, email, password)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if !ok {
		if blocked, _, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
			return model.Tokens{}, model.User{}, errs.ErrRateLimited
		}
		return model.Tokens{}, model.User{}, errs.ErrInvalidCredentials
	}

	// best-effort
	_ = s.lim.Success(ctx, email, ipHash)

	access, exp, err := s.issueAccessToken(u.ID)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	u.PwdHash = ""
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, *u, nil
}

// checkPassword returns ok=false for both an unknown email and a wrong password.
// The unknown path still runs a full hash so timing does not reveal account existence.
func (s *AuthServiceImpl) checkPassword(ctx context.Context, email, password string) (bool, *model.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, errs.ErrNotFound) {
		pkgcrypto.DummyVerify(password)
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	ok, err := pkgcrypto.VerifyPassword(password, u.PwdHash)
	if err != nil {
		return false, nil, fmt.Errorf("user %s: %w", u.ID, err)
	}
	return ok, u, nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *AuthServiceImpl) issueAccessToken(userID uuid.UUID) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}

// ParseToken verifies signature, algorithm and expiry and returns the subject.
func (s *AuthServiceImpl) ParseToken(token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, errs.ErrUnauthorized
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.signKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", errs.ErrUnauthorized, err)
	}
	uid, err := uuid.FromString(claims.Subject)
	if err != nil || uid == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", errs.ErrUnauthorized)
	}
	return uid, nil
}

// GetUser returns the account without its password hash.
func (s *AuthServiceImpl) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.PwdHash = ""
	return u, nil
}

// SearchUsers performs a case-insensitive substring search on usernames.
func (s *AuthServiceImpl) SearchUsers(ctx context.Context, query string, limit int) ([]model.UserSummary, error) {
	query = strings.TrimSpace(query)
	if err := validate.Chain(
		validate.Required("q", query),
		validate.MaxLen("q", query, MaxUsernameLen),
	); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	return s.users.Search(ctx, query, limit)
}
