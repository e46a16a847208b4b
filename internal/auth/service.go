// Package auth handles email/password and Google sign-in and issues bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/roundtable/service/internal/config"
	"github.com/roundtable/service/internal/user"
)

// ErrInvalidCredentials is returned when the email or password is wrong.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrEmailTaken is returned when registering an email that already has an account.
var ErrEmailTaken = errors.New("email is already registered")

// ErrInvalidGoogleToken is returned when a Google credential fails verification.
var ErrInvalidGoogleToken = errors.New("invalid google credential")

// Users is the part of the user service that authentication needs.
type Users interface {
	Create(ctx context.Context, name, email string, passwordHash, googleID *string) (*user.User, error)
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*user.User, error)
	LinkGoogleID(ctx context.Context, id, googleID string) (*user.User, error)
}

// Result is a signed-in user with a fresh token.
type Result struct {
	Token string     `json:"token"`
	User  *user.User `json:"user"`
}

// Service contains the business logic for authentication.
type Service struct {
	users    Users
	verifier Verifier
	cfg      *config.Config
	cost     int
	now      func() time.Time
}

// NewService creates a new auth Service. verifier may be nil, which
// disables Google sign-in.
func NewService(users Users, verifier Verifier, cfg *config.Config) *Service {
	return &Service{users: users, verifier: verifier, cfg: cfg, cost: bcrypt.DefaultCost, now: time.Now}
}

// Register creates a password account and signs it in.
func (s *Service) Register(ctx context.Context, name, email, password string) (*Result, error) {
	email = normalizeEmail(email)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	h := string(hash)

	u, err := s.users.Create(ctx, strings.TrimSpace(name), email, &h, nil)
	if errors.Is(err, user.ErrAlreadyExists) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}
	return s.signIn(u)
}

// Login checks an email and password.
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, user.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	// Accounts created through Google have no password.
	if u.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.signIn(u)
}

// GoogleLogin verifies a Google ID token and signs in the matching account.
// The account is found by Google subject, else linked by verified email,
// else created.
func (s *Service) GoogleLogin(ctx context.Context, credential string) (*Result, error) {
	if s.verifier == nil {
		return nil, ErrInvalidGoogleToken
	}
	id, err := s.verifier.Verify(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGoogleToken, err)
	}

	u, err := s.users.GetByGoogleID(ctx, id.Subject)
	if err == nil {
		return s.signIn(u)
	}
	if !errors.Is(err, user.ErrNotFound) {
		return nil, err
	}

	email := normalizeEmail(id.Email)
	if email == "" || !id.EmailVerified {
		return nil, ErrInvalidGoogleToken
	}

	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		u, err = s.users.LinkGoogleID(ctx, existing.ID, id.Subject)
	case errors.Is(err, user.ErrNotFound):
		name := id.Name
		if name == "" {
			name = strings.SplitN(email, "@", 2)[0]
		}
		u, err = s.users.Create(ctx, name, email, nil, &id.Subject)
	}
	if err != nil {
		return nil, err
	}
	return s.signIn(u)
}

// Me returns the user behind an authenticated request.
func (s *Service) Me(ctx context.Context, userID string) (*user.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *Service) signIn(u *user.User) (*Result, error) {
	token, err := s.issueToken(u)
	if err != nil {
		return nil, err
	}
	return &Result{Token: token, User: u}, nil
}

// issueToken creates a signed HS256 JWT for the given user.
func (s *Service) issueToken(u *user.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":   u.ID,
		"email": u.Email,
		"name":  u.Name,
		"iat":   now.Unix(),
		"exp":   now.Add(s.cfg.JWTTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
