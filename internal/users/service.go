package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"callcenter-backend/internal/auth"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRefresh     = errors.New("invalid refresh token")
)

const bcryptCost = 10

// Service owns account lifecycle and session tokens.
type Service struct {
	repo   Repository
	tokens *auth.Manager
	clock  func() time.Time
}

func NewService(repo Repository, tokens *auth.Manager) *Service {
	return &Service{repo: repo, tokens: tokens, clock: time.Now}
}

type RegisterRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phoneNumber"`
}

// Register creates an account. The first-ever registrant becomes admin;
// everyone after that is an agent. The repository applies the promotion
// atomically with the insert, so concurrent registrations mint one admin.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	if req.Username == "" || req.Email == "" || req.Password == "" || req.PhoneNumber == "" {
		return User{}, ErrInvalidArgument
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return User{}, err
	}

	u := User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         auth.RoleAgent,
		PhoneNumber:  req.PhoneNumber,
		CreatedAt:    s.clock().UTC(),
	}
	return s.repo.Create(ctx, u)
}

type LoginResult struct {
	User   User
	Tokens auth.TokenPair
}

// Login checks credentials and issues a fresh token pair. The refresh token
// overwrites the user's single slot, invalidating any previous session.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return LoginResult{}, ErrInvalidArgument
	}

	u, err := s.repo.ByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	pair, err := s.tokens.IssuePair(s.clock(), u.ID, u.Role)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.repo.SetRefreshToken(ctx, u.ID, pair.RefreshToken); err != nil {
		return LoginResult{}, err
	}
	u.RefreshToken = pair.RefreshToken
	return LoginResult{User: u, Tokens: pair}, nil
}

// Logout clears the refresh-token slot so the current session cannot rotate.
func (s *Service) Logout(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidArgument
	}
	return s.repo.SetRefreshToken(ctx, userID, "")
}

// Refresh rotates the token pair. Only the latest-issued refresh token is
// accepted; anything else (including a previously valid one) is rejected.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	if refreshToken == "" {
		return auth.TokenPair{}, ErrInvalidArgument
	}

	claims, err := s.tokens.Verify(refreshToken, auth.TokenTypeRefresh, s.clock())
	if err != nil {
		return auth.TokenPair{}, ErrInvalidRefresh
	}

	u, err := s.repo.ByID(ctx, claims.UserID)
	if err != nil {
		return auth.TokenPair{}, ErrInvalidRefresh
	}
	if u.RefreshToken == "" || u.RefreshToken != refreshToken {
		return auth.TokenPair{}, ErrInvalidRefresh
	}

	pair, err := s.tokens.IssuePair(s.clock(), u.ID, u.Role)
	if err != nil {
		return auth.TokenPair{}, err
	}
	if err := s.repo.SetRefreshToken(ctx, u.ID, pair.RefreshToken); err != nil {
		return auth.TokenPair{}, err
	}
	return pair, nil
}

// Current returns the account for an authenticated subject.
func (s *Service) Current(ctx context.Context, userID string) (User, error) {
	if userID == "" {
		return User{}, ErrInvalidArgument
	}
	return s.repo.ByID(ctx, userID)
}

// Resolve reports whether a token subject still maps to a live account.
// Used by the auth middleware.
func (s *Service) Resolve(ctx context.Context, userID string) error {
	_, err := s.repo.ByID(ctx, userID)
	return err
}

// ByPhoneNumber resolves which agent answers calls on a dialed number.
func (s *Service) ByPhoneNumber(ctx context.Context, number string) (User, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return User{}, ErrInvalidArgument
	}
	return s.repo.ByPhoneNumber(ctx, number)
}

// ListAgents returns every account, oldest first. Admin-only at the HTTP layer.
func (s *Service) ListAgents(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}
