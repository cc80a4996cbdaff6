package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/taskchat/internal/database"
	"github.com/thereayou/taskchat/internal/models"
	"github.com/thereayou/taskchat/pkg/auth"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type AuthResult struct {
	User  *models.User
	Token string
}

// AuthService owns accounts and tokens. Handlers only translate to HTTP.
type AuthService struct {
	users     UserStore
	jwt       *auth.JWTManager
	blacklist auth.Blacklist
	cost      int
}

type AuthOption func(*AuthService)

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) AuthOption {
	return func(s *AuthService) { s.cost = cost }
}

func NewAuthService(users UserStore, jwt *auth.JWTManager, blacklist auth.Blacklist, opts ...AuthOption) *AuthService {
	s := &AuthService{users: users, jwt: jwt, blacklist: blacklist, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AuthService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if _, err := s.users.FindUserByEmail(email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("cannot hash password: %w", err)
	}

	now := time.Now()
	user := &models.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: string(hash),
		LastSeenAt:   now,
		CreatedAt:    now,
	}
	if err := s.users.SaveUser(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return s.issue(user)
}

// Login выдаёт JWT и обновляет last_seen
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.FindUserByEmail(normalizeEmail(email))
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.users.UpdateLastSeen(user.ID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("could not update last seen: %w", err)
	}
	return s.issue(user)
}

// Logout ставит токен в черный список до истечения
func (s *AuthService) Logout(ctx context.Context, token string) error {
	exp, err := s.jwt.Expiry(token)
	if err != nil {
		return err
	}
	return s.blacklist.Revoke(ctx, token, time.Until(exp))
}

func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.users.GetUser(userID)
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.jwt.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("could not generate token: %w", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
