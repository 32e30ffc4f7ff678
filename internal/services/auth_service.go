package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"furniplan/internal/middleware"
	"furniplan/internal/models"
	"furniplan/internal/repositories"
)

type LoginResult struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expiresAt"`
	User      models.UserSummary `json:"user"`
}

type AuthService struct {
	users  repositories.UserRepository
	secret []byte
	ttl    time.Duration
}

func NewAuthService(users repositories.UserRepository, secret []byte, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AuthService{users: users, secret: secret, ttl: ttl}
}

// Login checks the password and issues an access token. Unknown e-mail and
// wrong password are the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repositories.ErrUserNotFound) {
		log.Printf("[auth][login] unknown email=%q", email)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	hash := strings.TrimSpace(user.PasswordHash)
	if hash == "" {
		log.Printf("[auth][login] empty password_hash for userID=%d", user.ID)
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		log.Printf("[auth][login] bcrypt mismatch for userID=%d", user.ID)
		return nil, ErrInvalidCredentials
	}

	token, exp, err := middleware.IssueToken(s.secret, user.ID, user.RoleID, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	log.Printf("[auth][login] ok userID=%d role=%d", user.ID, user.RoleID)
	return &LoginResult{Token: token, ExpiresAt: exp, User: user.Summary()}, nil
}

// HashPassword is used by the hash-password command to seed operators.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", errors.New("password must be at least 8 characters")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
