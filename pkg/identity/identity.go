// Package identity provides account registration, password verification,
// and bearer token issuance for the REST API.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"realtycrm/pkg/agent"
	"realtycrm/pkg/logx"
	"realtycrm/pkg/persistence"
	"realtycrm/pkg/utils"
)

// Authentication failure sentinels. The HTTP layer maps all of them to 401.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrEmailTaken         = errors.New("email already registered")
)

// MinPasswordLength is the minimum accepted password length at signup.
const MinPasswordLength = 8

// Service manages user accounts and JWT tokens.
type Service struct {
	store     *persistence.Store
	jwtSecret []byte
	expiry    time.Duration
	logger    *logx.Logger
}

// NewService creates an identity Service backed by the given store.
func NewService(store *persistence.Store, secret string, expiry time.Duration) *Service {
	return &Service{
		store:     store,
		jwtSecret: []byte(secret),
		expiry:    expiry,
		logger:    logx.NewLogger("identity"),
	}
}

// HashPassword produces a bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// SignUp registers a new account and returns the created user.
func (s *Service) SignUp(email, password, fullName string) (*persistence.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, agent.ValidationError("signup", "invalid email address %q", email)
	}
	if len(password) < MinPasswordLength {
		return nil, agent.ValidationError("signup", "password must be at least %d characters", MinPasswordLength)
	}

	if _, err := s.store.GetUserByEmail(email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, persistence.ErrNotFound) {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &persistence.User{
		ID:           utils.NewID(),
		Email:        email,
		FullName:     fullName,
		PasswordHash: hash,
	}
	if err := s.store.CreateUser(user); err != nil {
		return nil, err
	}

	s.logger.Info("registered user %s", email)
	return user, nil
}

// SignIn verifies credentials and issues a bearer token.
func (s *Service) SignIn(email, password string) (string, *persistence.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// GenerateToken creates a signed JWT for the given user.
func (s *Service) GenerateToken(user *persistence.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(s.expiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the associated user.
func (s *Service) ValidateToken(tokenStr string) (*persistence.User, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}

	user, err := s.store.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, fmt.Errorf("%w: user no longer exists", ErrInvalidToken)
		}
		return nil, err
	}
	return user, nil
}
