package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"timelock-backend/internal/models"
	"timelock-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	codeLength = 6
	codeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// UserService handles user-related business logic
type UserService struct {
	store     repository.Store
	jwtSecret string
	tokenTTL  time.Duration
	cal       *Calendar
}

// CreatedUser is a freshly created user together with its session token
type CreatedUser struct {
	*models.User
	Token string `json:"token"`
}

// NewUserService creates a new user service
func NewUserService(store repository.Store, jwtSecret string, tokenTTL time.Duration, cal *Calendar) *UserService {
	return &UserService{
		store:     store,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		cal:       cal,
	}
}

// GenerateUniqueCode generates a unique 6-character code
func (s *UserService) GenerateUniqueCode(ctx context.Context) (string, error) {
	maxAttempts := 10
	for i := 0; i < maxAttempts; i++ {
		code, err := generateCode()
		if err != nil {
			return "", err
		}
		exists, err := s.store.Users().CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check code existence: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique code after %d attempts", maxAttempts)
}

// generateCode generates a random 6-character code
func generateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeChars))))
		if err != nil {
			return "", fmt.Errorf("failed to read random code: %w", err)
		}
		code[i] = codeChars[n.Int64()]
	}
	return string(code), nil
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	now := s.cal.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     now.Add(s.tokenTTL).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.cal.Now))

	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user_id not found in token")
	}

	return userID, nil
}

// CreateUser creates a new anonymous user and issues its token
func (s *UserService) CreateUser(ctx context.Context) (*CreatedUser, error) {
	maxAttempts := 3
	for i := 0; i < maxAttempts; i++ {
		code, err := s.GenerateUniqueCode(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to generate code: %w", err)
		}

		user := &models.User{
			ID:        uuid.New().String(),
			Code:      code,
			CreatedAt: s.cal.Now().UTC(),
		}

		// Another request may claim the same code between the check and the insert.
		if err := s.store.Users().Create(ctx, user); err != nil {
			if errors.Is(err, models.ErrCodeTaken) {
				continue
			}
			return nil, fmt.Errorf("failed to create user: %w", err)
		}

		token, err := s.GenerateJWT(user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to generate token: %w", err)
		}
		return &CreatedUser{User: user, Token: token}, nil
	}
	return nil, fmt.Errorf("failed to create user: %w", models.ErrCodeTaken)
}

// GetUser returns a user by ID
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
