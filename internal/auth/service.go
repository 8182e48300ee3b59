package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vovakirdan/ichat-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with existing username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidEmail is returned when email is not a valid address.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

type registration struct {
	Username string `validate:"min=3,max=32"`
	Email    string `validate:"required,email"`
	Password string `validate:"min=6"`
}

// Service provides registration and login.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
	validate  *validator.Validate
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
		validate:  validator.New(),
	}
}

// Register creates a user and returns it together with a fresh token.
func (s *Service) Register(ctx context.Context, username, email, password string) (*store.User, string, error) {
	in := registration{
		Username: strings.TrimSpace(username),
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Password: password,
	}
	if err := s.validateRegistration(in); err != nil {
		return nil, "", err
	}

	if existing, err := s.store.GetUserByUsername(ctx, in.Username); err == nil && existing != nil {
		return nil, "", ErrUserExists
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, "", fmt.Errorf("lookup user: %w", err)
	}

	hashedPassword, err := HashPassword(in.Password)
	if err != nil {
		return nil, "", err
	}

	user, err := s.store.CreateUser(ctx, in.Username, in.Email, hashedPassword)
	if err != nil {
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}
	return user, token, nil
}

func (s *Service) validateRegistration(in registration) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate registration: %w", err)
	}
	switch verrs[0].Field() {
	case "Username":
		return ErrInvalidUsername
	case "Email":
		return ErrInvalidEmail
	default:
		return ErrInvalidPassword
	}
}

// Login validates credentials and returns the user with a fresh token.
func (s *Service) Login(ctx context.Context, username, password string) (*store.User, string, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, "", ErrInvalidCredentials
	}

	if err := CheckPassword(user.PasswordHash, password); err != nil {
		return nil, "", err
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}
	return user, token, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}
