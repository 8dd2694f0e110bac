// Package authpw provides email/password account management.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tradepost/api/internal/store"
)

// bcryptCost matches the hashes already stored for existing accounts.
const bcryptCost = 12

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9]{1,20}$`)

// UserStore is the storage surface the auth flows need.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) (string, error)
	FindUserForReset(ctx context.Context, email, birthdate string) (store.User, error)
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
}

type Service struct {
	store UserStore
}

func NewService(userStore UserStore) *Service {
	return &Service{store: userStore}
}

type SignUpRequest struct {
	Username  string
	Email     string
	Password  string
	Birthdate string
}

// SignUp validates the form fields, hashes the password, and creates the
// account with the default user type.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (store.User, error) {
	if !usernamePattern.MatchString(req.Username) {
		return store.User{}, errors.New("username must be alphanumeric and at most 20 characters")
	}
	if err := validateEmail(req.Email); err != nil {
		return store.User{}, err
	}
	if len(req.Password) < 8 || len(req.Password) > 20 {
		return store.User{}, errors.New("password must be between 8 and 20 characters")
	}
	if err := validateBirthdate(req.Birthdate); err != nil {
		return store.User{}, err
	}

	if _, err := s.store.GetUserByEmail(ctx, req.Email); err == nil {
		return store.User{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return store.User{}, fmt.Errorf("check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := store.User{
		Username:      req.Username,
		Email:         req.Email,
		PasswordHash:  string(hash),
		UserType:      "user",
		Birthdate:     req.Birthdate,
		Notifications: []store.Notification{},
	}
	id, err := s.store.CreateUser(ctx, user)
	if err != nil {
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	user.ID = id
	return user, nil
}

type SignInRequest struct {
	Email    string
	Password string
}

// SignIn checks the password against the stored bcrypt hash.
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (store.User, error) {
	if err := validateEmail(req.Email); err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}

type ResetPasswordRequest struct {
	Email       string
	Birthdate   string
	NewPassword string
}

// ResetPassword replaces the password for the account matching both the
// email and the registered birthdate.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if err := validateEmail(req.Email); err != nil {
		return err
	}
	if err := validateBirthdate(req.Birthdate); err != nil {
		return err
	}
	if len(req.NewPassword) < 8 || len(req.NewPassword) > 20 {
		return errors.New("password must be between 8 and 20 characters")
	}

	user, err := s.store.FindUserForReset(ctx, req.Email, req.Birthdate)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.store.UpdateUserPassword(ctx, user.ID, string(hash))
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func validateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return errors.New("a valid email is required")
	}
	return nil
}

func validateBirthdate(birthdate string) error {
	if _, err := time.Parse("2006-01-02", birthdate); err != nil {
		return errors.New("birthdate must be an ISO date (YYYY-MM-DD)")
	}
	return nil
}
