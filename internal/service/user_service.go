package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mqtt-auth/internal/auth"
	"mqtt-auth/internal/domain"
	"mqtt-auth/internal/repository"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	// Returned for unknown usernames and bad passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserAlreadyExists is returned when creating an account with a taken username.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrInvalidAccess is returned for ACL access levels outside {1, 2, 3}.
	ErrInvalidAccess = errors.New("acc must be 1, 2 or 3")
	// ErrInvalidTopic is returned for empty ACL topics.
	ErrInvalidTopic = errors.New("topic is required")
)

// UserService describes account lifecycle operations.
type UserService interface {
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
	Create(ctx context.Context, username, password string, superuser bool, acls []domain.ACL) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Get(ctx context.Context, username string) (*domain.User, error)
	Update(ctx context.Context, username string, upd repository.UserUpdate) error
	Delete(ctx context.Context, username string) error
}

type userService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) UserService {
	return &userService{users: users}
}

// Authenticate verifies a username/password pair against the stored
// credential, supporting both bcrypt-hashed and legacy plaintext storage.
func (s *userService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.ParseCredential(user.Password).Verify(password) {
		return nil, ErrInvalidCredentials
	}

	return sanitizeUser(user), nil
}

// Create registers a new account. The password is always stored hashed.
func (s *userService) Create(ctx context.Context, username, password string, superuser bool, acls []domain.ACL) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username is required")
	}
	if password == "" {
		return nil, errors.New("password is required")
	}
	for _, acl := range acls {
		if acl.Topic == "" {
			return nil, ErrInvalidTopic
		}
		if !domain.ValidAccess(acl.Acc) {
			return nil, ErrInvalidAccess
		}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:  username,
		Password:  hash,
		Superuser: superuser,
		ACLs:      acls,
	}

	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	return sanitizeUser(user), nil
}

func (s *userService) List(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}

func (s *userService) Get(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) Update(ctx context.Context, username string, upd repository.UserUpdate) error {
	for _, acl := range upd.ACLs {
		if acl.Topic == "" {
			return ErrInvalidTopic
		}
		if !domain.ValidAccess(acl.Acc) {
			return ErrInvalidAccess
		}
	}
	return s.users.Update(ctx, username, upd)
}

func (s *userService) Delete(ctx context.Context, username string) error {
	return s.users.Delete(ctx, username)
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Username:  user.Username,
		Superuser: user.Superuser,
		ACLs:      user.ACLs,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
