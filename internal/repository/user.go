package repository

import (
	"context"
	"errors"

	"mqtt-auth/internal/domain"
)

var (
	// ErrNotFound indicates that no account matches the given username.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate indicates a username collision on create.
	ErrDuplicate = errors.New("user already exists")
)

// UserUpdate carries the optional fields of a partial account update.
// Nil fields are left untouched.
type UserUpdate struct {
	Password  *string
	Superuser *bool
	ACLs      []domain.ACL
}

// UserRepository defines persistence operations for broker client accounts.
// Each mutation is a single atomic per-account update; updated_at is refreshed
// on every mutating call.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Update(ctx context.Context, username string, upd UserUpdate) error
	Delete(ctx context.Context, username string) error
	AddACL(ctx context.Context, username string, acl domain.ACL) error
	RemoveACL(ctx context.Context, username, topic string) error
	GetACLs(ctx context.Context, username string) ([]domain.ACL, error)
}
