package service

import (
	"context"

	"mqtt-auth/internal/domain"
	"mqtt-auth/internal/repository"
)

// ACLService manages per-account topic permissions.
type ACLService interface {
	Add(ctx context.Context, username, topic string, acc int) (*domain.ACL, error)
	Remove(ctx context.Context, username, topic string) error
	List(ctx context.Context, username string) ([]domain.ACL, error)
}

type aclService struct {
	users repository.UserRepository
}

func NewACLService(users repository.UserRepository) ACLService {
	return &aclService{users: users}
}

// Add appends a permission to the account's list. Entries are not
// deduplicated: adding the same topic twice yields two entries.
func (s *aclService) Add(ctx context.Context, username, topic string, acc int) (*domain.ACL, error) {
	if topic == "" {
		return nil, ErrInvalidTopic
	}
	if !domain.ValidAccess(acc) {
		return nil, ErrInvalidAccess
	}

	acl := domain.ACL{Topic: topic, Acc: acc}
	if err := s.users.AddACL(ctx, username, acl); err != nil {
		return nil, err
	}
	return &acl, nil
}

// Remove drops all permissions matching topic exactly. Succeeds even when the
// account holds no such permission; only account existence is checked.
func (s *aclService) Remove(ctx context.Context, username, topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	return s.users.RemoveACL(ctx, username, topic)
}

func (s *aclService) List(ctx context.Context, username string) ([]domain.ACL, error) {
	return s.users.GetACLs(ctx, username)
}
