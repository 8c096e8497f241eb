package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mqtt-auth/internal/domain"
	"mqtt-auth/internal/repository"
	"mqtt-auth/internal/repository/sqlite"
)

func newTestRepo(t *testing.T) repository.UserRepository {
	t.Helper()

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := sqlite.NewUserRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func TestCreateHashesPassword(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewUserService(repo)
	ctx := context.Background()

	user, err := svc.Create(ctx, "alice", "hunter2", false, nil)
	require.NoError(t, err)
	assert.Empty(t, user.Password, "returned snapshot carries no credential material")

	stored, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.Password, "$2a$") || strings.HasPrefix(stored.Password, "$2b$"))
	assert.NotEqual(t, "hunter2", stored.Password)
}

func TestAuthenticateHashedAccount(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewUserService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, "alice", "hunter2", true, nil)
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "alice", "hunter2")
	require.NoError(t, err)
	assert.True(t, user.Superuser)

	_, err = svc.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateLegacyPlaintextAccount(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewUserService(repo)
	ctx := context.Background()

	// account predating hashed storage: the password column holds the raw value
	_, err := repo.Create(ctx, &domain.User{Username: "legacy", Password: "oldpassword"})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "legacy", "oldpassword")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "legacy", "OldPassword")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "plaintext match is exact and case sensitive")
}

func TestAuthenticateUnknownUser(t *testing.T) {
	svc := NewUserService(newTestRepo(t))

	_, err := svc.Authenticate(context.Background(), "ghost", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateDuplicateUser(t *testing.T) {
	svc := NewUserService(newTestRepo(t))
	ctx := context.Background()

	_, err := svc.Create(ctx, "alice", "hunter2", false, nil)
	require.NoError(t, err)

	_, err = svc.Create(ctx, "alice", "other", false, nil)
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestCreateValidatesInitialACLs(t *testing.T) {
	svc := NewUserService(newTestRepo(t))
	ctx := context.Background()

	_, err := svc.Create(ctx, "alice", "pw", false, []domain.ACL{{Topic: "t", Acc: 7}})
	assert.ErrorIs(t, err, ErrInvalidAccess)

	_, err = svc.Create(ctx, "alice", "pw", false, []domain.ACL{{Topic: "", Acc: domain.AccessRead}})
	assert.ErrorIs(t, err, ErrInvalidTopic)
}

func TestUpdateStoresPasswordAsSupplied(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewUserService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, "alice", "hunter2", false, nil)
	require.NoError(t, err)

	// updates do not re-hash; the dual-mode verifier covers raw values
	raw := "newpassword"
	require.NoError(t, svc.Update(ctx, "alice", repository.UserUpdate{Password: &raw}))

	stored, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "newpassword", stored.Password)

	_, err = svc.Authenticate(ctx, "alice", "newpassword")
	assert.NoError(t, err)
}
