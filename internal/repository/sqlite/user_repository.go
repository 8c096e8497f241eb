package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"mqtt-auth/internal/domain"
	"mqtt-auth/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password TEXT NOT NULL,
	superuser INTEGER NOT NULL DEFAULT 0,
	acls TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// UserRepository stores one row per account keyed by username. The ACL list
// lives in a JSON array column so that add/remove are single atomic UPDATEs.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	acls, err := marshalACLs(user.ACLs)
	if err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (username, password, superuser, acls, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.Password,
		user.Superuser,
		acls,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return 0, repository.ErrDuplicate
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user last insert id: %w", err)
	}
	user.ID = id
	return id, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, username, password, superuser, acls, created_at, updated_at
FROM users
WHERE username = ?`,
		username,
	)

	var (
		user domain.User
		acls string
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Password,
		&user.Superuser,
		&acls,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	parsed, err := unmarshalACLs(acls)
	if err != nil {
		return nil, err
	}
	user.ACLs = parsed
	return &user, nil
}

// List returns all accounts without their password material.
func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, username, superuser, acls, created_at, updated_at
FROM users
ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var (
			user domain.User
			acls string
		)
		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.Superuser,
			&acls,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		parsed, err := unmarshalACLs(acls)
		if err != nil {
			return nil, err
		}
		user.ACLs = parsed
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UserRepository) Update(ctx context.Context, username string, upd repository.UserUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if upd.Password != nil {
		sets = append(sets, "password = ?")
		args = append(args, *upd.Password)
	}
	if upd.Superuser != nil {
		sets = append(sets, "superuser = ?")
		args = append(args, *upd.Superuser)
	}
	if upd.ACLs != nil {
		acls, err := marshalACLs(upd.ACLs)
		if err != nil {
			return err
		}
		sets = append(sets, "acls = ?")
		args = append(args, acls)
	}

	args = append(args, username)
	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE users SET %s WHERE username = ?", strings.Join(sets, ", ")),
		args...,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireMatch(res)
}

func (r *UserRepository) Delete(ctx context.Context, username string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireMatch(res)
}

// AddACL appends one entry to the account's ACL array in a single atomic
// UPDATE. Entries with the same topic accumulate; no deduplication.
func (r *UserRepository) AddACL(ctx context.Context, username string, acl domain.ACL) error {
	entry, err := json.Marshal(acl)
	if err != nil {
		return fmt.Errorf("marshal acl: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET acls = json_insert(acls, '$[#]', json(?)), updated_at = ?
WHERE username = ?`,
		string(entry),
		time.Now().UTC(),
		username,
	)
	if err != nil {
		return fmt.Errorf("add acl: %w", err)
	}
	return requireMatch(res)
}

// RemoveACL drops every entry whose topic matches exactly. The update succeeds
// even when nothing matched; only account existence is checked.
func (r *UserRepository) RemoveACL(ctx context.Context, username, topic string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET acls = (
	SELECT json_group_array(json(value))
	FROM json_each(users.acls)
	WHERE json_extract(value, '$.topic') <> ?
), updated_at = ?
WHERE username = ?`,
		topic,
		time.Now().UTC(),
		username,
	)
	if err != nil {
		return fmt.Errorf("remove acl: %w", err)
	}
	return requireMatch(res)
}

func (r *UserRepository) GetACLs(ctx context.Context, username string) ([]domain.ACL, error) {
	row := r.db.QueryRowContext(ctx, `SELECT acls FROM users WHERE username = ?`, username)

	var acls string
	if err := row.Scan(&acls); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan acls: %w", err)
	}
	return unmarshalACLs(acls)
}

func requireMatch(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func marshalACLs(acls []domain.ACL) (string, error) {
	if acls == nil {
		acls = []domain.ACL{}
	}
	raw, err := json.Marshal(acls)
	if err != nil {
		return "", fmt.Errorf("marshal acls: %w", err)
	}
	return string(raw), nil
}

func unmarshalACLs(raw string) ([]domain.ACL, error) {
	acls := []domain.ACL{}
	if raw == "" {
		return acls, nil
	}
	if err := json.Unmarshal([]byte(raw), &acls); err != nil {
		return nil, fmt.Errorf("unmarshal acls: %w", err)
	}
	return acls, nil
}
