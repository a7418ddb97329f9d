package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"pixnest/internal/domain"
	"pixnest/internal/repository"
)

const userColumns = `id, username, email, password_hash, full_name, description, avatar_url, avatar_key, created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (username, email, password_hash, full_name, description, avatar_url, avatar_key, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FullName,
		user.Description,
		user.Avatar.URL,
		user.Avatar.Key,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert user: %w", domain.ErrDuplicateIdentity)
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

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE id = ?`,
		id,
	)
	return scanUser(row)
}

// GetByLogin matches either the username or the email, case-insensitively.
func (r *UserRepository) GetByLogin(ctx context.Context, usernameOrEmail string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE username = ? OR email = ?
LIMIT 1`,
		usernameOrEmail,
		usernameOrEmail,
	)
	return scanUser(row)
}

func (r *UserRepository) Update(ctx context.Context, id int64, update repository.UserUpdate) error {
	if update.Empty() {
		// still report a missing user
		_, err := r.GetByID(ctx, id)
		return err
	}

	var (
		sets []string
		args []any
	)
	if update.Username != nil {
		sets = append(sets, "username=?")
		args = append(args, *update.Username)
	}
	if update.Email != nil {
		sets = append(sets, "email=?")
		args = append(args, *update.Email)
	}
	if update.FullName != nil {
		sets = append(sets, "full_name=?")
		args = append(args, *update.FullName)
	}
	if update.Description != nil {
		sets = append(sets, "description=?")
		args = append(args, *update.Description)
	}
	if update.Avatar != nil {
		sets = append(sets, "avatar_url=?", "avatar_key=?")
		args = append(args, update.Avatar.URL, update.Avatar.Key)
	}
	sets = append(sets, "updated_at=?")
	args = append(args, time.Now().UTC(), id)

	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`
UPDATE users
SET %s
WHERE id=?`, strings.Join(sets, ", ")), args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update user: %w", domain.ErrDuplicateIdentity)
		}
		return fmt.Errorf("update user: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("user update rows affected: %w", err)
	}
	if aff == 0 {
		return fmt.Errorf("update user %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *UserRepository) ListAvatarKeys(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT avatar_key FROM users WHERE avatar_key != ''`)
	if err != nil {
		return nil, fmt.Errorf("query avatar keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan avatar key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func scanUser(row scanner) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.FullName,
		&user.Description,
		&user.Avatar.URL,
		&user.Avatar.Key,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, mapNoRows(err, "user")
	}
	return &user, nil
}
