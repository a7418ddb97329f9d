package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pixnest/internal/domain"
	"pixnest/internal/repository"
)

const postColumns = `p.id, p.owner_id, p.image_url, p.image_key, p.caption, p.created_at`

type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) repository.PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) Create(ctx context.Context, post *domain.Post) (int64, error) {
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `
INSERT INTO posts (owner_id, image_url, image_key, caption, created_at)
VALUES (?, ?, ?, ?, ?)`,
		post.OwnerID,
		post.Image.URL,
		post.Image.Key,
		post.Caption,
		post.CreatedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert post: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("post last insert id: %w", err)
	}
	post.ID = id
	return id, nil
}

func (r *PostRepository) Get(ctx context.Context, id int64) (*domain.Post, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+postColumns+`
FROM posts p
WHERE p.id=?`,
		id,
	)
	return scanPost(row)
}

func (r *PostRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_posts WHERE post_id=?`, id); err != nil {
		return fmt.Errorf("delete post link: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("post delete rows affected: %w", err)
	}
	if aff == 0 {
		return fmt.Errorf("delete post %d: %w", id, domain.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit post delete: %w", err)
	}
	return nil
}

// ListByOwner returns the owner's linked posts in publish order.
func (r *PostRepository) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Post, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+postColumns+`
FROM user_posts up
JOIN posts p ON p.id = up.post_id
WHERE up.user_id=? AND p.owner_id=up.user_id
ORDER BY up.position ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query posts by owner: %w", err)
	}
	defer rows.Close()

	return collectPosts(rows)
}

func (r *PostRepository) Feed(ctx context.Context, limit int) ([]domain.FeedItem, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+postColumns+`, u.username, u.avatar_url
FROM posts p
JOIN users u ON u.id = p.owner_id
ORDER BY p.created_at DESC, p.id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query feed: %w", err)
	}
	defer rows.Close()

	var items []domain.FeedItem
	for rows.Next() {
		var item domain.FeedItem
		if err := rows.Scan(
			&item.ID,
			&item.OwnerID,
			&item.Image.URL,
			&item.Image.Key,
			&item.Caption,
			&item.CreatedAt,
			&item.OwnerUsername,
			&item.OwnerAvatar,
		); err != nil {
			return nil, fmt.Errorf("scan feed item: %w", err)
		}
		if item.OwnerAvatar == "" {
			item.OwnerAvatar = domain.DefaultAvatar
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *PostRepository) ListOrphans(ctx context.Context) ([]domain.Post, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+postColumns+`
FROM posts p
LEFT JOIN user_posts up ON up.post_id = p.id
WHERE up.post_id IS NULL
ORDER BY p.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query orphan posts: %w", err)
	}
	defer rows.Close()

	return collectPosts(rows)
}

func (r *PostRepository) ListImageKeys(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT image_key FROM posts WHERE image_key != ''`)
	if err != nil {
		return nil, fmt.Errorf("query image keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan image key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func collectPosts(rows *sql.Rows) ([]domain.Post, error) {
	var posts []domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}
	return posts, rows.Err()
}

func scanPost(row scanner) (*domain.Post, error) {
	var post domain.Post
	if err := row.Scan(
		&post.ID,
		&post.OwnerID,
		&post.Image.URL,
		&post.Image.Key,
		&post.Caption,
		&post.CreatedAt,
	); err != nil {
		return nil, mapNoRows(err, "post")
	}
	return &post, nil
}
