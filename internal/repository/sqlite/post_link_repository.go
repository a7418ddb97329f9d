package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"pixnest/internal/repository"
)

type PostLinkRepository struct {
	db *sql.DB
}

func NewPostLinkRepository(db *sql.DB) repository.PostLinkRepository {
	return &PostLinkRepository{db: db}
}

// Append adds postID at the end of the user's collection. Position is computed
// in the same statement, so concurrent appends never share a slot.
func (r *PostLinkRepository) Append(ctx context.Context, userID, postID int64) error {
	if _, err := r.db.ExecContext(ctx, `
INSERT INTO user_posts (user_id, post_id, position)
SELECT ?, ?, COALESCE(MAX(position), 0) + 1
FROM user_posts
WHERE user_id=?`,
		userID,
		postID,
		userID,
	); err != nil {
		return fmt.Errorf("append post link: %w", err)
	}
	return nil
}

func (r *PostLinkRepository) ListByUser(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT post_id
FROM user_posts
WHERE user_id=?
ORDER BY position ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query post links: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan post link: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
