package repository

import (
	"context"

	"pixnest/internal/domain"
)

// PostRepository exposes persistence operations for Post records.
type PostRepository interface {
	Create(ctx context.Context, post *domain.Post) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Post, error)
	// Delete removes the post together with its entry in the owner's collection.
	Delete(ctx context.Context, id int64) error
	ListByOwner(ctx context.Context, ownerID int64) ([]domain.Post, error)
	Feed(ctx context.Context, limit int) ([]domain.FeedItem, error)
	// ListOrphans returns posts missing from their owner's collection.
	ListOrphans(ctx context.Context) ([]domain.Post, error)
	ListImageKeys(ctx context.Context) ([]string, error)
}

// PostLinkRepository maintains each user's ordered post collection.
type PostLinkRepository interface {
	Append(ctx context.Context, userID, postID int64) error
	ListByUser(ctx context.Context, userID int64) ([]int64, error)
}
