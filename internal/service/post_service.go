package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"pixnest/internal/domain"
	"pixnest/internal/repository"
)

// PostService creates and removes posts and keeps each owner's collection in step.
type PostService interface {
	Create(ctx context.Context, ownerID int64, image domain.StorageRef, caption string) (*domain.Post, error)
	Get(ctx context.Context, id int64) (*domain.Post, error)
	Delete(ctx context.Context, postID, requesterID int64) error
	ListByOwner(ctx context.Context, ownerID int64) ([]domain.Post, error)
	Feed(ctx context.Context, limit int) ([]domain.FeedItem, error)
}

type postService struct {
	posts  repository.PostRepository
	links  repository.PostLinkRepository
	logger *logrus.Entry
}

func NewPostService(posts repository.PostRepository, links repository.PostLinkRepository, logger *logrus.Logger) PostService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &postService{
		posts:  posts,
		links:  links,
		logger: logger.WithField("component", "posts"),
	}
}

// Create stores the post and appends it to the owner's collection. A failed
// append leaves an orphan that is still returned to the caller; the
// reconciler relinks it later.
func (s *postService) Create(ctx context.Context, ownerID int64, image domain.StorageRef, caption string) (*domain.Post, error) {
	if ownerID <= 0 {
		return nil, fmt.Errorf("post owner is required: %w", domain.ErrInvalidInput)
	}
	if image.Empty() {
		return nil, fmt.Errorf("post image is required: %w", domain.ErrInvalidInput)
	}

	post := &domain.Post{
		OwnerID: ownerID,
		Image:   image,
		Caption: strings.TrimSpace(caption),
	}
	if _, err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}

	if err := s.links.Append(ctx, ownerID, post.ID); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"post_id":    post.ID,
			"owner_id":   ownerID,
			"object_key": image.Key,
		}).Warn("post created but not linked to owner; left for reconciliation")
	}
	return post, nil
}

func (s *postService) Get(ctx context.Context, id int64) (*domain.Post, error) {
	return s.posts.Get(ctx, id)
}

// Delete removes the post and its collection entry. The stored image stays in
// object storage.
func (s *postService) Delete(ctx context.Context, postID, requesterID int64) error {
	post, err := s.posts.Get(ctx, postID)
	if err != nil {
		return err
	}
	if post.OwnerID != requesterID {
		return fmt.Errorf("delete post %d: %w", postID, domain.ErrForbidden)
	}
	if err := s.posts.Delete(ctx, postID); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"post_id":    postID,
		"owner_id":   post.OwnerID,
		"object_key": post.Image.Key,
	}).Info("post deleted; stored object retained")
	return nil
}

func (s *postService) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Post, error) {
	return s.posts.ListByOwner(ctx, ownerID)
}

func (s *postService) Feed(ctx context.Context, limit int) ([]domain.FeedItem, error) {
	return s.posts.Feed(ctx, limit)
}
