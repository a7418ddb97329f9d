package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"pixnest/internal/repository"
	"pixnest/internal/storage"
)

// Reconciler repairs the gaps left by the non-transactional write paths:
// posts missing from their owner's collection and stored objects nothing
// points at.
type Reconciler struct {
	users  repository.UserRepository
	posts  repository.PostRepository
	links  repository.PostLinkRepository
	store  storage.Gateway
	logger *logrus.Entry
	now    func() time.Time
}

func NewReconciler(users repository.UserRepository, posts repository.PostRepository, links repository.PostLinkRepository, store storage.Gateway, logger *logrus.Logger) *Reconciler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Reconciler{
		users:  users,
		posts:  posts,
		links:  links,
		store:  store,
		logger: logger.WithField("component", "reconciler"),
		now:    time.Now,
	}
}

// RelinkOrphans appends every unlinked post to its owner's collection and
// returns how many were repaired. Failures are logged and skipped.
func (r *Reconciler) RelinkOrphans(ctx context.Context) (int, error) {
	orphans, err := r.posts.ListOrphans(ctx)
	if err != nil {
		return 0, fmt.Errorf("list orphan posts: %w", err)
	}

	relinked := 0
	for _, post := range orphans {
		if err := ctx.Err(); err != nil {
			return relinked, err
		}
		entry := r.logger.WithFields(logrus.Fields{
			"post_id":  post.ID,
			"owner_id": post.OwnerID,
		})
		if err := r.links.Append(ctx, post.OwnerID, post.ID); err != nil {
			entry.WithError(err).Warn("relink orphan post")
			continue
		}
		entry.Info("orphan post relinked")
		relinked++
	}
	return relinked, nil
}

// UnreferencedObjects lists stored objects under the gateway prefix that no
// post image or avatar refers to. Nothing is deleted.
func (r *Reconciler) UnreferencedObjects(ctx context.Context) ([]string, error) {
	objects, err := r.unreferenced(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		keys = append(keys, obj.Key)
	}
	if len(keys) > 0 {
		r.logger.WithField("count", len(keys)).Info("unreferenced stored objects found")
	}
	return keys, nil
}

// DeleteUnreferenced removes unreferenced objects last modified more than
// olderThan ago and returns the deleted keys. Objects without a modification
// time count as old. A failed delete is logged and the sweep goes on.
func (r *Reconciler) DeleteUnreferenced(ctx context.Context, olderThan time.Duration) ([]string, error) {
	objects, err := r.unreferenced(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := r.now().Add(-olderThan)
	deleted := []string{}
	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		if obj.LastModified != nil && obj.LastModified.After(cutoff) {
			continue
		}
		entry := r.logger.WithField("object_key", obj.Key)
		if err := r.store.Delete(ctx, obj.Key); err != nil {
			entry.WithError(err).Warn("delete unreferenced object")
			continue
		}
		entry.Info("unreferenced object deleted")
		deleted = append(deleted, obj.Key)
	}
	return deleted, nil
}

func (r *Reconciler) unreferenced(ctx context.Context) ([]storage.ObjectInfo, error) {
	if r.store == nil {
		return nil, nil
	}

	referenced := make(map[string]struct{})
	imageKeys, err := r.posts.ListImageKeys(ctx)
	if err != nil {
		return nil, err
	}
	avatarKeys, err := r.users.ListAvatarKeys(ctx)
	if err != nil {
		return nil, err
	}
	for _, key := range append(imageKeys, avatarKeys...) {
		referenced[key] = struct{}{}
	}

	prefix := r.store.Prefix()
	if prefix != "" {
		prefix += "/"
	}
	objects, err := r.store.ListObjects(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list stored objects: %w", err)
	}

	var unreferenced []storage.ObjectInfo
	for _, obj := range objects {
		if _, ok := referenced[obj.Key]; !ok {
			unreferenced = append(unreferenced, obj)
		}
	}
	sort.Slice(unreferenced, func(i, j int) bool { return unreferenced[i].Key < unreferenced[j].Key })
	return unreferenced, nil
}
