package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixnest/internal/domain"
	"pixnest/internal/repository"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "pixnest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(db))
	return db
}

func createUser(t *testing.T, repo repository.UserRepository, username, email string) *domain.User {
	t.Helper()
	user := &domain.User{Username: username, Email: email, PasswordHash: "hash"}
	_, err := repo.Create(context.Background(), user)
	require.NoError(t, err)
	return user
}

func strPtr(s string) *string { return &s }

func TestMigrate_Idempotent(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, Migrate(db))
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	db := setupDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := createUser(t, repo, "ana", "ana@x.com")
	assert.NotZero(t, user.ID)

	byID, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana", byID.Username)
	assert.Equal(t, "ana@x.com", byID.Email)

	byName, err := repo.GetByLogin(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	byEmail, err := repo.GetByLogin(ctx, "ANA@X.COM")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	_, err = repo.GetByID(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepository_UniqueConstraints(t *testing.T) {
	db := setupDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	createUser(t, repo, "ana", "ana@x.com")

	_, err := repo.Create(ctx, &domain.User{Username: "ana", Email: "other@x.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, domain.ErrDuplicateIdentity)

	_, err = repo.Create(ctx, &domain.User{Username: "Ana", Email: "third@x.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, domain.ErrDuplicateIdentity)

	_, err = repo.Create(ctx, &domain.User{Username: "bob", Email: "ana@x.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, domain.ErrDuplicateIdentity)
}

func TestUserRepository_Update(t *testing.T) {
	db := setupDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	ana := createUser(t, repo, "ana", "ana@x.com")
	createUser(t, repo, "bob", "bob@x.com")

	err := repo.Update(ctx, ana.ID, repository.UserUpdate{
		FullName:    strPtr("Ana Maria"),
		Description: strPtr("sunsets"),
		Avatar:      &domain.StorageRef{Key: "avatars/k.jpg", URL: "https://cdn/avatars/k.jpg"},
	})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", got.FullName)
	assert.Equal(t, "sunsets", got.Description)
	assert.Equal(t, "avatars/k.jpg", got.Avatar.Key)

	err = repo.Update(ctx, ana.ID, repository.UserUpdate{Username: strPtr("bob"), FullName: strPtr("nope")})
	assert.ErrorIs(t, err, domain.ErrDuplicateIdentity)

	got, err = repo.GetByID(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana", got.Username)
	assert.Equal(t, "Ana Maria", got.FullName, "a rejected update changes nothing")

	err = repo.Update(ctx, 999, repository.UserUpdate{FullName: strPtr("x")})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	keys, err := repo.ListAvatarKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"avatars/k.jpg"}, keys)
}

func TestPostRepository_LinkLifecycle(t *testing.T) {
	db := setupDB(t)
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	links := NewPostLinkRepository(db)
	ctx := context.Background()

	ana := createUser(t, users, "ana", "ana@x.com")

	first := &domain.Post{OwnerID: ana.ID, Image: domain.StorageRef{Key: "posts/a.jpg", URL: "u1"}, Caption: "one"}
	_, err := posts.Create(ctx, first)
	require.NoError(t, err)
	require.NoError(t, links.Append(ctx, ana.ID, first.ID))

	second := &domain.Post{OwnerID: ana.ID, Image: domain.StorageRef{Key: "posts/b.jpg", URL: "u2"}, Caption: "two"}
	_, err = posts.Create(ctx, second)
	require.NoError(t, err)
	require.NoError(t, links.Append(ctx, ana.ID, second.ID))

	ids, err := links.ListByUser(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{first.ID, second.ID}, ids)

	owned, err := posts.ListByOwner(ctx, ana.ID)
	require.NoError(t, err)
	require.Len(t, owned, 2)
	assert.Equal(t, "one", owned[0].Caption)

	feed, err := posts.Feed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, "ana", feed[0].OwnerUsername)
	assert.Equal(t, domain.DefaultAvatar, feed[0].OwnerAvatar)

	require.NoError(t, posts.Delete(ctx, first.ID))
	_, err = posts.Get(ctx, first.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	ids, err = links.ListByUser(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{second.ID}, ids)

	assert.ErrorIs(t, posts.Delete(ctx, first.ID), domain.ErrNotFound)
}

func TestPostRepository_ListOrphans(t *testing.T) {
	db := setupDB(t)
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	links := NewPostLinkRepository(db)
	ctx := context.Background()

	ana := createUser(t, users, "ana", "ana@x.com")

	linked := &domain.Post{OwnerID: ana.ID, Image: domain.StorageRef{Key: "posts/a.jpg", URL: "u1"}}
	_, err := posts.Create(ctx, linked)
	require.NoError(t, err)
	require.NoError(t, links.Append(ctx, ana.ID, linked.ID))

	orphan := &domain.Post{OwnerID: ana.ID, Image: domain.StorageRef{Key: "posts/b.jpg", URL: "u2"}}
	_, err = posts.Create(ctx, orphan)
	require.NoError(t, err)

	orphans, err := posts.ListOrphans(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, orphan.ID, orphans[0].ID)

	got, err := posts.Get(ctx, orphan.ID)
	require.NoError(t, err, "orphans stay reachable by direct lookup")
	assert.Equal(t, ana.ID, got.OwnerID)

	keys, err := posts.ListImageKeys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"posts/a.jpg", "posts/b.jpg"}, keys)
}

func TestSessionRepository(t *testing.T) {
	db := setupDB(t)
	users := NewUserRepository(db)
	sessions := NewSessionRepository(db)
	ctx := context.Background()

	ana := createUser(t, users, "ana", "ana@x.com")
	now := time.Now().UTC()

	live := &domain.Session{ID: "live", UserID: ana.ID, ExpiresAt: now.Add(time.Hour)}
	stale := &domain.Session{ID: "stale", UserID: ana.ID, ExpiresAt: now.Add(-time.Hour)}
	require.NoError(t, sessions.Create(ctx, live))
	require.NoError(t, sessions.Create(ctx, stale))

	got, err := sessions.Get(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, ana.ID, got.UserID)
	assert.WithinDuration(t, live.ExpiresAt, got.ExpiresAt, time.Second)

	n, err := sessions.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = sessions.Get(ctx, "stale")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, sessions.Delete(ctx, "live"))
	require.NoError(t, sessions.Delete(ctx, "live"))
	_, err = sessions.Get(ctx, "live")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
