package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixnest/internal/domain"
)

func TestPostService_CreateLinksToOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.register(t, "ana", "ana@x.com")
	ref := f.ingest(t, fakeImage(jpegHeader, 2048))

	post, err := f.postSvc.Create(ctx, ana, ref, "hello")
	require.NoError(t, err)

	user, err := f.credentials.GetUser(ctx, ana)
	require.NoError(t, err)
	assert.Contains(t, user.Posts, post.ID)

	got, err := f.postSvc.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, ana, got.OwnerID)
	assert.Equal(t, "hello", got.Caption)
	assert.Equal(t, ref, got.Image)
}

func TestPostService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.register(t, "ana", "ana@x.com")

	_, err := f.postSvc.Create(ctx, ana, domain.StorageRef{}, "no image")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.postSvc.Create(ctx, 0, domain.StorageRef{Key: "k", URL: "u"}, "no owner")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPostService_DeleteRequiresOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.register(t, "ana", "ana@x.com")
	bob := f.register(t, "bob", "bob@x.com")
	ref := f.ingest(t, fakeImage(jpegHeader, 2048))

	post, err := f.postSvc.Create(ctx, ana, ref, "mine")
	require.NoError(t, err)

	err = f.postSvc.Delete(ctx, post.ID, bob)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.postSvc.Get(ctx, post.ID)
	require.NoError(t, err, "post survives a forbidden delete")

	require.NoError(t, f.postSvc.Delete(ctx, post.ID, ana))
	_, err = f.postSvc.Get(ctx, post.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	user, err := f.credentials.GetUser(ctx, ana)
	require.NoError(t, err)
	assert.NotContains(t, user.Posts, post.ID)

	objects, err := f.store.ListObjects(ctx, "")
	require.NoError(t, err)
	assert.Len(t, objects, 1, "stored image is not retracted")

	assert.ErrorIs(t, f.postSvc.Delete(ctx, post.ID, ana), domain.ErrNotFound)
}

func TestPostService_FailedLinkLeavesOrphan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.register(t, "ana", "ana@x.com")
	ref := f.ingest(t, fakeImage(jpegHeader, 2048))

	posts := NewPostService(f.posts, failingLinks{f.links}, f.logger)
	post, err := posts.Create(ctx, ana, ref, "lost")
	require.NoError(t, err, "an orphan is not fatal to the request")

	got, err := posts.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "lost", got.Caption)

	owned, err := posts.ListByOwner(ctx, ana)
	require.NoError(t, err)
	assert.Empty(t, owned)
}

func TestPostService_ListAndFeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.register(t, "ana", "ana@x.com")
	bob := f.register(t, "bob", "bob@x.com")

	p1, err := f.postSvc.Create(ctx, ana, f.ingest(t, fakeImage(jpegHeader, 100)), "one")
	require.NoError(t, err)
	p2, err := f.postSvc.Create(ctx, bob, f.ingest(t, fakeImage(jpegHeader, 200)), "two")
	require.NoError(t, err)
	p3, err := f.postSvc.Create(ctx, ana, f.ingest(t, fakeImage(jpegHeader, 300)), "three")
	require.NoError(t, err)

	owned, err := f.postSvc.ListByOwner(ctx, ana)
	require.NoError(t, err)
	require.Len(t, owned, 2)
	assert.Equal(t, p1.ID, owned[0].ID)
	assert.Equal(t, p3.ID, owned[1].ID)

	feed, err := f.postSvc.Feed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, feed, 3)
	ids := []int64{feed[0].ID, feed[1].ID, feed[2].ID}
	assert.ElementsMatch(t, []int64{p1.ID, p2.ID, p3.ID}, ids)
	for _, item := range feed {
		assert.NotEmpty(t, item.OwnerUsername)
	}
}
