package domain

import "time"

// StorageRef locates content held by the object store.
type StorageRef struct {
	Key string
	URL string
}

// Empty reports whether the reference points at nothing.
func (r StorageRef) Empty() bool {
	return r.Key == "" && r.URL == ""
}

// Post is a published image owned by exactly one user.
type Post struct {
	ID        int64
	OwnerID   int64
	Image     StorageRef
	Caption   string
	CreatedAt time.Time
}

// FeedItem is a post joined with the public fields of its owner.
type FeedItem struct {
	Post
	OwnerUsername string
	OwnerAvatar   string
}
