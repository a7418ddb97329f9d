package storage

import (
	"context"
	"io"
	"path"
	"strings"
	"time"
)

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified *time.Time
}

// UploadInput describes one object to store under <prefix>/<Folder>/<Name>.
type UploadInput struct {
	Folder      string
	Name        string
	Body        io.Reader
	Size        int64
	ContentType string
}

// Object is what the store hands back for a completed upload.
type Object struct {
	Key string
	URL string
}

// Gateway is the boundary to remote binary-object storage. It never retries;
// retry policy belongs to the caller.
type Gateway interface {
	Upload(ctx context.Context, in UploadInput) (*Object, error)
	Delete(ctx context.Context, key string) error
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// Prefix is the key prefix every uploaded object lives under.
	Prefix() string
}

func objectKey(prefix, folder, name string) string {
	return strings.TrimPrefix(path.Join(strings.Trim(prefix, "/"), strings.Trim(folder, "/"), name), "/")
}

func publicURL(base, scheme, bucket, key string) string {
	if base = strings.TrimRight(base, "/"); base != "" {
		return base + "/" + key
	}
	return scheme + "://" + bucket + "/" + key
}
