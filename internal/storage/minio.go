package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioOptions configures a MinIO (or any S3-compatible) backend.
type MinioOptions struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	KeyPrefix  string
	PublicBase string
	UseSSL     bool
}

// MinioService implements Gateway on top of minio-go.
type MinioService struct {
	client     *minio.Client
	bucket     string
	keyPrefix  string
	publicBase string
}

// NewMinioService creates a client, ensures the bucket exists with a public-read
// policy when a public base URL is configured, and returns a ready gateway.
func NewMinioService(ctx context.Context, opts MinioOptions) (*MinioService, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", opts.Bucket, err)
		}
	}

	if opts.PublicBase != "" {
		if err := client.SetBucketPolicy(ctx, opts.Bucket, publicReadPolicy(opts.Bucket)); err != nil {
			return nil, fmt.Errorf("set bucket policy: %w", err)
		}
	}

	return &MinioService{
		client:     client,
		bucket:     opts.Bucket,
		keyPrefix:  strings.Trim(opts.KeyPrefix, "/"),
		publicBase: opts.PublicBase,
	}, nil
}

func (s *MinioService) Prefix() string {
	return s.keyPrefix
}

// Upload streams the body under the computed key. A non-positive Size makes
// minio buffer the stream itself.
func (s *MinioService) Upload(ctx context.Context, in UploadInput) (*Object, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("object name is required")
	}
	size := in.Size
	if size <= 0 {
		size = -1
	}

	key := objectKey(s.keyPrefix, in.Folder, in.Name)
	if _, err := s.client.PutObject(ctx, s.bucket, key, in.Body, size, minio.PutObjectOptions{
		ContentType: in.ContentType,
	}); err != nil {
		return nil, fmt.Errorf("put object %q: %w", key, err)
	}

	return &Object{
		Key: key,
		URL: publicURL(s.publicBase, "minio", s.bucket, key),
	}, nil
}

func (s *MinioService) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %q: %w", key, err)
	}
	return nil
}

func (s *MinioService) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects: %w", obj.Err)
		}
		modified := obj.LastModified
		objects = append(objects, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: &modified,
		})
	}
	return objects, nil
}

// publicReadPolicy returns an S3 bucket policy allowing anonymous GET on all objects.
func publicReadPolicy(bucket string) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect":    "Allow",
				"Principal": "*",
				"Action":    "s3:GetObject",
				"Resource":  fmt.Sprintf("arn:aws:s3:::%s/*", bucket),
			},
		},
	}
	b, _ := json.Marshal(policy)
	return string(b)
}

var _ Gateway = (*MinioService)(nil)
