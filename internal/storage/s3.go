package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Service stores media in Amazon S3 (or compatible APIs).
type S3Service struct {
	client     *s3.Client
	uploader   *manager.Uploader
	bucket     string
	keyPrefix  string
	publicBase string
}

func NewS3Service(client *s3.Client, bucket, keyPrefix, publicBase string) *S3Service {
	return &S3Service{
		client:     client,
		uploader:   manager.NewUploader(client),
		bucket:     bucket,
		keyPrefix:  strings.Trim(keyPrefix, "/"),
		publicBase: publicBase,
	}
}

func (s *S3Service) Prefix() string {
	return s.keyPrefix
}

func (s *S3Service) Upload(ctx context.Context, in UploadInput) (*Object, error) {
	if s.bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	if in.Name == "" {
		return nil, fmt.Errorf("object name is required")
	}

	key := objectKey(s.keyPrefix, in.Folder, in.Name)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   in.Body,
		ACL:    types.ObjectCannedACLPrivate,
	}
	if in.ContentType != "" {
		input.ContentType = aws.String(in.ContentType)
	}
	if in.Size > 0 {
		input.ContentLength = aws.Int64(in.Size)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}

	return &Object{
		Key: key,
		URL: publicURL(s.publicBase, "s3", s.bucket, key),
	}, nil
}

func (s *S3Service) Delete(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("object key is required")
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

func (s *S3Service) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if s.bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	var objects []ObjectInfo
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if strings.TrimSpace(prefix) != "" {
		input.Prefix = aws.String(prefix)
	}

	for {
		output, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}

		for _, obj := range output.Contents {
			objects = append(objects, ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: obj.LastModified,
			})
		}

		if !aws.ToBool(output.IsTruncated) || output.NextContinuationToken == nil {
			break
		}
		input.ContinuationToken = output.NextContinuationToken
	}

	return objects, nil
}

var _ Gateway = (*S3Service)(nil)
