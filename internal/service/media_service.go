package service

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"

	"pixnest/internal/domain"
	"pixnest/internal/storage"
)

// MediaService validates uploaded images and forwards them to object storage.
type MediaService interface {
	// Ingest buffers body, checks its size and sniffed type, then uploads it
	// under folder. Nothing reaches storage unless validation passed.
	Ingest(ctx context.Context, body io.Reader, declaredSize int64, mimeHint, folder string) (domain.StorageRef, error)
	MaxBytes() int64
}

type MediaOptions struct {
	MaxBytes       int64
	AllowedTypes   []string
	UploadTimeout  time.Duration
	UploadAttempts int
	RetryBackoff   time.Duration
	Logger         *logrus.Logger
}

type mediaService struct {
	store   storage.Gateway
	opts    MediaOptions
	allowed []string
	logger  *logrus.Entry
}

func NewMediaService(store storage.Gateway, opts MediaOptions) MediaService {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 10 << 20
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 30 * time.Second
	}
	if opts.UploadAttempts <= 0 {
		opts.UploadAttempts = 1
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	allowed := make([]string, 0, len(opts.AllowedTypes))
	for _, t := range opts.AllowedTypes {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			allowed = append(allowed, t)
		}
	}
	if len(allowed) == 0 {
		allowed = []string{"image/jpeg", "image/png"}
	}

	return &mediaService{
		store:   store,
		opts:    opts,
		allowed: allowed,
		logger:  opts.Logger.WithField("component", "media"),
	}
}

func (s *mediaService) MaxBytes() int64 {
	return s.opts.MaxBytes
}

func (s *mediaService) Ingest(ctx context.Context, body io.Reader, declaredSize int64, mimeHint, folder string) (domain.StorageRef, error) {
	if body == nil {
		return domain.StorageRef{}, fmt.Errorf("no file: %w", domain.ErrInvalidInput)
	}
	if declaredSize > s.opts.MaxBytes {
		return domain.StorageRef{}, fmt.Errorf("declared size %d exceeds %d: %w", declaredSize, s.opts.MaxBytes, domain.ErrPayloadTooLarge)
	}

	buf, err := io.ReadAll(io.LimitReader(body, s.opts.MaxBytes+1))
	if err != nil {
		return domain.StorageRef{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(buf)) > s.opts.MaxBytes {
		return domain.StorageRef{}, fmt.Errorf("upload exceeds %d bytes: %w", s.opts.MaxBytes, domain.ErrPayloadTooLarge)
	}
	if len(buf) == 0 {
		return domain.StorageRef{}, fmt.Errorf("empty file: %w", domain.ErrInvalidInput)
	}

	detected := mimetype.Detect(buf)
	if !s.isAllowed(detected) {
		return domain.StorageRef{}, fmt.Errorf("content is %s: %w", detected.String(), domain.ErrUnsupportedMedia)
	}
	if hint := baseMediaType(mimeHint); hint != "" && hint != "application/octet-stream" && !detected.Is(hint) {
		s.logger.WithFields(logrus.Fields{
			"declared": hint,
			"detected": detected.String(),
		}).Warn("declared content type disagrees with content")
	}

	sum := blake3.Sum256(buf)
	in := storage.UploadInput{
		Folder:      folder,
		Name:        hex.EncodeToString(sum[:]) + detected.Extension(),
		Size:        int64(len(buf)),
		ContentType: detected.String(),
	}

	obj, attempts, err := s.upload(ctx, in, buf)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"folder":   in.Folder,
			"name":     in.Name,
			"size":     in.Size,
			"attempts": attempts,
		}).Error("storage upload failed")
		return domain.StorageRef{}, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	return domain.StorageRef{Key: obj.Key, URL: obj.URL}, nil
}

// upload retries with linear backoff; every attempt gets its own timeout and
// a fresh reader over buf.
func (s *mediaService) upload(ctx context.Context, in storage.UploadInput, buf []byte) (*storage.Object, int, error) {
	var lastErr error
	for attempt := 1; attempt <= s.opts.UploadAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, attempt - 1, errors.Join(lastErr, ctx.Err())
			case <-time.After(time.Duration(attempt-1) * s.opts.RetryBackoff):
			}
		}

		in.Body = bytes.NewReader(buf)
		uploadCtx, cancel := context.WithTimeout(ctx, s.opts.UploadTimeout)
		obj, err := s.store.Upload(uploadCtx, in)
		cancel()
		if err == nil {
			return obj, attempt, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, attempt, errors.Join(lastErr, ctx.Err())
		}
		s.logger.WithError(err).WithField("attempt", attempt).Warn("storage upload attempt failed")
	}
	return nil, s.opts.UploadAttempts, lastErr
}

func (s *mediaService) isAllowed(detected *mimetype.MIME) bool {
	for _, t := range s.allowed {
		if detected.Is(t) {
			return true
		}
	}
	return false
}

func baseMediaType(hint string) string {
	base, _, _ := strings.Cut(hint, ";")
	return strings.ToLower(strings.TrimSpace(base))
}
