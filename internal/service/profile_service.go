package service

import (
	"context"
	"errors"
	"io"

	"github.com/sirupsen/logrus"

	"pixnest/internal/domain"
)

// AvatarUpload is a new avatar image as received from the client.
type AvatarUpload struct {
	Body        io.Reader
	Size        int64
	ContentType string
}

// ProfileService updates user attributes and swaps avatars. An update is
// applied entirely or not at all.
type ProfileService interface {
	UpdateProfile(ctx context.Context, userID int64, fields IdentityChanges, avatar *AvatarUpload) error
	ResetAvatar(ctx context.Context, userID int64) error
}

type profileService struct {
	credentials  CredentialService
	media        MediaService
	avatarFolder string
	logger       *logrus.Entry
}

func NewProfileService(credentials CredentialService, media MediaService, avatarFolder string, logger *logrus.Logger) ProfileService {
	if avatarFolder == "" {
		avatarFolder = "avatars"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &profileService{
		credentials:  credentials,
		media:        media,
		avatarFolder: avatarFolder,
		logger:       logger.WithField("component", "profile"),
	}
}

func (s *profileService) UpdateProfile(ctx context.Context, userID int64, fields IdentityChanges, avatar *AvatarUpload) error {
	fields.Avatar = nil
	// reject bad fields before any bytes reach object storage
	if err := s.credentials.ValidateChanges(fields); err != nil {
		return err
	}

	if avatar != nil {
		if _, err := s.credentials.GetUser(ctx, userID); err != nil {
			return err
		}
		ref, err := s.media.Ingest(ctx, avatar.Body, avatar.Size, avatar.ContentType, s.avatarFolder)
		if err != nil {
			return err
		}
		fields.Avatar = &ref
	}

	if err := s.credentials.ChangeIdentityFields(ctx, userID, fields); err != nil {
		if fields.Avatar != nil && !errors.Is(err, domain.ErrNotFound) {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"user_id":    userID,
				"object_key": fields.Avatar.Key,
			}).Warn("profile update rejected; uploaded avatar left unreferenced")
		}
		return err
	}
	return nil
}

// ResetAvatar points the user back at the default avatar. The previous image
// stays in object storage.
func (s *profileService) ResetAvatar(ctx context.Context, userID int64) error {
	return s.credentials.ChangeIdentityFields(ctx, userID, IdentityChanges{Avatar: &domain.StorageRef{}})
}
