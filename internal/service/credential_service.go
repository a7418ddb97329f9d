package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"pixnest/internal/domain"
	"pixnest/internal/repository"
)

const minPasswordLength = 8

// IdentityChanges carries the profile fields to change. Nil fields are left untouched.
type IdentityChanges struct {
	Username    *string
	Email       *string
	FullName    *string
	Description *string
	// Avatar is written in the same statement as the other fields so that a
	// uniqueness collision rejects the avatar swap too.
	Avatar *domain.StorageRef
}

// CredentialService owns identity records and password verification.
type CredentialService interface {
	Register(ctx context.Context, username, email, fullName, password string) (int64, error)
	Verify(ctx context.Context, usernameOrEmail, password string) (int64, error)
	ChangeIdentityFields(ctx context.Context, userID int64, changes IdentityChanges) error
	ValidateChanges(changes IdentityChanges) error
	GetUser(ctx context.Context, id int64) (*domain.User, error)
}

type credentialService struct {
	users     repository.UserRepository
	links     repository.PostLinkRepository
	cost      int
	dummyHash func() []byte
	logger    *logrus.Entry
}

// NewCredentialService builds the service with the given bcrypt work factor.
// Out-of-range costs fall back to bcrypt.DefaultCost.
func NewCredentialService(users repository.UserRepository, links repository.PostLinkRepository, cost int, logger *logrus.Logger) CredentialService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &credentialService{
		users: users,
		links: links,
		cost:  cost,
		// hashed with the same cost so a miss costs as much as a mismatch
		dummyHash: sync.OnceValue(func() []byte {
			hash, _ := bcrypt.GenerateFromPassword([]byte("pixnest-unknown-account"), cost)
			return hash
		}),
		logger: logger.WithField("component", "credentials"),
	}
}

func (s *credentialService) Register(ctx context.Context, username, email, fullName, password string) (int64, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	fullName = strings.TrimSpace(fullName)

	if err := validateUsername(username); err != nil {
		return 0, err
	}
	if err := validateEmail(email); err != nil {
		return 0, err
	}
	if strings.TrimSpace(password) == "" {
		return 0, fmt.Errorf("password is required: %w", domain.ErrInvalidInput)
	}
	if len(password) < minPasswordLength {
		return 0, fmt.Errorf("password must be at least %d characters: %w", minPasswordLength, domain.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		FullName:     fullName,
		PasswordHash: string(hash),
	}
	id, err := s.users.Create(ctx, user)
	if err != nil {
		return 0, err
	}

	s.logger.WithField("user_id", id).Info("user registered")
	return id, nil
}

func (s *credentialService) Verify(ctx context.Context, usernameOrEmail, password string) (int64, error) {
	login := strings.TrimSpace(usernameOrEmail)
	if login == "" || password == "" {
		return 0, domain.ErrInvalidCredentials
	}

	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash(), []byte(password))
			return 0, domain.ErrInvalidCredentials
		}
		return 0, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return 0, domain.ErrInvalidCredentials
	}
	return user.ID, nil
}

func (s *credentialService) ChangeIdentityFields(ctx context.Context, userID int64, changes IdentityChanges) error {
	update, err := identityUpdate(changes)
	if err != nil {
		return err
	}
	return s.users.Update(ctx, userID, update)
}

// ValidateChanges reports whether changes would pass ChangeIdentityFields'
// own checks, without touching the store.
func (s *credentialService) ValidateChanges(changes IdentityChanges) error {
	_, err := identityUpdate(changes)
	return err
}

func identityUpdate(changes IdentityChanges) (repository.UserUpdate, error) {
	update := repository.UserUpdate{
		FullName:    trimmed(changes.FullName),
		Description: trimmed(changes.Description),
		Avatar:      changes.Avatar,
	}
	if changes.Username != nil {
		username := strings.TrimSpace(*changes.Username)
		if err := validateUsername(username); err != nil {
			return update, err
		}
		update.Username = &username
	}
	if changes.Email != nil {
		email := normalizeEmail(*changes.Email)
		if err := validateEmail(email); err != nil {
			return update, err
		}
		update.Email = &email
	}
	return update, nil
}

// GetUser returns the user with its post collection filled in and the
// password hash stripped.
func (s *credentialService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	posts, err := s.links.ListByUser(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Posts = posts
	return sanitizeUser(user), nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	clean := *user
	clean.PasswordHash = ""
	return &clean
}

func validateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username is required: %w", domain.ErrInvalidInput)
	}
	if strings.ContainsAny(username, " \t\r\n@") {
		return fmt.Errorf("username must not contain spaces or '@': %w", domain.ErrInvalidInput)
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required: %w", domain.ErrInvalidInput)
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return fmt.Errorf("email %q is malformed: %w", email, domain.ErrInvalidInput)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
