package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pixnest/internal/domain"
	"pixnest/internal/repository"
)

// SessionService turns a verified identity into a bearer token and back.
type SessionService interface {
	Establish(ctx context.Context, userID int64) (string, error)
	Resolve(ctx context.Context, token string) (int64, error)
	// Invalidate is idempotent: unknown, expired or malformed tokens are not an error.
	Invalidate(ctx context.Context, token string) error
	PurgeExpired(ctx context.Context) (int64, error)
}

// SessionOptions configures token signing and lifetime.
type SessionOptions struct {
	Secret string
	TTL    time.Duration
	// Now overrides the clock; nil means time.Now.
	Now    func() time.Time
	Logger *logrus.Logger
}

type sessionService struct {
	sessions repository.SessionRepository
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
	logger   *logrus.Entry
}

func NewSessionService(sessions repository.SessionRepository, opts SessionOptions) (SessionService, error) {
	if opts.Secret == "" {
		return nil, errors.New("session secret is required")
	}
	if opts.TTL <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &sessionService{
		sessions: sessions,
		secret:   []byte(opts.Secret),
		ttl:      opts.TTL,
		now:      opts.Now,
		logger:   opts.Logger.WithField("component", "sessions"),
	}, nil
}

func (s *sessionService) Establish(ctx context.Context, userID int64) (string, error) {
	if userID <= 0 {
		return "", fmt.Errorf("establish session: %w", domain.ErrInvalidInput)
	}

	now := s.now().UTC()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	claims := jwt.RegisteredClaims{
		ID:        session.ID,
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return "", err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"session_id": session.ID,
	}).Debug("session established")
	return token, nil
}

func (s *sessionService) Resolve(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, domain.ErrUnauthenticated
	}

	claims, err := s.parse(token, true)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && claims != nil && claims.ID != "" {
			s.forget(ctx, claims.ID)
		}
		return 0, domain.ErrUnauthenticated
	}

	session, err := s.sessions.Get(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, domain.ErrUnauthenticated
		}
		return 0, err
	}
	if session.Expired(s.now()) {
		s.forget(ctx, session.ID)
		return 0, domain.ErrUnauthenticated
	}
	if strconv.FormatInt(session.UserID, 10) != claims.Subject {
		return 0, domain.ErrUnauthenticated
	}
	return session.UserID, nil
}

func (s *sessionService) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := s.parse(token, false)
	if err != nil || claims.ID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, claims.ID); err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	s.logger.WithField("session_id", claims.ID).Debug("session invalidated")
	return nil
}

func (s *sessionService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge expired sessions: %w", err)
	}
	return n, nil
}

// parse verifies the signature; claim validation (expiry) only runs when
// validate is set. The claims are returned even when validation fails.
func (s *sessionService) parse(token string, validate bool) (*jwt.RegisteredClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if !validate {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	return claims, err
}

func (s *sessionService) forget(ctx context.Context, id string) {
	if err := s.sessions.Delete(ctx, id); err != nil {
		s.logger.WithError(err).WithField("session_id", id).Warn("delete expired session")
	}
}
