package repository

import (
	"context"
	"time"

	"pixnest/internal/domain"
)

// SessionRepository stores live sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	// Delete is idempotent: removing a missing session is not an error.
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
