package repository

import (
	"context"

	"pixnest/internal/domain"
)

// UserUpdate carries the identity fields to change. Nil fields are left untouched.
type UserUpdate struct {
	Username    *string
	Email       *string
	FullName    *string
	Description *string
	Avatar      *domain.StorageRef
}

// Empty reports whether the update changes nothing.
func (u UserUpdate) Empty() bool {
	return u.Username == nil && u.Email == nil && u.FullName == nil && u.Description == nil && u.Avatar == nil
}

// UserRepository defines persistence operations for User entities.
// Username and email uniqueness is enforced by the store itself; collisions
// surface as domain.ErrDuplicateIdentity from Create and Update.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByLogin(ctx context.Context, usernameOrEmail string) (*domain.User, error)
	Update(ctx context.Context, id int64, update UserUpdate) error
	ListAvatarKeys(ctx context.Context) ([]string, error)
}
