package user

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists accounts. Lookups return apperror.ErrNotFound when no
// row matches and Create returns apperror.ErrDuplicate for a taken email.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	// Approve marks a pending account approved. It reports false when the
	// account was already approved, leaving approved_by and approved_at as
	// they were.
	Approve(ctx context.Context, id, adminID uuid.UUID, at time.Time) (bool, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*User, int, error)
	ListPending(ctx context.Context) ([]*User, error)
	ListCHWs(ctx context.Context, f CHWFilter, limit, offset int) ([]*User, int, error)
	NearbyCHWs(ctx context.Context, sector string, limit int) ([]*User, error)
	IncrementCompletedPickups(ctx context.Context, id uuid.UUID) error
}
