package disposal

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, d *Disposal) error
	// GetForUser returns the disposal only when userID owns it.
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*Disposal, error)
	// Update persists status, notes and completedAt.
	Update(ctx context.Context, d *Disposal) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID, f ListFilter, limit, offset int) ([]*Disposal, int, error)
	// ListAll spans every user and embeds the owner contact.
	ListAll(ctx context.Context, f ListFilter, limit, offset int) ([]*Disposal, int, error)
	Stats(ctx context.Context, userID uuid.UUID) (*Stats, error)

	AddImage(ctx context.Context, img *Image) error
	ListImages(ctx context.Context, disposalID uuid.UUID) ([]*Image, error)

	// LinkPickup attaches a pickup and moves the disposal to
	// pickup_requested. linked is false when the disposal is missing or
	// owned by someone else.
	LinkPickup(ctx context.Context, disposalID, userID, pickupID uuid.UUID) (linked bool, err error)
	// CompleteByPickup marks the disposal linked to pickupID completed,
	// stamping completedAt only if it is unset.
	CompleteByPickup(ctx context.Context, pickupID uuid.UUID, at time.Time) error
	// ReleaseByPickup returns the linked disposal to pending_review.
	ReleaseByPickup(ctx context.Context, pickupID uuid.UUID) error
}
