package education

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, t *Tip) error
	GetByID(ctx context.Context, id uuid.UUID) (*Tip, error)
	Update(ctx context.Context, t *Tip) error
	// ListActive orders by display order, newest first within a slot. An
	// empty category matches all.
	ListActive(ctx context.Context, category string) ([]*Tip, error)
}
