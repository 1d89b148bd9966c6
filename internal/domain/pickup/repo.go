package pickup

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Pickup) error
	// GetByID embeds the requester, the CHW and the linked disposal.
	GetByID(ctx context.Context, id uuid.UUID) (*Pickup, error)
	// Update persists status, CHW notes, scheduledTime, completedAt and
	// disposalId.
	Update(ctx context.Context, p *Pickup) error
	ListByUser(ctx context.Context, userID uuid.UUID, f ListFilter, limit, offset int) ([]*Pickup, int, error)
	// ListByCHW orders by preferred time, soonest first.
	ListByCHW(ctx context.Context, chwID uuid.UUID, f ListFilter, limit, offset int) ([]*Pickup, int, error)
	ListAll(ctx context.Context, f ListFilter, limit, offset int) ([]*Pickup, int, error)
	CHWStats(ctx context.Context, chwID uuid.UUID) (*CHWStats, error)
}
