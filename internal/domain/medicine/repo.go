package medicine

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Medicine) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error)
	Update(ctx context.Context, m *Medicine) error
	// List returns active medicines only.
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Medicine, int, error)
	Search(ctx context.Context, q string, limit int) ([]*Medicine, error)
	FindActiveByGenericName(ctx context.Context, name string) (*Medicine, error)
	FindByRegistrationNumber(ctx context.Context, regNo string) (*Medicine, error)
	FindByNameForm(ctx context.Context, genericName, dosageForm string) (*Medicine, error)
	// DeleteAll hard-deletes the whole registry and reports the row count.
	DeleteAll(ctx context.Context) (int64, error)
}
