package education

import (
	"time"

	"github.com/google/uuid"
)

type Tip struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Icon         *string   `json:"icon"`
	Summary      string    `json:"summary"`
	Content      string    `json:"content"`
	Category     *string   `json:"category"`
	IsActive     bool      `json:"isActive"`
	DisplayOrder int       `json:"displayOrder"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Input carries a create or a partial update. Nil fields are left alone
// on update.
type Input struct {
	Title        *string `json:"title"`
	Icon         *string `json:"icon"`
	Summary      *string `json:"summary"`
	Content      *string `json:"content"`
	Category     *string `json:"category"`
	DisplayOrder *int    `json:"displayOrder"`
	IsActive     *bool   `json:"isActive"`
}
