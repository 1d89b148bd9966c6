package pickup

import (
	"time"

	"github.com/google/uuid"

	"github.com/umutisafe/api/internal/domain/user"
)

const (
	StatusPending   = "pending"
	StatusScheduled = "scheduled"
	StatusCollected = "collected"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusRejected  = "rejected"
)

// progress orders the forward path a CHW walks a request along.
var progress = map[string]int{
	StatusPending:   0,
	StatusScheduled: 1,
	StatusCollected: 2,
	StatusCompleted: 3,
}

func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusScheduled, StatusCollected, StatusCompleted, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// CHWCanSet reports whether the assigned CHW may move a request from one
// status to another. Requests never go backwards, cancelled and rejected
// are final, and only the requester cancels. Re-sending the current status
// is allowed.
func CHWCanSet(from, to string) bool {
	if to == StatusCancelled {
		return false
	}
	if from == StatusCancelled || from == StatusRejected {
		return false
	}
	if to == StatusRejected {
		return from != StatusCompleted
	}
	return progress[to] >= progress[from]
}

// Cancellable reports whether the requester may still cancel.
func Cancellable(status string) bool {
	return status != StatusCompleted && status != StatusCancelled
}

type Pickup struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"userId"`
	CHWID            uuid.UUID  `json:"chwId"`
	DisposalID       *uuid.UUID `json:"disposalId"`
	MedicineName     string     `json:"medicineName"`
	DisposalGuidance *string    `json:"disposalGuidance"`
	Reason           string     `json:"reason"`
	PickupLocation   string     `json:"pickupLocation"`
	Latitude         *float64   `json:"latitude"`
	Longitude        *float64   `json:"longitude"`
	PreferredTime    time.Time  `json:"preferredTime"`
	Status           string     `json:"status"`
	ConsentGiven     bool       `json:"consentGiven"`
	Notes            *string    `json:"notes"`
	CHWNotes         *string    `json:"chwNotes"`
	ScheduledTime    *time.Time `json:"scheduledTime"`
	CompletedAt      *time.Time `json:"completedAt"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`

	Requester *user.Contact    `json:"requester,omitempty"`
	CHW       *user.Contact    `json:"chw,omitempty"`
	Disposal  *DisposalSummary `json:"disposal,omitempty"`
}

// IsParty reports whether id is the requester or the assigned CHW.
func (p *Pickup) IsParty(id uuid.UUID) bool {
	return p.UserID == id || p.CHWID == id
}

type DisposalSummary struct {
	ID          uuid.UUID `json:"id"`
	GenericName string    `json:"genericName"`
	BrandName   *string   `json:"brandName"`
	DosageForm  *string   `json:"dosageForm"`
	Status      string    `json:"status"`
}

type CreateInput struct {
	CHWID            uuid.UUID  `json:"chwId"`
	DisposalID       *uuid.UUID `json:"disposalId"`
	MedicineName     string     `json:"medicineName"`
	DisposalGuidance *string    `json:"disposalGuidance"`
	Reason           string     `json:"reason"`
	PickupLocation   string     `json:"pickupLocation"`
	Latitude         *float64   `json:"latitude"`
	Longitude        *float64   `json:"longitude"`
	PreferredTime    *time.Time `json:"preferredTime"`
	ConsentGiven     bool       `json:"consentGiven"`
	Notes            *string    `json:"notes"`
}

type StatusInput struct {
	Status        *string    `json:"status"`
	CHWNotes      *string    `json:"chwNotes"`
	ScheduledTime *time.Time `json:"scheduledTime"`
}

type ListFilter struct {
	Status string
}

type CHWStats struct {
	Pending   int `json:"pending"`
	Scheduled int `json:"scheduled"`
	Completed int `json:"completed"`
	Total     int `json:"total"`
}
