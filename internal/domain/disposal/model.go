package disposal

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/umutisafe/api/internal/domain/user"
)

const (
	StatusPendingReview   = "pending_review"
	StatusPickupRequested = "pickup_requested"
	StatusCompleted       = "completed"
	StatusCancelled       = "cancelled"
)

// transitions lists the statuses a user may move a disposal to. Pickup
// linking and release bypass this table through the repository.
var transitions = map[string][]string{
	StatusPendingReview:   {StatusPickupRequested, StatusCancelled},
	StatusPickupRequested: {StatusCompleted, StatusCancelled},
}

func ValidStatus(s string) bool {
	switch s {
	case StatusPendingReview, StatusPickupRequested, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is allowed. Staying in the same
// status is always allowed.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

const (
	InputText   = "text"
	InputImage  = "image"
	InputManual = "manual"
)

type Disposal struct {
	ID                          uuid.UUID       `json:"id"`
	UserID                      uuid.UUID       `json:"userId"`
	GenericName                 string          `json:"genericName"`
	BrandName                   *string         `json:"brandName"`
	DosageForm                  *string         `json:"dosageForm"`
	PackagingType               *string         `json:"packagingType"`
	MedicineName                *string         `json:"medicineName"`
	PredictedCategory           *string         `json:"predictedCategory"`
	PredictedCategoryConfidence *float64        `json:"predictedCategoryConfidence"`
	RiskLevel                   *string         `json:"riskLevel"`
	Confidence                  *float64        `json:"confidence"`
	Status                      string          `json:"status"`
	Reason                      *string         `json:"reason"`
	Notes                       *string         `json:"notes"`
	DisposalGuidance            *string         `json:"disposalGuidance"`
	HandlingMethod              *string         `json:"handlingMethod"`
	DisposalRemarks             *string         `json:"disposalRemarks"`
	CategoryCode                *string         `json:"categoryCode"`
	CategoryLabel               *string         `json:"categoryLabel"`
	SimilarGenericName          *string         `json:"similarGenericName"`
	SimilarityDistance          *float64        `json:"similarityDistance"`
	PredictionInputType         *string         `json:"predictionInputType"`
	PredictionSource            *string         `json:"predictionSource"`
	ModelVersion                *string         `json:"modelVersion"`
	Analysis                    *string         `json:"analysis"`
	Metadata                    json.RawMessage `json:"metadata"`
	ImageURL                    *string         `json:"imageUrl"`
	PickupRequestID             *uuid.UUID      `json:"pickupRequestId"`
	CompletedAt                 *time.Time      `json:"completedAt"`
	CreatedAt                   time.Time       `json:"createdAt"`
	UpdatedAt                   time.Time       `json:"updatedAt"`

	Images        []*Image       `json:"images,omitempty"`
	PickupRequest *PickupSummary `json:"pickupRequest,omitempty"`
	User          *user.Contact  `json:"user,omitempty"`
}

// PickupSummary is the linked pickup embedded in disposal responses.
type PickupSummary struct {
	ID            uuid.UUID     `json:"id"`
	Status        string        `json:"status"`
	PreferredTime time.Time     `json:"preferredTime"`
	ScheduledTime *time.Time    `json:"scheduledTime"`
	CHW           *user.Contact `json:"chw,omitempty"`
}

// Image maps to medicine_images.
type Image struct {
	ID         uuid.UUID `json:"id"`
	DisposalID uuid.UUID `json:"disposalId"`
	Filename   string    `json:"filename"`
	URL        string    `json:"url"`
	Mimetype   *string   `json:"mimetype"`
	Size       *int      `json:"size"`
	CreatedAt  time.Time `json:"createdAt"`
}

type CreateInput struct {
	GenericName                 string          `json:"genericName"`
	BrandName                   *string         `json:"brandName"`
	DosageForm                  *string         `json:"dosageForm"`
	PackagingType               *string         `json:"packagingType"`
	MedicineName                *string         `json:"medicineName"`
	PredictedCategory           *string         `json:"predictedCategory"`
	PredictedCategoryConfidence *float64        `json:"predictedCategoryConfidence"`
	RiskLevel                   *string         `json:"riskLevel"`
	Confidence                  *float64        `json:"confidence"`
	Reason                      *string         `json:"reason"`
	Notes                       *string         `json:"notes"`
	DisposalGuidance            *string         `json:"disposalGuidance"`
	HandlingMethod              *string         `json:"handlingMethod"`
	DisposalRemarks             *string         `json:"disposalRemarks"`
	CategoryCode                *string         `json:"categoryCode"`
	CategoryLabel               *string         `json:"categoryLabel"`
	SimilarGenericName          *string         `json:"similarGenericName"`
	SimilarityDistance          *float64        `json:"similarityDistance"`
	PredictionInputType         *string         `json:"predictionInputType"`
	PredictionSource            *string         `json:"predictionSource"`
	ModelVersion                *string         `json:"modelVersion"`
	Analysis                    *string         `json:"analysis"`
	Metadata                    json.RawMessage `json:"metadata"`
	ImageURL                    *string         `json:"imageUrl"`
}

type UpdateInput struct {
	Status *string `json:"status"`
	Notes  *string `json:"notes"`
}

type ListFilter struct {
	Status    string
	RiskLevel string
}

type Stats struct {
	TotalDisposals  int            `json:"totalDisposals"`
	PendingReview   int            `json:"pendingReview"`
	PickupRequested int            `json:"pickupRequested"`
	Completed       int            `json:"completed"`
	Cancelled       int            `json:"cancelled"`
	ByRiskLevel     map[string]int `json:"byRiskLevel"`
}

// ClampUnit limits a score to [0,1]. NaN is dropped.
func ClampUnit(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) {
		return nil
	}
	c := math.Max(0, math.Min(1, *v))
	return &c
}
