package medicine

import (
	"time"

	"github.com/google/uuid"
)

const DefaultCategory = "Uncategorized"

// Medicine maps to the registered_medicines table. Rows are never hard
// deleted by the API; isActive=false hides them.
type Medicine struct {
	ID                           uuid.UUID  `db:"id" json:"id"`
	GenericName                  string     `db:"generic_name" json:"genericName"`
	BrandName                    *string    `db:"brand_name" json:"brandName"`
	RegistrationNumber           *string    `db:"registration_number" json:"registrationNumber"`
	DosageForm                   string     `db:"dosage_form" json:"dosageForm"`
	Strength                     *string    `db:"strength" json:"strength"`
	PackSize                     *string    `db:"pack_size" json:"packSize"`
	PackagingType                *string    `db:"packaging_type" json:"packagingType"`
	ShelfLife                    *string    `db:"shelf_life" json:"shelfLife"`
	Category                     string     `db:"category" json:"category"`
	RiskLevel                    string     `db:"risk_level" json:"riskLevel"`
	Manufacturer                 *string    `db:"manufacturer" json:"manufacturer"`
	ManufacturerAddress          *string    `db:"manufacturer_address" json:"manufacturerAddress"`
	ManufacturerCountry          *string    `db:"manufacturer_country" json:"manufacturerCountry"`
	MarketingAuthorizationHolder *string    `db:"marketing_authorization_holder" json:"marketingAuthorizationHolder"`
	LocalTechnicalRepresentative *string    `db:"local_technical_representative" json:"localTechnicalRepresentative"`
	FDAApproved                  bool       `db:"fda_approved" json:"fdaApproved"`
	DisposalInstructions         *string    `db:"disposal_instructions" json:"disposalInstructions"`
	RegistrationDate             *time.Time `db:"registration_date" json:"registrationDate"`
	ExpiryDate                   *time.Time `db:"expiry_date" json:"expiryDate"`
	IsActive                     bool       `db:"is_active" json:"isActive"`
	CreatedAt                    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt                    time.Time  `db:"updated_at" json:"updatedAt"`
}

// Input is the admin create/update form. Nil fields are left unchanged on
// update.
type Input struct {
	GenericName          *string `json:"genericName"`
	BrandName            *string `json:"brandName"`
	RegistrationNumber   *string `json:"registrationNumber"`
	DosageForm           *string `json:"dosageForm"`
	Strength             *string `json:"strength"`
	PackSize             *string `json:"packSize"`
	PackagingType        *string `json:"packagingType"`
	Category             *string `json:"category"`
	RiskLevel            *string `json:"riskLevel"`
	Manufacturer         *string `json:"manufacturer"`
	FDAApproved          *bool   `json:"fdaApproved"`
	DisposalInstructions *string `json:"disposalInstructions"`
	IsActive             *bool   `json:"isActive"`
}

type ListFilter struct {
	Search    string
	Category  string
	RiskLevel string
}

type PredictInput struct {
	GenericName string `json:"generic_name"`
	BrandName   string `json:"brand_name"`
	DosageForm  string `json:"dosage_form"`
}

type MedicineInfo struct {
	GenericName string `json:"generic_name"`
	BrandName   string `json:"brand_name"`
	DosageForm  string `json:"dosage_form"`
}

type Prediction struct {
	PredictedCategory string       `json:"predicted_category"`
	RiskLevel         string       `json:"risk_level"`
	Confidence        float64      `json:"confidence"`
	DisposalGuidance  string       `json:"disposal_guidance"`
	SafetyNotes       string       `json:"safety_notes"`
	RequiresCHW       bool         `json:"requires_chw"`
	MedicineInfo      MedicineInfo `json:"medicine_info"`
	Matched           bool         `json:"matched"`
}

// ImportMode selects how a CSV upload treats the existing registry.
type ImportMode string

const (
	// ImportReplace clears the registry before importing.
	ImportReplace ImportMode = "replace"
	// ImportAppend only upserts.
	ImportAppend ImportMode = "append"
)

func ParseImportMode(s string) (ImportMode, bool) {
	switch ImportMode(s) {
	case "", ImportReplace:
		return ImportReplace, true
	case ImportAppend:
		return ImportAppend, true
	}
	return "", false
}

type ImportResult struct {
	Mode    ImportMode `json:"mode"`
	Total   int        `json:"total"`
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Skipped int        `json:"skipped"`
	Removed int64      `json:"removed"`
}
