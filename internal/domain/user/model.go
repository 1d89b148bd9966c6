package user

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/umutisafe/api/internal/platform/auth"
)

// GovDomain is reserved for administrator accounts.
const GovDomain = "umutisafe.gov.rw"

const (
	AvailabilityAvailable = "available"
	AvailabilityBusy      = "busy"
	AvailabilityOffline   = "offline"
)

// User maps to the users table. The password hash never leaves the service.
type User struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	Name             string     `db:"name" json:"name"`
	Email            string     `db:"email" json:"email"`
	PasswordHash     string     `db:"password" json:"-"`
	Role             string     `db:"role" json:"role"`
	Phone            *string    `db:"phone" json:"phone"`
	Avatar           *string    `db:"avatar" json:"avatar"`
	Location         *string    `db:"location" json:"location"`
	Sector           *string    `db:"sector" json:"sector"`
	Availability     string     `db:"availability" json:"availability"`
	CompletedPickups int        `db:"completed_pickups" json:"completedPickups"`
	Rating           float64    `db:"rating" json:"rating"`
	CoverageArea     *string    `db:"coverage_area" json:"coverageArea"`
	IsActive         bool       `db:"is_active" json:"isActive"`
	IsApproved       bool       `db:"is_approved" json:"isApproved"`
	ApprovedBy       *uuid.UUID `db:"approved_by" json:"approvedBy"`
	ApprovedAt       *time.Time `db:"approved_at" json:"approvedAt"`
	LastLogin        *time.Time `db:"last_login" json:"lastLogin"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updatedAt"`
}

func (u *User) IsCHW() bool { return u.Role == auth.RoleCHW }

// Contact is the subset of a user embedded in disposal and pickup
// responses. Fields a listing does not select stay empty.
type Contact struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email,omitempty"`
	Phone    *string   `json:"phone"`
	Location *string   `json:"location,omitempty"`
	Sector   *string   `json:"sector,omitempty"`
	Rating   *float64  `json:"rating,omitempty"`
}

type RegisterInput struct {
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Password     string  `json:"password"`
	Role         string  `json:"role"`
	Phone        *string `json:"phone"`
	Location     *string `json:"location"`
	Sector       *string `json:"sector"`
	CoverageArea *string `json:"coverageArea"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult carries the session token and whether the user had signed in
// before this login.
type LoginResult struct {
	Token             string     `json:"token"`
	User              *User      `json:"user"`
	HasLoggedBefore   bool       `json:"hasLoggedBefore"`
	PreviousLastLogin *time.Time `json:"previousLastLogin"`
}

type RegisterResult struct {
	User  *User  `json:"user"`
	Token string `json:"token,omitempty"`
}

type ProfileInput struct {
	Name         *string `json:"name"`
	Phone        *string `json:"phone"`
	Location     *string `json:"location"`
	Sector       *string `json:"sector"`
	CoverageArea *string `json:"coverageArea"`
	Availability *string `json:"availability"`
}

type PasswordInput struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// AdminUpdateInput is the admin edit form. Nil fields are left unchanged.
type AdminUpdateInput struct {
	Name         *string `json:"name"`
	Email        *string `json:"email"`
	Role         *string `json:"role"`
	Phone        *string `json:"phone"`
	Location     *string `json:"location"`
	Sector       *string `json:"sector"`
	CoverageArea *string `json:"coverageArea"`
	IsActive     *bool   `json:"isActive"`
}

type ListFilter struct {
	Role   string
	Search string
}

type CHWFilter struct {
	Sector       string
	Availability string
	Search       string
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailDomain returns the part after the last '@', lower-cased.
func EmailDomain(email string) string {
	i := strings.LastIndex(email, "@")
	if i < 0 {
		return ""
	}
	return strings.ToLower(email[i+1:])
}

func IsGovEmail(email string) bool {
	return EmailDomain(email) == GovDomain
}

// Initials builds the avatar text from the first letter of each word.
func Initials(name string) string {
	var b strings.Builder
	for _, w := range strings.Fields(name) {
		for _, r := range w {
			b.WriteRune(r)
			break
		}
	}
	return strings.ToUpper(b.String())
}

func ValidRole(role string) bool {
	switch role {
	case auth.RoleUser, auth.RoleCHW, auth.RoleAdmin:
		return true
	}
	return false
}

func ValidAvailability(a string) bool {
	switch a {
	case AvailabilityAvailable, AvailabilityBusy, AvailabilityOffline:
		return true
	}
	return false
}

func strPtr(s string) *string { return &s }
