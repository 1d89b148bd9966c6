package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/umutisafe/api/internal/platform/apperror"
	"github.com/umutisafe/api/internal/platform/auth"
	"github.com/umutisafe/api/internal/platform/notification"
)

const MinPasswordLength = 6

const (
	msgInvalidCredentials = "Invalid credentials"
	msgUserNotFound       = "User not found"
)

// Notifier delivers the account lifecycle emails. Implementations must not
// block the caller.
type Notifier interface {
	RegistrationPending(r notification.Recipient)
	AccountApproved(r notification.Recipient)
}

type Service struct {
	users       Repository
	tokens      *auth.TokenIssuer
	revocations auth.RevocationStore
	notifier    Notifier
	logger      zerolog.Logger
	now         func() time.Time
}

func NewService(users Repository, tokens *auth.TokenIssuer, revocations auth.RevocationStore, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		users:       users,
		tokens:      tokens,
		revocations: revocations,
		notifier:    notifier,
		logger:      logger,
		now:         time.Now,
	}
}

func recipient(u *User) notification.Recipient {
	return notification.Recipient{Name: u.Name, Email: u.Email}
}

// -- Registration & login --

// CheckEmailDomain enforces that administrators, and only administrators,
// use the government domain.
func CheckEmailDomain(role, email string) error {
	gov := IsGovEmail(email)
	if role == auth.RoleAdmin && !gov {
		return apperror.Validation("Administrator accounts must use @" + GovDomain + " email address")
	}
	if role != auth.RoleAdmin && gov {
		return apperror.Validation("The @" + GovDomain + " domain is reserved for administrators only. Please use a different email address.")
	}
	return nil
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = NormalizeEmail(in.Email)
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return nil, apperror.Validation("Please provide name, email, and password")
	}
	if !strings.Contains(in.Email, "@") {
		return nil, apperror.Validation("Please provide a valid email")
	}
	if len(in.Password) < MinPasswordLength {
		return nil, apperror.Validation(fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}
	if in.Role == "" {
		in.Role = auth.RoleUser
	}
	if !ValidRole(in.Role) {
		return nil, apperror.Validation("Invalid role")
	}
	if err := CheckEmailDomain(in.Role, in.Email); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, apperror.Conflict("User already exists with this email")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		Phone:        in.Phone,
		Location:     in.Location,
		Sector:       in.Sector,
		CoverageArea: in.CoverageArea,
		Availability: AvailabilityAvailable,
		IsActive:     true,
	}
	if initials := Initials(in.Name); initials != "" {
		u.Avatar = strPtr(initials)
	}
	if in.Role == auth.RoleAdmin {
		now := s.now()
		u.IsApproved = true
		u.ApprovedAt = &now
	}

	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, apperror.ErrDuplicate) {
			return nil, apperror.Conflict("User already exists with this email")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	res := &RegisterResult{User: u}
	if u.IsApproved {
		token, _, err := s.tokens.Issue(u.ID, u.Role)
		if err != nil {
			return nil, err
		}
		res.Token = token
	} else if s.notifier != nil {
		s.notifier.RegistrationPending(recipient(u))
	}

	s.logger.Info().Str("user_id", u.ID.String()).Str("role", u.Role).Bool("approved", u.IsApproved).Msg("user registered")
	return res, nil
}

// Login verifies the password before looking at account state so that the
// response for an unknown email and a wrong password is identical.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, apperror.Validation("Please provide email and password")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.Unauthorized(msgInvalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !auth.CheckPassword(u.PasswordHash, in.Password) {
		return nil, apperror.Unauthorized(msgInvalidCredentials)
	}
	if !u.IsActive {
		return nil, apperror.Unauthorized("Account is deactivated. Please contact administrator.")
	}
	if !u.IsApproved {
		return nil, apperror.Forbidden("Your account is pending approval. You will receive an email once your account is approved.")
	}

	res := &LoginResult{User: u, HasLoggedBefore: u.LastLogin != nil, PreviousLastLogin: u.LastLogin}

	now := s.now()
	if err := s.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		return nil, fmt.Errorf("record last login: %w", err)
	}
	u.LastLogin = &now

	token, _, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, err
	}
	res.Token = token
	return res, nil
}

// Logout revokes the presented token until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" || s.revocations == nil {
		return nil
	}
	return s.revocations.Revoke(ctx, jti, expiresAt)
}

// Account backs the JWT middleware's per-request check. A deleted user comes
// back inactive.
func (s *Service) Account(ctx context.Context, id uuid.UUID) (auth.Account, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return auth.Account{}, nil
	}
	if err != nil {
		return auth.Account{}, err
	}
	return auth.Account{Role: u.Role, Active: u.IsActive}, nil
}

// -- Own profile --

func (s *Service) get(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.NotFound(msgUserNotFound)
	}
	return u, err
}

func (s *Service) Me(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.get(ctx, id)
}

func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileInput) (*User, error) {
	u, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperror.Validation("Name cannot be empty")
		}
		u.Name = name
		u.Avatar = strPtr(Initials(name))
	}
	if in.Availability != nil {
		if !ValidAvailability(*in.Availability) {
			return nil, apperror.Validation("Invalid availability status")
		}
		u.Availability = *in.Availability
	}
	applyOptional(&u.Phone, in.Phone)
	applyOptional(&u.Location, in.Location)
	applyOptional(&u.Sector, in.Sector)
	applyOptional(&u.CoverageArea, in.CoverageArea)

	if err := s.users.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}

// applyOptional overwrites dst when the client sent a value. An empty
// string clears the field.
func applyOptional(dst **string, v *string) {
	if v == nil {
		return
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		*dst = nil
		return
	}
	*dst = &t
}

func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, in PasswordInput) error {
	if in.CurrentPassword == "" || in.NewPassword == "" {
		return apperror.Validation("Please provide current and new password")
	}
	if len(in.NewPassword) < MinPasswordLength {
		return apperror.Validation(fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}
	u, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, in.CurrentPassword) {
		return apperror.Unauthorized("Current password is incorrect")
	}
	hash, err := auth.HashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, id, hash)
}

// -- Admin user management --

func (s *Service) ListUsers(ctx context.Context, f ListFilter, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, f, limit, offset)
}

func (s *Service) ListPending(ctx context.Context) ([]*User, error) {
	return s.users.ListPending(ctx)
}

func (s *Service) ApproveUser(ctx context.Context, id, adminID uuid.UUID) (*User, error) {
	u, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.IsApproved {
		return nil, apperror.Conflict("User is already approved")
	}
	now := s.now()
	ok, err := s.users.Approve(ctx, id, adminID, now)
	if err != nil {
		return nil, fmt.Errorf("approve user: %w", err)
	}
	if !ok {
		// Another admin approved it between the read and the update.
		return nil, apperror.Conflict("User is already approved")
	}
	u.IsApproved = true
	u.ApprovedBy = &adminID
	u.ApprovedAt = &now
	if s.notifier != nil {
		s.notifier.AccountApproved(recipient(u))
	}
	s.logger.Info().Str("user_id", u.ID.String()).Str("approved_by", adminID.String()).Msg("user approved")
	return u, nil
}

// RejectUser deactivates a pending registration. The approval flag is left
// false.
func (s *Service) RejectUser(ctx context.Context, id uuid.UUID) error {
	u, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	u.IsActive = false
	return s.users.Update(ctx, u)
}

func (s *Service) ActivateUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	u.IsActive = true
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) DeactivateUser(ctx context.Context, id, actorID uuid.UUID) (*User, error) {
	if id == actorID {
		return nil, apperror.Validation("You cannot deactivate your own account")
	}
	u, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	u.IsActive = false
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteUser removes the account permanently.
func (s *Service) DeleteUser(ctx context.Context, id, actorID uuid.UUID) error {
	if id == actorID {
		return apperror.Validation("You cannot delete your own account")
	}
	if _, err := s.get(ctx, id); err != nil {
		return err
	}
	return s.users.Delete(ctx, id)
}

func (s *Service) UpdateUser(ctx context.Context, id, actorID uuid.UUID, in AdminUpdateInput) (*User, error) {
	if id == actorID && in.IsActive != nil && !*in.IsActive {
		return nil, apperror.Validation("You cannot deactivate your own account")
	}
	u, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		u.Name = strings.TrimSpace(*in.Name)
		u.Avatar = strPtr(Initials(u.Name))
	}
	if in.Email != nil && strings.TrimSpace(*in.Email) != "" {
		u.Email = NormalizeEmail(*in.Email)
	}
	if in.Role != nil && *in.Role != "" {
		if !ValidRole(*in.Role) {
			return nil, apperror.Validation("Invalid role")
		}
		u.Role = *in.Role
	}
	if err := CheckEmailDomain(u.Role, u.Email); err != nil {
		return nil, err
	}
	applyOptional(&u.Phone, in.Phone)
	applyOptional(&u.Location, in.Location)
	applyOptional(&u.Sector, in.Sector)
	applyOptional(&u.CoverageArea, in.CoverageArea)
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}

	if err := s.users.Update(ctx, u); err != nil {
		if errors.Is(err, apperror.ErrDuplicate) {
			return nil, apperror.Conflict("User already exists with this email")
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

// -- CHW directory --

func (s *Service) ListCHWs(ctx context.Context, f CHWFilter, limit, offset int) ([]*User, int, error) {
	return s.users.ListCHWs(ctx, f, limit, offset)
}

func (s *Service) NearbyCHWs(ctx context.Context, sector string, limit int) ([]*User, error) {
	if limit <= 0 {
		limit = 5
	}
	return s.users.NearbyCHWs(ctx, strings.TrimSpace(sector), limit)
}

func (s *Service) GetCHW(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) || (err == nil && !u.IsCHW()) {
		return nil, apperror.NotFound("CHW not found")
	}
	return u, err
}

func (s *Service) UpdateAvailability(ctx context.Context, id uuid.UUID, availability string) (*User, error) {
	if !ValidAvailability(availability) {
		return nil, apperror.Validation("Invalid availability status")
	}
	u, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.IsCHW() {
		return nil, apperror.Forbidden("Only CHWs can update availability")
	}
	u.Availability = availability
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ActiveCHW returns the account when it is an active CHW. Used when a
// pickup request is assigned.
func (s *Service) ActiveCHW(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) || (err == nil && (!u.IsCHW() || !u.IsActive)) {
		return nil, apperror.NotFound("CHW not found or not available")
	}
	return u, err
}

// RecordCompletedPickup bumps the CHW's completed pickup counter.
func (s *Service) RecordCompletedPickup(ctx context.Context, chwID uuid.UUID) error {
	return s.users.IncrementCompletedPickups(ctx, chwID)
}
