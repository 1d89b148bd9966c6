package pickup

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/umutisafe/api/internal/domain/user"
	"github.com/umutisafe/api/internal/platform/apperror"
	"github.com/umutisafe/api/internal/platform/db"
	"github.com/umutisafe/api/internal/platform/events"
)

const (
	DefaultPageSize = 10

	msgNotFound = "Pickup request not found"
)

// CHWDirectory resolves and credits community health workers.
type CHWDirectory interface {
	ActiveCHW(ctx context.Context, id uuid.UUID) (*user.User, error)
	RecordCompletedPickup(ctx context.Context, chwID uuid.UUID) error
}

// DisposalLinker keeps the disposal side of a pickup in step.
type DisposalLinker interface {
	LinkPickup(ctx context.Context, disposalID, userID, pickupID uuid.UUID) (bool, error)
	CompleteByPickup(ctx context.Context, pickupID uuid.UUID, at time.Time) error
	ReleaseByPickup(ctx context.Context, pickupID uuid.UUID) error
}

type Service struct {
	repo      Repository
	tx        db.TxRunner
	chws      CHWDirectory
	disposals DisposalLinker
	events    *events.Emitter
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, tx db.TxRunner, chws CHWDirectory, disposals DisposalLinker, emitter *events.Emitter, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		tx:        tx,
		chws:      chws,
		disposals: disposals,
		events:    emitter,
		logger:    logger,
		now:       time.Now,
	}
}

func clean(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

func newPickup(userID uuid.UUID, in CreateInput) (*Pickup, error) {
	if !in.ConsentGiven {
		return nil, apperror.Validation("Consent is required to create pickup request")
	}
	p := &Pickup{
		UserID:           userID,
		CHWID:            in.CHWID,
		MedicineName:     strings.TrimSpace(in.MedicineName),
		DisposalGuidance: clean(in.DisposalGuidance),
		Reason:           strings.TrimSpace(in.Reason),
		PickupLocation:   strings.TrimSpace(in.PickupLocation),
		Latitude:         in.Latitude,
		Longitude:        in.Longitude,
		Status:           StatusPending,
		ConsentGiven:     true,
		Notes:            clean(in.Notes),
	}

	var missing []string
	if p.CHWID == uuid.Nil {
		missing = append(missing, "chwId")
	}
	if p.MedicineName == "" {
		missing = append(missing, "medicineName")
	}
	if p.Reason == "" {
		missing = append(missing, "reason")
	}
	if p.PickupLocation == "" {
		missing = append(missing, "pickupLocation")
	}
	if in.PreferredTime == nil || in.PreferredTime.IsZero() {
		missing = append(missing, "preferredTime")
	} else {
		p.PreferredTime = *in.PreferredTime
	}
	if len(missing) > 0 {
		return nil, apperror.Validation("Missing required fields: " + strings.Join(missing, ", ")).
			WithDetails(map[string]interface{}{"missingFields": missing})
	}
	return p, nil
}

// Create files a pickup request with a CHW. When a disposal id is given the
// insert and the disposal link commit together. A disposal that does not
// exist or belongs to someone else is logged and the request stands alone.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in CreateInput) (*Pickup, error) {
	p, err := newPickup(userID, in)
	if err != nil {
		return nil, err
	}
	if _, err := s.chws.ActiveCHW(ctx, p.CHWID); err != nil {
		return nil, err
	}

	var created *Pickup
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
		if in.DisposalID != nil {
			linked, err := s.disposals.LinkPickup(ctx, *in.DisposalID, userID, p.ID)
			if err != nil {
				return err
			}
			if linked {
				p.DisposalID = in.DisposalID
				if err := s.repo.Update(ctx, p); err != nil {
					return err
				}
			} else {
				s.logger.Warn().
					Str("pickup_id", p.ID.String()).
					Str("disposal_id", in.DisposalID.String()).
					Str("user_id", userID.String()).
					Msg("disposal not found for requester, pickup left unlinked")
			}
		}
		got, err := s.repo.GetByID(ctx, p.ID)
		if err != nil {
			return err
		}
		created = got
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Emit(events.New(events.PickupRequested, created.ID, userID, map[string]interface{}{
		"chwId":      created.CHWID,
		"disposalId": created.DisposalID,
	}).For(created.UserID, created.CHWID))
	return created, nil
}

func (s *Service) validFilter(f ListFilter) error {
	if f.Status != "" && !ValidStatus(f.Status) {
		return apperror.Validation("Invalid status")
	}
	return nil
}

func (s *Service) ListMine(ctx context.Context, userID uuid.UUID, f ListFilter, limit, offset int) ([]*Pickup, int, error) {
	if err := s.validFilter(f); err != nil {
		return nil, 0, err
	}
	return s.repo.ListByUser(ctx, userID, f, limit, offset)
}

// ListForCHW returns the requests assigned to chwID, soonest first.
func (s *Service) ListForCHW(ctx context.Context, chwID uuid.UUID, f ListFilter, limit, offset int) ([]*Pickup, int, error) {
	if err := s.validFilter(f); err != nil {
		return nil, 0, err
	}
	return s.repo.ListByCHW(ctx, chwID, f, limit, offset)
}

func (s *Service) ListAll(ctx context.Context, f ListFilter, limit, offset int) ([]*Pickup, int, error) {
	if err := s.validFilter(f); err != nil {
		return nil, 0, err
	}
	return s.repo.ListAll(ctx, f, limit, offset)
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*Pickup, error) {
	p, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.NotFound(msgNotFound)
	}
	return p, err
}

// Get returns a request visible to actorID, who must be the requester or
// the assigned CHW.
func (s *Service) Get(ctx context.Context, id, actorID uuid.UUID) (*Pickup, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsParty(actorID) {
		return nil, apperror.NotFound(msgNotFound)
	}
	return p, nil
}

// UpdateStatus is the assigned CHW moving a request along. Completing it
// stamps completedAt, credits the CHW and completes the linked disposal.
// The credit is applied on every completed update, including repeats.
func (s *Service) UpdateStatus(ctx context.Context, id, chwID uuid.UUID, in StatusInput) (*Pickup, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.CHWID != chwID {
		return nil, apperror.NotFound(msgNotFound)
	}

	prev := p.Status
	if in.Status != nil {
		next := strings.TrimSpace(*in.Status)
		if !ValidStatus(next) {
			return nil, apperror.Validation("Invalid status")
		}
		if !CHWCanSet(prev, next) {
			return nil, apperror.Validation("Cannot change status from " + prev + " to " + next)
		}
		p.Status = next
	}
	if n := clean(in.CHWNotes); n != nil {
		p.CHWNotes = n
	}
	if in.ScheduledTime != nil {
		t := *in.ScheduledTime
		p.ScheduledTime = &t
	}
	completing := in.Status != nil && p.Status == StatusCompleted
	if completing {
		now := s.now()
		p.CompletedAt = &now
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		if !completing {
			return nil
		}
		if err := s.chws.RecordCompletedPickup(ctx, p.CHWID); err != nil {
			return err
		}
		return s.disposals.CompleteByPickup(ctx, p.ID, *p.CompletedAt)
	})
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.NotFound(msgNotFound)
	}
	if err != nil {
		return nil, err
	}

	if prev != p.Status {
		s.events.Emit(events.New(events.PickupStatusChanged, p.ID, chwID, map[string]string{
			"from": prev,
			"to":   p.Status,
		}).For(p.UserID, p.CHWID))
	}
	return p, nil
}

// Cancel withdraws a request on behalf of its requester and returns any
// linked disposal to review.
func (s *Service) Cancel(ctx context.Context, id, userID uuid.UUID) (*Pickup, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, apperror.NotFound(msgNotFound)
	}
	if !Cancellable(p.Status) {
		return nil, apperror.Validation("Cannot cancel pickup request with status " + p.Status)
	}

	p.Status = StatusCancelled
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		return s.disposals.ReleaseByPickup(ctx, p.ID)
	})
	if err != nil {
		return nil, err
	}

	s.events.Emit(events.New(events.PickupCancelled, p.ID, userID, nil).For(p.UserID, p.CHWID))
	return p, nil
}

func (s *Service) CHWStats(ctx context.Context, chwID uuid.UUID) (*CHWStats, error) {
	return s.repo.CHWStats(ctx, chwID)
}
