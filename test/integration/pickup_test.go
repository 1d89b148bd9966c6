//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/umutisafe/api/internal/domain/disposal"
	"github.com/umutisafe/api/internal/domain/pickup"
	"github.com/umutisafe/api/internal/domain/user"
	"github.com/umutisafe/api/internal/platform/auth"
	"github.com/umutisafe/api/internal/platform/blobstore"
	"github.com/umutisafe/api/internal/platform/db"
	"github.com/umutisafe/api/internal/platform/events"
	"github.com/umutisafe/api/internal/platform/notification"
)

// failAfterLink links the disposal and then fails, forcing the surrounding
// transaction to roll back.
type failAfterLink struct {
	disposal.Repository
}

func (f failAfterLink) LinkPickup(ctx context.Context, disposalID, userID, pickupID uuid.UUID) (bool, error) {
	if _, err := f.Repository.LinkPickup(ctx, disposalID, userID, pickupID); err != nil {
		return false, err
	}
	return false, errors.New("forced failure after link")
}

type pickupEnv struct {
	pickups   *pickup.Service
	disposals *disposal.Service
	users     user.Repository
	dRepo     disposal.Repository
}

func newPickupEnv(t *testing.T, linker pickup.DisposalLinker) *pickupEnv {
	t.Helper()
	users := user.NewRepo(testPool)
	tokens, err := auth.NewTokenIssuer([]byte("integration-secret-integration-secret"), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	notifier := notification.NewNotifier(notification.LogSender{Logger: zerolog.Nop()}, nil, "", zerolog.Nop())
	userSvc := user.NewService(users, tokens, auth.NewMemoryRevocationStore(), notifier, zerolog.Nop())

	dRepo := disposal.NewRepo(testPool)
	if linker == nil {
		linker = dRepo
	}
	emitter := events.NewEmitter(events.NopPublisher{}, zerolog.Nop())
	t.Cleanup(func() { emitter.Close() })

	return &pickupEnv{
		pickups:   pickup.NewService(pickup.NewRepo(testPool), db.NewTxRunner(testPool), userSvc, linker, emitter, zerolog.Nop()),
		disposals: disposal.NewService(dRepo, blobstore.NewMemoryStore(), emitter, zerolog.Nop()),
		users:     users,
		dRepo:     dRepo,
	}
}

func pickupInput(chwID uuid.UUID, disposalID *uuid.UUID) pickup.CreateInput {
	at := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	return pickup.CreateInput{
		CHWID:          chwID,
		DisposalID:     disposalID,
		MedicineName:   "Amoxicillin",
		Reason:         "expired",
		PickupLocation: "Kicukiro",
		PreferredTime:  &at,
		ConsentGiven:   true,
	}
}

func TestPickup_CreateLinksDisposal(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	env := newPickupEnv(t, nil)
	owner := seedUser(t, auth.RoleUser)
	chw := seedUser(t, auth.RoleCHW)

	d, err := env.disposals.Create(ctx, owner.ID, disposal.CreateInput{GenericName: "Amoxicillin"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	p, err := env.pickups.Create(ctx, owner.ID, pickupInput(chw.ID, &d.ID))
	if err != nil {
		t.Fatal(err)
	}
	if p.DisposalID == nil || *p.DisposalID != d.ID {
		t.Fatalf("expected disposal link, got %v", p.DisposalID)
	}
	if p.Disposal == nil || p.Disposal.GenericName != "Amoxicillin" || p.CHW == nil || p.Requester == nil {
		t.Errorf("expected joined details, got %+v", p)
	}

	got, err := env.disposals.Get(ctx, d.ID, owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != disposal.StatusPickupRequested || got.PickupRequestID == nil || *got.PickupRequestID != p.ID {
		t.Errorf("disposal not linked: status=%s pickup=%v", got.Status, got.PickupRequestID)
	}
}

func TestPickup_ForeignDisposalStaysUnlinked(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	env := newPickupEnv(t, nil)
	owner := seedUser(t, auth.RoleUser)
	stranger := seedUser(t, auth.RoleUser)
	chw := seedUser(t, auth.RoleCHW)

	d, err := env.disposals.Create(ctx, owner.ID, disposal.CreateInput{GenericName: "Ibuprofen"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	p, err := env.pickups.Create(ctx, stranger.ID, pickupInput(chw.ID, &d.ID))
	if err != nil {
		t.Fatal(err)
	}
	if p.DisposalID != nil {
		t.Errorf("expected no link, got %v", p.DisposalID)
	}
	got, _ := env.disposals.Get(ctx, d.ID, owner.ID)
	if got.Status != disposal.StatusPendingReview {
		t.Errorf("foreign disposal changed to %s", got.Status)
	}
}

func TestPickup_FailureAfterInsertRollsBack(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	owner := seedUser(t, auth.RoleUser)
	chw := seedUser(t, auth.RoleCHW)

	base := newPickupEnv(t, nil)
	d, err := base.disposals.Create(ctx, owner.ID, disposal.CreateInput{GenericName: "Metformin"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	env := newPickupEnv(t, failAfterLink{Repository: base.dRepo})
	if _, err := env.pickups.Create(ctx, owner.ID, pickupInput(chw.ID, &d.ID)); err == nil {
		t.Fatal("expected error")
	}

	var count int
	if err := testPool.QueryRow(ctx, `SELECT COUNT(*) FROM pickup_requests`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected no pickup rows after rollback, got %d", count)
	}
	got, _ := base.disposals.Get(ctx, d.ID, owner.ID)
	if got.Status != disposal.StatusPendingReview || got.PickupRequestID != nil {
		t.Errorf("disposal not rolled back: status=%s pickup=%v", got.Status, got.PickupRequestID)
	}
}

func TestPickup_CompleteCreditsCHWAndDisposal(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	env := newPickupEnv(t, nil)
	owner := seedUser(t, auth.RoleUser)
	chw := seedUser(t, auth.RoleCHW)

	d, err := env.disposals.Create(ctx, owner.ID, disposal.CreateInput{GenericName: "Insulin"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	p, err := env.pickups.Create(ctx, owner.ID, pickupInput(chw.ID, &d.ID))
	if err != nil {
		t.Fatal(err)
	}

	completed := pickup.StatusCompleted
	for i := 0; i < 2; i++ {
		if _, err := env.pickups.UpdateStatus(ctx, p.ID, chw.ID, pickup.StatusInput{Status: &completed}); err != nil {
			t.Fatal(err)
		}
	}

	u, err := env.users.GetByID(ctx, chw.ID)
	if err != nil {
		t.Fatal(err)
	}
	if u.CompletedPickups != 2 {
		t.Errorf("expected counter 2 after repeated completion, got %d", u.CompletedPickups)
	}
	got, _ := env.disposals.Get(ctx, d.ID, owner.ID)
	if got.Status != disposal.StatusCompleted || got.CompletedAt == nil {
		t.Errorf("disposal not completed: %+v", got)
	}

	stats, err := env.pickups.CHWStats(ctx, chw.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Completed != 1 || stats.Total != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestPickup_CancelReleasesDisposal(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	env := newPickupEnv(t, nil)
	owner := seedUser(t, auth.RoleUser)
	chw := seedUser(t, auth.RoleCHW)

	d, err := env.disposals.Create(ctx, owner.ID, disposal.CreateInput{GenericName: "Codeine"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	p, err := env.pickups.Create(ctx, owner.ID, pickupInput(chw.ID, &d.ID))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.pickups.Cancel(ctx, p.ID, owner.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := env.disposals.Get(ctx, d.ID, owner.ID)
	if got.Status != disposal.StatusPendingReview {
		t.Errorf("expected pending_review, got %s", got.Status)
	}
}

func TestPickup_CancelledDisposalStaysCancelled(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	env := newPickupEnv(t, nil)
	owner := seedUser(t, auth.RoleUser)
	chw := seedUser(t, auth.RoleCHW)
	cancelled := disposal.StatusCancelled
	completed := pickup.StatusCompleted

	for _, finish := range []string{"cancel", "complete"} {
		d, err := env.disposals.Create(ctx, owner.ID, disposal.CreateInput{GenericName: "Tramadol"}, nil)
		if err != nil {
			t.Fatal(err)
		}
		p, err := env.pickups.Create(ctx, owner.ID, pickupInput(chw.ID, &d.ID))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := env.disposals.Update(ctx, d.ID, owner.ID, disposal.UpdateInput{Status: &cancelled}); err != nil {
			t.Fatal(err)
		}

		if finish == "cancel" {
			_, err = env.pickups.Cancel(ctx, p.ID, owner.ID)
		} else {
			_, err = env.pickups.UpdateStatus(ctx, p.ID, chw.ID, pickup.StatusInput{Status: &completed})
		}
		if err != nil {
			t.Fatal(err)
		}

		got, _ := env.disposals.Get(ctx, d.ID, owner.ID)
		if got.Status != disposal.StatusCancelled {
			t.Errorf("%s: cancelled disposal moved to %s", finish, got.Status)
		}
	}
}
