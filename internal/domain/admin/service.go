package admin

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/umutisafe/api/internal/domain/disposal"
	"github.com/umutisafe/api/internal/domain/pickup"
	"github.com/umutisafe/api/internal/platform/reporting"
)

// DefaultPageSize applies to the cross-user listings.
const DefaultPageSize = 20

type StatsSource interface {
	Stats(ctx context.Context) (*reporting.SystemStats, error)
}

type DisposalLister interface {
	ListAll(ctx context.Context, f disposal.ListFilter, limit, offset int) ([]*disposal.Disposal, int, error)
}

type PickupLister interface {
	ListAll(ctx context.Context, f pickup.ListFilter, limit, offset int) ([]*pickup.Pickup, int, error)
}

// Service backs the administrator dashboard. Statistics are computed fresh
// on every call.
type Service struct {
	stats     StatsSource
	disposals DisposalLister
	pickups   PickupLister
	logger    zerolog.Logger
}

func NewService(stats StatsSource, disposals DisposalLister, pickups PickupLister, logger zerolog.Logger) *Service {
	return &Service{stats: stats, disposals: disposals, pickups: pickups, logger: logger}
}

func (s *Service) Stats(ctx context.Context) (*reporting.SystemStats, error) {
	st, err := s.stats.Stats(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("computing admin stats failed")
		return nil, err
	}
	return st, nil
}

func (s *Service) ListDisposals(ctx context.Context, f disposal.ListFilter, limit, offset int) ([]*disposal.Disposal, int, error) {
	return s.disposals.ListAll(ctx, f, limit, offset)
}

func (s *Service) ListPickups(ctx context.Context, f pickup.ListFilter, limit, offset int) ([]*pickup.Pickup, int, error) {
	return s.pickups.ListAll(ctx, f, limit, offset)
}
