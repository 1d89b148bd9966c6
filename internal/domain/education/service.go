package education

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/umutisafe/api/internal/platform/apperror"
)

const msgNotFound = "Education tip not found"

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func text(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func (s *Service) List(ctx context.Context, category string) ([]*Tip, error) {
	return s.repo.ListActive(ctx, strings.TrimSpace(category))
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Tip, error) {
	t, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.NotFound(msgNotFound)
	}
	return t, err
}

func (s *Service) Create(ctx context.Context, in Input) (*Tip, error) {
	t := &Tip{
		Title:    text(in.Title),
		Icon:     in.Icon,
		Summary:  text(in.Summary),
		Content:  text(in.Content),
		Category: in.Category,
		IsActive: true,
	}
	if t.Title == "" || t.Summary == "" || t.Content == "" {
		return nil, apperror.Validation("Title, summary and content are required")
	}
	if in.DisplayOrder != nil {
		t.DisplayOrder = *in.DisplayOrder
	}
	if in.IsActive != nil {
		t.IsActive = *in.IsActive
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info().Str("tip_id", t.ID.String()).Str("title", t.Title).Msg("education tip created")
	return t, nil
}

// Update applies in over the stored tip. Blank title, summary or content
// keep the stored text.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*Tip, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if v := text(in.Title); v != "" {
		t.Title = v
	}
	if v := text(in.Summary); v != "" {
		t.Summary = v
	}
	if v := text(in.Content); v != "" {
		t.Content = v
	}
	if in.Icon != nil {
		t.Icon = in.Icon
	}
	if in.Category != nil {
		t.Category = in.Category
	}
	if in.DisplayOrder != nil {
		t.DisplayOrder = *in.DisplayOrder
	}
	if in.IsActive != nil {
		t.IsActive = *in.IsActive
	}
	if err := s.repo.Update(ctx, t); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFound(msgNotFound)
		}
		return nil, err
	}
	return t, nil
}

// Delete hides the tip from listings. The row is kept.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.Update(ctx, id, Input{IsActive: new(bool)})
	return err
}
