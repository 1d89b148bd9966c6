package medicine

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/umutisafe/api/internal/platform/apperror"
	"github.com/umutisafe/api/internal/platform/db"
)

const (
	DefaultPageSize = 50
	SearchLimit     = 10
	MinSearchLength = 2

	confidenceMatched = 0.90
	confidenceUnknown = 0.70

	msgNotFound = "Medicine not found"
)

type Service struct {
	repo   Repository
	tx     db.TxRunner
	logger zerolog.Logger
}

func NewService(repo Repository, tx db.TxRunner, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, logger: logger}
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Medicine, int, error) {
	if f.RiskLevel != "" {
		level, ok := NormalizeRiskLevel(f.RiskLevel)
		if !ok {
			return nil, 0, apperror.Validation("Invalid risk level")
		}
		f.RiskLevel = level
	}
	return s.repo.List(ctx, f, limit, offset)
}

// Search is the autocomplete lookup. Queries shorter than two characters
// return an empty list rather than the whole registry.
func (s *Service) Search(ctx context.Context, q string) ([]*Medicine, error) {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < MinSearchLength {
		return []*Medicine{}, nil
	}
	meds, err := s.repo.Search(ctx, q, SearchLimit)
	if err != nil {
		return nil, err
	}
	if meds == nil {
		meds = []*Medicine{}
	}
	return meds, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	m, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.NotFound(msgNotFound)
	}
	return m, err
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

// apply merges the non-nil fields of in onto m.
func (in Input) apply(m *Medicine) error {
	if in.GenericName != nil {
		m.GenericName = strings.TrimSpace(*in.GenericName)
	}
	if in.DosageForm != nil {
		m.DosageForm = strings.TrimSpace(*in.DosageForm)
	}
	if m.GenericName == "" || m.DosageForm == "" {
		return apperror.Validation("Generic name and dosage form are required")
	}
	if in.BrandName != nil {
		m.BrandName = trimPtr(in.BrandName)
	}
	if in.RegistrationNumber != nil {
		m.RegistrationNumber = trimPtr(in.RegistrationNumber)
	}
	if in.Strength != nil {
		m.Strength = trimPtr(in.Strength)
	}
	if in.PackSize != nil {
		m.PackSize = trimPtr(in.PackSize)
	}
	if in.PackagingType != nil {
		m.PackagingType = trimPtr(in.PackagingType)
	}
	if in.Category != nil {
		m.Category = strings.TrimSpace(*in.Category)
	}
	if m.Category == "" {
		m.Category = DefaultCategory
	}
	if in.RiskLevel != nil {
		level, ok := NormalizeRiskLevel(*in.RiskLevel)
		if !ok {
			return apperror.Validation("Risk level must be LOW, MEDIUM or HIGH")
		}
		m.RiskLevel = level
	}
	if m.RiskLevel == "" {
		m.RiskLevel = RiskLow
	}
	if in.Manufacturer != nil {
		m.Manufacturer = trimPtr(in.Manufacturer)
	}
	if in.FDAApproved != nil {
		m.FDAApproved = *in.FDAApproved
	}
	if in.DisposalInstructions != nil {
		m.DisposalInstructions = trimPtr(in.DisposalInstructions)
	}
	if in.IsActive != nil {
		m.IsActive = *in.IsActive
	}
	return nil
}

func (s *Service) Create(ctx context.Context, in Input) (*Medicine, error) {
	m := &Medicine{FDAApproved: true, IsActive: true}
	if err := in.apply(m); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, m); err != nil {
		if errors.Is(err, apperror.ErrDuplicate) {
			return nil, apperror.Conflict("A medicine with this registration number already exists")
		}
		return nil, err
	}
	return m, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*Medicine, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.apply(m); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, m); err != nil {
		switch {
		case errors.Is(err, apperror.ErrNotFound):
			return nil, apperror.NotFound(msgNotFound)
		case errors.Is(err, apperror.ErrDuplicate):
			return nil, apperror.Conflict("A medicine with this registration number already exists")
		}
		return nil, err
	}
	return m, nil
}

// Delete hides the medicine from listings. Registry rows are kept so past
// disposals still resolve.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	m, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	m.IsActive = false
	return s.repo.Update(ctx, m)
}

func orNA(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "N/A"
	}
	return s
}

// PredictFromText classifies a medicine by registry lookup on its generic
// name. Unknown medicines are treated as MEDIUM risk.
func (s *Service) PredictFromText(ctx context.Context, in PredictInput) (*Prediction, error) {
	name := strings.TrimSpace(in.GenericName)
	if name == "" {
		return nil, apperror.Validation("Generic name is required")
	}

	m, err := s.repo.FindActiveByGenericName(ctx, name)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	p := &Prediction{
		PredictedCategory: "Unknown",
		RiskLevel:         RiskMedium,
		Confidence:        confidenceUnknown,
		MedicineInfo: MedicineInfo{
			GenericName: name,
			BrandName:   orNA(in.BrandName),
			DosageForm:  orNA(in.DosageForm),
		},
	}
	if m != nil {
		p.Matched = true
		p.PredictedCategory = m.Category
		p.RiskLevel = m.RiskLevel
		p.Confidence = confidenceMatched
	}
	p.DisposalGuidance = GuidanceFor(p.RiskLevel)
	if m != nil && m.DisposalInstructions != nil && *m.DisposalInstructions != "" {
		p.DisposalGuidance = *m.DisposalInstructions
	}
	p.SafetyNotes = SafetyNotesFor(p.RiskLevel)
	p.RequiresCHW = p.RiskLevel == RiskHigh
	return p, nil
}

// ImportCSV loads a registry export inside one transaction. In replace
// mode the registry is emptied first; any failure leaves it untouched.
func (s *Service) ImportCSV(ctx context.Context, data []byte, mode ImportMode) (*ImportResult, error) {
	parsed, err := ParseCSV(data)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{Mode: mode, Total: parsed.Total, Skipped: parsed.Skipped}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if mode == ImportReplace {
			n, err := s.repo.DeleteAll(ctx)
			if err != nil {
				return err
			}
			res.Removed = n
		}
		for _, rec := range parsed.Records {
			created, err := s.upsert(ctx, rec)
			if err != nil {
				return err
			}
			if created {
				res.Created++
			} else {
				res.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("mode", string(mode)).
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("skipped", res.Skipped).
		Int64("removed", res.Removed).
		Msg("medicine registry imported")
	return res, nil
}

func (s *Service) findExisting(ctx context.Context, rec Record) (*Medicine, error) {
	if rec.RegistrationNumber != "" {
		return s.repo.FindByRegistrationNumber(ctx, rec.RegistrationNumber)
	}
	return s.repo.FindByNameForm(ctx, rec.GenericName, rec.DosageForm)
}

func (s *Service) upsert(ctx context.Context, rec Record) (bool, error) {
	existing, err := s.findExisting(ctx, rec)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		m := &Medicine{FDAApproved: true}
		rec.Apply(m)
		return true, s.repo.Create(ctx, m)
	case err != nil:
		return false, err
	}
	rec.Apply(existing)
	return false, s.repo.Update(ctx, existing)
}
