package disposal

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/umutisafe/api/internal/domain/medicine"
	"github.com/umutisafe/api/internal/platform/apperror"
	"github.com/umutisafe/api/internal/platform/blobstore"
	"github.com/umutisafe/api/internal/platform/events"
)

const (
	DefaultPageSize = 10

	msgNotFound = "Disposal not found"
)

type Service struct {
	repo   Repository
	blobs  blobstore.Store
	events *events.Emitter
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, blobs blobstore.Store, emitter *events.Emitter, logger zerolog.Logger) *Service {
	return &Service{repo: repo, blobs: blobs, events: emitter, logger: logger, now: time.Now}
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

func newDisposal(userID uuid.UUID, in CreateInput) (*Disposal, error) {
	name := strings.TrimSpace(in.GenericName)
	if name == "" {
		return nil, apperror.Validation("Generic name is required")
	}
	d := &Disposal{
		UserID:                      userID,
		GenericName:                 name,
		BrandName:                   clean(in.BrandName),
		DosageForm:                  clean(in.DosageForm),
		PackagingType:               clean(in.PackagingType),
		MedicineName:                clean(in.MedicineName),
		PredictedCategory:           clean(in.PredictedCategory),
		PredictedCategoryConfidence: ClampUnit(in.PredictedCategoryConfidence),
		Confidence:                  ClampUnit(in.Confidence),
		Status:                      StatusPendingReview,
		Reason:                      clean(in.Reason),
		Notes:                       clean(in.Notes),
		DisposalGuidance:            clean(in.DisposalGuidance),
		HandlingMethod:              clean(in.HandlingMethod),
		DisposalRemarks:             clean(in.DisposalRemarks),
		CategoryCode:                clean(in.CategoryCode),
		CategoryLabel:               clean(in.CategoryLabel),
		SimilarGenericName:          clean(in.SimilarGenericName),
		SimilarityDistance:          in.SimilarityDistance,
		PredictionSource:            clean(in.PredictionSource),
		ModelVersion:                clean(in.ModelVersion),
		Analysis:                    clean(in.Analysis),
		ImageURL:                    clean(in.ImageURL),
	}

	if rl := clean(in.RiskLevel); rl != nil {
		level, ok := medicine.NormalizeRiskLevel(*rl)
		if !ok {
			return nil, apperror.Validation("Risk level must be LOW, MEDIUM or HIGH")
		}
		d.RiskLevel = &level
	}

	if t := clean(in.PredictionInputType); t != nil {
		v := strings.ToLower(*t)
		switch v {
		case InputText, InputImage, InputManual:
			d.PredictionInputType = &v
		default:
			return nil, apperror.Validation("Prediction input type must be text, image or manual")
		}
	}

	if len(bytes.TrimSpace(in.Metadata)) > 0 && !bytes.Equal(bytes.TrimSpace(in.Metadata), []byte("null")) {
		d.Metadata = in.Metadata
	}
	return d, nil
}

// Create stores a disposal and, when img is given, its photo. A photo that
// fails to store is logged and the disposal is still returned.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in CreateInput, img *blobstore.Upload) (*Disposal, error) {
	d, err := newDisposal(userID, in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}

	if img != nil {
		if stored, err := s.storeImage(ctx, d.ID, img); err != nil {
			s.logger.Error().Err(err).
				Str("disposal_id", d.ID.String()).
				Str("key", img.Key).
				Msg("saving medicine image failed")
		} else {
			d.Images = []*Image{stored}
		}
	}

	s.events.Emit(events.New(events.DisposalCreated, d.ID, userID, map[string]interface{}{
		"genericName": d.GenericName,
		"riskLevel":   d.RiskLevel,
	}).For(userID))
	return d, nil
}

func (s *Service) storeImage(ctx context.Context, disposalID uuid.UUID, img *blobstore.Upload) (*Image, error) {
	if err := s.blobs.Put(ctx, img.Key, bytes.NewReader(img.Data), img.Size, img.ContentType); err != nil {
		return nil, err
	}
	mt := img.ContentType
	size := int(img.Size)
	rec := &Image{
		DisposalID: disposalID,
		Filename:   img.Key,
		URL:        blobstore.URLFor(img.Key),
		Mimetype:   &mt,
		Size:       &size,
	}
	if err := s.repo.AddImage(ctx, rec); err != nil {
		if derr := s.blobs.Delete(ctx, img.Key); derr != nil {
			s.logger.Warn().Err(derr).Str("key", img.Key).Msg("removing orphaned image failed")
		}
		return nil, err
	}
	return rec, nil
}

func (s *Service) validFilter(f ListFilter) (ListFilter, error) {
	if f.Status != "" && !ValidStatus(f.Status) {
		return f, apperror.Validation("Invalid status")
	}
	if f.RiskLevel != "" {
		level, ok := medicine.NormalizeRiskLevel(f.RiskLevel)
		if !ok {
			return f, apperror.Validation("Invalid risk level")
		}
		f.RiskLevel = level
	}
	return f, nil
}

func (s *Service) ListMine(ctx context.Context, userID uuid.UUID, f ListFilter, limit, offset int) ([]*Disposal, int, error) {
	f, err := s.validFilter(f)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.ListByUser(ctx, userID, f, limit, offset)
}

// ListAll is the administrator view across all users.
func (s *Service) ListAll(ctx context.Context, f ListFilter, limit, offset int) ([]*Disposal, int, error) {
	f, err := s.validFilter(f)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.ListAll(ctx, f, limit, offset)
}

// Get returns a disposal owned by userID. Other users' disposals are
// reported as not found.
func (s *Service) Get(ctx context.Context, id, userID uuid.UUID) (*Disposal, error) {
	d, err := s.repo.GetForUser(ctx, id, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.NotFound(msgNotFound)
	}
	if err != nil {
		return nil, err
	}
	imgs, err := s.repo.ListImages(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	d.Images = imgs
	return d, nil
}

func (s *Service) Update(ctx context.Context, id, userID uuid.UUID, in UpdateInput) (*Disposal, error) {
	d, err := s.repo.GetForUser(ctx, id, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.NotFound(msgNotFound)
	}
	if err != nil {
		return nil, err
	}

	prev := d.Status
	if in.Status != nil {
		next := strings.TrimSpace(*in.Status)
		if !ValidStatus(next) {
			return nil, apperror.Validation("Invalid status")
		}
		if !CanTransition(prev, next) {
			return nil, apperror.Validation("Cannot change status from " + prev + " to " + next)
		}
		d.Status = next
	}
	if n := clean(in.Notes); n != nil {
		d.Notes = n
	}
	if d.Status == StatusCompleted && d.CompletedAt == nil {
		now := s.now()
		d.CompletedAt = &now
	}

	if err := s.repo.Update(ctx, d); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFound(msgNotFound)
		}
		return nil, err
	}

	if prev != StatusCompleted && d.Status == StatusCompleted {
		s.events.Emit(events.New(events.DisposalCompleted, d.ID, userID, nil).For(d.UserID))
	}
	return d, nil
}

// Delete removes a disposal and, best-effort, its stored images. An image
// URL that yields no usable key is skipped.
func (s *Service) Delete(ctx context.Context, id, userID uuid.UUID) error {
	d, err := s.repo.GetForUser(ctx, id, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return apperror.NotFound(msgNotFound)
	}
	if err != nil {
		return err
	}

	imgs, err := s.repo.ListImages(ctx, d.ID)
	if err != nil {
		return err
	}
	keys := imageKeys(imgs)

	if err := s.repo.Delete(ctx, d.ID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotFound(msgNotFound)
		}
		return err
	}

	for _, key := range keys {
		err := s.blobs.Delete(ctx, key)
		switch {
		case err == nil:
			s.logger.Debug().Str("key", key).Msg("deleted uploaded image")
		case errors.Is(err, blobstore.ErrBlobNotFound):
			s.logger.Debug().Str("key", key).Msg("uploaded image already gone")
		default:
			s.logger.Warn().Err(err).Str("key", key).Msg("deleting uploaded image failed")
		}
	}

	s.events.Emit(events.New(events.DisposalDeleted, d.ID, userID, nil).For(d.UserID))
	return nil
}

// imageKeys returns the stored objects to remove with a disposal. Only keys
// recorded in its image rows qualify: imageUrl is client-supplied and may
// name an object this disposal does not own.
func imageKeys(imgs []*Image) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, img := range imgs {
		key, ok := blobstore.KeyFromURL(img.URL)
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys
}

func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	return s.repo.Stats(ctx, userID)
}
