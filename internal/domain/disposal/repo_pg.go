package disposal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/umutisafe/api/internal/domain/user"
	"github.com/umutisafe/api/internal/platform/apperror"
	"github.com/umutisafe/api/internal/platform/db"
)

const disposalColumns = `d.id, d.user_id, d.generic_name, d.brand_name, d.dosage_form, d.packaging_type,
	d.medicine_name, d.predicted_category, d.predicted_category_confidence, d.risk_level, d.confidence,
	d.status, d.reason, d.notes, d.disposal_guidance, d.handling_method, d.disposal_remarks,
	d.category_code, d.category_label, d.similar_generic_name, d.similarity_distance,
	d.prediction_input_type, d.prediction_source, d.model_version, d.analysis, d.metadata,
	d.image_url, d.pickup_request_id, d.completed_at, d.created_at, d.updated_at`

// pickupJoin embeds the linked pickup and its CHW.
const pickupJoin = `
	LEFT JOIN pickup_requests p ON p.id = d.pickup_request_id
	LEFT JOIN users c ON c.id = p.chw_id`

const pickupColumns = `p.id, p.status, p.preferred_time, p.scheduled_time,
	c.id, c.name, c.phone, c.sector, c.rating`

const ownerJoin = ` JOIN users o ON o.id = d.user_id`

const ownerColumns = `o.id, o.name, o.email, o.phone`

const imageColumns = `id, disposal_id, filename, url, mimetype, size, created_at`

type disposalRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &disposalRepoPG{pool: pool}
}

func (r *disposalRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func disposalDest(d *Disposal) []interface{} {
	return []interface{}{
		&d.ID, &d.UserID, &d.GenericName, &d.BrandName, &d.DosageForm, &d.PackagingType,
		&d.MedicineName, &d.PredictedCategory, &d.PredictedCategoryConfidence, &d.RiskLevel, &d.Confidence,
		&d.Status, &d.Reason, &d.Notes, &d.DisposalGuidance, &d.HandlingMethod, &d.DisposalRemarks,
		&d.CategoryCode, &d.CategoryLabel, &d.SimilarGenericName, &d.SimilarityDistance,
		&d.PredictionInputType, &d.PredictionSource, &d.ModelVersion, &d.Analysis, &d.Metadata,
		&d.ImageURL, &d.PickupRequestID, &d.CompletedAt, &d.CreatedAt, &d.UpdatedAt,
	}
}

// pickupRow holds the nullable LEFT JOIN columns.
type pickupRow struct {
	id            *uuid.UUID
	status        *string
	preferredTime *time.Time
	scheduledTime *time.Time
	chwID         *uuid.UUID
	chwName       *string
	chwPhone      *string
	chwSector     *string
	chwRating     *float64
}

func (p *pickupRow) dest() []interface{} {
	return []interface{}{
		&p.id, &p.status, &p.preferredTime, &p.scheduledTime,
		&p.chwID, &p.chwName, &p.chwPhone, &p.chwSector, &p.chwRating,
	}
}

func (p *pickupRow) summary() *PickupSummary {
	if p.id == nil {
		return nil
	}
	s := &PickupSummary{ID: *p.id, ScheduledTime: p.scheduledTime}
	if p.status != nil {
		s.Status = *p.status
	}
	if p.preferredTime != nil {
		s.PreferredTime = *p.preferredTime
	}
	if p.chwID != nil {
		s.CHW = &user.Contact{ID: *p.chwID, Phone: p.chwPhone, Sector: p.chwSector, Rating: p.chwRating}
		if p.chwName != nil {
			s.CHW.Name = *p.chwName
		}
	}
	return s
}

func scanWithPickup(row scanner) (*Disposal, error) {
	var d Disposal
	var p pickupRow
	err := row.Scan(append(disposalDest(&d), p.dest()...)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.PickupRequest = p.summary()
	return &d, nil
}

func scanWithOwner(row scanner) (*Disposal, error) {
	var d Disposal
	var o user.Contact
	err := row.Scan(append(disposalDest(&d), &o.ID, &o.Name, &o.Email, &o.Phone)...)
	if err != nil {
		return nil, err
	}
	d.User = &o
	return &d, nil
}

func collect(rows pgx.Rows, scan func(scanner) (*Disposal, error)) ([]*Disposal, error) {
	defer rows.Close()
	var out []*Disposal
	for rows.Next() {
		d, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *disposalRepoPG) Create(ctx context.Context, d *Disposal) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO disposals (
			id, user_id, generic_name, brand_name, dosage_form, packaging_type,
			medicine_name, predicted_category, predicted_category_confidence, risk_level, confidence,
			status, reason, notes, disposal_guidance, handling_method, disposal_remarks,
			category_code, category_label, similar_generic_name, similarity_distance,
			prediction_input_type, prediction_source, model_version, analysis, metadata, image_url
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
		RETURNING created_at, updated_at`,
		d.ID, d.UserID, d.GenericName, d.BrandName, d.DosageForm, d.PackagingType,
		d.MedicineName, d.PredictedCategory, d.PredictedCategoryConfidence, d.RiskLevel, d.Confidence,
		d.Status, d.Reason, d.Notes, d.DisposalGuidance, d.HandlingMethod, d.DisposalRemarks,
		d.CategoryCode, d.CategoryLabel, d.SimilarGenericName, d.SimilarityDistance,
		d.PredictionInputType, d.PredictionSource, d.ModelVersion, d.Analysis, d.Metadata, d.ImageURL,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (r *disposalRepoPG) GetForUser(ctx context.Context, id, userID uuid.UUID) (*Disposal, error) {
	return scanWithPickup(r.conn(ctx).QueryRow(ctx,
		`SELECT `+disposalColumns+`, `+pickupColumns+` FROM disposals d`+pickupJoin+`
		WHERE d.id = $1 AND d.user_id = $2`, id, userID))
}

func (r *disposalRepoPG) Update(ctx context.Context, d *Disposal) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE disposals SET status = $2, notes = $3, completed_at = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		d.ID, d.Status, d.Notes, d.CompletedAt,
	).Scan(&d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.ErrNotFound
	}
	return err
}

func (r *disposalRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM disposals WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

func filterWhere(w *db.Where, f ListFilter) {
	if f.Status != "" {
		w.Add("d.status = $%d", f.Status)
	}
	if f.RiskLevel != "" {
		w.Add("d.risk_level = $%d", f.RiskLevel)
	}
}

func (r *disposalRepoPG) ListByUser(ctx context.Context, userID uuid.UUID, f ListFilter, limit, offset int) ([]*Disposal, int, error) {
	w := &db.Where{}
	w.Add("d.user_id = $%d", userID)
	filterWhere(w, f)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM disposals d`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	suffix, args := w.Page(limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+disposalColumns+`, `+pickupColumns+` FROM disposals d`+pickupJoin+w.SQL()+
			` ORDER BY d.created_at DESC`+suffix, args...)
	if err != nil {
		return nil, 0, err
	}
	out, err := collect(rows, scanWithPickup)
	return out, total, err
}

func (r *disposalRepoPG) ListAll(ctx context.Context, f ListFilter, limit, offset int) ([]*Disposal, int, error) {
	w := &db.Where{}
	filterWhere(w, f)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM disposals d`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	suffix, args := w.Page(limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+disposalColumns+`, `+ownerColumns+` FROM disposals d`+ownerJoin+w.SQL()+
			` ORDER BY d.created_at DESC`+suffix, args...)
	if err != nil {
		return nil, 0, err
	}
	out, err := collect(rows, scanWithOwner)
	return out, total, err
}

func (r *disposalRepoPG) Stats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	s := &Stats{ByRiskLevel: map[string]int{}}
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending_review'),
			COUNT(*) FILTER (WHERE status = 'pickup_requested'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'cancelled')
		FROM disposals WHERE user_id = $1`, userID,
	).Scan(&s.TotalDisposals, &s.PendingReview, &s.PickupRequested, &s.Completed, &s.Cancelled)
	if err != nil {
		return nil, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT COALESCE(risk_level, 'UNKNOWN'), COUNT(*)
		FROM disposals WHERE user_id = $1
		GROUP BY 1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, err
		}
		s.ByRiskLevel[level] = n
	}
	return s, rows.Err()
}

func (r *disposalRepoPG) AddImage(ctx context.Context, img *Image) error {
	if img.ID == uuid.Nil {
		img.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medicine_images (id, disposal_id, filename, url, mimetype, size)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		img.ID, img.DisposalID, img.Filename, img.URL, img.Mimetype, img.Size,
	).Scan(&img.CreatedAt)
}

func (r *disposalRepoPG) ListImages(ctx context.Context, disposalID uuid.UUID) ([]*Image, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+imageColumns+` FROM medicine_images WHERE disposal_id = $1 ORDER BY created_at`, disposalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.DisposalID, &img.Filename, &img.URL, &img.Mimetype, &img.Size, &img.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &img)
	}
	return out, rows.Err()
}

func (r *disposalRepoPG) LinkPickup(ctx context.Context, disposalID, userID, pickupID uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE disposals SET pickup_request_id = $3, status = 'pickup_requested', updated_at = NOW()
		WHERE id = $1 AND user_id = $2`, disposalID, userID, pickupID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CompleteByPickup and ReleaseByPickup only touch disposals still waiting on
// the pickup. An owner may have cancelled the disposal meanwhile, and
// cancelled stays final.
func (r *disposalRepoPG) CompleteByPickup(ctx context.Context, pickupID uuid.UUID, at time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE disposals SET status = 'completed', completed_at = COALESCE(completed_at, $2), updated_at = NOW()
		WHERE pickup_request_id = $1 AND status = 'pickup_requested'`, pickupID, at)
	return err
}

func (r *disposalRepoPG) ReleaseByPickup(ctx context.Context, pickupID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE disposals SET status = 'pending_review', updated_at = NOW()
		WHERE pickup_request_id = $1 AND status = 'pickup_requested'`, pickupID)
	return err
}
