package pickup

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/umutisafe/api/internal/domain/user"
	"github.com/umutisafe/api/internal/platform/apperror"
	"github.com/umutisafe/api/internal/platform/db"
)

const pickupSelect = `SELECT
	p.id, p.user_id, p.chw_id, p.disposal_id, p.medicine_name, p.disposal_guidance, p.reason,
	p.pickup_location, p.latitude, p.longitude, p.preferred_time, p.status, p.consent_given,
	p.notes, p.chw_notes, p.scheduled_time, p.completed_at, p.created_at, p.updated_at,
	r.name, r.email, r.phone, r.location,
	c.name, c.phone, c.sector, c.rating,
	d.id, d.generic_name, d.brand_name, d.dosage_form, d.status
	FROM pickup_requests p
	JOIN users r ON r.id = p.user_id
	JOIN users c ON c.id = p.chw_id
	LEFT JOIN disposals d ON d.id = p.disposal_id`

type pickupRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &pickupRepoPG{pool: pool}
}

func (r *pickupRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPickup(row scanner) (*Pickup, error) {
	var (
		p         Pickup
		requester user.Contact
		chw       user.Contact
		rating    float64
		dID       *uuid.UUID
		dName     *string
		dBrand    *string
		dForm     *string
		dStatus   *string
	)
	err := row.Scan(
		&p.ID, &p.UserID, &p.CHWID, &p.DisposalID, &p.MedicineName, &p.DisposalGuidance, &p.Reason,
		&p.PickupLocation, &p.Latitude, &p.Longitude, &p.PreferredTime, &p.Status, &p.ConsentGiven,
		&p.Notes, &p.CHWNotes, &p.ScheduledTime, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt,
		&requester.Name, &requester.Email, &requester.Phone, &requester.Location,
		&chw.Name, &chw.Phone, &chw.Sector, &rating,
		&dID, &dName, &dBrand, &dForm, &dStatus,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	requester.ID = p.UserID
	chw.ID = p.CHWID
	chw.Rating = &rating
	p.Requester = &requester
	p.CHW = &chw
	if dID != nil {
		p.Disposal = &DisposalSummary{ID: *dID, BrandName: dBrand, DosageForm: dForm}
		if dName != nil {
			p.Disposal.GenericName = *dName
		}
		if dStatus != nil {
			p.Disposal.Status = *dStatus
		}
	}
	return &p, nil
}

func collectPickups(rows pgx.Rows) ([]*Pickup, error) {
	defer rows.Close()
	var out []*Pickup
	for rows.Next() {
		p, err := scanPickup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *pickupRepoPG) Create(ctx context.Context, p *Pickup) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO pickup_requests (
			id, user_id, chw_id, disposal_id, medicine_name, disposal_guidance, reason,
			pickup_location, latitude, longitude, preferred_time, status, consent_given, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.CHWID, p.DisposalID, p.MedicineName, p.DisposalGuidance, p.Reason,
		p.PickupLocation, p.Latitude, p.Longitude, p.PreferredTime, p.Status, p.ConsentGiven, p.Notes,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *pickupRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Pickup, error) {
	return scanPickup(r.conn(ctx).QueryRow(ctx, pickupSelect+` WHERE p.id = $1`, id))
}

func (r *pickupRepoPG) Update(ctx context.Context, p *Pickup) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE pickup_requests SET
			status = $2, chw_notes = $3, scheduled_time = $4, completed_at = $5,
			disposal_id = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Status, p.CHWNotes, p.ScheduledTime, p.CompletedAt, p.DisposalID,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.ErrNotFound
	}
	return err
}

func (r *pickupRepoPG) list(ctx context.Context, w *db.Where, order string, limit, offset int) ([]*Pickup, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM pickup_requests p`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	suffix, args := w.Page(limit, offset)
	rows, err := r.conn(ctx).Query(ctx, pickupSelect+w.SQL()+` ORDER BY `+order+suffix, args...)
	if err != nil {
		return nil, 0, err
	}
	out, err := collectPickups(rows)
	return out, total, err
}

func statusWhere(w *db.Where, f ListFilter) {
	if f.Status != "" {
		w.Add("p.status = $%d", f.Status)
	}
}

func (r *pickupRepoPG) ListByUser(ctx context.Context, userID uuid.UUID, f ListFilter, limit, offset int) ([]*Pickup, int, error) {
	w := &db.Where{}
	w.Add("p.user_id = $%d", userID)
	statusWhere(w, f)
	return r.list(ctx, w, "p.created_at DESC", limit, offset)
}

func (r *pickupRepoPG) ListByCHW(ctx context.Context, chwID uuid.UUID, f ListFilter, limit, offset int) ([]*Pickup, int, error) {
	w := &db.Where{}
	w.Add("p.chw_id = $%d", chwID)
	statusWhere(w, f)
	return r.list(ctx, w, "p.preferred_time ASC", limit, offset)
}

func (r *pickupRepoPG) ListAll(ctx context.Context, f ListFilter, limit, offset int) ([]*Pickup, int, error) {
	w := &db.Where{}
	statusWhere(w, f)
	return r.list(ctx, w, "p.created_at DESC", limit, offset)
}

func (r *pickupRepoPG) CHWStats(ctx context.Context, chwID uuid.UUID) (*CHWStats, error) {
	var s CHWStats
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'scheduled'),
			COUNT(*) FILTER (WHERE status = 'completed')
		FROM pickup_requests WHERE chw_id = $1`, chwID,
	).Scan(&s.Pending, &s.Scheduled, &s.Completed)
	if err != nil {
		return nil, err
	}
	s.Total = s.Pending + s.Scheduled + s.Completed
	return &s, nil
}
