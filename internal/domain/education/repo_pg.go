package education

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/umutisafe/api/internal/platform/apperror"
	"github.com/umutisafe/api/internal/platform/db"
)

const tipColumns = `id, title, icon, summary, content, category, is_active, display_order, created_at, updated_at`

type tipRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &tipRepoPG{pool: pool}
}

func (r *tipRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTip(row scanner) (*Tip, error) {
	var t Tip
	err := row.Scan(&t.ID, &t.Title, &t.Icon, &t.Summary, &t.Content, &t.Category,
		&t.IsActive, &t.DisplayOrder, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tipRepoPG) Create(ctx context.Context, t *Tip) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO education_tips (id, title, icon, summary, content, category, is_active, display_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		t.ID, t.Title, t.Icon, t.Summary, t.Content, t.Category, t.IsActive, t.DisplayOrder,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *tipRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Tip, error) {
	return scanTip(r.conn(ctx).QueryRow(ctx,
		`SELECT `+tipColumns+` FROM education_tips WHERE id = $1`, id))
}

func (r *tipRepoPG) Update(ctx context.Context, t *Tip) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE education_tips SET
			title = $2, icon = $3, summary = $4, content = $5, category = $6,
			is_active = $7, display_order = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		t.ID, t.Title, t.Icon, t.Summary, t.Content, t.Category, t.IsActive, t.DisplayOrder,
	).Scan(&t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.ErrNotFound
	}
	return err
}

func (r *tipRepoPG) ListActive(ctx context.Context, category string) ([]*Tip, error) {
	w := &db.Where{}
	w.AddRaw("is_active = TRUE")
	if category != "" {
		w.Add("category = $%d", category)
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+tipColumns+` FROM education_tips`+w.SQL()+` ORDER BY display_order ASC, created_at DESC`,
		w.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Tip
	for rows.Next() {
		t, err := scanTip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
