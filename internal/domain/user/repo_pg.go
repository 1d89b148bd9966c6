package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/umutisafe/api/internal/platform/apperror"
	"github.com/umutisafe/api/internal/platform/db"
)

const userColumns = `id, name, email, password, role, phone, avatar, location, sector,
	availability, completed_pickups, rating, coverage_area, is_active, is_approved,
	approved_by, approved_at, last_login, created_at, updated_at`

type userRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row scanner) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Phone, &u.Avatar, &u.Location, &u.Sector,
		&u.Availability, &u.CompletedPickups, &u.Rating, &u.CoverageArea, &u.IsActive, &u.IsApproved,
		&u.ApprovedBy, &u.ApprovedAt, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func collectUsers(rows pgx.Rows) ([]*User, error) {
	defer rows.Close()
	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (
			id, name, email, password, role, phone, avatar, location, sector,
			availability, coverage_area, is_active, is_approved, approved_by, approved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING completed_pickups, rating, created_at, updated_at`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.Phone, u.Avatar, u.Location, u.Sector,
		u.Availability, u.CoverageArea, u.IsActive, u.IsApproved, u.ApprovedBy, u.ApprovedAt,
	).Scan(&u.CompletedPickups, &u.Rating, &u.CreatedAt, &u.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperror.ErrDuplicate
	}
	return err
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE users SET
			name = $2, email = $3, role = $4, phone = $5, avatar = $6, location = $7,
			sector = $8, availability = $9, coverage_area = $10, is_active = $11,
			is_approved = $12, approved_by = $13, approved_at = $14, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		u.ID, u.Name, u.Email, u.Role, u.Phone, u.Avatar, u.Location,
		u.Sector, u.Availability, u.CoverageArea, u.IsActive,
		u.IsApproved, u.ApprovedBy, u.ApprovedAt,
	).Scan(&u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.ErrNotFound
	}
	if db.IsUniqueViolation(err) {
		return apperror.ErrDuplicate
	}
	return err
}

func (r *userRepoPG) Approve(ctx context.Context, id, adminID uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET is_approved = TRUE, approved_by = $2, approved_at = $3, updated_at = NOW()
		WHERE id = $1 AND NOT is_approved`, id, adminID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *userRepoPG) exec(ctx context.Context, sql string, args ...interface{}) error {
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

func (r *userRepoPG) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	return r.exec(ctx, `UPDATE users SET password = $2, updated_at = NOW() WHERE id = $1`, id, hash)
}

func (r *userRepoPG) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
}

func (r *userRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `DELETE FROM users WHERE id = $1`, id)
}

func (r *userRepoPG) IncrementCompletedPickups(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx,
		`UPDATE users SET completed_pickups = completed_pickups + 1, updated_at = NOW() WHERE id = $1`, id)
}

func (r *userRepoPG) page(ctx context.Context, w *db.Where, order string, limit, offset int) ([]*User, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	suffix, args := w.Page(limit, offset)
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+userColumns+` FROM users`+w.SQL()+` ORDER BY `+order+suffix, args...)
	if err != nil {
		return nil, 0, err
	}
	users, err := collectUsers(rows)
	return users, total, err
}

func (r *userRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*User, int, error) {
	w := &db.Where{}
	if f.Role != "" {
		w.Add("role = $%d", f.Role)
	}
	if f.Search != "" {
		w.AddSearch(f.Search, "name", "email", "phone")
	}
	return r.page(ctx, w, "created_at DESC", limit, offset)
}

func (r *userRepoPG) ListPending(ctx context.Context) ([]*User, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE NOT is_approved AND is_active ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func (r *userRepoPG) ListCHWs(ctx context.Context, f CHWFilter, limit, offset int) ([]*User, int, error) {
	w := &db.Where{}
	w.AddRaw("role = 'chw' AND is_active AND is_approved")
	if f.Sector != "" {
		w.Add("sector = $%d", f.Sector)
	}
	if f.Availability != "" {
		w.Add("availability = $%d", f.Availability)
	}
	if f.Search != "" {
		w.AddSearch(f.Search, "name", "sector", "coverage_area")
	}
	return r.page(ctx, w, "rating DESC, name ASC", limit, offset)
}

func (r *userRepoPG) NearbyCHWs(ctx context.Context, sector string, limit int) ([]*User, error) {
	w := &db.Where{}
	w.AddRaw("role = 'chw' AND is_active AND is_approved AND availability = 'available'")
	if sector != "" {
		w.Add("sector ILIKE $%d", "%"+sector+"%")
	}
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM users%s ORDER BY rating DESC LIMIT $%d`, userColumns, w.SQL(), w.Next()),
		append(w.Args(), limit)...)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}
