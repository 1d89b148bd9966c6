package medicine

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/umutisafe/api/internal/platform/apperror"
	"github.com/umutisafe/api/internal/platform/db"
)

const medicineColumns = `id, generic_name, brand_name, registration_number, dosage_form, strength,
	pack_size, packaging_type, shelf_life, category, risk_level, manufacturer, manufacturer_address,
	manufacturer_country, marketing_authorization_holder, local_technical_representative,
	fda_approved, disposal_instructions, registration_date, expiry_date, is_active,
	created_at, updated_at`

type medicineRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &medicineRepoPG{pool: pool}
}

func (r *medicineRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMedicine(row scanner) (*Medicine, error) {
	var m Medicine
	err := row.Scan(
		&m.ID, &m.GenericName, &m.BrandName, &m.RegistrationNumber, &m.DosageForm, &m.Strength,
		&m.PackSize, &m.PackagingType, &m.ShelfLife, &m.Category, &m.RiskLevel, &m.Manufacturer, &m.ManufacturerAddress,
		&m.ManufacturerCountry, &m.MarketingAuthorizationHolder, &m.LocalTechnicalRepresentative,
		&m.FDAApproved, &m.DisposalInstructions, &m.RegistrationDate, &m.ExpiryDate, &m.IsActive,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func collectMedicines(rows pgx.Rows) ([]*Medicine, error) {
	defer rows.Close()
	var out []*Medicine
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *medicineRepoPG) Create(ctx context.Context, m *Medicine) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO registered_medicines (
			id, generic_name, brand_name, registration_number, dosage_form, strength,
			pack_size, packaging_type, shelf_life, category, risk_level, manufacturer, manufacturer_address,
			manufacturer_country, marketing_authorization_holder, local_technical_representative,
			fda_approved, disposal_instructions, registration_date, expiry_date, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING created_at, updated_at`,
		m.ID, m.GenericName, m.BrandName, m.RegistrationNumber, m.DosageForm, m.Strength,
		m.PackSize, m.PackagingType, m.ShelfLife, m.Category, m.RiskLevel, m.Manufacturer, m.ManufacturerAddress,
		m.ManufacturerCountry, m.MarketingAuthorizationHolder, m.LocalTechnicalRepresentative,
		m.FDAApproved, m.DisposalInstructions, m.RegistrationDate, m.ExpiryDate, m.IsActive,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperror.ErrDuplicate
	}
	return err
}

func (r *medicineRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	return scanMedicine(r.conn(ctx).QueryRow(ctx,
		`SELECT `+medicineColumns+` FROM registered_medicines WHERE id = $1`, id))
}

func (r *medicineRepoPG) Update(ctx context.Context, m *Medicine) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE registered_medicines SET
			generic_name = $2, brand_name = $3, registration_number = $4, dosage_form = $5, strength = $6,
			pack_size = $7, packaging_type = $8, shelf_life = $9, category = $10, risk_level = $11,
			manufacturer = $12, manufacturer_address = $13, manufacturer_country = $14,
			marketing_authorization_holder = $15, local_technical_representative = $16,
			fda_approved = $17, disposal_instructions = $18, registration_date = $19, expiry_date = $20,
			is_active = $21, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		m.ID, m.GenericName, m.BrandName, m.RegistrationNumber, m.DosageForm, m.Strength,
		m.PackSize, m.PackagingType, m.ShelfLife, m.Category, m.RiskLevel,
		m.Manufacturer, m.ManufacturerAddress, m.ManufacturerCountry,
		m.MarketingAuthorizationHolder, m.LocalTechnicalRepresentative,
		m.FDAApproved, m.DisposalInstructions, m.RegistrationDate, m.ExpiryDate,
		m.IsActive,
	).Scan(&m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.ErrNotFound
	}
	if db.IsUniqueViolation(err) {
		return apperror.ErrDuplicate
	}
	return err
}

func (r *medicineRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Medicine, int, error) {
	w := &db.Where{}
	w.AddRaw("is_active")
	if f.Search != "" {
		w.AddSearch(f.Search, "generic_name", "brand_name")
	}
	if f.Category != "" {
		w.Add("category = $%d", f.Category)
	}
	if f.RiskLevel != "" {
		w.Add("risk_level = $%d", f.RiskLevel)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM registered_medicines`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	suffix, args := w.Page(limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+medicineColumns+` FROM registered_medicines`+w.SQL()+` ORDER BY generic_name ASC`+suffix, args...)
	if err != nil {
		return nil, 0, err
	}
	meds, err := collectMedicines(rows)
	return meds, total, err
}

func (r *medicineRepoPG) Search(ctx context.Context, q string, limit int) ([]*Medicine, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+medicineColumns+` FROM registered_medicines
		WHERE is_active AND (generic_name ILIKE $1 OR brand_name ILIKE $1)
		ORDER BY generic_name ASC
		LIMIT $2`, "%"+q+"%", limit)
	if err != nil {
		return nil, err
	}
	return collectMedicines(rows)
}

func (r *medicineRepoPG) FindActiveByGenericName(ctx context.Context, name string) (*Medicine, error) {
	return scanMedicine(r.conn(ctx).QueryRow(ctx, `
		SELECT `+medicineColumns+` FROM registered_medicines
		WHERE lower(generic_name) = lower($1) AND is_active
		ORDER BY created_at ASC
		LIMIT 1`, name))
}

func (r *medicineRepoPG) FindByRegistrationNumber(ctx context.Context, regNo string) (*Medicine, error) {
	return scanMedicine(r.conn(ctx).QueryRow(ctx,
		`SELECT `+medicineColumns+` FROM registered_medicines WHERE registration_number = $1`, regNo))
}

func (r *medicineRepoPG) FindByNameForm(ctx context.Context, genericName, dosageForm string) (*Medicine, error) {
	return scanMedicine(r.conn(ctx).QueryRow(ctx, `
		SELECT `+medicineColumns+` FROM registered_medicines
		WHERE lower(generic_name) = lower($1) AND lower(dosage_form) = lower($2)
		ORDER BY created_at ASC
		LIMIT 1`, genericName, dosageForm))
}

func (r *medicineRepoPG) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM registered_medicines`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
