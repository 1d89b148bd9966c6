package reporting

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/umutisafe/api/internal/platform/db"
)

type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, s.pool)
}

func (s *PGStore) Count(ctx context.Context, m Measure, args ...interface{}) (int64, error) {
	var n int64
	err := s.conn(ctx).QueryRow(ctx, m.SQL, args...).Scan(&n)
	return n, err
}

func (s *PGStore) RiskDistribution(ctx context.Context) (map[string]int64, error) {
	rows, err := s.conn(ctx).Query(ctx,
		`SELECT risk_level, COUNT(*) FROM disposals WHERE risk_level IS NOT NULL GROUP BY risk_level`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var level string
		var n int64
		if err := rows.Scan(&level, &n); err != nil {
			return nil, err
		}
		out[level] = n
	}
	return out, rows.Err()
}

func (s *PGStore) MonthlyCounts(ctx context.Context, since time.Time) (map[string]int64, error) {
	rows, err := s.conn(ctx).Query(ctx,
		`SELECT TO_CHAR(DATE_TRUNC('month', created_at AT TIME ZONE 'UTC'), 'YYYY-MM'), COUNT(*)
		FROM disposals
		WHERE created_at >= $1
		GROUP BY 1`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var month string
		var n int64
		if err := rows.Scan(&month, &n); err != nil {
			return nil, err
		}
		out[month] = n
	}
	return out, rows.Err()
}

func (s *PGStore) TopMedicines(ctx context.Context, limit int) ([]NameCount, error) {
	rows, err := s.conn(ctx).Query(ctx,
		`SELECT generic_name, COUNT(*) AS n
		FROM disposals
		GROUP BY generic_name
		ORDER BY n DESC, generic_name ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NameCount
	for rows.Next() {
		var nc NameCount
		if err := rows.Scan(&nc.Name, &nc.Count); err != nil {
			return nil, err
		}
		out = append(out, nc)
	}
	return out, rows.Err()
}
