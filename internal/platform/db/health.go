package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type PoolStats struct {
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	MaxConns      int32 `json:"max_conns"`
}

func GetPoolStats(pool *pgxpool.Pool) PoolStats {
	stat := pool.Stat()
	return PoolStats{
		TotalConns:    stat.TotalConns(),
		IdleConns:     stat.IdleConns(),
		AcquiredConns: stat.AcquiredConns(),
		MaxConns:      stat.MaxConns(),
	}
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthBody struct {
	Success     bool       `json:"success"`
	Message     string     `json:"message"`
	Timestamp   time.Time  `json:"timestamp"`
	Environment string     `json:"environment"`
	Database    string     `json:"database"`
	Pool        *PoolStats `json:"pool,omitempty"`
}

// HealthHandler serves GET /api/health. The pool may be nil in tests; stats
// are only reported for a real pool.
func HealthHandler(p Pinger, env string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		body := healthBody{
			Success:     true,
			Message:     "UmutiSafe API is running",
			Timestamp:   time.Now().UTC(),
			Environment: env,
			Database:    "connected",
		}
		if pool, ok := p.(*pgxpool.Pool); ok && pool != nil {
			stats := GetPoolStats(pool)
			body.Pool = &stats
		}

		if err := p.Ping(ctx); err != nil {
			body.Success = false
			body.Message = "database unavailable"
			body.Database = "disconnected"
			return c.JSON(http.StatusServiceUnavailable, body)
		}
		return c.JSON(http.StatusOK, body)
	}
}
