// Package reporting computes the admin dashboard statistics. Every figure is
// read fresh from the database on each request; nothing is cached.
package reporting

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Measure is a named scalar COUNT query. Args are bound at evaluation time.
type Measure struct {
	ID          string
	Description string
	SQL         string
}

const (
	MeasureTotalUsers         = "total_users"
	MeasureTotalCHWs          = "total_chws"
	MeasureTotalDisposals     = "total_disposals"
	MeasurePendingPickups     = "pending_pickups"
	MeasureCompletedThisMonth = "completed_this_month"
	MeasureHighRiskCollected  = "high_risk_collected"
)

var PredefinedMeasures = []Measure{
	{
		ID:          MeasureTotalUsers,
		Description: "Active accounts with the user role",
		SQL:         `SELECT COUNT(*) FROM users WHERE role = 'user' AND is_active`,
	},
	{
		ID:          MeasureTotalCHWs,
		Description: "Active community health workers",
		SQL:         `SELECT COUNT(*) FROM users WHERE role = 'chw' AND is_active`,
	},
	{
		ID:          MeasureTotalDisposals,
		Description: "All disposal records",
		SQL:         `SELECT COUNT(*) FROM disposals`,
	},
	{
		ID:          MeasurePendingPickups,
		Description: "Pickup requests still waiting for a CHW",
		SQL:         `SELECT COUNT(*) FROM pickup_requests WHERE status = 'pending'`,
	},
	{
		ID:          MeasureCompletedThisMonth,
		Description: "Disposals completed since the start of the month ($1)",
		SQL:         `SELECT COUNT(*) FROM disposals WHERE status = 'completed' AND completed_at >= $1`,
	},
	{
		ID:          MeasureHighRiskCollected,
		Description: "Completed disposals classified HIGH risk",
		SQL:         `SELECT COUNT(*) FROM disposals WHERE status = 'completed' AND risk_level = 'HIGH'`,
	},
}

// FindMeasure returns nil for an unknown id.
func FindMeasure(id string) *Measure {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}

type NameCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

type MonthCount struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

type SystemStats struct {
	TotalUsers         int64            `json:"total_users"`
	TotalCHWs          int64            `json:"total_chws"`
	TotalDisposals     int64            `json:"total_disposals"`
	PendingPickups     int64            `json:"pending_pickups"`
	CompletedThisMonth int64            `json:"completed_this_month"`
	HighRiskCollected  int64            `json:"high_risk_collected"`
	RiskDistribution   map[string]int64 `json:"risk_distribution"`
	MonthlyTrend       []MonthCount     `json:"monthly_trend"`
	TopMedicines       []NameCount      `json:"top_medicines"`
}

// Store runs the underlying queries.
type Store interface {
	Count(ctx context.Context, m Measure, args ...interface{}) (int64, error)
	RiskDistribution(ctx context.Context) (map[string]int64, error)
	// MonthlyCounts returns disposal counts keyed by "YYYY-MM" for rows
	// created at or after since.
	MonthlyCounts(ctx context.Context, since time.Time) (map[string]int64, error)
	TopMedicines(ctx context.Context, limit int) ([]NameCount, error)
}

const (
	TrendMonths    = 6
	TopMedicineMax = 5
)

type Aggregator struct {
	store Store
	now   func() time.Time
}

func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store, now: time.Now}
}

// Stats fans the independent queries out concurrently and assembles the
// dashboard. The first failing query cancels the rest.
func (a *Aggregator) Stats(ctx context.Context) (*SystemStats, error) {
	now := a.now().UTC()
	monthStart := StartOfMonth(now)
	trendStart := monthStart.AddDate(0, -(TrendMonths - 1), 0)

	out := &SystemStats{}
	g, gctx := errgroup.WithContext(ctx)

	counts := []struct {
		id   string
		dst  *int64
		args []interface{}
	}{
		{MeasureTotalUsers, &out.TotalUsers, nil},
		{MeasureTotalCHWs, &out.TotalCHWs, nil},
		{MeasureTotalDisposals, &out.TotalDisposals, nil},
		{MeasurePendingPickups, &out.PendingPickups, nil},
		{MeasureCompletedThisMonth, &out.CompletedThisMonth, []interface{}{monthStart}},
		{MeasureHighRiskCollected, &out.HighRiskCollected, nil},
	}
	for _, c := range counts {
		c := c
		g.Go(func() error {
			m := FindMeasure(c.id)
			n, err := a.store.Count(gctx, *m, c.args...)
			if err != nil {
				return fmt.Errorf("measure %s: %w", c.id, err)
			}
			*c.dst = n
			return nil
		})
	}

	var risk map[string]int64
	g.Go(func() error {
		var err error
		risk, err = a.store.RiskDistribution(gctx)
		if err != nil {
			return fmt.Errorf("risk distribution: %w", err)
		}
		return nil
	})

	var monthly map[string]int64
	g.Go(func() error {
		var err error
		monthly, err = a.store.MonthlyCounts(gctx, trendStart)
		if err != nil {
			return fmt.Errorf("monthly trend: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		top, err := a.store.TopMedicines(gctx, TopMedicineMax)
		if err != nil {
			return fmt.Errorf("top medicines: %w", err)
		}
		out.TopMedicines = top
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.RiskDistribution = NormalizeRisk(risk)
	out.MonthlyTrend = MonthlyTrend(now, TrendMonths, monthly)
	if out.TopMedicines == nil {
		out.TopMedicines = []NameCount{}
	}
	return out, nil
}

func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// MonthlyTrend returns one bucket per calendar month, oldest first, ending
// with the month containing now. Months absent from counts are zero.
func MonthlyTrend(now time.Time, months int, counts map[string]int64) []MonthCount {
	start := StartOfMonth(now)
	out := make([]MonthCount, 0, months)
	for i := months - 1; i >= 0; i-- {
		label := start.AddDate(0, -i, 0).Format("2006-01")
		out = append(out, MonthCount{Month: label, Count: counts[label]})
	}
	return out
}

// NormalizeRisk always reports LOW, MEDIUM and HIGH. Records without a risk
// level are left out.
func NormalizeRisk(in map[string]int64) map[string]int64 {
	out := map[string]int64{"LOW": 0, "MEDIUM": 0, "HIGH": 0}
	for k, v := range in {
		if _, ok := out[k]; ok {
			out[k] = v
		}
	}
	return out
}
