package service

import (
	"context"
	"time"

	"github.com/pqrs_dashboard/backend/internal/models"
)

// Dashboard aggregates request counts for the metrics cards.
type Dashboard struct {
	Lifecycle *Lifecycle
}

func (d *Dashboard) Stats(ctx context.Context, actor Actor, filter models.PQRFilter) (models.DashboardStats, error) {
	items, err := d.Lifecycle.List(ctx, actor, filter)
	if err != nil {
		return models.DashboardStats{}, err
	}
	return Summarize(items, d.Lifecycle.now()), nil
}

// Summarize counts requests per status and type. A request is overdue when
// it is still open and now has reached its due date.
func Summarize(items []models.PQRS, now time.Time) models.DashboardStats {
	stats := models.DashboardStats{
		ByStatus: map[models.Status]int{},
		ByType:   map[models.PQRType]int{},
	}
	for _, s := range models.Statuses {
		stats.ByStatus[s] = 0
	}
	for _, p := range items {
		stats.Total++
		stats.ByStatus[p.Status]++
		stats.ByType[p.Type]++
		if p.Overdue(now) {
			stats.Overdue++
		}
	}
	stats.OnTime = stats.Total - stats.Overdue
	return stats
}
