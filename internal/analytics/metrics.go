package analytics

import (
	"context"
	"time"

	"example.com/devledger/internal/domain"
	"example.com/devledger/internal/scoring"
)

// ComputeProductivityMetrics builds the daily/weekly/monthly score breakdown
// from stored activities. The monthly window also asks the project
// collaborator for the completed-project count; a nil collaborator yields
// zero. Windows are rolling and half-open, anchored at now.
func ComputeProductivityMetrics(ctx context.Context, store domain.ActivityStore, projects domain.ProjectCounter, userID string, now time.Time) (domain.ProductivityMetrics, error) {
	metrics := domain.ProductivityMetrics{UserID: userID}

	daily, err := periodMetrics(ctx, store, userID, now, 24*time.Hour)
	if err != nil {
		return metrics, err
	}
	weekly, err := periodMetrics(ctx, store, userID, now, PeriodWeek)
	if err != nil {
		return metrics, err
	}
	monthly, err := periodMetrics(ctx, store, userID, now, PeriodMonth)
	if err != nil {
		return metrics, err
	}

	metrics.Daily = daily
	metrics.Weekly = weekly
	metrics.Monthly = monthly

	trend, err := ComputeTrend(ctx, store, userID, PeriodWeek, now)
	if err != nil {
		return metrics, err
	}
	metrics.WeeklyTrend = trend

	if projects != nil {
		completed, err := projects.CompletedProjects(ctx, userID, monthly.Start, monthly.End)
		if err != nil {
			return metrics, err
		}
		metrics.CompletedProjects = completed
	}

	return metrics, nil
}

func periodMetrics(ctx context.Context, store domain.ActivityStore, userID string, now time.Time, period time.Duration) (domain.PeriodMetrics, error) {
	start := now.Add(-period)
	activities, err := store.ListByUserRange(ctx, userID, start, now)
	if err != nil {
		return domain.PeriodMetrics{}, err
	}
	return domain.PeriodMetrics{
		Start:         start,
		End:           now,
		ActivityCount: len(activities),
		Score:         scoring.ProductivityScore(activities),
	}, nil
}
