package analytics

import (
	"context"
	"time"

	"example.com/devledger/internal/domain"
)

// Trend periods compare two adjacent equal-length windows.
const (
	PeriodWeek  = 7 * 24 * time.Hour
	PeriodMonth = 30 * 24 * time.Hour
)

// trendThresholdRatio is the relative band around the prior count inside
// which activity is considered stable.
const trendThresholdRatio = 0.10

// ClassifyTrend compares the recent window count against the prior one. With
// priorCount zero the threshold degenerates to zero, so any positive recent
// count is up and zero-versus-zero is stable.
func ClassifyTrend(recentCount, priorCount int) domain.TrendDirection {
	threshold := float64(priorCount) * trendThresholdRatio
	switch {
	case float64(recentCount) > float64(priorCount)+threshold:
		return domain.TrendUp
	case float64(recentCount) < float64(priorCount)-threshold:
		return domain.TrendDown
	default:
		return domain.TrendStable
	}
}

// ComputeTrend classifies [now-period, now) against [now-2*period, now-period)
// using stored activity counts.
func ComputeTrend(ctx context.Context, store domain.ActivityStore, userID string, period time.Duration, now time.Time) (domain.TrendDirection, error) {
	recent, err := store.CountByUserRange(ctx, userID, now.Add(-period), now)
	if err != nil {
		return "", err
	}
	prior, err := store.CountByUserRange(ctx, userID, now.Add(-2*period), now.Add(-period))
	if err != nil {
		return "", err
	}
	return ClassifyTrend(recent, prior), nil
}
