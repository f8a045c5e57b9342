package analytics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/devledger/internal/domain"
)

func TestClassifyTrend(t *testing.T) {
	cases := []struct {
		name   string
		recent int
		prior  int
		want   domain.TrendDirection
	}{
		{"above threshold is up", 115, 100, domain.TrendUp},
		{"within threshold is stable", 105, 100, domain.TrendStable},
		{"at threshold boundary is stable", 110, 100, domain.TrendStable},
		{"below threshold is down", 85, 100, domain.TrendDown},
		{"zero prior any activity is up", 3, 0, domain.TrendUp},
		{"zero versus zero is stable", 0, 0, domain.TrendStable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ClassifyTrend(tc.recent, tc.prior))
		})
	}
}
