package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/devledger/internal/domain"
)

func TestScoreIsDeterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		require.Equal(t, 10, Score(domain.SourceGitHub, domain.TypeCommit))
		require.Equal(t, 50, Score(domain.SourceGitHub, domain.TypeRelease))
		require.Equal(t, 25, Score(domain.SourceStackOverflow, domain.TypeAnswer))
	}
}

func TestScoreUnknownPairIsZero(t *testing.T) {
	require.Equal(t, 0, Score(domain.SourceStackOverflow, domain.TypeCommit))
	require.Equal(t, 0, Score(domain.Source("gitlab"), domain.TypeCommit))
}

func TestProductivityScoreOrderIndependent(t *testing.T) {
	a := []domain.Activity{{Score: 10}, {Score: 10}, {Score: 2}}
	b := []domain.Activity{{Score: 2}, {Score: 10}, {Score: 10}}

	require.InDelta(t, 2.2, ProductivityScore(a), 1e-9)
	require.Equal(t, ProductivityScore(a), ProductivityScore(b))
}

func TestProductivityScoreClampsToTen(t *testing.T) {
	activities := make([]domain.Activity, 30)
	for i := range activities {
		activities[i] = domain.Activity{Score: 50}
	}
	require.Equal(t, 10.0, ProductivityScore(activities))
}

func TestProductivityScoreEmptyIsZero(t *testing.T) {
	require.Equal(t, 0.0, ProductivityScore(nil))
}
