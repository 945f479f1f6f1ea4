package movetime_test

import (
	"testing"

	"github.com/lczero/broadcast-analyzer/pkg/movetime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RejectsGarbage(t *testing.T) {
	_, err := movetime.Parse("not-a-spec")
	assert.Error(t, err)
}

func TestEstimate_DecreasesAsClockShrinks(t *testing.T) {
	est, err := movetime.Parse("40/7200:1800+30")
	require.NoError(t, err)

	full := 7200
	low := 60
	assert.Greater(t, est.Estimate(10, &full), est.Estimate(10, &low))
}

func TestEstimate_NilClockUsesFirstSectionBase(t *testing.T) {
	est, err := movetime.Parse("40/7200:1800+30")
	require.NoError(t, err)

	withNil := est.Estimate(1, nil)
	full := 7200
	withFull := est.Estimate(1, &full)
	assert.Equal(t, withFull, withNil)
}

func TestEstimateEloAdjustment_MoreTimeIsHigherAdjustment(t *testing.T) {
	est, err := movetime.Parse("40/7200:1800+30")
	require.NoError(t, err)

	full := 7200
	low := 60
	assert.Greater(t, est.EstimateEloAdjustment(10, &full), est.EstimateEloAdjustment(10, &low))
}
