package dora

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

func TestLeadTimeDirectCommitIsFloored(t *testing.T) {
	// Same-instant commit and deploy with no merge time must not collapse
	// to zero.
	got := LeadTimeHours(baseTime, nil, baseTime)
	require.Equal(t, 0.1, got)
}

func TestLeadTimeDirectCommitUsesDeployTime(t *testing.T) {
	deploy := baseTime.Add(26 * time.Hour)
	got := LeadTimeHours(baseTime, nil, deploy)
	require.Equal(t, 26.0, got)
}

func TestLeadTimeHotfixBeforeMergeIsFloored(t *testing.T) {
	merged := baseTime.Add(2 * time.Hour)
	deploy := baseTime.Add(-1 * time.Minute)
	got := LeadTimeHours(baseTime, &merged, deploy)
	require.Equal(t, 0.1, got)
}

func TestLeadTimeNormalPathIsUnclamped(t *testing.T) {
	// Deploying right after the merge keeps the true sub-floor value.
	merged := baseTime.Add(18 * time.Second)
	deploy := baseTime.Add(36 * time.Second)
	got := LeadTimeHours(baseTime, &merged, deploy)
	require.InDelta(t, 0.01, got, 1e-9)
}

func TestFailureRatePct(t *testing.T) {
	require.Equal(t, 0.0, FailureRatePct(0, 0))
	require.Equal(t, 20.0, FailureRatePct(10, 2))
	require.Equal(t, 100.0, FailureRatePct(3, 3))
}

func TestMTTRHours(t *testing.T) {
	closed := baseTime.Add(3 * time.Hour)
	require.Equal(t, 3.0, MTTRHours(baseTime, &closed))

	require.Equal(t, 0.0, MTTRHours(baseTime, nil))

	// A closing time before creation means not yet restored, never a
	// negative duration.
	before := baseTime.Add(-1 * time.Hour)
	require.Equal(t, 0.0, MTTRHours(baseTime, &before))
}

func TestMedian(t *testing.T) {
	require.Equal(t, 0.0, Median(nil))
	require.Equal(t, 3.0, Median([]float64{4, 1, 3}))
	require.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))
}

func TestMedianDoesNotMutateInput(t *testing.T) {
	values := []float64{4, 1, 3}
	_ = Median(values)
	require.Equal(t, []float64{4, 1, 3}, values)
}

func TestMean(t *testing.T) {
	require.Equal(t, 0.0, Mean(nil))
	require.Equal(t, 2.0, Mean([]float64{1, 2, 3}))
}
