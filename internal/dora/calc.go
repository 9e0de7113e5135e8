// Package dora holds the pure calculators behind the four DORA indicators.
// Nothing in here touches the store; every function is deterministic in its
// arguments.
package dora

import (
	"sort"
	"time"
)

// minLeadTimeHours is the floor applied on the fallback branches so clock
// skew or same-instant events never produce a zero or negative lead time.
const minLeadTimeHours = 0.1

// LeadTimeHours returns the elapsed hours from a change's earliest commit to
// its deployment. The direct-commit branch (no merge time) and the hotfix
// branch (deployed before its nominal merge time) are floored; the normal
// branch is returned unclamped.
func LeadTimeHours(firstCommitAt time.Time, mergedAt *time.Time, deployTime time.Time) float64 {
	hours := deployTime.Sub(firstCommitAt).Hours()

	if mergedAt == nil || deployTime.Before(*mergedAt) {
		if hours < minLeadTimeHours {
			return minLeadTimeHours
		}
		return hours
	}

	return hours
}

// FailureRatePct returns the failed share of deployments as a 0-100
// percentage. Zero total deployments yields 0 rather than a division error.
func FailureRatePct(totalDeployments, failedDeployments int) float64 {
	if totalDeployments == 0 {
		return 0.0
	}
	return float64(failedDeployments) / float64(totalDeployments) * 100
}

// MTTRHours returns the elapsed hours from incident creation to closure.
// An open incident, or a closing time before the creation time, counts as
// not yet restored and contributes zero.
func MTTRHours(createdAt time.Time, closedAt *time.Time) float64 {
	if closedAt == nil || closedAt.Before(createdAt) {
		return 0.0
	}
	return closedAt.Sub(createdAt).Hours()
}

// Median returns the standard median of values, averaging the two middle
// elements for even-length input. Empty input yields 0.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// Mean returns the arithmetic mean of values, 0 for empty input. Kept
// alongside Median so either reducer can back a windowed aggregate.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
