// Package aggregator folds linked deployment, pull-request, and incident
// records into one metrics row per repository per UTC day. Every pass fully
// recomputes its day, so re-running over historical dates is always safe.
package aggregator

import (
	"log"
	"math"
	"time"

	"doratrack/internal/dora"
	"doratrack/internal/models"

	"gorm.io/gorm"
)

// DayResult reports the measures persisted for one (repository, date) unit.
type DayResult struct {
	RepoID              int64     `json:"repoId"`
	MetricDate          time.Time `json:"date"`
	DeploymentFrequency int       `json:"deploymentFrequency"`
	LeadTimeHours       float64   `json:"leadTimeHours"`
	ChangeFailureRate   float64   `json:"changeFailureRate"`
	MTTRHours           float64   `json:"mttrHours"`
}

// BatchResult summarizes a full recompute run. Per-unit failures are
// counted, not raised; only store-level errors abort the batch.
type BatchResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Repos     int `json:"repos"`
	Days      int `json:"days"`
}

// ProcessRepoDay computes and upserts the metric row for one repository and
// the UTC day beginning at dayStart. The whole unit runs in one transaction:
// a failed step persists nothing and the unit can simply be retried.
func ProcessRepoDay(gdb *gorm.DB, repoID int64, dayStart time.Time) (DayResult, error) {
	dayStart = TruncateToDay(dayStart)
	result := DayResult{RepoID: repoID, MetricDate: dayStart}

	err := gdb.Transaction(func(tx *gorm.DB) error {
		computed, err := computeRepoDay(tx, repoID, dayStart)
		if err != nil {
			return err
		}
		result = computed

		return models.UpsertDailyMetric(tx, models.DailyMetric{
			RepoID:              repoID,
			MetricDate:          dayStart,
			DeploymentFrequency: computed.DeploymentFrequency,
			LeadTimeHours:       computed.LeadTimeHours,
			ChangeFailureRate:   computed.ChangeFailureRate,
			MTTRHours:           computed.MTTRHours,
		})
	})

	return result, err
}

func computeRepoDay(tx *gorm.DB, repoID int64, dayStart time.Time) (DayResult, error) {
	dayEnd := dayStart.Add(24 * time.Hour)
	result := DayResult{RepoID: repoID, MetricDate: dayStart}

	deployments, err := models.SuccessfulDeploymentsInWindow(tx, repoID, dayStart, dayEnd)
	if err != nil {
		return result, err
	}

	var prod []models.Deployment
	for _, dep := range deployments {
		if dora.IsProduction(dora.Classification{
			Environment:  dep.Environment,
			WorkflowName: dep.WorkflowName,
		}) {
			prod = append(prod, dep)
		}
	}

	result.DeploymentFrequency = len(prod)

	var leadTimes []float64
	prodIDs := make([]int64, 0, len(prod))
	for _, dep := range prod {
		prodIDs = append(prodIDs, dep.DeploymentID)

		firstCommits, err := models.FirstCommitTimesForDeployment(tx, dep.DeploymentID)
		if err != nil {
			return result, err
		}

		if len(firstCommits) == 0 {
			// Direct commit: no tracked PR shipped in this deployment.
			// Degenerates to the floor so deployment volume still counts
			// without fabricating a lead time.
			leadTimes = append(leadTimes, dora.LeadTimeHours(dep.CreatedAt, nil, dep.CreatedAt))
			continue
		}

		for _, firstCommit := range firstCommits {
			leadTimes = append(leadTimes, dora.LeadTimeHours(firstCommit, nil, dep.CreatedAt))
		}
	}
	result.LeadTimeHours = round3(dora.Median(leadTimes))

	failed, err := models.DeploymentIDsWithIncidents(tx, repoID, prodIDs)
	if err != nil {
		return result, err
	}
	result.ChangeFailureRate = round3(dora.FailureRatePct(len(prod), len(failed)))

	closed, err := models.IncidentsClosedInWindow(tx, repoID, dayStart, dayEnd)
	if err != nil {
		return result, err
	}
	var restoreTimes []float64
	for _, incident := range closed {
		restoreTimes = append(restoreTimes, dora.MTTRHours(incident.CreatedAt, incident.ClosedAt))
	}
	result.MTTRHours = round3(dora.Median(restoreTimes))

	return result, nil
}

// ProcessAll recomputes daily metrics for every active repository from
// startDate (clamped to the earliest stored event, which it defaults to)
// through the current UTC date. Each (repo, day) unit runs independently;
// a failing unit is logged and counted but never aborts the batch.
func ProcessAll(gdb *gorm.DB, startDate *time.Time) (BatchResult, error) {
	var batch BatchResult

	earliest, err := models.EarliestEventTime(gdb)
	if err != nil {
		return batch, err
	}
	if earliest == nil {
		return batch, nil
	}

	lower := TruncateToDay(*earliest)
	if startDate != nil {
		requested := TruncateToDay(*startDate)
		if requested.After(lower) {
			lower = requested
		}
	}

	repos, err := models.ActiveRepoIDs(gdb)
	if err != nil {
		return batch, err
	}
	batch.Repos = len(repos)

	today := TruncateToDay(time.Now().UTC())
	for day := lower; !day.After(today); day = day.Add(24 * time.Hour) {
		batch.Days++
		for _, repoID := range repos {
			if _, err := ProcessRepoDay(gdb, repoID, day); err != nil {
				log.Printf("metrics for repo %d on %s failed: %v", repoID, day.Format("2006-01-02"), err)
				batch.Failed++
				continue
			}
			batch.Processed++
		}
	}

	return batch, nil
}

// TruncateToDay normalizes a timestamp to UTC midnight of its calendar day.
func TruncateToDay(ts time.Time) time.Time {
	ts = ts.UTC()
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
