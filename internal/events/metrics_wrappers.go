package events

import (
	"doratrack/internal/models"

	"gorm.io/datatypes"
)

// MetricsRunCompleted records the outcome counts of a batch aggregation run.
func (e *Emitter) MetricsRunCompleted(actorID string, processed, failed int) {
	if e == nil {
		return
	}

	e.Emit(models.Event{
		Action: "metrics.run.completed",

		ActorRole: ActorOperator,
		ActorID:   actorID,

		TargetType: "dora_metrics",
		TargetID:   "batch",

		Props: datatypes.JSONMap{
			"processed": processed,
			"failed":    failed,
		},
	})
}

// BackfillCompleted records a finished bulk import.
func (e *Emitter) BackfillCompleted(repo string, prs, deployments, issues int) {
	if e == nil {
		return
	}

	e.Emit(models.Event{
		Action: "backfill.completed",

		ActorRole: ActorSystem,
		ActorID:   ActorSystem,

		TargetType: "repository",
		TargetID:   repo,

		Props: datatypes.JSONMap{
			"pullRequests": prs,
			"deployments":  deployments,
			"issues":       issues,
		},
	})
}
