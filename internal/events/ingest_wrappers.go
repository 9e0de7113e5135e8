package events

import (
	"strconv"

	"doratrack/internal/models"

	"gorm.io/datatypes"
)

// Target types for ingestion events.
const (
	targetDeployment  = "deployment"
	targetPullRequest = "pull_request"
	targetIncident    = "incident"
)

// DeploymentIngested records a stored production deployment.
func (e *Emitter) DeploymentIngested(deliveryID string, dep models.Deployment) {
	if e == nil {
		return
	}

	e.Emit(models.Event{
		Action: "github.deployment.ingested",

		ActorRole: ActorSystem,
		ActorID:   deliveryID,

		TargetType: targetDeployment,
		TargetID:   strconv.FormatInt(dep.DeploymentID, 10),

		Props: datatypes.JSONMap{
			"repoId":      dep.RepoID,
			"environment": dep.Environment,
			"status":      dep.Status,
			"sha":         dep.CommitSHA,
		},
	})
}

// PullRequestIngested records a stored merged pull request.
func (e *Emitter) PullRequestIngested(deliveryID string, pr models.PullRequest) {
	if e == nil {
		return
	}

	e.Emit(models.Event{
		Action: "github.pull_request.ingested",

		ActorRole: ActorSystem,
		ActorID:   deliveryID,

		TargetType: targetPullRequest,
		TargetID:   strconv.FormatInt(pr.PRID, 10),

		Props: datatypes.JSONMap{
			"repoId": pr.RepoID,
			"base":   pr.BaseBranch,
			"sha":    pr.CommitSHA,
		},
	})
}

// IncidentIngested records a stored issue, incident or not.
func (e *Emitter) IncidentIngested(deliveryID string, inc models.Incident) {
	if e == nil {
		return
	}

	e.Emit(models.Event{
		Action: "github.issue.ingested",

		ActorRole: ActorSystem,
		ActorID:   deliveryID,

		TargetType: targetIncident,
		TargetID:   strconv.FormatInt(inc.IssueID, 10),

		Props: datatypes.JSONMap{
			"repoId":     inc.RepoID,
			"isIncident": inc.IsIncident,
		},
	})
}
