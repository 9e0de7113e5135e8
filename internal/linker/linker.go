// Package linker establishes the associations the aggregator reads:
// deployment-to-pull-request links joined on commit SHA, and
// incident-to-deployment links chosen by temporal proximity. Every pass is
// idempotent and safe to interleave with live ingestion.
package linker

import (
	"time"

	"doratrack/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IncidentWindow bounds how far, in either direction, an incident may sit
// from the deployment that plausibly caused it.
const IncidentWindow = 24 * time.Hour

// LinkPullRequests inserts a deployment_prs row for every same-repo
// deployment/PR pair whose commit SHAs match exactly. Existing links are
// left untouched; re-running never creates duplicates. Returns the number of
// links created by this pass.
func LinkPullRequests(gdb *gorm.DB) (int64, error) {
	var pairs []models.DeploymentPR
	err := gdb.Table("deployments").
		Select("deployments.deployment_id AS deployment_id, pull_requests.pr_id AS pr_id").
		Joins("JOIN pull_requests ON pull_requests.commit_sha = deployments.commit_sha AND pull_requests.repo_id = deployments.repo_id").
		Where("deployments.commit_sha <> ''").
		Scan(&pairs).Error
	if err != nil {
		return 0, err
	}

	return insertLinks(gdb, pairs)
}

// LinkCommit is the single-SHA variant used on the webhook path right after
// a deployment or merged pull request is stored.
func LinkCommit(gdb *gorm.DB, repoID int64, commitSHA string) (int64, error) {
	if commitSHA == "" {
		return 0, nil
	}

	var pairs []models.DeploymentPR
	err := gdb.Table("deployments").
		Select("deployments.deployment_id AS deployment_id, pull_requests.pr_id AS pr_id").
		Joins("JOIN pull_requests ON pull_requests.commit_sha = deployments.commit_sha AND pull_requests.repo_id = deployments.repo_id").
		Where("deployments.repo_id = ? AND deployments.commit_sha = ?", repoID, commitSHA).
		Scan(&pairs).Error
	if err != nil {
		return 0, err
	}

	return insertLinks(gdb, pairs)
}

func insertLinks(gdb *gorm.DB, pairs []models.DeploymentPR) (int64, error) {
	var created int64
	for _, pair := range pairs {
		res := gdb.Clauses(clause.OnConflict{DoNothing: true}).Create(&pair)
		if res.Error != nil {
			return created, res.Error
		}
		created += res.RowsAffected
	}
	return created, nil
}

// LinkIncidents resolves the deployment reference for every incident that
// still lacks one: the deployment in the same repository closest in absolute
// time to the incident's creation, within the symmetric window. Incidents
// with no candidate stay unlinked; incidents already linked are never
// revisited. Returns the number of incidents linked by this pass.
func LinkIncidents(gdb *gorm.DB) (int64, error) {
	incidents, err := models.UnlinkedIncidents(gdb)
	if err != nil {
		return 0, err
	}

	var linked int64
	for _, incident := range incidents {
		ok, err := linkIncident(gdb, incident)
		if err != nil {
			return linked, err
		}
		if ok {
			linked++
		}
	}

	return linked, nil
}

// LinkIncident is the single-incident variant used on the webhook path.
// A no-op when the incident is unknown or already linked.
func LinkIncident(gdb *gorm.DB, issueID int64) error {
	var incident models.Incident
	err := gdb.Where("issue_id = ?", issueID).First(&incident).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}

	if incident.DeploymentID != nil {
		return nil
	}

	_, err = linkIncident(gdb, incident)
	return err
}

func linkIncident(gdb *gorm.DB, incident models.Incident) (bool, error) {
	candidates, err := models.DeploymentsNear(gdb, incident.RepoID, incident.CreatedAt, IncidentWindow)
	if err != nil {
		return false, err
	}
	if len(candidates) == 0 {
		return false, nil
	}

	best := candidates[0]
	bestDelta := absDelta(best.CreatedAt, incident.CreatedAt)
	for _, cand := range candidates[1:] {
		// Candidates arrive ordered by deployment ID, so keeping the
		// first on equal deltas gives the stable tie break.
		delta := absDelta(cand.CreatedAt, incident.CreatedAt)
		if delta < bestDelta {
			best = cand
			bestDelta = delta
		}
	}

	// Guarded on the null reference so a concurrent linking pass cannot
	// overwrite an already-set link.
	res := gdb.Model(&models.Incident{}).
		Where("issue_id = ? AND deployment_id IS NULL", incident.IssueID).
		Update("deployment_id", best.DeploymentID)
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

func absDelta(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}

// FillMissingFirstCommit repairs pull requests ingested without commit data
// by defaulting first_commit_at to the creation timestamp.
func FillMissingFirstCommit(gdb *gorm.DB) (int64, error) {
	res := gdb.Model(&models.PullRequest{}).
		Where("first_commit_at IS NULL").
		Update("first_commit_at", gorm.Expr("created_at"))
	return res.RowsAffected, res.Error
}
