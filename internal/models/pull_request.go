package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PullRequest is a merged pull request. FirstCommitAt falls back to
// CreatedAt when the commit history was unavailable at ingestion time.
type PullRequest struct {
	ID            uint           `gorm:"primaryKey" json:"-"`
	RepoID        int64          `gorm:"not null;index:idx_prs_repo" json:"repoId"`
	PRID          int64          `gorm:"column:pr_id;not null;uniqueIndex" json:"prId"`
	PRName        string         `gorm:"column:pr_name" json:"prName"`
	CreatedAt     time.Time      `gorm:"not null" json:"createdAt"`
	MergedAt      *time.Time     `json:"mergedAt,omitempty"`
	FirstCommitAt *time.Time     `json:"firstCommitAt,omitempty"`
	BaseBranch    string         `json:"baseBranch"`
	CommitSHA     string         `gorm:"column:commit_sha;index:idx_prs_sha" json:"commitSha"`
	Payload       datatypes.JSON `json:"-"`
}

func (PullRequest) TableName() string { return "pull_requests" }

// UpsertPullRequest inserts or refreshes a pull request keyed by pr_id.
func UpsertPullRequest(gdb *gorm.DB, pr PullRequest) error {
	return gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pr_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"merged_at", "commit_sha", "pr_name", "first_commit_at", "payload"}),
	}).Create(&pr).Error
}

// FirstCommitTimesForDeployment returns the earliest-commit timestamps of
// every pull request linked to the deployment.
func FirstCommitTimesForDeployment(gdb *gorm.DB, deploymentID int64) ([]time.Time, error) {
	var rows []PullRequest
	err := gdb.
		Joins("JOIN deployment_prs ON deployment_prs.pr_id = pull_requests.pr_id").
		Where("deployment_prs.deployment_id = ?", deploymentID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	times := make([]time.Time, 0, len(rows))
	for _, pr := range rows {
		if pr.FirstCommitAt != nil {
			times = append(times, *pr.FirstCommitAt)
		} else {
			times = append(times, pr.CreatedAt)
		}
	}

	return times, nil
}

// RecentPullRequests lists the most recently merged pull requests.
func RecentPullRequests(gdb *gorm.DB, limit int) ([]PullRequest, error) {
	var prs []PullRequest
	err := gdb.Order("merged_at DESC").Limit(limit).Find(&prs).Error
	return prs, err
}
