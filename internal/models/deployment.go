package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Deployment is one provider deployment, stored once per
// (repo_id, deployment_id). CreatedAt is the time the terminal status was
// recorded and is never overwritten on re-ingestion.
type Deployment struct {
	ID           uint           `gorm:"primaryKey" json:"-"`
	RepoID       int64          `gorm:"not null;index:idx_deployments_repo" json:"repoId"`
	DeploymentID int64          `gorm:"not null;uniqueIndex" json:"deploymentId"`
	Environment  string         `json:"environment"`
	WorkflowName string         `json:"workflowName"`
	Status       string         `json:"status"`
	CreatedAt    time.Time      `gorm:"not null;index" json:"createdAt"`
	CommitSHA    string         `gorm:"column:commit_sha;index:idx_deployments_sha" json:"commitSha"`
	Payload      datatypes.JSON `json:"-"`
}

func (Deployment) TableName() string { return "deployments" }

// UpsertDeployment inserts the deployment or, when the deployment_id is
// already stored, refreshes the mutable fields. The creation timestamp is
// deliberately excluded from the update set.
func UpsertDeployment(gdb *gorm.DB, dep Deployment) error {
	return gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "deployment_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"environment", "workflow_name", "status", "payload"}),
	}).Create(&dep).Error
}

// SuccessfulDeploymentsInWindow returns all deployments for the repository
// with status success and a creation timestamp inside [start, end).
func SuccessfulDeploymentsInWindow(gdb *gorm.DB, repoID int64, start, end time.Time) ([]Deployment, error) {
	var deps []Deployment
	err := gdb.
		Where("repo_id = ? AND status = ? AND created_at >= ? AND created_at < ?",
			repoID, "success", start, end).
		Order("deployment_id").
		Find(&deps).Error
	return deps, err
}

// DeploymentsNear returns deployments for the repository created within the
// symmetric window around ts, ordered by deployment_id for stable tie breaks.
func DeploymentsNear(gdb *gorm.DB, repoID int64, ts time.Time, window time.Duration) ([]Deployment, error) {
	var deps []Deployment
	err := gdb.
		Where("repo_id = ? AND created_at >= ? AND created_at <= ?",
			repoID, ts.Add(-window), ts.Add(window)).
		Order("deployment_id").
		Find(&deps).Error
	return deps, err
}

// RecentDeployments lists the newest deployments across all repositories.
func RecentDeployments(gdb *gorm.DB, limit int) ([]Deployment, error) {
	var deps []Deployment
	err := gdb.Order("created_at DESC").Limit(limit).Find(&deps).Error
	return deps, err
}
