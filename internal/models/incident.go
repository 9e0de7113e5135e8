package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Incident is an issue flagged by the incident label vocabulary.
// DeploymentID points at the deployment most plausibly responsible and is
// filled in by the linker; nil means no candidate has been found yet.
type Incident struct {
	ID           uint           `gorm:"primaryKey" json:"-"`
	RepoID       int64          `gorm:"not null;index:idx_incidents_repo" json:"repoId"`
	IssueID      int64          `gorm:"not null;uniqueIndex" json:"issueId"`
	CreatedAt    time.Time      `gorm:"not null" json:"createdAt"`
	ClosedAt     *time.Time     `json:"closedAt,omitempty"`
	IsIncident   bool           `gorm:"not null;default:false" json:"isIncident"`
	DeploymentID *int64         `gorm:"index" json:"deploymentId,omitempty"`
	Payload      datatypes.JSON `json:"-"`

	Deployment *Deployment `gorm:"foreignKey:DeploymentID;references:DeploymentID;constraint:OnDelete:SET NULL" json:"-"`
}

func (Incident) TableName() string { return "incidents" }

// UpsertIncident inserts or refreshes an incident keyed by issue_id.
// The deployment reference is not part of the update set so a re-ingested
// issue never clears an existing link.
func UpsertIncident(gdb *gorm.DB, inc Incident) error {
	return gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "issue_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"closed_at", "is_incident", "payload"}),
	}).Create(&inc).Error
}

// IncidentsClosedInWindow returns real incidents whose resolution time falls
// inside [start, end). Restore time is attributed to the day an incident was
// closed, not the day it was opened.
func IncidentsClosedInWindow(gdb *gorm.DB, repoID int64, start, end time.Time) ([]Incident, error) {
	var incidents []Incident
	err := gdb.
		Where("repo_id = ? AND is_incident = ? AND closed_at IS NOT NULL AND closed_at >= ? AND closed_at < ?",
			repoID, true, start, end).
		Find(&incidents).Error
	return incidents, err
}

// UnlinkedIncidents returns incidents that still lack a deployment reference.
func UnlinkedIncidents(gdb *gorm.DB) ([]Incident, error) {
	var incidents []Incident
	err := gdb.Where("deployment_id IS NULL").Order("issue_id").Find(&incidents).Error
	return incidents, err
}

// DeploymentIDsWithIncidents returns the set of deployment IDs, drawn from
// the given candidates, that have at least one linked real incident.
func DeploymentIDsWithIncidents(gdb *gorm.DB, repoID int64, candidates []int64) (map[int64]bool, error) {
	failed := make(map[int64]bool)
	if len(candidates) == 0 {
		return failed, nil
	}

	var ids []int64
	err := gdb.Model(&Incident{}).
		Distinct("deployment_id").
		Where("repo_id = ? AND is_incident = ? AND deployment_id IN ?", repoID, true, candidates).
		Pluck("deployment_id", &ids).Error
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		failed[id] = true
	}

	return failed, nil
}

// RecentIncidents lists the newest incidents across all repositories.
func RecentIncidents(gdb *gorm.DB, limit int) ([]Incident, error) {
	var incidents []Incident
	err := gdb.Order("created_at DESC").Limit(limit).Find(&incidents).Error
	return incidents, err
}
