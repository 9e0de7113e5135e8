package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DailyMetric is the materialized view of the four indicators for one
// repository and one UTC calendar day. Each aggregation pass recomputes and
// overwrites the whole row.
type DailyMetric struct {
	ID                  uint      `gorm:"primaryKey" json:"-"`
	RepoID              int64     `gorm:"not null;uniqueIndex:idx_metrics_repo_date,priority:1" json:"repoId"`
	MetricDate          time.Time `gorm:"not null;uniqueIndex:idx_metrics_repo_date,priority:2" json:"date"`
	DeploymentFrequency int       `gorm:"not null;default:0" json:"deploymentFrequency"`
	LeadTimeHours       float64   `gorm:"not null;default:0" json:"leadTimeHours"`
	ChangeFailureRate   float64   `gorm:"not null;default:0" json:"changeFailureRate"`
	MTTRHours           float64   `gorm:"column:mttr_hours;not null;default:0" json:"mttrHours"`
	LastUpdated         time.Time `gorm:"not null" json:"lastUpdated"`
}

func (DailyMetric) TableName() string { return "dora_metrics" }

// UpsertDailyMetric writes the metric row for (repo_id, metric_date),
// overwriting all four measures and refreshing last_updated when the row
// already exists.
func UpsertDailyMetric(gdb *gorm.DB, metric DailyMetric) error {
	metric.LastUpdated = time.Now().UTC()

	return gdb.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "repo_id"}, {Name: "metric_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"deployment_frequency", "lead_time_hours", "change_failure_rate", "mttr_hours", "last_updated",
		}),
	}).Create(&metric).Error
}

// GetDailyMetric fetches the metric row for one repository and date.
func GetDailyMetric(gdb *gorm.DB, repoID int64, metricDate time.Time) (*DailyMetric, error) {
	var metric DailyMetric
	err := gdb.Where("repo_id = ? AND metric_date = ?", repoID, metricDate).First(&metric).Error
	if err != nil {
		return nil, err
	}
	return &metric, nil
}

// LatestMetrics returns, for every repository, the metric row with the most
// recent metric date. The selection joins against the per-repo max date so
// the query stays flat as history grows.
func LatestMetrics(gdb *gorm.DB) ([]DailyMetric, error) {
	newest := gdb.Model(&DailyMetric{}).
		Select("repo_id, MAX(metric_date) AS metric_date").
		Group("repo_id")

	latest := make([]DailyMetric, 0)
	err := gdb.Model(&DailyMetric{}).
		Joins("JOIN (?) AS newest ON newest.repo_id = dora_metrics.repo_id AND newest.metric_date = dora_metrics.metric_date", newest).
		Order("dora_metrics.repo_id").
		Find(&latest).Error
	if err != nil {
		return nil, err
	}

	return latest, nil
}

// MetricsHistory returns the full daily history for one repository, oldest
// first.
func MetricsHistory(gdb *gorm.DB, repoID int64) ([]DailyMetric, error) {
	var history []DailyMetric
	err := gdb.Where("repo_id = ?", repoID).Order("metric_date").Find(&history).Error
	return history, err
}

// DeleteMetrics removes metric rows matching the optional repository and
// date-range filters and reports how many were dropped. Used by the reset
// path before a recompute.
func DeleteMetrics(gdb *gorm.DB, repoID *int64, start, end *time.Time) (int64, error) {
	query := gdb.Model(&DailyMetric{})
	if repoID != nil {
		query = query.Where("repo_id = ?", *repoID)
	}
	if start != nil {
		query = query.Where("metric_date >= ?", *start)
	}
	if end != nil {
		query = query.Where("metric_date <= ?", *end)
	}

	res := query.Where("1 = 1").Delete(&DailyMetric{})
	return res.RowsAffected, res.Error
}
