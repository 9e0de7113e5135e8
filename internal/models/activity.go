package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// EarliestEventTime returns the oldest creation timestamp across
// deployments, pull requests, and incidents, or nil when all three tables
// are empty. It bounds how far back a batch recompute can reach.
//
// Each table is probed with a typed oldest-row query rather than a bare
// MIN aggregate, so timestamp decoding goes through the entity schema and
// behaves the same on Postgres and SQLite.
func EarliestEventTime(gdb *gorm.DB) (*time.Time, error) {
	var earliest *time.Time

	var dep Deployment
	if err := gdb.Order("created_at").First(&dep).Error; err == nil {
		earliest = olderOf(earliest, dep.CreatedAt)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var pr PullRequest
	if err := gdb.Order("created_at").First(&pr).Error; err == nil {
		earliest = olderOf(earliest, pr.CreatedAt)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var inc Incident
	if err := gdb.Order("created_at").First(&inc).Error; err == nil {
		earliest = olderOf(earliest, inc.CreatedAt)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return earliest, nil
}

func olderOf(current *time.Time, candidate time.Time) *time.Time {
	if current == nil || candidate.Before(*current) {
		return &candidate
	}
	return current
}

// ActiveRepoIDs returns every repository that has at least one stored
// deployment, pull request, or incident.
func ActiveRepoIDs(gdb *gorm.DB) ([]int64, error) {
	seen := make(map[int64]bool)
	var repos []int64

	for _, table := range []string{"deployments", "pull_requests", "incidents"} {
		var ids []int64
		err := gdb.Table(table).Distinct("repo_id").Order("repo_id").Pluck("repo_id", &ids).Error
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				repos = append(repos, id)
			}
		}
	}

	return repos, nil
}
