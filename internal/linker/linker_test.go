package linker

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"doratrack/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, gdb.AutoMigrate(
		&models.Deployment{},
		&models.PullRequest{},
		&models.Incident{},
		&models.DeploymentPR{},
	))

	return gdb
}

func seedDeployment(t *testing.T, gdb *gorm.DB, repoID, depID int64, sha string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, models.UpsertDeployment(gdb, models.Deployment{
		RepoID:       repoID,
		DeploymentID: depID,
		Environment:  "production",
		Status:       "success",
		CreatedAt:    createdAt,
		CommitSHA:    sha,
	}))
}

func seedPR(t *testing.T, gdb *gorm.DB, repoID, prID int64, sha string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, models.UpsertPullRequest(gdb, models.PullRequest{
		RepoID:    repoID,
		PRID:      prID,
		CreatedAt: createdAt,
		CommitSHA: sha,
	}))
}

func seedIncident(t *testing.T, gdb *gorm.DB, repoID, issueID int64, createdAt time.Time) {
	t.Helper()
	require.NoError(t, models.UpsertIncident(gdb, models.Incident{
		RepoID:     repoID,
		IssueID:    issueID,
		CreatedAt:  createdAt,
		IsIncident: true,
	}))
}

var linkBase = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func TestLinkPullRequestsMatchesCommitSHA(t *testing.T) {
	gdb := newTestDB(t)

	seedDeployment(t, gdb, 1, 100, "abc", linkBase)
	seedDeployment(t, gdb, 1, 101, "nomatch", linkBase)
	seedPR(t, gdb, 1, 200, "abc", linkBase.Add(-time.Hour))

	created, err := LinkPullRequests(gdb)
	require.NoError(t, err)
	require.Equal(t, int64(1), created)

	var links []models.DeploymentPR
	require.NoError(t, gdb.Find(&links).Error)
	require.Len(t, links, 1)
	require.Equal(t, int64(100), links[0].DeploymentID)
	require.Equal(t, int64(200), links[0].PRID)
}

func TestLinkPullRequestsIsIdempotent(t *testing.T) {
	gdb := newTestDB(t)

	seedDeployment(t, gdb, 1, 100, "abc", linkBase)
	seedPR(t, gdb, 1, 200, "abc", linkBase.Add(-time.Hour))

	_, err := LinkPullRequests(gdb)
	require.NoError(t, err)

	created, err := LinkPullRequests(gdb)
	require.NoError(t, err)
	require.Zero(t, created)

	var count int64
	require.NoError(t, gdb.Model(&models.DeploymentPR{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestLinkPullRequestsIgnoresOtherRepos(t *testing.T) {
	gdb := newTestDB(t)

	// Same SHA in a different repository must not link.
	seedDeployment(t, gdb, 1, 100, "abc", linkBase)
	seedPR(t, gdb, 2, 200, "abc", linkBase)

	created, err := LinkPullRequests(gdb)
	require.NoError(t, err)
	require.Zero(t, created)
}

func TestLinkCommitLinksSingleSHA(t *testing.T) {
	gdb := newTestDB(t)

	seedDeployment(t, gdb, 1, 100, "abc", linkBase)
	seedDeployment(t, gdb, 1, 101, "def", linkBase)
	seedPR(t, gdb, 1, 200, "abc", linkBase)
	seedPR(t, gdb, 1, 201, "def", linkBase)

	created, err := LinkCommit(gdb, 1, "abc")
	require.NoError(t, err)
	require.Equal(t, int64(1), created)

	var links []models.DeploymentPR
	require.NoError(t, gdb.Find(&links).Error)
	require.Len(t, links, 1)
	require.Equal(t, int64(200), links[0].PRID)
}

func TestLinkIncidentsPicksNearestDeployment(t *testing.T) {
	gdb := newTestDB(t)

	seedDeployment(t, gdb, 1, 100, "a", linkBase.Add(-10*time.Hour))
	seedDeployment(t, gdb, 1, 101, "b", linkBase.Add(-1*time.Hour))
	seedDeployment(t, gdb, 1, 102, "c", linkBase.Add(5*time.Hour))
	seedIncident(t, gdb, 1, 500, linkBase)

	linked, err := LinkIncidents(gdb)
	require.NoError(t, err)
	require.Equal(t, int64(1), linked)

	var incident models.Incident
	require.NoError(t, gdb.Where("issue_id = ?", 500).First(&incident).Error)
	require.NotNil(t, incident.DeploymentID)
	require.Equal(t, int64(101), *incident.DeploymentID)
}

func TestLinkIncidentsTieBreaksOnLowestDeploymentID(t *testing.T) {
	gdb := newTestDB(t)

	// Both deployments sit exactly two hours from the incident.
	seedDeployment(t, gdb, 1, 102, "b", linkBase.Add(2*time.Hour))
	seedDeployment(t, gdb, 1, 101, "a", linkBase.Add(-2*time.Hour))
	seedIncident(t, gdb, 1, 500, linkBase)

	_, err := LinkIncidents(gdb)
	require.NoError(t, err)

	var incident models.Incident
	require.NoError(t, gdb.Where("issue_id = ?", 500).First(&incident).Error)
	require.NotNil(t, incident.DeploymentID)
	require.Equal(t, int64(101), *incident.DeploymentID)
}

func TestLinkIncidentsRespectsWindow(t *testing.T) {
	gdb := newTestDB(t)

	seedDeployment(t, gdb, 1, 100, "a", linkBase.Add(-25*time.Hour))
	seedIncident(t, gdb, 1, 500, linkBase)

	linked, err := LinkIncidents(gdb)
	require.NoError(t, err)
	require.Zero(t, linked)

	var incident models.Incident
	require.NoError(t, gdb.Where("issue_id = ?", 500).First(&incident).Error)
	require.Nil(t, incident.DeploymentID)
}

func TestLinkIncidentsNeverRelinks(t *testing.T) {
	gdb := newTestDB(t)

	seedDeployment(t, gdb, 1, 100, "a", linkBase.Add(-20*time.Hour))
	seedIncident(t, gdb, 1, 500, linkBase)

	_, err := LinkIncidents(gdb)
	require.NoError(t, err)

	// A closer deployment arriving later must not steal the link.
	seedDeployment(t, gdb, 1, 101, "b", linkBase)

	linked, err := LinkIncidents(gdb)
	require.NoError(t, err)
	require.Zero(t, linked)

	var incident models.Incident
	require.NoError(t, gdb.Where("issue_id = ?", 500).First(&incident).Error)
	require.Equal(t, int64(100), *incident.DeploymentID)
}

func TestFillMissingFirstCommit(t *testing.T) {
	gdb := newTestDB(t)

	require.NoError(t, gdb.Create(&models.PullRequest{
		RepoID:    1,
		PRID:      200,
		CreatedAt: linkBase,
	}).Error)

	repaired, err := FillMissingFirstCommit(gdb)
	require.NoError(t, err)
	require.Equal(t, int64(1), repaired)

	var pr models.PullRequest
	require.NoError(t, gdb.Where("pr_id = ?", 200).First(&pr).Error)
	require.NotNil(t, pr.FirstCommitAt)
	require.True(t, pr.FirstCommitAt.Equal(linkBase))
}
