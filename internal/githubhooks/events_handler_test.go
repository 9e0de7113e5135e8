package githubhooks_test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"testing"

	"doratrack/internal"
	"doratrack/internal/db"
	"doratrack/internal/models"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/require"
)

const testSecret = "hook-secret"

var app *fiber.App

func TestMain(m *testing.M) {
	os.Setenv("GITHUB_WEBHOOK_SECRET", testSecret)
	os.Setenv("JWT_SECRET", "test-jwt-secret")

	// Point the env root at an empty directory so no local .env file can
	// shadow the variables set above.
	app = internal.SetupApp("test", os.TempDir(), "0.0.0-test")

	os.Exit(m.Run())
}

func sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func postHook(t *testing.T, event string, payload []byte, mutate func(*http.Request)) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, "/dora/github/events", bytes.NewReader(payload))
	require.NoError(t, err)

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hub-Signature-256", sign(payload))
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-GitHub-Delivery", "delivery-"+t.Name())

	if mutate != nil {
		mutate(req)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func deploymentStatusBody(repoID, deploymentID int64, environment, state, sha, createdAt string) []byte {
	return []byte(fmt.Sprintf(`{
		"deployment": {"id": %d, "environment": %q, "sha": %q},
		"deployment_status": {"state": %q, "created_at": %q},
		"workflow_run": {"name": "Deploy"},
		"repository": {"id": %d}
	}`, deploymentID, environment, sha, state, createdAt, repoID))
}

func TestPing(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "/dora/ping", nil)
	require.NoError(t, err)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRejectsMissingSignature(t *testing.T) {
	payload := deploymentStatusBody(10, 1, "production", "success", "abc", "2024-01-02T10:00:00Z")

	resp := postHook(t, "deployment_status", payload, func(req *http.Request) {
		req.Header.Del("X-Hub-Signature-256")
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRejectsInvalidSignature(t *testing.T) {
	payload := deploymentStatusBody(10, 1, "production", "success", "abc", "2024-01-02T10:00:00Z")

	resp := postHook(t, "deployment_status", payload, func(req *http.Request) {
		req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(make([]byte, 32)))
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRejectsMissingDelivery(t *testing.T) {
	payload := deploymentStatusBody(10, 1, "production", "success", "abc", "2024-01-02T10:00:00Z")

	resp := postHook(t, "deployment_status", payload, func(req *http.Request) {
		req.Header.Del("X-GitHub-Delivery")
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIgnoresUnknownEvents(t *testing.T) {
	resp := postHook(t, "watch", []byte(`{"action": "started"}`), nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestIngestsProductionDeployment(t *testing.T) {
	payload := deploymentStatusBody(20, 2001, "production", "success", "deadbeef", "2024-01-02T10:00:00Z")

	resp := postHook(t, "deployment_status", payload, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var dep models.Deployment
	require.NoError(t, db.Conn.Where("deployment_id = ?", 2001).First(&dep).Error)
	require.Equal(t, int64(20), dep.RepoID)
	require.Equal(t, "success", dep.Status)
	require.Equal(t, "deadbeef", dep.CommitSHA)
}

func TestDropsNonProductionDeployment(t *testing.T) {
	payload := []byte(`{
		"deployment": {"id": 2002, "environment": "staging", "sha": "abc"},
		"deployment_status": {"state": "success", "created_at": "2024-01-02T10:00:00Z"},
		"workflow_run": {"name": "ci"},
		"repository": {"id": 20}
	}`)

	resp := postHook(t, "deployment_status", payload, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	var count int64
	require.NoError(t, db.Conn.Model(&models.Deployment{}).Where("deployment_id = ?", 2002).Count(&count).Error)
	require.Zero(t, count)
}

func TestDropsFailedDeployment(t *testing.T) {
	payload := deploymentStatusBody(20, 2003, "production", "failure", "abc", "2024-01-02T10:00:00Z")

	resp := postHook(t, "deployment_status", payload, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestIngestsMergedPullRequestAndLinks(t *testing.T) {
	deployment := deploymentStatusBody(30, 3001, "production", "success", "feedcafe", "2024-01-02T10:00:00Z")
	resp := postHook(t, "deployment_status", deployment, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	pr := []byte(`{
		"action": "closed",
		"pull_request": {
			"id": 3101,
			"title": "add retry loop",
			"merged": true,
			"created_at": "2024-01-01T08:00:00Z",
			"merged_at": "2024-01-02T09:30:00Z",
			"merge_commit_sha": "feedcafe",
			"base": {"ref": "main"}
		},
		"repository": {"id": 30}
	}`)

	resp = postHook(t, "pull_request", pr, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var stored models.PullRequest
	require.NoError(t, db.Conn.Where("pr_id = ?", 3101).First(&stored).Error)
	require.Equal(t, "add retry loop", stored.PRName)
	require.NotNil(t, stored.MergedAt)

	var link models.DeploymentPR
	require.NoError(t, db.Conn.Where("deployment_id = ? AND pr_id = ?", 3001, 3101).First(&link).Error)
}

func TestDropsUnmergedPullRequestClose(t *testing.T) {
	pr := []byte(`{
		"action": "closed",
		"pull_request": {
			"id": 3102,
			"title": "abandoned",
			"merged": false,
			"created_at": "2024-01-01T08:00:00Z",
			"base": {"ref": "main"}
		},
		"repository": {"id": 30}
	}`)

	resp := postHook(t, "pull_request", pr, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	var count int64
	require.NoError(t, db.Conn.Model(&models.PullRequest{}).Where("pr_id = ?", 3102).Count(&count).Error)
	require.Zero(t, count)
}

func TestIngestsIncidentIssueAndLinks(t *testing.T) {
	deployment := deploymentStatusBody(40, 4001, "production", "success", "cafe01", "2024-01-02T10:00:00Z")
	resp := postHook(t, "deployment_status", deployment, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	issue := []byte(`{
		"action": "labeled",
		"issue": {
			"id": 4101,
			"created_at": "2024-01-02T11:00:00Z",
			"closed_at": "",
			"labels": [{"name": "incident"}, {"name": "bug"}]
		},
		"repository": {"id": 40}
	}`)

	resp = postHook(t, "issues", issue, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var incident models.Incident
	require.NoError(t, db.Conn.Where("issue_id = ?", 4101).First(&incident).Error)
	require.True(t, incident.IsIncident)
	require.NotNil(t, incident.DeploymentID)
	require.Equal(t, int64(4001), *incident.DeploymentID)
}

func TestStoresPlainIssueWithoutIncidentFlag(t *testing.T) {
	issue := []byte(`{
		"action": "opened",
		"issue": {
			"id": 4102,
			"created_at": "2024-01-02T11:00:00Z",
			"closed_at": "",
			"labels": [{"name": "documentation"}]
		},
		"repository": {"id": 40}
	}`)

	resp := postHook(t, "issues", issue, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var incident models.Incident
	require.NoError(t, db.Conn.Where("issue_id = ?", 4102).First(&incident).Error)
	require.False(t, incident.IsIncident)
}
