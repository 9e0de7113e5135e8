package githubhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"strings"
	"time"

	"doratrack/internal/db"
	"doratrack/internal/dora"
	"doratrack/internal/env"
	"doratrack/internal/errmsg"
	"doratrack/internal/events"
	"doratrack/internal/linker"
	"doratrack/internal/models"
	"doratrack/internal/utils"

	"github.com/gofiber/fiber/v3"
	"gorm.io/datatypes"
)

// GitHub header keys and values that drive webhook validation.
const (
	signatureHeader       = "X-Hub-Signature-256"
	eventHeader           = "X-GitHub-Event"
	deliveryHeader        = "X-GitHub-Delivery"
	deploymentStatusEvent = "deployment_status"
	pullRequestEvent      = "pull_request"
	issuesEvent           = "issues"
	signaturePrefix       = "sha256="
)

type repositoryRef struct {
	ID int64 `json:"id"`
}

// deploymentStatusPayload models just the fields we rely on from a GitHub
// deployment_status hook.
type deploymentStatusPayload struct {
	Deployment struct {
		ID          int64  `json:"id"`
		Environment string `json:"environment"`
		SHA         string `json:"sha"`
	} `json:"deployment"`
	DeploymentStatus struct {
		State     string `json:"state"`
		CreatedAt string `json:"created_at"`
	} `json:"deployment_status"`
	WorkflowRun struct {
		Name string `json:"name"`
	} `json:"workflow_run"`
	Repository repositoryRef `json:"repository"`
}

// pullRequestPayload mirrors the subset of PR hook data we persist.
type pullRequestPayload struct {
	Action      string `json:"action"`
	PullRequest struct {
		ID             int64  `json:"id"`
		Title          string `json:"title"`
		Merged         bool   `json:"merged"`
		CreatedAt      string `json:"created_at"`
		MergedAt       string `json:"merged_at"`
		MergeCommitSHA string `json:"merge_commit_sha"`
		Base           struct {
			Ref string `json:"ref"`
		} `json:"base"`
	} `json:"pull_request"`
	Repository repositoryRef `json:"repository"`
}

// issuesPayload mirrors the subset of issue hook data we persist.
type issuesPayload struct {
	Action string `json:"action"`
	Issue  struct {
		ID        int64  `json:"id"`
		CreatedAt string `json:"created_at"`
		ClosedAt  string `json:"closed_at"`
		Labels    []struct {
			Name string `json:"name"`
		} `json:"labels"`
	} `json:"issue"`
	Repository repositoryRef `json:"repository"`
}

// issue actions that can change what we store about an incident.
var trackedIssueActions = map[string]bool{
	"opened":    true,
	"closed":    true,
	"reopened":  true,
	"labeled":   true,
	"unlabeled": true,
}

// eventsHandler validates and ingests GitHub delivery events into the store.
func eventsHandler(c fiber.Ctx) error {
	secret := strings.TrimSpace(env.GITHUB_WEBHOOK_SECRET)
	if secret == "" {
		return utils.StatusError(c, errmsg.GitHubSecretNotConfigured)
	}

	payload := c.Body()

	signature := strings.TrimSpace(c.Get(signatureHeader))
	if signature == "" {
		return utils.StatusError(c, errmsg.GitHubSignatureMissing)
	}

	// Reject requests whose HMAC cannot be verified with our shared secret.
	if !verifySignature(secret, signature, payload) {
		return utils.StatusError(c, errmsg.GitHubSignatureInvalid)
	}

	deliveryID := strings.TrimSpace(c.Get(deliveryHeader))
	if deliveryID == "" {
		return utils.StatusError(c, errmsg.GitHubDeliveryMissing)
	}

	eventType := strings.TrimSpace(c.Get(eventHeader))
	if eventType == "" {
		return utils.StatusError(c, errmsg.GitHubEventMissing)
	}

	switch eventType {
	case deploymentStatusEvent:
		return handleDeploymentStatus(c, deliveryID, payload)
	case pullRequestEvent:
		return handlePullRequest(c, deliveryID, payload)
	case issuesEvent:
		return handleIssues(c, deliveryID, payload)
	default:
		// Ignore other hooks silently; GitHub delivers them separately.
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func handleDeploymentStatus(c fiber.Ctx, deliveryID string, payload []byte) error {
	var hook deploymentStatusPayload
	if err := json.Unmarshal(payload, &hook); err != nil {
		return utils.StatusError(c, errmsg.GitHubInvalidPayload)
	}

	if hook.Deployment.ID == 0 || hook.Repository.ID == 0 {
		return utils.StatusError(c, errmsg.GitHubInvalidPayload)
	}

	classification := dora.Classification{
		Environment:  hook.Deployment.Environment,
		WorkflowName: hook.WorkflowRun.Name,
	}

	// Only successful production deployments participate in metrics;
	// everything else is dropped at the door.
	if hook.DeploymentStatus.State != "success" || !dora.IsProduction(classification) {
		return c.SendStatus(fiber.StatusNoContent)
	}

	createdAt, err := time.Parse(time.RFC3339, hook.DeploymentStatus.CreatedAt)
	if err != nil {
		log.Printf("deployment %d: unparseable status timestamp %q, using now", hook.Deployment.ID, hook.DeploymentStatus.CreatedAt)
		createdAt = time.Now().UTC()
	}

	dep := models.Deployment{
		RepoID:       hook.Repository.ID,
		DeploymentID: hook.Deployment.ID,
		Environment:  hook.Deployment.Environment,
		WorkflowName: hook.WorkflowRun.Name,
		Status:       hook.DeploymentStatus.State,
		CreatedAt:    createdAt,
		CommitSHA:    strings.TrimSpace(hook.Deployment.SHA),
		Payload:      datatypes.JSON(payload),
	}

	if err := models.UpsertDeployment(db.Conn, dep); err != nil {
		return utils.StatusError(c, errmsg.InternalServerError(err))
	}

	if _, err := linker.LinkCommit(db.Conn, dep.RepoID, dep.CommitSHA); err != nil {
		log.Printf("linking deployment %d by commit failed: %v", dep.DeploymentID, err)
	}

	if events.Em != nil {
		events.Em.DeploymentIngested(deliveryID, dep)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func handlePullRequest(c fiber.Ctx, deliveryID string, payload []byte) error {
	var hook pullRequestPayload
	if err := json.Unmarshal(payload, &hook); err != nil {
		return utils.StatusError(c, errmsg.GitHubInvalidPayload)
	}

	// Unmerged closes and every other action carry nothing we track.
	if hook.Action != "closed" || !hook.PullRequest.Merged {
		return c.SendStatus(fiber.StatusNoContent)
	}

	if hook.PullRequest.ID == 0 || hook.Repository.ID == 0 {
		return utils.StatusError(c, errmsg.GitHubInvalidPayload)
	}

	createdAt, err := time.Parse(time.RFC3339, hook.PullRequest.CreatedAt)
	if err != nil {
		return utils.StatusError(c, errmsg.GitHubInvalidPayload)
	}

	var mergedAt *time.Time
	if ts, err := time.Parse(time.RFC3339, hook.PullRequest.MergedAt); err == nil {
		mergedAt = &ts
	}

	// The hook carries no commit list, so the earliest-commit timestamp
	// falls back to the creation time; the bulk importer repairs it later.
	firstCommitAt := createdAt

	pr := models.PullRequest{
		RepoID:        hook.Repository.ID,
		PRID:          hook.PullRequest.ID,
		PRName:        strings.TrimSpace(hook.PullRequest.Title),
		CreatedAt:     createdAt,
		MergedAt:      mergedAt,
		FirstCommitAt: &firstCommitAt,
		BaseBranch:    hook.PullRequest.Base.Ref,
		CommitSHA:     strings.TrimSpace(hook.PullRequest.MergeCommitSHA),
		Payload:       datatypes.JSON(payload),
	}

	if err := models.UpsertPullRequest(db.Conn, pr); err != nil {
		return utils.StatusError(c, errmsg.InternalServerError(err))
	}

	if _, err := linker.LinkCommit(db.Conn, pr.RepoID, pr.CommitSHA); err != nil {
		log.Printf("linking PR %d by commit failed: %v", pr.PRID, err)
	}

	if events.Em != nil {
		events.Em.PullRequestIngested(deliveryID, pr)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func handleIssues(c fiber.Ctx, deliveryID string, payload []byte) error {
	var hook issuesPayload
	if err := json.Unmarshal(payload, &hook); err != nil {
		return utils.StatusError(c, errmsg.GitHubInvalidPayload)
	}

	if !trackedIssueActions[hook.Action] {
		return c.SendStatus(fiber.StatusNoContent)
	}

	if hook.Issue.ID == 0 || hook.Repository.ID == 0 {
		return utils.StatusError(c, errmsg.GitHubInvalidPayload)
	}

	createdAt, err := time.Parse(time.RFC3339, hook.Issue.CreatedAt)
	if err != nil {
		return utils.StatusError(c, errmsg.GitHubInvalidPayload)
	}

	var closedAt *time.Time
	if ts, err := time.Parse(time.RFC3339, hook.Issue.ClosedAt); err == nil {
		closedAt = &ts
	}

	labels := make([]string, 0, len(hook.Issue.Labels))
	for _, label := range hook.Issue.Labels {
		labels = append(labels, label.Name)
	}

	inc := models.Incident{
		RepoID:     hook.Repository.ID,
		IssueID:    hook.Issue.ID,
		CreatedAt:  createdAt,
		ClosedAt:   closedAt,
		IsIncident: dora.IsIncidentLabel(labels),
		Payload:    datatypes.JSON(payload),
	}

	if err := models.UpsertIncident(db.Conn, inc); err != nil {
		return utils.StatusError(c, errmsg.InternalServerError(err))
	}

	if err := linker.LinkIncident(db.Conn, inc.IssueID); err != nil {
		log.Printf("linking incident %d failed: %v", inc.IssueID, err)
	}

	if events.Em != nil {
		events.Em.IncidentIngested(deliveryID, inc)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

// verifySignature compares a payload MAC against the expected secret-derived value.
func verifySignature(secret, signature string, payload []byte) bool {
	normalized := strings.ToLower(signature)
	if !strings.HasPrefix(normalized, signaturePrefix) {
		return false
	}

	expected := computeSignature(secret, payload)
	return hmac.Equal([]byte(expected), []byte(normalized))
}

// computeSignature renders the GitHub sha256= prefixed HMAC in hex form.
func computeSignature(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)

	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
