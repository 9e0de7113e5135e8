// Package backfill imports historical pull requests, deployments, and
// issues from the GitHub REST API, then runs the linking passes. It is the
// bulk counterpart of the webhook receiver: both paths write the same
// canonical records through the same upserts, so running them in any order
// or repeatedly is safe.
package backfill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"doratrack/internal/dora"
	"doratrack/internal/linker"
	"doratrack/internal/models"

	"github.com/google/go-github/v39/github"
	"golang.org/x/oauth2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const perPage = 100

// Importer pages through one repository's history.
type Importer struct {
	client *github.Client
	owner  string
	repo   string
}

// Summary reports how many records and links an import produced.
type Summary struct {
	RepoID        int64 `json:"repoId"`
	PullRequests  int   `json:"pullRequests"`
	Deployments   int   `json:"deployments"`
	Issues        int   `json:"issues"`
	Incidents     int   `json:"incidents"`
	PRLinks       int64 `json:"prLinks"`
	IncidentLinks int64 `json:"incidentLinks"`
}

// NewImporter builds a token-authenticated importer for "owner/repo".
func NewImporter(ctx context.Context, token, repoFullName string) (*Importer, error) {
	parts := strings.SplitN(strings.TrimSpace(repoFullName), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("repository %q must be owner/name", repoFullName)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)

	return &Importer{
		client: github.NewClient(tc),
		owner:  parts[0],
		repo:   parts[1],
	}, nil
}

// Run imports the repository history and repairs the associations.
func (im *Importer) Run(ctx context.Context, gdb *gorm.DB) (Summary, error) {
	var summary Summary

	repo, _, err := im.client.Repositories.Get(ctx, im.owner, im.repo)
	if err != nil {
		return summary, fmt.Errorf("fetching repository %s/%s: %w", im.owner, im.repo, err)
	}
	if repo.GetID() == 0 {
		return summary, errors.New("repository has no id")
	}
	summary.RepoID = repo.GetID()

	if err := im.importPullRequests(ctx, gdb, summary.RepoID, &summary); err != nil {
		return summary, err
	}
	if err := im.importDeployments(ctx, gdb, summary.RepoID, &summary); err != nil {
		return summary, err
	}
	if err := im.importIssues(ctx, gdb, summary.RepoID, &summary); err != nil {
		return summary, err
	}

	if summary.PRLinks, err = linker.LinkPullRequests(gdb); err != nil {
		return summary, err
	}
	if summary.IncidentLinks, err = linker.LinkIncidents(gdb); err != nil {
		return summary, err
	}
	if _, err = linker.FillMissingFirstCommit(gdb); err != nil {
		return summary, err
	}

	return summary, nil
}

func (im *Importer) importPullRequests(ctx context.Context, gdb *gorm.DB, repoID int64, summary *Summary) error {
	opts := &github.PullRequestListOptions{
		State:       "closed",
		Sort:        "updated",
		Direction:   "asc",
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	for {
		prs, resp, err := im.client.PullRequests.List(ctx, im.owner, im.repo, opts)
		if err != nil {
			return fmt.Errorf("listing pull requests: %w", err)
		}

		for _, pr := range prs {
			if pr.MergedAt == nil {
				continue
			}

			record, err := im.convertPullRequest(ctx, repoID, pr)
			if err != nil {
				return err
			}
			if err := models.UpsertPullRequest(gdb, record); err != nil {
				return err
			}
			summary.PullRequests++
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return nil
}

func (im *Importer) convertPullRequest(ctx context.Context, repoID int64, pr *github.PullRequest) (models.PullRequest, error) {
	createdAt := pr.GetCreatedAt()
	mergedAt := pr.MergedAt

	// Earliest commit in the PR; a missing or empty commit list falls back
	// to the creation time.
	firstCommitAt := createdAt
	commits, _, err := im.client.PullRequests.ListCommits(ctx, im.owner, im.repo, pr.GetNumber(),
		&github.ListOptions{PerPage: perPage})
	if err != nil || len(commits) == 0 {
		log.Printf("PR #%d: commit list unavailable, defaulting first_commit_at to created_at", pr.GetNumber())
	} else {
		for _, commit := range commits {
			date := commit.GetCommit().GetAuthor().GetDate()
			if !date.IsZero() && date.Before(firstCommitAt) {
				firstCommitAt = date
			}
		}
	}

	payload, _ := json.Marshal(map[string]any{"pull_request": pr})

	return models.PullRequest{
		RepoID:        repoID,
		PRID:          pr.GetID(),
		PRName:        pr.GetTitle(),
		CreatedAt:     createdAt,
		MergedAt:      mergedAt,
		FirstCommitAt: &firstCommitAt,
		BaseBranch:    pr.GetBase().GetRef(),
		CommitSHA:     pr.GetMergeCommitSHA(),
		Payload:       datatypes.JSON(payload),
	}, nil
}

func (im *Importer) importDeployments(ctx context.Context, gdb *gorm.DB, repoID int64, summary *Summary) error {
	opts := &github.DeploymentsListOptions{
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	for {
		deployments, resp, err := im.client.Repositories.ListDeployments(ctx, im.owner, im.repo, opts)
		if err != nil {
			return fmt.Errorf("listing deployments: %w", err)
		}

		for _, dep := range deployments {
			success, err := im.firstSuccessStatus(ctx, dep.GetID())
			if err != nil {
				return err
			}
			if success == nil {
				continue
			}

			classification := dora.Classification{Environment: dep.GetEnvironment()}
			if !dora.IsProduction(classification) {
				continue
			}

			payload, _ := json.Marshal(map[string]any{
				"deployment":        dep,
				"deployment_status": success,
			})

			record := models.Deployment{
				RepoID:       repoID,
				DeploymentID: dep.GetID(),
				Environment:  dep.GetEnvironment(),
				Status:       success.GetState(),
				CreatedAt:    success.GetCreatedAt().Time,
				CommitSHA:    dep.GetSHA(),
				Payload:      datatypes.JSON(payload),
			}
			if err := models.UpsertDeployment(gdb, record); err != nil {
				return err
			}
			summary.Deployments++
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return nil
}

func (im *Importer) firstSuccessStatus(ctx context.Context, deploymentID int64) (*github.DeploymentStatus, error) {
	statuses, _, err := im.client.Repositories.ListDeploymentStatuses(ctx, im.owner, im.repo, deploymentID,
		&github.ListOptions{PerPage: perPage})
	if err != nil {
		return nil, fmt.Errorf("listing statuses for deployment %d: %w", deploymentID, err)
	}

	for _, status := range statuses {
		if status.GetState() == "success" {
			return status, nil
		}
	}

	return nil, nil
}

func (im *Importer) importIssues(ctx context.Context, gdb *gorm.DB, repoID int64, summary *Summary) error {
	opts := &github.IssueListByRepoOptions{
		State:       "all",
		Sort:        "updated",
		Direction:   "asc",
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	for {
		issues, resp, err := im.client.Issues.ListByRepo(ctx, im.owner, im.repo, opts)
		if err != nil {
			return fmt.Errorf("listing issues: %w", err)
		}

		for _, issue := range issues {
			// The issues listing includes PRs; those arrive via the PR path.
			if issue.IsPullRequest() {
				continue
			}

			labels := make([]string, 0, len(issue.Labels))
			for _, label := range issue.Labels {
				labels = append(labels, label.GetName())
			}

			payload, _ := json.Marshal(map[string]any{"issue": issue})

			record := models.Incident{
				RepoID:     repoID,
				IssueID:    issue.GetID(),
				CreatedAt:  issue.GetCreatedAt(),
				ClosedAt:   issue.ClosedAt,
				IsIncident: dora.IsIncidentLabel(labels),
				Payload:    datatypes.JSON(payload),
			}
			if err := models.UpsertIncident(gdb, record); err != nil {
				return err
			}
			summary.Issues++
			if record.IsIncident {
				summary.Incidents++
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return nil
}
