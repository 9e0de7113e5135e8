// Command backfill (re)populates the metric store from the GitHub API and
// recomputes the daily metrics. Meant to be run once at setup and after any
// gap in webhook delivery; every step is idempotent.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"doratrack/internal/aggregator"
	"doratrack/internal/backfill"
	"doratrack/internal/db"
	"doratrack/internal/env"
	"doratrack/internal/grafana"
	"doratrack/internal/linker"
	"doratrack/internal/models"
)

func main() {
	deployment := flag.String("deployment", "dev", "deployment profile (dev|test|prod)")
	envRoot := flag.String("env-root", "", "directory containing environment files")
	appVersion := flag.String("app-version", "", "application version override")
	startDate := flag.String("start-date", "", "recompute metrics from this date (YYYY-MM-DD)")
	repoID := flag.Int64("repo-id", 0, "limit the metric reset to one repository")
	skipImport := flag.Bool("skip-import", false, "skip the GitHub import, only relink and recompute")
	skipMetrics := flag.Bool("skip-metrics", false, "skip the metric recompute")
	reset := flag.Bool("reset", false, "delete matching metric rows before recomputing")

	flag.Parse()

	env.Init(*envRoot, *appVersion)

	deploy := strings.TrimSpace(*deployment)
	if err := db.InitDB(deploy); err != nil {
		log.Fatalf("could not connect to the metric store: %v", err)
	}

	var start *time.Time
	if *startDate != "" {
		parsed, err := time.Parse("2006-01-02", *startDate)
		if err != nil {
			log.Fatalf("invalid --start-date %q: %v", *startDate, err)
		}
		start = &parsed
	}

	if *skipImport {
		relink()
	} else {
		runImport()
	}

	if *reset {
		resetMetrics(repoID, start)
	}

	if !*skipMetrics {
		batch, err := aggregator.ProcessAll(db.Conn, start)
		if err != nil {
			log.Fatalf("metric recompute failed: %v", err)
		}
		fmt.Printf("metrics: %d units processed, %d failed (%d repos, %d days)\n",
			batch.Processed, batch.Failed, batch.Repos, batch.Days)

		grafana.CheckDashboard()
	}
}

func runImport() {
	if env.GITHUB_TOKEN == "" || env.GITHUB_REPO == "" {
		log.Fatal("GITHUB_TOKEN and GITHUB_REPO must be configured (or pass --skip-import)")
	}

	importer, err := backfill.NewImporter(db.Ctx, env.GITHUB_TOKEN, env.GITHUB_REPO)
	if err != nil {
		log.Fatalf("importer setup failed: %v", err)
	}

	summary, err := importer.Run(db.Ctx, db.Conn)
	if err != nil {
		log.Fatalf("import failed: %v", err)
	}

	fmt.Printf("imported repo %d: %d PRs, %d deployments, %d issues (%d incidents)\n",
		summary.RepoID, summary.PullRequests, summary.Deployments, summary.Issues, summary.Incidents)
	fmt.Printf("links: %d PR links, %d incident links\n", summary.PRLinks, summary.IncidentLinks)
}

func relink() {
	prLinks, err := linker.LinkPullRequests(db.Conn)
	if err != nil {
		log.Fatalf("PR linking failed: %v", err)
	}

	incidentLinks, err := linker.LinkIncidents(db.Conn)
	if err != nil {
		log.Fatalf("incident linking failed: %v", err)
	}

	repaired, err := linker.FillMissingFirstCommit(db.Conn)
	if err != nil {
		log.Fatalf("first-commit repair failed: %v", err)
	}

	fmt.Printf("links: %d PR links, %d incident links, %d first-commit repairs\n",
		prLinks, incidentLinks, repaired)
}

func resetMetrics(repoID *int64, start *time.Time) {
	var repoFilter *int64
	if *repoID != 0 {
		repoFilter = repoID
	}

	deleted, err := models.DeleteMetrics(db.Conn, repoFilter, start, nil)
	if err != nil {
		log.Fatalf("metric reset failed: %v", err)
	}

	fmt.Printf("deleted %d metric rows\n", deleted)
}
