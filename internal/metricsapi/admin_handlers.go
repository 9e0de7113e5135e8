package metricsapi

import (
	"encoding/json"
	"strings"
	"time"

	"doratrack/internal/aggregator"
	"doratrack/internal/backfill"
	"doratrack/internal/db"
	"doratrack/internal/env"
	"doratrack/internal/errmsg"
	"doratrack/internal/events"
	"doratrack/internal/grafana"
	"doratrack/internal/models"
	"doratrack/internal/utils"
	"doratrack/internal/ws"

	"github.com/gofiber/fiber/v3"
)

// calculateRequest optionally narrows a recompute to a start date.
type calculateRequest struct {
	StartDate string `json:"startDate"`
}

func calculateHandler(c fiber.Ctx) error {
	var start *time.Time
	if len(c.Body()) > 0 {
		var req calculateRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return utils.StatusError(c, errmsg.MetricsInvalidDate)
		}
		if strings.TrimSpace(req.StartDate) != "" {
			parsed, err := time.Parse("2006-01-02", req.StartDate)
			if err != nil {
				return utils.StatusError(c, errmsg.MetricsInvalidDate)
			}
			start = &parsed
		}
	}

	batch, err := aggregator.ProcessAll(db.Conn, start)
	if err != nil {
		return utils.StatusError(c, errmsg.InternalServerError(err))
	}

	if db.RDB != nil {
		_ = db.CacheDel(latestMetricsCacheKey)
	}

	var operator models.Operator
	utils.GetLocals(c, "operator", &operator)
	if events.Em != nil {
		events.Em.MetricsRunCompleted(operator.Username, batch.Processed, batch.Failed)
	}

	grafana.CheckDashboard()
	ws.Broadcast("metrics.updated", map[string]any{
		"processed": batch.Processed,
		"failed":    batch.Failed,
	})

	return c.JSON(batch)
}

func backfillHandler(c fiber.Ctx) error {
	if env.GITHUB_TOKEN == "" || env.GITHUB_REPO == "" {
		return utils.StatusError(c, errmsg.BackfillNotConfigured)
	}

	importer, err := backfill.NewImporter(db.Ctx, env.GITHUB_TOKEN, env.GITHUB_REPO)
	if err != nil {
		return utils.StatusError(c, errmsg.InternalServerError(err))
	}

	summary, err := importer.Run(db.Ctx, db.Conn)
	if err != nil {
		return utils.StatusError(c, errmsg.InternalServerError(err))
	}

	if events.Em != nil {
		events.Em.BackfillCompleted(env.GITHUB_REPO, summary.PullRequests, summary.Deployments, summary.Issues)
	}

	return c.JSON(summary)
}
