package metricsapi

import (
	"encoding/json"
	"strconv"
	"time"

	"doratrack/internal/db"
	"doratrack/internal/errmsg"
	"doratrack/internal/models"
	"doratrack/internal/utils"

	"github.com/gofiber/fiber/v3"
)

// latestMetricsCacheKey holds the serialized latest-per-repo projection.
// Short TTL; also invalidated after every metrics run.
const (
	latestMetricsCacheKey = "dora:metrics:latest"
	latestMetricsCacheTTL = 5 * time.Minute
)

func latestMetricsHandler(c fiber.Ctx) error {
	if db.RDB != nil {
		if cached, err := db.CacheGetBytes(latestMetricsCacheKey); err == nil {
			c.Set("Content-Type", "application/json")
			return c.Send(cached)
		}
	}

	latest, err := models.LatestMetrics(db.Conn)
	if err != nil {
		return utils.StatusError(c, errmsg.InternalServerError(err))
	}

	body, err := json.Marshal(fiber.Map{"metrics": latest})
	if err != nil {
		return utils.StatusError(c, errmsg.InternalServerError(err))
	}

	if db.RDB != nil {
		_ = db.CacheSetBytesTTL(latestMetricsCacheKey, body, latestMetricsCacheTTL)
	}

	c.Set("Content-Type", "application/json")
	return c.Send(body)
}

func historyHandler(c fiber.Ctx) error {
	repoID, err := strconv.ParseInt(c.Params("repoID"), 10, 64)
	if err != nil {
		return utils.StatusError(c, errmsg.MetricsInvalidRepo)
	}

	history, err := models.MetricsHistory(db.Conn, repoID)
	if err != nil {
		return utils.StatusError(c, errmsg.InternalServerError(err))
	}

	return c.JSON(fiber.Map{
		"repoId":  repoID,
		"metrics": history,
	})
}

const recentLimit = 20

func logsHandler(c fiber.Ctx) error {
	deployments, err := models.RecentDeployments(db.Conn, recentLimit)
	if err != nil {
		return utils.StatusError(c, errmsg.InternalServerError(err))
	}

	prs, err := models.RecentPullRequests(db.Conn, recentLimit)
	if err != nil {
		return utils.StatusError(c, errmsg.InternalServerError(err))
	}

	incidents, err := models.RecentIncidents(db.Conn, recentLimit)
	if err != nil {
		return utils.StatusError(c, errmsg.InternalServerError(err))
	}

	return c.JSON(fiber.Map{
		"deployments":   deployments,
		"pull_requests": prs,
		"incidents":     incidents,
	})
}
