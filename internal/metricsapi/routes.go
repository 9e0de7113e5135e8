// Package metricsapi serves the read-only projections of the metric store
// and the operator-triggered recompute and backfill entry points.
package metricsapi

import (
	"doratrack/internal/models"
	"doratrack/internal/ws"

	"github.com/gofiber/fiber/v3"
)

func Routes(app fiber.Router) {
	metrics := app.Group("/metrics")
	metrics.Get("/", latestMetricsHandler)
	metrics.Get("/history/:repoID", historyHandler)

	app.Get("/logs", logsHandler)
	app.Get("/ws/updates", ws.UpdatesHandler)

	app.Post("/calculate", calculateHandler, models.OperatorMiddleware)
	app.Post("/backfill", backfillHandler, models.OperatorMiddleware)
}
