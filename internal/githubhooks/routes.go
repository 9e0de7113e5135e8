// Package githubhooks exposes handlers for GitHub webhook callbacks.
package githubhooks

import "github.com/gofiber/fiber/v3"

// Routes wires the GitHub webhook endpoint under /dora/github.
func Routes(app fiber.Router) {
	group := app.Group("/github")

	// POST /dora/github/events ingests deployment, PR, and issue hooks.
	group.Post("/events", eventsHandler)
}
