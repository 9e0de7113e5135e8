package internal

import (
	"log"
	"strings"

	"doratrack/internal/db"
	"doratrack/internal/env"
	"doratrack/internal/events"
	"doratrack/internal/githubhooks"
	"doratrack/internal/metricsapi"
	"doratrack/internal/operators"

	"github.com/gofiber/fiber/v3"
)

func SetupApp(deployment string, envRoot string, appVersion string) *fiber.App {
	app := fiber.New()

	env.Init(envRoot, appVersion)

	deploy := strings.TrimSpace(deployment)

	if err := db.InitDB(deploy); err != nil {
		log.Fatalf("Could not connect to the metric store: %v", err)
		return nil
	}

	if deploy != "test" {
		// The cache only serves the latest-metrics projection; the app is
		// fully functional without it.
		if err := db.InitCache(); err != nil {
			log.Print("continuing without the Redis cache")
		}
	}

	if db.Conn != nil {
		events.Em = events.NewEmitter(db.Conn, deploy)
	} else {
		events.Em = nil
	}

	root := app.Group("/dora")

	root.Get("/ping", func(c fiber.Ctx) error {
		return c.SendString("PONG")
	})

	root.Get("/version", func(c fiber.Ctx) error {
		return c.SendString("v" + env.VERSION)
	})

	githubhooks.Routes(root)
	metricsapi.Routes(root)
	operators.Routes(root)

	return app
}
