package utils

import (
	"doratrack/internal/errmsg"

	"github.com/gofiber/fiber/v3"
)

func StatusError(c fiber.Ctx, se errmsg.StatusError) error {
	return c.Status(se.StatusCode).JSON(map[string]string{
		"message": se.Message,
	})
}
