package operators

import (
	"encoding/json"
	"strings"

	"doratrack/internal/env"
	"doratrack/internal/errmsg"
	"doratrack/internal/events"
	"doratrack/internal/models"
	"doratrack/internal/utils"

	"github.com/gofiber/fiber/v3"
	"golang.org/x/crypto/bcrypt"
)

func loginHandler(c fiber.Ctx) error {
	var body models.Operator
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return utils.StatusError(c, errmsg.OperatorInvalidPayload)
	}

	body.Username = strings.TrimSpace(body.Username)
	body.Password = strings.TrimSpace(body.Password)
	if body.Username == "" || body.Password == "" {
		return utils.StatusError(c, errmsg.OperatorInvalidPayload)
	}

	if env.OPERATOR_USERNAME == "" || env.OPERATOR_PASSWORD_HASH == "" {
		return utils.StatusError(c, errmsg.OperatorNotConfigured)
	}

	if body.Username != env.OPERATOR_USERNAME {
		return utils.StatusError(c, errmsg.OperatorWrongPassword)
	}

	if bcrypt.CompareHashAndPassword(
		[]byte(env.OPERATOR_PASSWORD_HASH),
		[]byte(body.Password),
	) != nil {
		return utils.StatusError(c, errmsg.OperatorWrongPassword)
	}

	operator := models.Operator{Username: body.Username}
	token := operator.GenToken()

	if events.Em != nil {
		events.Em.OperatorLogin(operator.Username)
	}

	return c.JSON(fiber.Map{
		"token":    token,
		"operator": operator,
	})
}
