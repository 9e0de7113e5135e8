package models

import (
	"errors"
	"strings"
	"time"

	"doratrack/internal/env"
	"doratrack/internal/errmsg"
	"doratrack/internal/utils"

	sj "github.com/brianvoe/sjwt"
	"github.com/gofiber/fiber/v3"
)

// Operator is the single service credential allowed to trigger recomputes
// and backfills. Credentials come from the environment, not the store.
type Operator struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
}

func (op *Operator) GenToken() string {
	claims, _ := sj.ToClaims(op)
	claims.SetExpiresAt(time.Now().Add(30 * 24 * time.Hour))

	token := claims.Generate(env.JWT_SECRET)
	return token
}

func (op *Operator) ParseToken(token string) error {
	hasVerified := sj.Verify(token, env.JWT_SECRET)

	if !hasVerified {
		return errors.New("invalid token")
	}

	claims, _ := sj.Parse(token)
	err := claims.Validate()
	claims.ToStruct(&op)

	return err
}

// OperatorMiddleware guards the mutating endpoints with a bearer token.
func OperatorMiddleware(c fiber.Ctx) error {
	var token string

	authHeader := c.Get("Authorization")

	if authHeader != "" && strings.HasPrefix(authHeader, "Bearer") {
		tokens := strings.Fields(authHeader)
		if len(tokens) == 2 {
			token = tokens[1]
		}

		if token == "" {
			return utils.StatusError(c, errmsg.OperatorNoToken)
		}

		var operator Operator
		err := operator.ParseToken(token)
		if err != nil {
			return utils.StatusError(c, errmsg.OperatorInvalidToken)
		}

		if operator.Username == "" {
			return utils.StatusError(c, errmsg.OperatorInvalidToken)
		}

		utils.SetLocals(c, "operator", operator)
	}

	if token == "" {
		return utils.StatusError(c, errmsg.OperatorNoToken)
	}

	return c.Next()
}
