package events

import (
	"doratrack/internal/models"

	"gorm.io/datatypes"
)

// OperatorLogin records a successful operator authentication.
func (e *Emitter) OperatorLogin(username string) {
	if e == nil {
		return
	}

	e.Emit(models.Event{
		Action: "operator.login",

		ActorRole: ActorOperator,
		ActorID:   username,

		TargetType: "operator",
		TargetID:   username,

		Props: datatypes.JSONMap{},
	})
}
