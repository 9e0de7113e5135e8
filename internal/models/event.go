package models

import (
	"time"

	"gorm.io/datatypes"
)

// Event is one audit-log row describing an ingestion or operations action.
type Event struct {
	ID uint `gorm:"primaryKey" json:"-"`

	TimeStamp time.Time `gorm:"index" json:"timestamp"`

	Action string `gorm:"index" json:"action"`

	ActorID   string `json:"actorID"`
	ActorRole string `json:"actorRole"`

	TargetID   string `gorm:"index" json:"targetID"`
	TargetType string `json:"targetType"`

	Props datatypes.JSONMap `gorm:"type:json" json:"props"`
}

func (Event) TableName() string { return "events" }
