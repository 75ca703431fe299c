package models

import "time"

type AuditLog struct {
	ID           int       `json:"id" db:"id"`
	ResourceID   int       `json:"resource_id" db:"resource_id"`
	ResourceType string    `json:"resource_type" db:"resource_type"`
	Action       string    `json:"action" db:"action"`
	ActorID      int       `json:"actor_id" db:"actor_id"`
	Data         any       `json:"data,omitempty" db:"-"`
	DataRaw      []byte    `json:"-" db:"data"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
