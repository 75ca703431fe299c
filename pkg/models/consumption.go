package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
)

// ConsumptionRecord is an append-only audit entry written when a reservation
// is consumed or a consumption is reversed. Never mutated or deleted.
type ConsumptionRecord struct {
	ID            int                           `json:"id" db:"id"`
	OrgID         int                           `json:"org_id" db:"org_id"`
	ReservationID int                           `json:"reservation_id" db:"reservation_id"`
	UnitID        int                           `json:"unit_id" db:"unit_id"`
	Quantity      decimal.Decimal               `json:"quantity" db:"quantity"`
	Direction     metadata.ConsumptionDirection `json:"direction" db:"direction"`
	ReasonCode    *metadata.ReversalReason      `json:"reason_code,omitempty" db:"reason_code"`
	Notes         string                        `json:"notes,omitempty" db:"notes"`
	ReversedID    *int                          `json:"reversed_record_id,omitempty" db:"reversed_record_id"`
	ActorID       int                           `json:"actor_id" db:"actor_id"`
	CreatedAt     time.Time                     `json:"created_at" db:"created_at"`
}

func (c *ConsumptionRecord) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   c.ID,
		ResourceType: "consumption_record",
	}
}
