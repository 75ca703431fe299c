package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
)

// Reservation is a claim on part of one unit's quantity for a requesting
// entity line. Lifecycle: active, then either consumed or released, terminal.
type Reservation struct {
	ID         int                        `json:"id" db:"id"`
	OrgID      int                        `json:"org_id" db:"org_id"`
	UnitID     int                        `json:"unit_id" db:"unit_id"`
	EntityType string                     `json:"entity_type" db:"entity_type"`
	EntityID   int                        `json:"entity_id" db:"entity_id"`
	LineID     int                        `json:"line_id" db:"line_id"`
	Quantity   decimal.Decimal            `json:"quantity" db:"quantity"`
	Status     metadata.ReservationStatus `json:"status" db:"status"`
	QAOverride bool                       `json:"qa_override" db:"qa_override"`
	ReservedBy int                        `json:"reserved_by" db:"reserved_by"`
	ReservedAt time.Time                  `json:"reserved_at" db:"reserved_at"`
	ReleasedAt *time.Time                 `json:"released_at,omitempty" db:"released_at"`
	ConsumedAt *time.Time                 `json:"consumed_at,omitempty" db:"consumed_at"`
}

func (r *Reservation) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   r.ID,
		ResourceType: "reservation",
	}
}

// Entity types a reservation may reference.
const (
	EntityWorkOrder     = "work_order"
	EntityTransferOrder = "transfer_order"
	EntitySalesOrder    = "sales_order"
	EntityShipment      = "shipment"
	EntityRMA           = "rma"
)

// ManualPick reserves a caller-chosen slice of one unit instead of a plan.
type ManualPick struct {
	UnitID     int             `json:"unit_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	QAOverride bool            `json:"qa_override"`
}

// Coverage summarizes how much of a required quantity is held by active
// reservations.
type Coverage struct {
	Percent  int             `json:"percent"`
	Shortage decimal.Decimal `json:"shortage"`
	Status   string          `json:"status"` // none, partial, full, over
}

// CalculateCoverage derives coverage from required and reserved quantities.
func CalculateCoverage(required, reserved decimal.Decimal) Coverage {
	if required.IsZero() {
		if reserved.IsPositive() {
			return Coverage{Percent: 100, Shortage: decimal.Zero, Status: "over"}
		}
		return Coverage{Percent: 0, Shortage: decimal.Zero, Status: "none"}
	}

	percent := reserved.Div(required).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	shortage := decimal.Max(decimal.Zero, required.Sub(reserved))

	var status string
	switch {
	case reserved.IsZero():
		status = "none"
	case reserved.GreaterThan(required):
		status = "over"
	case reserved.GreaterThanOrEqual(required):
		status = "full"
	default:
		status = "partial"
	}

	return Coverage{Percent: int(percent), Shortage: shortage, Status: status}
}
