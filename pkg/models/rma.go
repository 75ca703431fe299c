package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
)

// RMA is a customer return authorization. Line edits are permitted only while
// the RMA is pending.
type RMA struct {
	ID          int                `json:"id" db:"id"`
	OrgID       int                `json:"org_id" db:"org_id"`
	CustomerID  int                `json:"customer_id" db:"customer_id"`
	WarehouseID int                `json:"warehouse_id" db:"warehouse_id"`
	Status      metadata.RMAStatus `json:"status" db:"status"`
	ReceivedAt  *time.Time         `json:"received_at,omitempty" db:"received_at"`
	ClosedAt    *time.Time         `json:"closed_at,omitempty" db:"closed_at"`
	CreatedAt   time.Time          `json:"created_at" db:"created_at"`
	Lines       []RMALine          `json:"lines,omitempty" db:"-"`
}

func (r *RMA) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   r.ID,
		ResourceType: "rma",
	}
}

// RMALine is one returned product line.
type RMALine struct {
	ID          int             `json:"id" db:"id"`
	RMAID       int             `json:"rma_id" db:"rma_id"`
	ProductID   int             `json:"product_id" db:"product_id"`
	ExpectedQty decimal.Decimal `json:"expected_qty" db:"expected_qty"`
	ReceivedQty decimal.Decimal `json:"received_qty" db:"received_qty"`
	UOM         string          `json:"uom" db:"uom"`
}
