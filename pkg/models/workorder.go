package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
)

// WorkOrder produces a quantity of one product and consumes material lines.
type WorkOrder struct {
	ID          int                      `json:"id" db:"id"`
	OrgID       int                      `json:"org_id" db:"org_id"`
	ProductID   int                      `json:"product_id" db:"product_id"`
	WarehouseID int                      `json:"warehouse_id" db:"warehouse_id"`
	PlannedQty  decimal.Decimal          `json:"planned_qty" db:"planned_qty"`
	Status      metadata.WorkOrderStatus `json:"status" db:"status"`
	ReleasedAt  *time.Time               `json:"released_at,omitempty" db:"released_at"`
	CompletedAt *time.Time               `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time                `json:"created_at" db:"created_at"`
	Materials   []WorkOrderMaterial      `json:"materials,omitempty" db:"-"`
}

func (w *WorkOrder) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   w.ID,
		ResourceType: "work_order",
	}
}

// WorkOrderMaterial is one required-material line of a work order.
type WorkOrderMaterial struct {
	ID          int             `json:"id" db:"id"`
	WorkOrderID int             `json:"work_order_id" db:"work_order_id"`
	ProductID   int             `json:"product_id" db:"product_id"`
	RequiredQty decimal.Decimal `json:"required_qty" db:"required_qty"`
	ReservedQty decimal.Decimal `json:"reserved_qty" db:"reserved_qty"`
	ConsumedQty decimal.Decimal `json:"consumed_qty" db:"consumed_qty"`
	UOM         string          `json:"uom" db:"uom"`
}
