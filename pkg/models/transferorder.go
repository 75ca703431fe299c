package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
)

// TransferOrder moves inventory between two warehouses.
type TransferOrder struct {
	ID              int                          `json:"id" db:"id"`
	OrgID           int                          `json:"org_id" db:"org_id"`
	FromWarehouseID int                          `json:"from_warehouse_id" db:"from_warehouse_id"`
	ToWarehouseID   int                          `json:"to_warehouse_id" db:"to_warehouse_id"`
	Status          metadata.TransferOrderStatus `json:"status" db:"status"`
	ShippedAt       *time.Time                   `json:"shipped_at,omitempty" db:"shipped_at"`
	ReceivedAt      *time.Time                   `json:"received_at,omitempty" db:"received_at"`
	CreatedAt       time.Time                    `json:"created_at" db:"created_at"`
	Lines           []TransferOrderLine          `json:"lines,omitempty" db:"-"`
}

func (t *TransferOrder) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   t.ID,
		ResourceType: "transfer_order",
	}
}

// TransferOrderLine is one product line; ShippedQty below OrderedQty means the
// line still accepts partial ship actions.
type TransferOrderLine struct {
	ID              int             `json:"id" db:"id"`
	TransferOrderID int             `json:"transfer_order_id" db:"transfer_order_id"`
	ProductID       int             `json:"product_id" db:"product_id"`
	OrderedQty      decimal.Decimal `json:"ordered_qty" db:"ordered_qty"`
	ShippedQty      decimal.Decimal `json:"shipped_qty" db:"shipped_qty"`
	ReceivedQty     decimal.Decimal `json:"received_qty" db:"received_qty"`
	UOM             string          `json:"uom" db:"uom"`
}

// RemainingQty is what still has to ship on this line.
func (l TransferOrderLine) RemainingQty() decimal.Decimal {
	return decimal.Max(decimal.Zero, l.OrderedQty.Sub(l.ShippedQty))
}
