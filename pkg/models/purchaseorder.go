package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
)

// PurchaseOrder receives supplier inventory; closed POs are immutable.
type PurchaseOrder struct {
	ID             int                          `json:"id" db:"id"`
	OrgID          int                          `json:"org_id" db:"org_id"`
	SupplierID     int                          `json:"supplier_id" db:"supplier_id"`
	WarehouseID    int                          `json:"warehouse_id" db:"warehouse_id"`
	Status         metadata.PurchaseOrderStatus `json:"status" db:"status"`
	ApprovalStatus string                       `json:"approval_status" db:"approval_status"`
	ApprovedAt     *time.Time                   `json:"approved_at,omitempty" db:"approved_at"`
	ClosedAt       *time.Time                   `json:"closed_at,omitempty" db:"closed_at"`
	CreatedAt      time.Time                    `json:"created_at" db:"created_at"`
	Lines          []PurchaseOrderLine          `json:"lines,omitempty" db:"-"`
}

func (p *PurchaseOrder) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   p.ID,
		ResourceType: "purchase_order",
	}
}

// PurchaseOrderLine is one ordered product line.
type PurchaseOrderLine struct {
	ID              int             `json:"id" db:"id"`
	PurchaseOrderID int             `json:"purchase_order_id" db:"purchase_order_id"`
	ProductID       int             `json:"product_id" db:"product_id"`
	OrderedQty      decimal.Decimal `json:"ordered_qty" db:"ordered_qty"`
	ReceivedQty     decimal.Decimal `json:"received_qty" db:"received_qty"`
	UOM             string          `json:"uom" db:"uom"`
}
