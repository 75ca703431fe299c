package models

import (
	"time"

	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
)

// Shipment packs allocated units into boxes and ships them against a sales
// order. The shipped transition is irreversible and consumes every allocated
// reservation.
type Shipment struct {
	ID           int                     `json:"id" db:"id"`
	OrgID        int                     `json:"org_id" db:"org_id"`
	SalesOrderID int                     `json:"sales_order_id" db:"sales_order_id"`
	WarehouseID  int                     `json:"warehouse_id" db:"warehouse_id"`
	Status       metadata.ShipmentStatus `json:"status" db:"status"`
	ShippedAt    *time.Time              `json:"shipped_at,omitempty" db:"shipped_at"`
	DeliveredAt  *time.Time              `json:"delivered_at,omitempty" db:"delivered_at"`
	CreatedAt    time.Time               `json:"created_at" db:"created_at"`
	Boxes        []ShipmentBox           `json:"boxes,omitempty" db:"-"`
}

func (s *Shipment) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   s.ID,
		ResourceType: "shipment",
	}
}

// ShipmentBox groups packed units for one physical box.
type ShipmentBox struct {
	ID         int       `json:"id" db:"id"`
	ShipmentID int       `json:"shipment_id" db:"shipment_id"`
	BoxNumber  int       `json:"box_number" db:"box_number"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
