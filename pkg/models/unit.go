package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
)

// InventoryUnit is a license plate: a uniquely identified, lot-tracked
// quantity of one product. OnHand never goes negative; a unit that reaches
// zero moves to the consumed status and accepts no further reservations.
type InventoryUnit struct {
	ID              int                    `json:"id" db:"id"`
	LPNumber        string                 `json:"lp_number" db:"lp_number"`
	OrgID           int                    `json:"org_id" db:"org_id"`
	ProductID       int                    `json:"product_id" db:"product_id"`
	OnHand          decimal.Decimal        `json:"on_hand" db:"on_hand"`
	UOM             string                 `json:"uom" db:"uom"`
	LotNumber       string                 `json:"lot_number" db:"lot_number"`
	ManufactureDate time.Time              `json:"manufacture_date" db:"manufacture_date"`
	ExpiryDate      *time.Time             `json:"expiry_date" db:"expiry_date"`
	QualityStatus   metadata.QualityStatus `json:"quality_status" db:"quality_status"`
	Status          metadata.UnitStatus    `json:"status" db:"status"`
	LocationID      int                    `json:"location_id" db:"location_id"`
	WarehouseID     int                    `json:"warehouse_id" db:"warehouse_id"`
	CreatedAt       time.Time              `json:"created_at" db:"created_at"`
}

func (u *InventoryUnit) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   u.ID,
		ResourceType: "inventory_unit",
	}
}

// AvailableUnit is an eligibility snapshot produced by the ledger for the
// allocation engine: the unit plus its currently un-reserved quantity.
type AvailableUnit struct {
	Unit      InventoryUnit
	Available decimal.Decimal
}
