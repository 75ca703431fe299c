package models

import (
	"time"

	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
)

// GenealogyEdge links a parent unit to a child unit it produced. Edges form a
// DAG keyed by unit id; lineage is queried by traversal, not pointer-chasing.
type GenealogyEdge struct {
	ID           int                    `json:"id" db:"id"`
	OrgID        int                    `json:"org_id" db:"org_id"`
	ParentUnitID int                    `json:"parent_unit_id" db:"parent_unit_id"`
	ChildUnitID  int                    `json:"child_unit_id" db:"child_unit_id"`
	LinkType     metadata.GenealogyLink `json:"link_type" db:"link_type"`
	WorkOrderID  *int                   `json:"work_order_id,omitempty" db:"work_order_id"`
	CreatedAt    time.Time              `json:"created_at" db:"created_at"`
}
