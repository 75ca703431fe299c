package models

// OrgSettings holds per-organization engine configuration.
type OrgSettings struct {
	OrgID               int  `json:"org_id" db:"org_id"`
	EnableFEFO          bool `json:"enable_fefo" db:"enable_fefo"`
	ReversalWindowHours int  `json:"reversal_window_hours" db:"reversal_window_hours"`
}
