package metadata

import "fmt"

// QualityStatus is the QA disposition of an inventory unit. Only passed units
// are eligible for allocation unless the caller holds an explicit override.
type QualityStatus string

const (
	QualityPassed     QualityStatus = "passed"
	QualityQuarantine QualityStatus = "quarantine"
	QualityFailed     QualityStatus = "failed"
	QualityPending    QualityStatus = "pending"
)

func NewQualityStatus(value string) (QualityStatus, error) {
	status := QualityStatus(value)
	if !status.isValid() {
		return "", fmt.Errorf("invalid quality status: %s", value)
	}
	return status, nil
}

func (s QualityStatus) isValid() bool {
	switch s {
	case QualityPassed, QualityQuarantine, QualityFailed, QualityPending:
		return true
	default:
		return false
	}
}

// UnitStatus is the availability state of an inventory unit.
type UnitStatus string

const (
	UnitAvailable UnitStatus = "available"
	UnitReserved  UnitStatus = "reserved"
	UnitBlocked   UnitStatus = "blocked"
	UnitConsumed  UnitStatus = "consumed"
)

func NewUnitStatus(value string) (UnitStatus, error) {
	status := UnitStatus(value)
	if !status.isValid() {
		return "", fmt.Errorf("invalid unit status: %s", value)
	}
	return status, nil
}

func (s UnitStatus) isValid() bool {
	switch s {
	case UnitAvailable, UnitReserved, UnitBlocked, UnitConsumed:
		return true
	default:
		return false
	}
}

// Reservable reports whether a unit in this state accepts new reservations.
func (s UnitStatus) Reservable() bool {
	return s == UnitAvailable || s == UnitReserved
}

// ReservationStatus is the lifecycle state of a reservation. Consumed and
// released are terminal.
type ReservationStatus string

const (
	ReservationActive   ReservationStatus = "active"
	ReservationConsumed ReservationStatus = "consumed"
	ReservationReleased ReservationStatus = "released"
)

// AllocationStrategy selects the ordering of eligible units in a plan.
type AllocationStrategy string

const (
	StrategyFIFO AllocationStrategy = "fifo"
	StrategyFEFO AllocationStrategy = "fefo"
)

func NewAllocationStrategy(value string) (AllocationStrategy, error) {
	switch AllocationStrategy(value) {
	case StrategyFIFO, StrategyFEFO:
		return AllocationStrategy(value), nil
	default:
		return "", fmt.Errorf("invalid allocation strategy: %s", value)
	}
}

// ConsumptionDirection distinguishes the two kinds of consumption records.
type ConsumptionDirection string

const (
	DirectionConsume ConsumptionDirection = "consume"
	DirectionReverse ConsumptionDirection = "reverse"
)

// ReversalReason is the closed set of reasons a consumption may be reversed.
// ReasonOther requires free-text notes.
type ReversalReason string

const (
	ReasonWrongUnit     ReversalReason = "wrong_unit_scanned"
	ReasonWrongQuantity ReversalReason = "wrong_quantity"
	ReasonOperatorError ReversalReason = "operator_error"
	ReasonQualityIssue  ReversalReason = "quality_issue"
	ReasonOther         ReversalReason = "other"
)

// NewReversalReason validates a reason code and its notes requirement.
func NewReversalReason(value, notes string) (ReversalReason, error) {
	reason := ReversalReason(value)
	switch reason {
	case ReasonWrongUnit, ReasonWrongQuantity, ReasonOperatorError, ReasonQualityIssue:
		return reason, nil
	case ReasonOther:
		if notes == "" {
			return "", fmt.Errorf("reversal reason %q requires notes", value)
		}
		return reason, nil
	default:
		return "", fmt.Errorf("invalid reversal reason: %s", value)
	}
}

// GenealogyLink is the relation between a parent and a child unit.
type GenealogyLink string

const (
	LinkProduced  GenealogyLink = "produced"
	LinkByProduct GenealogyLink = "by_product"
	LinkSplit     GenealogyLink = "split"
	LinkMerge     GenealogyLink = "merge"
)
