package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var (
	ErrUnitNotFound             = errors.New("inventory unit not found")
	ErrReservationNotFound      = errors.New("reservation not found")
	ErrInvalidQuantity          = errors.New("quantity must be greater than zero")
	ErrAlreadyReleased          = errors.New("reservation has already been released")
	ErrInvalidReservationStatus = errors.New("reservation is not active")
	ErrTransactionFailed        = errors.New("transaction failed due to concurrent access")
	ErrTimeout                  = errors.New("operation timed out waiting for lock")

	ErrConsumptionRecordNotFound = errors.New("consumption record not found")
	ErrAlreadyReversed           = errors.New("consumption record has already been reversed")
	ErrReversalWindowClosed      = errors.New("reversal window has closed for this consumption record")
)

// InsufficientQuantityError reports a decrement that exceeds on-hand quantity.
type InsufficientQuantityError struct {
	UnitID    int
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientQuantityError) Error() string {
	return fmt.Sprintf("insufficient quantity on unit %d: requested %s, available %s",
		e.UnitID, e.Requested.String(), e.Available.String())
}

// OverReservationError reports a reservation attempt beyond a unit's un-reserved quantity.
type OverReservationError struct {
	UnitID    int
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *OverReservationError) Error() string {
	return fmt.Sprintf("over-reservation on unit %d: requested %s, available %s",
		e.UnitID, e.Requested.String(), e.Available.String())
}

// ProductMismatchError reports a unit whose product differs from the requesting line's product.
type ProductMismatchError struct {
	UnitID          int
	UnitProductID   int
	WantedProductID int
}

func (e *ProductMismatchError) Error() string {
	return fmt.Sprintf("unit %d holds product %d, line expects product %d",
		e.UnitID, e.UnitProductID, e.WantedProductID)
}

// QualityStatusBlockedError reports a unit that has not passed QA.
type QualityStatusBlockedError struct {
	UnitID   int
	QAStatus string
}

func (e *QualityStatusBlockedError) Error() string {
	return fmt.Sprintf("unit %d is blocked by quality status %q", e.UnitID, e.QAStatus)
}

// InvalidTransitionError reports an entity status change outside its transition graph.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s cannot move from %q to %q: %s", e.Entity, e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("%s cannot move from %q to %q", e.Entity, e.From, e.To)
}

// IsInvalidTransition reports whether err is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var ite *InvalidTransitionError
	return errors.As(err, &ite)
}

// Retryable reports whether the caller may retry the operation. Only transient
// transaction failures qualify; every other error requires user intervention.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransactionFailed) || errors.Is(err, ErrTimeout)
}

// WrapDBError translates PostgreSQL error codes into the engine taxonomy so
// repositories surface typed errors instead of driver internals.
func WrapDBError(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %s", ErrTransactionFailed, pqErr.Message)
		case "55P03": // lock_not_available
			return fmt.Errorf("%w: %s", ErrTimeout, pqErr.Message)
		case "23514": // check_violation, quantity >= 0 constraints
			return fmt.Errorf("%w: %s", ErrInvalidQuantity, pqErr.Message)
		}
	}

	return err
}

// HTTPStatus maps an engine error onto the response code handlers should use.
func HTTPStatus(err error) int {
	var (
		insufficient *InsufficientQuantityError
		overRes      *OverReservationError
		mismatch     *ProductMismatchError
		quality      *QualityStatusBlockedError
		transition   *InvalidTransitionError
	)

	switch {
	case errors.Is(err, ErrUnitNotFound), errors.Is(err, ErrReservationNotFound),
		errors.Is(err, ErrConsumptionRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.As(err, &overRes), errors.As(err, &insufficient),
		errors.Is(err, ErrAlreadyReleased), errors.Is(err, ErrInvalidReservationStatus),
		errors.Is(err, ErrAlreadyReversed), errors.Is(err, ErrReversalWindowClosed):
		return http.StatusConflict
	case errors.As(err, &mismatch), errors.As(err, &quality), errors.As(err, &transition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrTransactionFailed), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
