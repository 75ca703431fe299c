package reservation

import (
	"context"
	"fmt"
	"sort"

	"github.com/doug-martin/goqu/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/CoderMariusz/MonoPilot-sub046/internal/allocation"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/events"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/ledger"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/repository"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/auditlog"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/models"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/roles"
)

// ReserveRequest commits an allocation plan, or a single manual pick, as
// reservations for one requesting entity line.
type ReserveRequest struct {
	EntityType        string
	EntityID          int
	LineID            int
	ExpectedProductID int
	Plan              *allocation.Plan
	Pick              *models.ManualPick
}

type Auditor interface {
	LogTx(tx *goqu.TxDatabase, action string, actorID int, data any, item auditlog.Auditable) error
}

type ReservationManager struct {
	r        *repository.Repository
	resRepo  ReservationRepository
	ledger   ledger.LedgerRepository
	audit    Auditor
	producer *events.Producer
	policy   roles.OverridePolicy
	log      *zap.Logger
	runTx    func(ctx context.Context, r *repository.Repository, fn func(tx *goqu.TxDatabase) error) error
}

func NewManager(
	r *repository.Repository,
	resRepo ReservationRepository,
	ledgerRepo ledger.LedgerRepository,
	audit Auditor,
	producer *events.Producer,
	policy roles.OverridePolicy,
	log *zap.Logger,
) *ReservationManager {
	return &ReservationManager{
		r:        r,
		resRepo:  resRepo,
		ledger:   ledgerRepo,
		audit:    audit,
		producer: producer,
		policy:   policy,
		log:      log,
		runTx:    repository.WithTransaction,
	}
}

// Reserve durably commits every slice of the request or nothing at all.
// Availability is re-read per unit inside the transaction, so a plan that
// went stale since planning fails with OverReservation instead of
// over-committing the unit.
func (m *ReservationManager) Reserve(ctx context.Context, orgID int, actor roles.Actor, req ReserveRequest) ([]models.Reservation, error) {
	slices, err := requestSlices(req)
	if err != nil {
		return nil, err
	}

	// Units lock in ascending id order; two callers reserving overlapping
	// unit sets then contend in the same order instead of deadlocking.
	sort.Slice(slices, func(i, j int) bool { return slices[i].UnitID < slices[j].UnitID })

	qaOverride := req.Pick != nil && req.Pick.QAOverride
	if qaOverride && !m.policy.Allow(roles.OverrideQAStatus, actor) {
		return nil, fmt.Errorf("actor %d may not override quality status: %w",
			actor.ID, &apperrors.QualityStatusBlockedError{UnitID: req.Pick.UnitID})
	}

	var reserved []models.Reservation
	err = m.runTxRetry(ctx, func(tx *goqu.TxDatabase) error {
		reserved = reserved[:0]
		for _, slice := range slices {
			res, err := m.reserveSlice(tx, orgID, actor, req, slice, qaOverride)
			if err != nil {
				return err
			}
			reserved = append(reserved, *res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, res := range reserved {
		m.producer.Publish(ctx, events.TypeReservationCreated, orgID,
			fmt.Sprintf("unit-%d", res.UnitID), res)
	}
	m.log.Info("reservations committed",
		zap.Int("org_id", orgID),
		zap.String("entity_type", req.EntityType),
		zap.Int("entity_id", req.EntityID),
		zap.Int("count", len(reserved)))

	return reserved, nil
}

// runTxRetry re-runs the transaction once when it fails on a transient
// serialization or deadlock error. The closure must be safe to re-execute.
func (m *ReservationManager) runTxRetry(ctx context.Context, fn func(tx *goqu.TxDatabase) error) error {
	err := m.runTx(ctx, m.r, fn)
	if err != nil && apperrors.Retryable(err) {
		m.log.Warn("transient transaction failure, retrying once", zap.Error(err))
		err = m.runTx(ctx, m.r, fn)
	}
	return err
}

func (m *ReservationManager) reserveSlice(
	tx *goqu.TxDatabase,
	orgID int,
	actor roles.Actor,
	req ReserveRequest,
	slice allocation.Slice,
	qaOverride bool,
) (*models.Reservation, error) {
	if !slice.Quantity.IsPositive() {
		return nil, apperrors.ErrInvalidQuantity
	}

	unit, err := m.ledger.GetUnitForUpdate(tx, orgID, slice.UnitID)
	if err != nil {
		return nil, err
	}

	if req.ExpectedProductID != 0 && unit.ProductID != req.ExpectedProductID {
		return nil, &apperrors.ProductMismatchError{
			UnitID:          unit.ID,
			UnitProductID:   unit.ProductID,
			WantedProductID: req.ExpectedProductID,
		}
	}

	if !unit.Status.Reservable() {
		return nil, &apperrors.OverReservationError{
			UnitID:    unit.ID,
			Requested: slice.Quantity,
			Available: decimal.Zero,
		}
	}

	if unit.QualityStatus != metadata.QualityPassed && !qaOverride {
		return nil, &apperrors.QualityStatusBlockedError{
			UnitID:   unit.ID,
			QAStatus: string(unit.QualityStatus),
		}
	}

	available, err := m.ledger.GetAvailableTx(tx, orgID, unit.ID)
	if err != nil {
		return nil, err
	}
	if available.LessThan(slice.Quantity) {
		return nil, &apperrors.OverReservationError{
			UnitID:    unit.ID,
			Requested: slice.Quantity,
			Available: available,
		}
	}

	res := models.Reservation{
		OrgID:      orgID,
		UnitID:     unit.ID,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		LineID:     req.LineID,
		Quantity:   slice.Quantity,
		Status:     metadata.ReservationActive,
		QAOverride: qaOverride,
		ReservedBy: actor.ID,
	}

	resID, err := m.resRepo.InsertReservation(tx, res)
	if err != nil {
		return nil, err
	}
	res.ID = resID

	if qaOverride {
		err = m.audit.LogTx(tx, "qa_override_reserve", actor.ID, map[string]any{
			"unit_id":        unit.ID,
			"quality_status": string(unit.QualityStatus),
			"quantity":       slice.Quantity,
		}, &res)
		if err != nil {
			return nil, err
		}
	}

	return &res, nil
}

// Release marks a reservation released and returns its capacity to the pool.
// Releasing twice fails with AlreadyReleased so callers can detect
// double-release bugs.
func (m *ReservationManager) Release(ctx context.Context, orgID int, actor roles.Actor, reservationID int) error {
	var released *models.Reservation

	err := m.runTx(ctx, m.r, func(tx *goqu.TxDatabase) error {
		res, err := m.resRepo.GetReservationForUpdate(tx, orgID, reservationID)
		if err != nil {
			return err
		}

		switch res.Status {
		case metadata.ReservationReleased:
			return apperrors.ErrAlreadyReleased
		case metadata.ReservationConsumed:
			return apperrors.ErrInvalidReservationStatus
		}

		if err := m.resRepo.MarkReleased(tx, orgID, reservationID); err != nil {
			return err
		}
		released = res
		return nil
	})
	if err != nil {
		return err
	}

	m.producer.Publish(ctx, events.TypeReservationReleased, orgID,
		fmt.Sprintf("unit-%d", released.UnitID), released)

	return nil
}

// ReleaseAllForEntity releases every active reservation held by one entity,
// used by cancel paths. Returns the number released.
func (m *ReservationManager) ReleaseAllForEntity(ctx context.Context, orgID int, entityType string, entityID int) (int, error) {
	var count int
	err := m.runTx(ctx, m.r, func(tx *goqu.TxDatabase) error {
		var err error
		count, err = m.resRepo.ReleaseAllForEntity(tx, orgID, entityType, entityID)
		return err
	})
	if err != nil {
		return 0, err
	}

	if count > 0 {
		m.producer.Publish(ctx, events.TypeReservationReleased, orgID,
			fmt.Sprintf("%s-%d", entityType, entityID),
			map[string]any{"entity_type": entityType, "entity_id": entityID, "released": count})
	}

	return count, nil
}

// GetActiveForEntity lists an entity's active reservations in unit order.
func (m *ReservationManager) GetActiveForEntity(orgID int, entityType string, entityID int) ([]models.Reservation, error) {
	return m.resRepo.GetActiveForEntity(orgID, entityType, entityID)
}

func requestSlices(req ReserveRequest) ([]allocation.Slice, error) {
	switch {
	case req.Plan != nil && req.Pick != nil:
		return nil, fmt.Errorf("reserve request cannot carry both a plan and a manual pick")
	case req.Plan != nil:
		if len(req.Plan.Slices) == 0 {
			return nil, apperrors.ErrInvalidQuantity
		}
		slices := make([]allocation.Slice, len(req.Plan.Slices))
		copy(slices, req.Plan.Slices)
		return slices, nil
	case req.Pick != nil:
		return []allocation.Slice{{UnitID: req.Pick.UnitID, Quantity: req.Pick.Quantity}}, nil
	default:
		return nil, fmt.Errorf("reserve request carries neither a plan nor a manual pick")
	}
}
