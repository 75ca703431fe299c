package transferorders

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/CoderMariusz/MonoPilot-sub046/internal/allocation"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/events"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/ledger"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/repository"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/reservation"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/settings"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/models"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/roles"
)

// Reserver is the slice of the reservation manager transfer orders call into.
type Reserver interface {
	Reserve(ctx context.Context, orgID int, actor roles.Actor, req reservation.ReserveRequest) ([]models.Reservation, error)
	GetActiveForEntity(orgID int, entityType string, entityID int) ([]models.Reservation, error)
}

// Consumer finalizes reservations inside a caller-owned transaction so a ship
// action and its consumption commit together.
type Consumer interface {
	ConsumeTx(tx *goqu.TxDatabase, orgID int, actor roles.Actor, reservationID int) (*models.ConsumptionRecord, error)
}

// LineCoverage pairs one transfer line with its reservation coverage.
type LineCoverage struct {
	Line     models.TransferOrderLine `json:"line"`
	Coverage models.Coverage          `json:"coverage"`
}

// ConfirmResult reports the outcome of confirming a transfer order.
type ConfirmResult struct {
	TransferOrder *models.TransferOrder `json:"transfer_order"`
	Coverage      []LineCoverage        `json:"coverage"`
}

// ShipResult reports what one ship action consumed.
type ShipResult struct {
	TransferOrder *models.TransferOrder      `json:"transfer_order"`
	Consumed      []models.ConsumptionRecord `json:"consumed"`
	FullyShipped  bool                       `json:"fully_shipped"`
}

type TransferOrderService struct {
	r              *repository.Repository
	transferOrders TransferOrderRepository
	reservations   Reserver
	resRepo        reservation.ReservationRepository
	consumer       Consumer
	ledger         ledger.LedgerRepository
	settings       settings.SettingsRepository
	producer       *events.Producer
	log            *zap.Logger
	runTx          func(ctx context.Context, r *repository.Repository, fn func(tx *goqu.TxDatabase) error) error
}

func NewService(
	r *repository.Repository,
	transferOrders TransferOrderRepository,
	reservations Reserver,
	resRepo reservation.ReservationRepository,
	consumer Consumer,
	ledgerRepo ledger.LedgerRepository,
	settingsRepo settings.SettingsRepository,
	producer *events.Producer,
	log *zap.Logger,
) *TransferOrderService {
	return &TransferOrderService{
		r:              r,
		transferOrders: transferOrders,
		reservations:   reservations,
		resRepo:        resRepo,
		consumer:       consumer,
		ledger:         ledgerRepo,
		settings:       settingsRepo,
		producer:       producer,
		log:            log,
		runTx:          repository.WithTransaction,
	}
}

func (s *TransferOrderService) GetTransferOrder(orgID, transferOrderID int) (*models.TransferOrder, error) {
	return s.transferOrders.GetTransferOrder(orgID, transferOrderID)
}

// Confirm moves a draft transfer order to confirmed and reserves source
// warehouse stock for every line. Shortfalls surface as partial coverage.
func (s *TransferOrderService) Confirm(ctx context.Context, orgID int, actor roles.Actor, transferOrderID int) (*ConfirmResult, error) {
	var to *models.TransferOrder
	err := s.runTx(ctx, s.r, func(tx *goqu.TxDatabase) error {
		var err error
		to, err = s.transferOrders.GetTransferOrderForUpdate(tx, orgID, transferOrderID)
		if err != nil {
			return err
		}
		if err := to.Status.ValidateTransition(metadata.TOConfirmed); err != nil {
			return err
		}
		if err := s.transferOrders.UpdateStatus(tx, orgID, transferOrderID, to.Status, metadata.TOConfirmed); err != nil {
			return err
		}
		to.Status = metadata.TOConfirmed
		return nil
	})
	if err != nil {
		return nil, err
	}

	to.Lines, err = s.transferOrders.GetLines(orgID, transferOrderID)
	if err != nil {
		return nil, err
	}

	strategy, err := s.settings.GetAllocationStrategy(orgID)
	if err != nil {
		return nil, err
	}

	coverage := make([]LineCoverage, 0, len(to.Lines))
	for _, line := range to.Lines {
		reserved, err := s.reserveLine(ctx, orgID, actor, to, line, strategy)
		if err != nil {
			s.log.Warn("reserve failed for transfer order line",
				zap.Int("org_id", orgID),
				zap.Int("transfer_order_id", transferOrderID),
				zap.Int("line_id", line.ID),
				zap.Error(err))
		}
		coverage = append(coverage, LineCoverage{
			Line:     line,
			Coverage: models.CalculateCoverage(line.RemainingQty(), reserved),
		})
	}

	to.Lines = nil
	s.publishStatusChange(ctx, orgID, to)
	return &ConfirmResult{TransferOrder: to, Coverage: coverage}, nil
}

func (s *TransferOrderService) reserveLine(
	ctx context.Context,
	orgID int,
	actor roles.Actor,
	to *models.TransferOrder,
	line models.TransferOrderLine,
	strategy metadata.AllocationStrategy,
) (decimal.Decimal, error) {
	remaining := line.RemainingQty()
	if !remaining.IsPositive() {
		return decimal.Zero, nil
	}

	eligible, err := s.ledger.FindEligible(orgID, line.ProductID, ledger.EligibleFilters{
		WarehouseID: to.FromWarehouseID,
		Strategy:    strategy,
	})
	if err != nil {
		return decimal.Zero, err
	}

	plan, err := allocation.BuildPlan(line.ProductID, remaining, strategy, eligible)
	if err != nil {
		return decimal.Zero, err
	}
	if len(plan.Slices) == 0 {
		return decimal.Zero, nil
	}

	reserved, err := s.reservations.Reserve(ctx, orgID, actor, reservation.ReserveRequest{
		EntityType:        models.EntityTransferOrder,
		EntityID:          to.ID,
		LineID:            line.ID,
		ExpectedProductID: line.ProductID,
		Plan:              &plan,
	})
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, res := range reserved {
		total = total.Add(res.Quantity)
	}
	return total, nil
}

// Ship consumes every active reservation held by the transfer order and adds
// the consumed quantities to the lines' shipped totals. Lines short of their
// ordered quantity stay open for another reserve-and-ship round.
func (s *TransferOrderService) Ship(ctx context.Context, orgID int, actor roles.Actor, transferOrderID int) (*ShipResult, error) {
	var (
		to       *models.TransferOrder
		consumed []models.ConsumptionRecord
		fully    bool
	)

	err := s.runTx(ctx, s.r, func(tx *goqu.TxDatabase) error {
		consumed = consumed[:0]

		var err error
		to, err = s.transferOrders.GetTransferOrderForUpdate(tx, orgID, transferOrderID)
		if err != nil {
			return err
		}
		if err := to.Status.ValidateTransition(metadata.TOShipped); err != nil {
			return err
		}

		active, err := s.resRepo.GetActiveForEntityTx(tx, orgID, models.EntityTransferOrder, transferOrderID)
		if err != nil {
			return err
		}
		if len(active) == 0 {
			return &apperrors.InvalidTransitionError{
				Entity: "transfer order",
				From:   string(to.Status),
				To:     string(metadata.TOShipped),
				Reason: "no active reservations to consume",
			}
		}

		shippedByLine := make(map[int]decimal.Decimal)
		for _, res := range active {
			record, err := s.consumer.ConsumeTx(tx, orgID, actor, res.ID)
			if err != nil {
				return err
			}
			consumed = append(consumed, *record)
			shippedByLine[res.LineID] = shippedByLine[res.LineID].Add(record.Quantity)
		}

		for lineID, qty := range shippedByLine {
			if err := s.transferOrders.AddLineShipped(tx, orgID, lineID, qty); err != nil {
				return err
			}
		}

		if err := s.transferOrders.UpdateStatus(tx, orgID, transferOrderID, to.Status, metadata.TOShipped); err != nil {
			return err
		}
		to.Status = metadata.TOShipped

		lines, err := s.transferOrders.GetLinesTx(tx, orgID, transferOrderID)
		if err != nil {
			return err
		}
		fully = true
		for _, line := range lines {
			if line.RemainingQty().IsPositive() {
				fully = false
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishStatusChange(ctx, orgID, to)
	s.log.Info("transfer order shipped",
		zap.Int("org_id", orgID),
		zap.Int("transfer_order_id", transferOrderID),
		zap.Int("reservations_consumed", len(consumed)),
		zap.Bool("fully_shipped", fully))

	return &ShipResult{TransferOrder: to, Consumed: consumed, FullyShipped: fully}, nil
}

// Receive books the shipped quantities into the destination warehouse as new
// units and moves the order to received.
func (s *TransferOrderService) Receive(ctx context.Context, orgID int, actor roles.Actor, transferOrderID int) (*models.TransferOrder, error) {
	var to *models.TransferOrder
	err := s.runTx(ctx, s.r, func(tx *goqu.TxDatabase) error {
		var err error
		to, err = s.transferOrders.GetTransferOrderForUpdate(tx, orgID, transferOrderID)
		if err != nil {
			return err
		}
		if err := to.Status.ValidateTransition(metadata.TOReceived); err != nil {
			return err
		}

		lines, err := s.transferOrders.GetLinesTx(tx, orgID, transferOrderID)
		if err != nil {
			return err
		}
		for _, line := range lines {
			pending := line.ShippedQty.Sub(line.ReceivedQty)
			if !pending.IsPositive() {
				continue
			}
			_, err := s.ledger.CreateUnit(tx, &models.InventoryUnit{
				OrgID:           orgID,
				ProductID:       line.ProductID,
				OnHand:          pending,
				UOM:             line.UOM,
				ManufactureDate: time.Now(),
				QualityStatus:   metadata.QualityPassed,
				Status:          metadata.UnitAvailable,
				WarehouseID:     to.ToWarehouseID,
			})
			if err != nil {
				return err
			}
			if err := s.transferOrders.AddLineReceived(tx, orgID, line.ID, pending); err != nil {
				return err
			}
		}

		if err := s.transferOrders.UpdateStatus(tx, orgID, transferOrderID, to.Status, metadata.TOReceived); err != nil {
			return err
		}
		to.Status = metadata.TOReceived
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishStatusChange(ctx, orgID, to)
	return to, nil
}

// Close finishes a received transfer order.
func (s *TransferOrderService) Close(ctx context.Context, orgID int, actor roles.Actor, transferOrderID int) (*models.TransferOrder, error) {
	return s.transition(ctx, orgID, transferOrderID, metadata.TOClosed)
}

// Cancel aborts a draft or confirmed transfer order and releases its
// reservations.
func (s *TransferOrderService) Cancel(ctx context.Context, orgID int, actor roles.Actor, transferOrderID int) (*models.TransferOrder, error) {
	var to *models.TransferOrder
	err := s.runTx(ctx, s.r, func(tx *goqu.TxDatabase) error {
		var err error
		to, err = s.transferOrders.GetTransferOrderForUpdate(tx, orgID, transferOrderID)
		if err != nil {
			return err
		}
		if err := to.Status.ValidateTransition(metadata.TOCancelled); err != nil {
			return err
		}
		if _, err := s.resRepo.ReleaseAllForEntity(tx, orgID, models.EntityTransferOrder, transferOrderID); err != nil {
			return err
		}
		if err := s.transferOrders.UpdateStatus(tx, orgID, transferOrderID, to.Status, metadata.TOCancelled); err != nil {
			return err
		}
		to.Status = metadata.TOCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishStatusChange(ctx, orgID, to)
	return to, nil
}

func (s *TransferOrderService) transition(ctx context.Context, orgID, transferOrderID int, next metadata.TransferOrderStatus) (*models.TransferOrder, error) {
	var to *models.TransferOrder
	err := s.runTx(ctx, s.r, func(tx *goqu.TxDatabase) error {
		var err error
		to, err = s.transferOrders.GetTransferOrderForUpdate(tx, orgID, transferOrderID)
		if err != nil {
			return err
		}
		if err := to.Status.ValidateTransition(next); err != nil {
			return err
		}
		if err := s.transferOrders.UpdateStatus(tx, orgID, transferOrderID, to.Status, next); err != nil {
			return err
		}
		to.Status = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishStatusChange(ctx, orgID, to)
	return to, nil
}

func (s *TransferOrderService) publishStatusChange(ctx context.Context, orgID int, to *models.TransferOrder) {
	s.producer.Publish(ctx, events.TypeEntityStatusChanged, orgID,
		fmt.Sprintf("transfer_order-%d", to.ID), map[string]any{
			"entity_type": models.EntityTransferOrder,
			"entity_id":   to.ID,
			"status":      to.Status,
		})
}
