package workorders

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/CoderMariusz/MonoPilot-sub046/internal/allocation"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/events"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/genealogy"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/ledger"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/repository"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/reservation"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/settings"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/models"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/roles"
)

// Reserver is the slice of the reservation manager work orders call into.
type Reserver interface {
	Reserve(ctx context.Context, orgID int, actor roles.Actor, req reservation.ReserveRequest) ([]models.Reservation, error)
	GetActiveForEntity(orgID int, entityType string, entityID int) ([]models.Reservation, error)
}

// MaterialCoverage pairs one material line with its reservation coverage.
type MaterialCoverage struct {
	Material models.WorkOrderMaterial `json:"material"`
	Coverage models.Coverage          `json:"coverage"`
}

// ReleaseResult reports the outcome of releasing a work order: the new
// status plus per-line coverage after auto-reservation.
type ReleaseResult struct {
	WorkOrder *models.WorkOrder  `json:"work_order"`
	Coverage  []MaterialCoverage `json:"coverage"`
}

type WorkOrderService struct {
	r            *repository.Repository
	workOrders   WorkOrderRepository
	reservations Reserver
	resRepo      reservation.ReservationRepository
	ledger       ledger.LedgerRepository
	lineage      genealogy.GenealogyRepository
	settings     settings.SettingsRepository
	policy       roles.OverridePolicy
	producer     *events.Producer
	log          *zap.Logger
	runTx        func(ctx context.Context, r *repository.Repository, fn func(tx *goqu.TxDatabase) error) error
}

func NewService(
	r *repository.Repository,
	workOrders WorkOrderRepository,
	reservations Reserver,
	resRepo reservation.ReservationRepository,
	ledgerRepo ledger.LedgerRepository,
	lineage genealogy.GenealogyRepository,
	settingsRepo settings.SettingsRepository,
	policy roles.OverridePolicy,
	producer *events.Producer,
	log *zap.Logger,
) *WorkOrderService {
	return &WorkOrderService{
		r:            r,
		workOrders:   workOrders,
		reservations: reservations,
		resRepo:      resRepo,
		ledger:       ledgerRepo,
		lineage:      lineage,
		settings:     settingsRepo,
		policy:       policy,
		producer:     producer,
		log:          log,
		runTx:        repository.WithTransaction,
	}
}

func (s *WorkOrderService) GetWorkOrder(orgID, workOrderID int) (*models.WorkOrder, error) {
	return s.workOrders.GetWorkOrder(orgID, workOrderID)
}

// Release moves a draft work order to released, then auto-reserves each
// material line under the org's allocation strategy. Reservation shortfalls
// do not fail the release; they surface as partial coverage.
func (s *WorkOrderService) Release(ctx context.Context, orgID int, actor roles.Actor, workOrderID int) (*ReleaseResult, error) {
	wo, err := s.transition(ctx, orgID, workOrderID, metadata.WOReleased)
	if err != nil {
		return nil, err
	}

	strategy, err := s.settings.GetAllocationStrategy(orgID)
	if err != nil {
		return nil, err
	}

	coverage := make([]MaterialCoverage, 0, len(wo.Materials))
	for _, material := range wo.Materials {
		reserved, err := s.autoReserveMaterial(ctx, orgID, actor, wo, material, strategy)
		if err != nil {
			s.log.Warn("auto-reserve failed for material line",
				zap.Int("org_id", orgID),
				zap.Int("work_order_id", workOrderID),
				zap.Int("material_id", material.ID),
				zap.Error(err))
		}
		material.ReservedQty = material.ReservedQty.Add(reserved)
		coverage = append(coverage, MaterialCoverage{
			Material: material,
			Coverage: models.CalculateCoverage(material.RequiredQty, material.ReservedQty),
		})
	}

	wo.Materials = nil
	return &ReleaseResult{WorkOrder: wo, Coverage: coverage}, nil
}

func (s *WorkOrderService) autoReserveMaterial(
	ctx context.Context,
	orgID int,
	actor roles.Actor,
	wo *models.WorkOrder,
	material models.WorkOrderMaterial,
	strategy metadata.AllocationStrategy,
) (decimal.Decimal, error) {
	remaining := material.RequiredQty.Sub(material.ReservedQty)
	if !remaining.IsPositive() {
		return decimal.Zero, nil
	}

	eligible, err := s.ledger.FindEligible(orgID, material.ProductID, ledger.EligibleFilters{
		WarehouseID: wo.WarehouseID,
		Strategy:    strategy,
	})
	if err != nil {
		return decimal.Zero, err
	}

	plan, err := allocation.BuildPlan(material.ProductID, remaining, strategy, eligible)
	if err != nil {
		return decimal.Zero, err
	}
	if len(plan.Slices) == 0 {
		return decimal.Zero, nil
	}

	reserved, err := s.reservations.Reserve(ctx, orgID, actor, reservation.ReserveRequest{
		EntityType:        models.EntityWorkOrder,
		EntityID:          wo.ID,
		LineID:            material.ID,
		ExpectedProductID: material.ProductID,
		Plan:              &plan,
	})
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, res := range reserved {
		total = total.Add(res.Quantity)
	}

	err = s.runTx(ctx, s.r, func(tx *goqu.TxDatabase) error {
		return s.workOrders.AddMaterialReserved(tx, orgID, material.ID, total)
	})
	if err != nil {
		return total, err
	}
	return total, nil
}

// Start moves a released work order into production.
func (s *WorkOrderService) Start(ctx context.Context, orgID int, actor roles.Actor, workOrderID int) (*models.WorkOrder, error) {
	return s.transition(ctx, orgID, workOrderID, metadata.WOInProgress)
}

// Pause suspends an in-progress work order; Resume via Start.
func (s *WorkOrderService) Pause(ctx context.Context, orgID int, actor roles.Actor, workOrderID int) (*models.WorkOrder, error) {
	return s.transition(ctx, orgID, workOrderID, metadata.WOPaused)
}

// Complete finishes a work order: outstanding active reservations block it
// unless over-consumption is approved, the output quantity becomes a new
// unit, and consumed material units link to that unit as genealogy.
func (s *WorkOrderService) Complete(
	ctx context.Context,
	orgID int,
	actor roles.Actor,
	workOrderID int,
	outputQty decimal.Decimal,
	lotNumber string,
	overConsumptionApproved bool,
) (*models.WorkOrder, error) {
	if overConsumptionApproved && !s.policy.Allow(roles.OverrideOverConsumption, actor) {
		return nil, &apperrors.InvalidTransitionError{
			Entity: "work order",
			From:   string(metadata.WOInProgress),
			To:     string(metadata.WOCompleted),
			Reason: fmt.Sprintf("actor %d may not approve over-consumption", actor.ID),
		}
	}

	var wo *models.WorkOrder
	err := s.runTx(ctx, s.r, func(tx *goqu.TxDatabase) error {
		var err error
		wo, err = s.workOrders.GetWorkOrderForUpdate(tx, orgID, workOrderID)
		if err != nil {
			return err
		}
		if err := wo.Status.ValidateTransition(metadata.WOCompleted); err != nil {
			return err
		}

		active, err := s.resRepo.GetActiveForEntityTx(tx, orgID, models.EntityWorkOrder, workOrderID)
		if err != nil {
			return err
		}
		if len(active) > 0 {
			if !overConsumptionApproved {
				return &apperrors.InvalidTransitionError{
					Entity: "work order",
					From:   string(wo.Status),
					To:     string(metadata.WOCompleted),
					Reason: fmt.Sprintf("%d active reservations outstanding", len(active)),
				}
			}
			if _, err := s.resRepo.ReleaseAllForEntity(tx, orgID, models.EntityWorkOrder, workOrderID); err != nil {
				return err
			}
		}

		if outputQty.IsPositive() {
			if err := s.produceOutput(tx, orgID, wo, outputQty, lotNumber); err != nil {
				return err
			}
		}

		if err := s.workOrders.UpdateStatus(tx, orgID, workOrderID, wo.Status, metadata.WOCompleted); err != nil {
			return err
		}
		wo.Status = metadata.WOCompleted
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishStatusChange(ctx, orgID, wo)
	return wo, nil
}

func (s *WorkOrderService) produceOutput(tx *goqu.TxDatabase, orgID int, wo *models.WorkOrder, outputQty decimal.Decimal, lotNumber string) error {
	output := &models.InventoryUnit{
		OrgID:           orgID,
		ProductID:       wo.ProductID,
		OnHand:          outputQty,
		LotNumber:       lotNumber,
		ManufactureDate: time.Now(),
		QualityStatus:   metadata.QualityPending,
		Status:          metadata.UnitAvailable,
		WarehouseID:     wo.WarehouseID,
	}
	outputID, err := s.ledger.CreateUnit(tx, output)
	if err != nil {
		return err
	}

	consumed, err := s.resRepo.GetConsumedForEntityTx(tx, orgID, models.EntityWorkOrder, wo.ID)
	if err != nil {
		return err
	}
	seen := make(map[int]bool, len(consumed))
	for _, res := range consumed {
		if seen[res.UnitID] {
			continue
		}
		seen[res.UnitID] = true
		_, err := s.lineage.InsertEdge(tx, models.GenealogyEdge{
			OrgID:        orgID,
			ParentUnitID: res.UnitID,
			ChildUnitID:  outputID,
			LinkType:     metadata.LinkProduced,
			WorkOrderID:  &wo.ID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Cancel aborts a non-terminal work order and releases everything it holds.
func (s *WorkOrderService) Cancel(ctx context.Context, orgID int, actor roles.Actor, workOrderID int) (*models.WorkOrder, error) {
	var wo *models.WorkOrder
	err := s.runTx(ctx, s.r, func(tx *goqu.TxDatabase) error {
		var err error
		wo, err = s.workOrders.GetWorkOrderForUpdate(tx, orgID, workOrderID)
		if err != nil {
			return err
		}
		if err := wo.Status.ValidateTransition(metadata.WOCancelled); err != nil {
			return err
		}
		if _, err := s.resRepo.ReleaseAllForEntity(tx, orgID, models.EntityWorkOrder, workOrderID); err != nil {
			return err
		}
		if err := s.workOrders.UpdateStatus(tx, orgID, workOrderID, wo.Status, metadata.WOCancelled); err != nil {
			return err
		}
		wo.Status = metadata.WOCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishStatusChange(ctx, orgID, wo)
	return wo, nil
}

// Coverage reports current per-line reservation coverage for a work order.
func (s *WorkOrderService) Coverage(orgID, workOrderID int) ([]MaterialCoverage, error) {
	wo, err := s.workOrders.GetWorkOrder(orgID, workOrderID)
	if err != nil {
		return nil, err
	}
	active, err := s.reservations.GetActiveForEntity(orgID, models.EntityWorkOrder, workOrderID)
	if err != nil {
		return nil, err
	}

	reservedByLine := make(map[int]decimal.Decimal, len(active))
	for _, res := range active {
		reservedByLine[res.LineID] = reservedByLine[res.LineID].Add(res.Quantity)
	}

	coverage := make([]MaterialCoverage, 0, len(wo.Materials))
	for _, material := range wo.Materials {
		coverage = append(coverage, MaterialCoverage{
			Material: material,
			Coverage: models.CalculateCoverage(material.RequiredQty, reservedByLine[material.ID]),
		})
	}
	return coverage, nil
}

func (s *WorkOrderService) transition(ctx context.Context, orgID, workOrderID int, to metadata.WorkOrderStatus) (*models.WorkOrder, error) {
	var wo *models.WorkOrder
	err := s.runTx(ctx, s.r, func(tx *goqu.TxDatabase) error {
		var err error
		wo, err = s.workOrders.GetWorkOrderForUpdate(tx, orgID, workOrderID)
		if err != nil {
			return err
		}
		if err := wo.Status.ValidateTransition(to); err != nil {
			return err
		}
		if err := s.workOrders.UpdateStatus(tx, orgID, workOrderID, wo.Status, to); err != nil {
			return err
		}
		wo.Status = to
		return nil
	})
	if err != nil {
		return nil, err
	}

	if to == metadata.WOReleased {
		wo.Materials, err = s.workOrders.GetMaterials(orgID, workOrderID)
		if err != nil {
			return nil, err
		}
	}

	s.publishStatusChange(ctx, orgID, wo)
	return wo, nil
}

func (s *WorkOrderService) publishStatusChange(ctx context.Context, orgID int, wo *models.WorkOrder) {
	s.producer.Publish(ctx, events.TypeEntityStatusChanged, orgID,
		fmt.Sprintf("work_order-%d", wo.ID), map[string]any{
			"entity_type": models.EntityWorkOrder,
			"entity_id":   wo.ID,
			"status":      wo.Status,
		})
	s.log.Info("work order status changed",
		zap.Int("org_id", orgID),
		zap.Int("work_order_id", wo.ID),
		zap.String("status", string(wo.Status)))
}
