package purchaseorders

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/CoderMariusz/MonoPilot-sub046/internal/events"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/ledger"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/repository"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/models"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/roles"
)

// ReceiveLineRequest books one delivery against a purchase order line.
type ReceiveLineRequest struct {
	LineID        int                    `json:"line_id"`
	Quantity      decimal.Decimal        `json:"quantity"`
	LotNumber     string                 `json:"lot_number"`
	ExpiryDate    *time.Time             `json:"expiry_date,omitempty"`
	QualityStatus metadata.QualityStatus `json:"quality_status,omitempty"`
}

type PurchaseOrderService struct {
	r              *repository.Repository
	purchaseOrders PurchaseOrderRepository
	ledger         ledger.LedgerRepository
	producer       *events.Producer
	log            *zap.Logger
	runTx          func(ctx context.Context, r *repository.Repository, fn func(tx *goqu.TxDatabase) error) error
}

func NewService(
	r *repository.Repository,
	purchaseOrders PurchaseOrderRepository,
	ledgerRepo ledger.LedgerRepository,
	producer *events.Producer,
	log *zap.Logger,
) *PurchaseOrderService {
	return &PurchaseOrderService{
		r:              r,
		purchaseOrders: purchaseOrders,
		ledger:         ledgerRepo,
		producer:       producer,
		log:            log,
		runTx:          repository.WithTransaction,
	}
}

func (s *PurchaseOrderService) GetPurchaseOrder(orgID, purchaseOrderID int) (*models.PurchaseOrder, error) {
	return s.purchaseOrders.GetPurchaseOrder(orgID, purchaseOrderID)
}

// SubmitForApproval moves a draft purchase order into the approval queue.
func (s *PurchaseOrderService) SubmitForApproval(ctx context.Context, orgID int, actor roles.Actor, purchaseOrderID int) (*models.PurchaseOrder, error) {
	return s.transition(ctx, orgID, purchaseOrderID, metadata.POPendingApproval, ApprovalPending)
}

// Approve clears the approval gate and moves the order to approved.
func (s *PurchaseOrderService) Approve(ctx context.Context, orgID int, actor roles.Actor, purchaseOrderID int) (*models.PurchaseOrder, error) {
	return s.transition(ctx, orgID, purchaseOrderID, metadata.POApproved, ApprovalApproved)
}

// Reject sends a pending order back to draft.
func (s *PurchaseOrderService) Reject(ctx context.Context, orgID int, actor roles.Actor, purchaseOrderID int) (*models.PurchaseOrder, error) {
	return s.transition(ctx, orgID, purchaseOrderID, metadata.PODraft, ApprovalRejected)
}

// StartReceiving opens an approved purchase order for deliveries.
func (s *PurchaseOrderService) StartReceiving(ctx context.Context, orgID int, actor roles.Actor, purchaseOrderID int) (*models.PurchaseOrder, error) {
	return s.transition(ctx, orgID, purchaseOrderID, metadata.POReceiving, "")
}

// Close finishes a purchase order; closed orders are immutable.
func (s *PurchaseOrderService) Close(ctx context.Context, orgID int, actor roles.Actor, purchaseOrderID int) (*models.PurchaseOrder, error) {
	return s.transition(ctx, orgID, purchaseOrderID, metadata.POClosed, "")
}

// Cancel aborts a purchase order that has not started receiving.
func (s *PurchaseOrderService) Cancel(ctx context.Context, orgID int, actor roles.Actor, purchaseOrderID int) (*models.PurchaseOrder, error) {
	return s.transition(ctx, orgID, purchaseOrderID, metadata.POCancelled, "")
}

// ReceiveLine books a delivery: a new inventory unit appears in the order's
// warehouse and the line's received total grows. Requires receiving status.
func (s *PurchaseOrderService) ReceiveLine(ctx context.Context, orgID int, actor roles.Actor, purchaseOrderID int, req ReceiveLineRequest) (*models.InventoryUnit, error) {
	if !req.Quantity.IsPositive() {
		return nil, apperrors.ErrInvalidQuantity
	}
	quality := req.QualityStatus
	if quality == "" {
		quality = metadata.QualityPassed
	}

	var unit *models.InventoryUnit
	err := s.runTx(ctx, s.r, func(tx *goqu.TxDatabase) error {
		po, err := s.purchaseOrders.GetPurchaseOrderForUpdate(tx, orgID, purchaseOrderID)
		if err != nil {
			return err
		}
		if po.Status != metadata.POReceiving {
			return &apperrors.InvalidTransitionError{
				Entity: "purchase order",
				From:   string(po.Status),
				To:     string(metadata.POReceiving),
				Reason: "deliveries require receiving status",
			}
		}

		lines, err := s.purchaseOrders.GetLinesTx(tx, orgID, purchaseOrderID)
		if err != nil {
			return err
		}
		var line *models.PurchaseOrderLine
		for i := range lines {
			if lines[i].ID == req.LineID {
				line = &lines[i]
				break
			}
		}
		if line == nil {
			return fmt.Errorf("purchase order line %d not found", req.LineID)
		}

		unit = &models.InventoryUnit{
			OrgID:           orgID,
			ProductID:       line.ProductID,
			OnHand:          req.Quantity,
			UOM:             line.UOM,
			LotNumber:       req.LotNumber,
			ManufactureDate: time.Now(),
			ExpiryDate:      req.ExpiryDate,
			QualityStatus:   quality,
			Status:          metadata.UnitAvailable,
			WarehouseID:     po.WarehouseID,
		}
		unitID, err := s.ledger.CreateUnit(tx, unit)
		if err != nil {
			return err
		}
		unit.ID = unitID

		return s.purchaseOrders.AddLineReceived(tx, orgID, req.LineID, req.Quantity)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("purchase order delivery received",
		zap.Int("org_id", orgID),
		zap.Int("purchase_order_id", purchaseOrderID),
		zap.Int("line_id", req.LineID),
		zap.Int("unit_id", unit.ID))
	return unit, nil
}

func (s *PurchaseOrderService) transition(ctx context.Context, orgID, purchaseOrderID int, next metadata.PurchaseOrderStatus, approval string) (*models.PurchaseOrder, error) {
	var po *models.PurchaseOrder
	err := s.runTx(ctx, s.r, func(tx *goqu.TxDatabase) error {
		var err error
		po, err = s.purchaseOrders.GetPurchaseOrderForUpdate(tx, orgID, purchaseOrderID)
		if err != nil {
			return err
		}

		// A pending approval freezes the order; only resolving the
		// approval itself may move it.
		resolvesApproval := approval == ApprovalApproved || approval == ApprovalRejected
		if po.ApprovalStatus == ApprovalPending && !resolvesApproval {
			return &apperrors.InvalidTransitionError{
				Entity: "purchase order",
				From:   string(po.Status),
				To:     string(next),
				Reason: "approval is pending",
			}
		}

		if err := po.Status.ValidateTransition(next); err != nil {
			return err
		}
		if err := s.purchaseOrders.UpdateStatus(tx, orgID, purchaseOrderID, po.Status, next); err != nil {
			return err
		}
		if approval != "" {
			if err := s.purchaseOrders.SetApprovalStatus(tx, orgID, purchaseOrderID, approval); err != nil {
				return err
			}
			po.ApprovalStatus = approval
		}
		po.Status = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.producer.Publish(ctx, events.TypeEntityStatusChanged, orgID,
		fmt.Sprintf("purchase_order-%d", po.ID), map[string]any{
			"entity_type": "purchase_order",
			"entity_id":   po.ID,
			"status":      po.Status,
		})
	return po, nil
}
