package rma

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

// ReceiveLineRequest books one returned delivery against an RMA line.
type ReceiveLineRequest struct {
	LineID    int             `json:"line_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	LotNumber string          `json:"lot_number"`
}

type RMAService struct {
	r        *repository.Repository
	rmas     RMARepository
	ledger   ledger.LedgerRepository
	producer *events.Producer
	log      *zap.Logger
	runTx    func(ctx context.Context, r *repository.Repository, fn func(tx *goqu.TxDatabase) error) error
}

func NewService(
	r *repository.Repository,
	rmaRepo RMARepository,
	ledgerRepo ledger.LedgerRepository,
	producer *events.Producer,
	log *zap.Logger,
) *RMAService {
	return &RMAService{
		r:        r,
		rmas:     rmaRepo,
		ledger:   ledgerRepo,
		producer: producer,
		log:      log,
		runTx:    repository.WithTransaction,
	}
}

func (s *RMAService) GetRMA(orgID, rmaID int) (*models.RMA, error) {
	return s.rmas.GetRMA(orgID, rmaID)
}

// Approve accepts a pending return authorization. Lines freeze at this point.
func (s *RMAService) Approve(ctx context.Context, orgID int, actor roles.Actor, rmaID int) (*models.RMA, error) {
	return s.transition(ctx, orgID, rmaID, metadata.RMAApproved)
}

// StartReceiving opens an approved RMA for returned deliveries.
func (s *RMAService) StartReceiving(ctx context.Context, orgID int, actor roles.Actor, rmaID int) (*models.RMA, error) {
	return s.transition(ctx, orgID, rmaID, metadata.RMAReceiving)
}

// MarkReceived records that all expected returns arrived.
func (s *RMAService) MarkReceived(ctx context.Context, orgID int, actor roles.Actor, rmaID int) (*models.RMA, error) {
	return s.transition(ctx, orgID, rmaID, metadata.RMAReceived)
}

// MarkProcessed records that the returned stock was inspected.
func (s *RMAService) MarkProcessed(ctx context.Context, orgID int, actor roles.Actor, rmaID int) (*models.RMA, error) {
	return s.transition(ctx, orgID, rmaID, metadata.RMAProcessed)
}

// Close finishes a processed RMA.
func (s *RMAService) Close(ctx context.Context, orgID int, actor roles.Actor, rmaID int) (*models.RMA, error) {
	return s.transition(ctx, orgID, rmaID, metadata.RMAClosed)
}

// UpdateLine changes a line's expected quantity. Only pending RMAs accept
// line edits.
func (s *RMAService) UpdateLine(ctx context.Context, orgID int, actor roles.Actor, rmaID, lineID int, expectedQty decimal.Decimal) error {
	if !expectedQty.IsPositive() {
		return apperrors.ErrInvalidQuantity
	}
	return s.runTx(ctx, s.r, func(tx *goqu.TxDatabase) error {
		rma, err := s.rmas.GetRMAForUpdate(tx, orgID, rmaID)
		if err != nil {
			return err
		}
		if rma.Status != metadata.RMAPending {
			return &apperrors.InvalidTransitionError{
				Entity: "rma",
				From:   string(rma.Status),
				To:     string(rma.Status),
				Reason: "line edits are permitted only while pending",
			}
		}
		return s.rmas.UpdateLine(tx, orgID, lineID, expectedQty)
	})
}

// ReceiveLine books one returned delivery. The stock lands in quarantine
// until inspection clears it.
func (s *RMAService) ReceiveLine(ctx context.Context, orgID int, actor roles.Actor, rmaID int, req ReceiveLineRequest) (*models.InventoryUnit, error) {
	if !req.Quantity.IsPositive() {
		return nil, apperrors.ErrInvalidQuantity
	}

	var unit *models.InventoryUnit
	err := s.runTx(ctx, s.r, func(tx *goqu.TxDatabase) error {
		rma, err := s.rmas.GetRMAForUpdate(tx, orgID, rmaID)
		if err != nil {
			return err
		}
		if rma.Status != metadata.RMAReceiving {
			return &apperrors.InvalidTransitionError{
				Entity: "rma",
				From:   string(rma.Status),
				To:     string(metadata.RMAReceiving),
				Reason: "returned deliveries require receiving status",
			}
		}

		lines, err := s.rmas.GetLinesTx(tx, orgID, rmaID)
		if err != nil {
			return err
		}
		var line *models.RMALine
		for i := range lines {
			if lines[i].ID == req.LineID {
				line = &lines[i]
				break
			}
		}
		if line == nil {
			return fmt.Errorf("rma line %d not found", req.LineID)
		}

		unit = &models.InventoryUnit{
			OrgID:           orgID,
			ProductID:       line.ProductID,
			OnHand:          req.Quantity,
			UOM:             line.UOM,
			LotNumber:       req.LotNumber,
			ManufactureDate: time.Now(),
			QualityStatus:   metadata.QualityQuarantine,
			Status:          metadata.UnitAvailable,
			WarehouseID:     rma.WarehouseID,
		}
		unitID, err := s.ledger.CreateUnit(tx, unit)
		if err != nil {
			return err
		}
		unit.ID = unitID

		return s.rmas.AddLineReceived(tx, orgID, req.LineID, req.Quantity)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("rma return received",
		zap.Int("org_id", orgID),
		zap.Int("rma_id", rmaID),
		zap.Int("line_id", req.LineID),
		zap.Int("unit_id", unit.ID))
	return unit, nil
}

func (s *RMAService) transition(ctx context.Context, orgID, rmaID int, next metadata.RMAStatus) (*models.RMA, error) {
	var rma *models.RMA
	err := s.runTx(ctx, s.r, func(tx *goqu.TxDatabase) error {
		var err error
		rma, err = s.rmas.GetRMAForUpdate(tx, orgID, rmaID)
		if err != nil {
			return err
		}
		if err := rma.Status.ValidateTransition(next); err != nil {
			return err
		}
		if err := s.rmas.UpdateStatus(tx, orgID, rmaID, rma.Status, next); err != nil {
			return err
		}
		rma.Status = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.producer.Publish(ctx, events.TypeEntityStatusChanged, orgID,
		fmt.Sprintf("rma-%d", rma.ID), map[string]any{
			"entity_type": models.EntityRMA,
			"entity_id":   rma.ID,
			"status":      rma.Status,
		})
	return rma, nil
}
