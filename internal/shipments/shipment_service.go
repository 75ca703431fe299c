package shipments

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"go.uber.org/zap"

	"github.com/CoderMariusz/MonoPilot-sub046/internal/events"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/repository"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/reservation"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/models"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/roles"
)

// Sales order statuses cascaded by shipment transitions.
const (
	SalesOrderShipped   = "shipped"
	SalesOrderDelivered = "delivered"
)

// Consumer finalizes reservations inside a caller-owned transaction so the
// shipped transition and its consumption commit together.
type Consumer interface {
	ConsumeTx(tx *goqu.TxDatabase, orgID int, actor roles.Actor, reservationID int) (*models.ConsumptionRecord, error)
}

// ShipResult reports what one shipped transition consumed.
type ShipResult struct {
	Shipment *models.Shipment           `json:"shipment"`
	Consumed []models.ConsumptionRecord `json:"consumed"`
}

type ShipmentService struct {
	r         *repository.Repository
	shipments ShipmentRepository
	resRepo   reservation.ReservationRepository
	consumer  Consumer
	producer  *events.Producer
	log       *zap.Logger
	runTx     func(ctx context.Context, r *repository.Repository, fn func(tx *goqu.TxDatabase) error) error
}

func NewService(
	r *repository.Repository,
	shipmentRepo ShipmentRepository,
	resRepo reservation.ReservationRepository,
	consumer Consumer,
	producer *events.Producer,
	log *zap.Logger,
) *ShipmentService {
	return &ShipmentService{
		r:         r,
		shipments: shipmentRepo,
		resRepo:   resRepo,
		consumer:  consumer,
		producer:  producer,
		log:       log,
		runTx:     repository.WithTransaction,
	}
}

func (s *ShipmentService) GetShipment(orgID, shipmentID int) (*models.Shipment, error) {
	return s.shipments.GetShipment(orgID, shipmentID)
}

// StartPacking opens a pending shipment for box edits.
func (s *ShipmentService) StartPacking(ctx context.Context, orgID int, actor roles.Actor, shipmentID int) (*models.Shipment, error) {
	return s.transition(ctx, orgID, shipmentID, metadata.ShipmentPacking)
}

// MarkPacked freezes the box list ahead of shipping.
func (s *ShipmentService) MarkPacked(ctx context.Context, orgID int, actor roles.Actor, shipmentID int) (*models.Shipment, error) {
	return s.transition(ctx, orgID, shipmentID, metadata.ShipmentPacked)
}

// AddBox appends a box to a shipment. Box edits stop once the shipment ships.
func (s *ShipmentService) AddBox(ctx context.Context, orgID int, actor roles.Actor, shipmentID, boxNumber int) (*models.ShipmentBox, error) {
	var box models.ShipmentBox
	err := s.runTx(ctx, s.r, func(tx *goqu.TxDatabase) error {
		shipment, err := s.shipments.GetShipmentForUpdate(tx, orgID, shipmentID)
		if err != nil {
			return err
		}
		if err := boxesEditable(shipment.Status); err != nil {
			return err
		}

		boxID, err := s.shipments.AddBox(tx, orgID, shipmentID, boxNumber)
		if err != nil {
			return err
		}
		box = models.ShipmentBox{ID: boxID, ShipmentID: shipmentID, BoxNumber: boxNumber}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &box, nil
}

// RemoveBox deletes a box from a shipment that has not shipped yet.
func (s *ShipmentService) RemoveBox(ctx context.Context, orgID int, actor roles.Actor, shipmentID, boxID int) error {
	return s.runTx(ctx, s.r, func(tx *goqu.TxDatabase) error {
		shipment, err := s.shipments.GetShipmentForUpdate(tx, orgID, shipmentID)
		if err != nil {
			return err
		}
		if err := boxesEditable(shipment.Status); err != nil {
			return err
		}
		return s.shipments.RemoveBox(tx, orgID, shipmentID, boxID)
	})
}

func boxesEditable(status metadata.ShipmentStatus) error {
	switch status {
	case metadata.ShipmentPending, metadata.ShipmentPacking, metadata.ShipmentPacked:
		return nil
	}
	return &apperrors.InvalidTransitionError{
		Entity: "shipment",
		From:   string(status),
		To:     string(status),
		Reason: "box edits are closed after shipping",
	}
}

// Ship consumes every reservation allocated to the shipment, stamps the
// shipped status and cascades the parent sales order. Shipping is
// irreversible and demands an explicit confirmation flag.
func (s *ShipmentService) Ship(ctx context.Context, orgID int, actor roles.Actor, shipmentID int, confirm bool) (*ShipResult, error) {
	if !confirm {
		return nil, &apperrors.InvalidTransitionError{
			Entity: "shipment",
			From:   string(metadata.ShipmentPacked),
			To:     string(metadata.ShipmentShipped),
			Reason: "shipping is irreversible and requires explicit confirmation",
		}
	}

	var (
		shipment *models.Shipment
		consumed []models.ConsumptionRecord
	)
	err := s.runTx(ctx, s.r, func(tx *goqu.TxDatabase) error {
		consumed = consumed[:0]

		var err error
		shipment, err = s.shipments.GetShipmentForUpdate(tx, orgID, shipmentID)
		if err != nil {
			return err
		}
		if err := shipment.Status.ValidateTransition(metadata.ShipmentShipped); err != nil {
			return err
		}

		boxes, err := s.shipments.GetBoxesTx(tx, orgID, shipmentID)
		if err != nil {
			return err
		}
		if len(boxes) == 0 {
			return &apperrors.InvalidTransitionError{
				Entity: "shipment",
				From:   string(shipment.Status),
				To:     string(metadata.ShipmentShipped),
				Reason: "NO_BOXES",
			}
		}

		active, err := s.resRepo.GetActiveForEntityTx(tx, orgID, models.EntityShipment, shipmentID)
		if err != nil {
			return err
		}
		if len(active) == 0 {
			return &apperrors.InvalidTransitionError{
				Entity: "shipment",
				From:   string(shipment.Status),
				To:     string(metadata.ShipmentShipped),
				Reason: "no active reservations to consume",
			}
		}
		for _, res := range active {
			record, err := s.consumer.ConsumeTx(tx, orgID, actor, res.ID)
			if err != nil {
				return err
			}
			consumed = append(consumed, *record)
		}

		if err := s.shipments.UpdateStatus(tx, orgID, shipmentID, shipment.Status, metadata.ShipmentShipped); err != nil {
			return err
		}
		if err := s.shipments.SetSalesOrderStatus(tx, orgID, shipment.SalesOrderID, SalesOrderShipped); err != nil {
			return err
		}
		shipment.Status = metadata.ShipmentShipped
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishStatusChange(ctx, orgID, shipment)
	s.log.Info("shipment shipped",
		zap.Int("org_id", orgID),
		zap.Int("shipment_id", shipmentID),
		zap.Int("sales_order_id", shipment.SalesOrderID),
		zap.Int("reservations_consumed", len(consumed)))
	return &ShipResult{Shipment: shipment, Consumed: consumed}, nil
}

// Deliver closes the loop on a shipped shipment and cascades the sales order.
func (s *ShipmentService) Deliver(ctx context.Context, orgID int, actor roles.Actor, shipmentID int) (*models.Shipment, error) {
	var shipment *models.Shipment
	err := s.runTx(ctx, s.r, func(tx *goqu.TxDatabase) error {
		var err error
		shipment, err = s.shipments.GetShipmentForUpdate(tx, orgID, shipmentID)
		if err != nil {
			return err
		}
		if err := shipment.Status.ValidateTransition(metadata.ShipmentDelivered); err != nil {
			return err
		}
		if err := s.shipments.UpdateStatus(tx, orgID, shipmentID, shipment.Status, metadata.ShipmentDelivered); err != nil {
			return err
		}
		if err := s.shipments.SetSalesOrderStatus(tx, orgID, shipment.SalesOrderID, SalesOrderDelivered); err != nil {
			return err
		}
		shipment.Status = metadata.ShipmentDelivered
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishStatusChange(ctx, orgID, shipment)
	return shipment, nil
}

// Cancel aborts an unshipped shipment and releases its reservations.
func (s *ShipmentService) Cancel(ctx context.Context, orgID int, actor roles.Actor, shipmentID int) (*models.Shipment, error) {
	var shipment *models.Shipment
	err := s.runTx(ctx, s.r, func(tx *goqu.TxDatabase) error {
		var err error
		shipment, err = s.shipments.GetShipmentForUpdate(tx, orgID, shipmentID)
		if err != nil {
			return err
		}
		if err := shipment.Status.ValidateTransition(metadata.ShipmentCancelled); err != nil {
			return err
		}
		if _, err := s.resRepo.ReleaseAllForEntity(tx, orgID, models.EntityShipment, shipmentID); err != nil {
			return err
		}
		if err := s.shipments.UpdateStatus(tx, orgID, shipmentID, shipment.Status, metadata.ShipmentCancelled); err != nil {
			return err
		}
		shipment.Status = metadata.ShipmentCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishStatusChange(ctx, orgID, shipment)
	return shipment, nil
}

// MarkException parks a shipment for manual intervention.
func (s *ShipmentService) MarkException(ctx context.Context, orgID int, actor roles.Actor, shipmentID int) (*models.Shipment, error) {
	return s.transition(ctx, orgID, shipmentID, metadata.ShipmentException)
}

func (s *ShipmentService) transition(ctx context.Context, orgID, shipmentID int, next metadata.ShipmentStatus) (*models.Shipment, error) {
	var shipment *models.Shipment
	err := s.runTx(ctx, s.r, func(tx *goqu.TxDatabase) error {
		var err error
		shipment, err = s.shipments.GetShipmentForUpdate(tx, orgID, shipmentID)
		if err != nil {
			return err
		}
		if err := shipment.Status.ValidateTransition(next); err != nil {
			return err
		}
		if err := s.shipments.UpdateStatus(tx, orgID, shipmentID, shipment.Status, next); err != nil {
			return err
		}
		shipment.Status = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishStatusChange(ctx, orgID, shipment)
	return shipment, nil
}

func (s *ShipmentService) publishStatusChange(ctx context.Context, orgID int, shipment *models.Shipment) {
	s.producer.Publish(ctx, events.TypeEntityStatusChanged, orgID,
		fmt.Sprintf("shipment-%d", shipment.ID), map[string]any{
			"entity_type": models.EntityShipment,
			"entity_id":   shipment.ID,
			"status":      shipment.Status,
		})
}
