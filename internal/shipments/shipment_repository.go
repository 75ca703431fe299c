package shipments

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/CoderMariusz/MonoPilot-sub046/internal/repository"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/models"
)

var ErrShipmentNotFound = errors.New("shipment not found")

type ShipmentRepository interface {
	GetShipment(orgID, shipmentID int) (*models.Shipment, error)
	GetShipmentForUpdate(tx *goqu.TxDatabase, orgID, shipmentID int) (*models.Shipment, error)
	GetBoxes(orgID, shipmentID int) ([]models.ShipmentBox, error)
	GetBoxesTx(tx *goqu.TxDatabase, orgID, shipmentID int) ([]models.ShipmentBox, error)
	AddBox(tx *goqu.TxDatabase, orgID, shipmentID, boxNumber int) (int, error)
	RemoveBox(tx *goqu.TxDatabase, orgID, shipmentID, boxID int) error
	UpdateStatus(tx *goqu.TxDatabase, orgID, shipmentID int, from, to metadata.ShipmentStatus) error
	SetSalesOrderStatus(tx *goqu.TxDatabase, orgID, salesOrderID int, status string) error
}

type shipmentRepository struct {
	repo *repository.Repository
}

func NewRepository(r *repository.Repository) *shipmentRepository {
	return &shipmentRepository{repo: r}
}

var shipmentColumns = []any{
	"id", "org_id", "sales_order_id", "warehouse_id", "status",
	"shipped_at", "delivered_at", "created_at",
}

func (r *shipmentRepository) GetShipment(orgID, shipmentID int) (*models.Shipment, error) {
	var shipment models.Shipment
	found, err := r.repo.GoquDBWrapper.
		From("shipments").
		Select(shipmentColumns...).
		Where(goqu.Ex{"id": shipmentID, "org_id": orgID}).
		ScanStruct(&shipment)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch shipment: %w", apperrors.WrapDBError(err))
	}
	if !found {
		return nil, ErrShipmentNotFound
	}

	shipment.Boxes, err = r.GetBoxes(orgID, shipmentID)
	if err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *shipmentRepository) GetShipmentForUpdate(tx *goqu.TxDatabase, orgID, shipmentID int) (*models.Shipment, error) {
	var shipment models.Shipment
	found, err := tx.
		From("shipments").
		Select(shipmentColumns...).
		Where(goqu.Ex{"id": shipmentID, "org_id": orgID}).
		ForUpdate(goqu.Wait).
		ScanStruct(&shipment)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShipmentNotFound
		}
		return nil, fmt.Errorf("failed to lock shipment: %w", apperrors.WrapDBError(err))
	}
	if !found {
		return nil, ErrShipmentNotFound
	}
	return &shipment, nil
}

func (r *shipmentRepository) GetBoxes(orgID, shipmentID int) ([]models.ShipmentBox, error) {
	return scanBoxes(r.repo.GoquDBWrapper.From(goqu.T("shipment_boxes").As("b")), orgID, shipmentID)
}

func (r *shipmentRepository) GetBoxesTx(tx *goqu.TxDatabase, orgID, shipmentID int) ([]models.ShipmentBox, error) {
	return scanBoxes(tx.From(goqu.T("shipment_boxes").As("b")), orgID, shipmentID)
}

func scanBoxes(dataset *goqu.SelectDataset, orgID, shipmentID int) ([]models.ShipmentBox, error) {
	var boxes []models.ShipmentBox
	err := dataset.
		Join(goqu.T("shipments").As("s"), goqu.On(goqu.I("s.id").Eq(goqu.I("b.shipment_id")))).
		Select(
			goqu.I("b.id").As("id"),
			goqu.I("b.shipment_id").As("shipment_id"),
			goqu.I("b.box_number").As("box_number"),
			goqu.I("b.created_at").As("created_at"),
		).
		Where(goqu.Ex{"b.shipment_id": shipmentID, "s.org_id": orgID}).
		Order(goqu.I("b.box_number").Asc()).
		ScanStructs(&boxes)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch shipment boxes: %w", apperrors.WrapDBError(err))
	}
	return boxes, nil
}

func (r *shipmentRepository) AddBox(tx *goqu.TxDatabase, orgID, shipmentID, boxNumber int) (int, error) {
	var boxID int
	found, err := tx.Insert("shipment_boxes").
		Rows(goqu.Record{
			"shipment_id": shipmentID,
			"box_number":  boxNumber,
			"created_at":  time.Now(),
		}).
		Returning("id").
		Executor().
		ScanVal(&boxID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert shipment box: %w", apperrors.WrapDBError(err))
	}
	if !found {
		return 0, errors.New("failed to insert shipment box: no id returned")
	}
	return boxID, nil
}

func (r *shipmentRepository) RemoveBox(tx *goqu.TxDatabase, orgID, shipmentID, boxID int) error {
	result, err := tx.Delete("shipment_boxes").
		Where(
			goqu.Ex{"id": boxID, "shipment_id": shipmentID},
			goqu.L("shipment_id IN (SELECT id FROM shipments WHERE org_id = ?)", orgID),
		).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to delete shipment box: %w", apperrors.WrapDBError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("shipment box %d not found", boxID)
	}
	return nil
}

func (r *shipmentRepository) UpdateStatus(tx *goqu.TxDatabase, orgID, shipmentID int, from, to metadata.ShipmentStatus) error {
	record := goqu.Record{"status": to}
	switch to {
	case metadata.ShipmentShipped:
		record["shipped_at"] = time.Now()
	case metadata.ShipmentDelivered:
		record["delivered_at"] = time.Now()
	}

	result, err := tx.Update("shipments").
		Set(record).
		Where(goqu.Ex{"id": shipmentID, "org_id": orgID, "status": from}).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to update shipment status: %w", apperrors.WrapDBError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return &apperrors.InvalidTransitionError{
			Entity: "shipment",
			From:   string(from),
			To:     string(to),
			Reason: "status changed concurrently",
		}
	}
	return nil
}

func (r *shipmentRepository) SetSalesOrderStatus(tx *goqu.TxDatabase, orgID, salesOrderID int, status string) error {
	result, err := tx.Update("sales_orders").
		Set(goqu.Record{"status": status}).
		Where(goqu.Ex{"id": salesOrderID, "org_id": orgID}).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to update sales order status: %w", apperrors.WrapDBError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("sales order %d not found", salesOrderID)
	}
	return nil
}
