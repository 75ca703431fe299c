package workorders

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub046/internal/repository"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/models"
)

var ErrWorkOrderNotFound = errors.New("work order not found")

type WorkOrderRepository interface {
	GetWorkOrder(orgID, workOrderID int) (*models.WorkOrder, error)
	GetWorkOrderForUpdate(tx *goqu.TxDatabase, orgID, workOrderID int) (*models.WorkOrder, error)
	GetMaterials(orgID, workOrderID int) ([]models.WorkOrderMaterial, error)
	GetMaterialsTx(tx *goqu.TxDatabase, orgID, workOrderID int) ([]models.WorkOrderMaterial, error)
	UpdateStatus(tx *goqu.TxDatabase, orgID, workOrderID int, from, to metadata.WorkOrderStatus) error
	AddMaterialReserved(tx *goqu.TxDatabase, orgID, materialID int, delta decimal.Decimal) error
	AddMaterialConsumed(tx *goqu.TxDatabase, orgID, materialID int, delta decimal.Decimal) error
}

type workOrderRepository struct {
	repo *repository.Repository
}

func NewRepository(r *repository.Repository) *workOrderRepository {
	return &workOrderRepository{repo: r}
}

var workOrderColumns = []any{
	"id", "org_id", "product_id", "warehouse_id", "planned_qty",
	"status", "released_at", "completed_at", "created_at",
}

func (r *workOrderRepository) GetWorkOrder(orgID, workOrderID int) (*models.WorkOrder, error) {
	var wo models.WorkOrder
	found, err := r.repo.GoquDBWrapper.
		From("work_orders").
		Select(workOrderColumns...).
		Where(goqu.Ex{"id": workOrderID, "org_id": orgID}).
		ScanStruct(&wo)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch work order: %w", apperrors.WrapDBError(err))
	}
	if !found {
		return nil, ErrWorkOrderNotFound
	}

	wo.Materials, err = r.GetMaterials(orgID, workOrderID)
	if err != nil {
		return nil, err
	}
	return &wo, nil
}

func (r *workOrderRepository) GetWorkOrderForUpdate(tx *goqu.TxDatabase, orgID, workOrderID int) (*models.WorkOrder, error) {
	var wo models.WorkOrder
	found, err := tx.
		From("work_orders").
		Select(workOrderColumns...).
		Where(goqu.Ex{"id": workOrderID, "org_id": orgID}).
		ForUpdate(goqu.Wait).
		ScanStruct(&wo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWorkOrderNotFound
		}
		return nil, fmt.Errorf("failed to lock work order: %w", apperrors.WrapDBError(err))
	}
	if !found {
		return nil, ErrWorkOrderNotFound
	}
	return &wo, nil
}

var materialColumns = []any{
	"id", "work_order_id", "product_id", "required_qty",
	"reserved_qty", "consumed_qty", "uom",
}

func (r *workOrderRepository) GetMaterials(orgID, workOrderID int) ([]models.WorkOrderMaterial, error) {
	var materials []models.WorkOrderMaterial
	err := r.repo.GoquDBWrapper.
		From(goqu.T("work_order_materials").As("m")).
		Join(goqu.T("work_orders").As("w"), goqu.On(goqu.I("w.id").Eq(goqu.I("m.work_order_id")))).
		Select(
			goqu.I("m.id").As("id"),
			goqu.I("m.work_order_id").As("work_order_id"),
			goqu.I("m.product_id").As("product_id"),
			goqu.I("m.required_qty").As("required_qty"),
			goqu.I("m.reserved_qty").As("reserved_qty"),
			goqu.I("m.consumed_qty").As("consumed_qty"),
			goqu.I("m.uom").As("uom"),
		).
		Where(goqu.Ex{"m.work_order_id": workOrderID, "w.org_id": orgID}).
		Order(goqu.I("m.id").Asc()).
		ScanStructs(&materials)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch work order materials: %w", apperrors.WrapDBError(err))
	}
	return materials, nil
}

func (r *workOrderRepository) GetMaterialsTx(tx *goqu.TxDatabase, orgID, workOrderID int) ([]models.WorkOrderMaterial, error) {
	var materials []models.WorkOrderMaterial
	err := tx.
		From(goqu.T("work_order_materials").As("m")).
		Join(goqu.T("work_orders").As("w"), goqu.On(goqu.I("w.id").Eq(goqu.I("m.work_order_id")))).
		Select(
			goqu.I("m.id").As("id"),
			goqu.I("m.work_order_id").As("work_order_id"),
			goqu.I("m.product_id").As("product_id"),
			goqu.I("m.required_qty").As("required_qty"),
			goqu.I("m.reserved_qty").As("reserved_qty"),
			goqu.I("m.consumed_qty").As("consumed_qty"),
			goqu.I("m.uom").As("uom"),
		).
		Where(goqu.Ex{"m.work_order_id": workOrderID, "w.org_id": orgID}).
		Order(goqu.I("m.id").Asc()).
		ScanStructs(&materials)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch work order materials: %w", apperrors.WrapDBError(err))
	}
	return materials, nil
}

// UpdateStatus flips the status only if the row still holds the expected
// source status. Zero affected rows means a concurrent transition won.
func (r *workOrderRepository) UpdateStatus(tx *goqu.TxDatabase, orgID, workOrderID int, from, to metadata.WorkOrderStatus) error {
	record := goqu.Record{"status": to}
	switch to {
	case metadata.WOReleased:
		record["released_at"] = time.Now()
	case metadata.WOCompleted:
		record["completed_at"] = time.Now()
	}

	result, err := tx.Update("work_orders").
		Set(record).
		Where(goqu.Ex{"id": workOrderID, "org_id": orgID, "status": from}).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to update work order status: %w", apperrors.WrapDBError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return &apperrors.InvalidTransitionError{
			Entity: "work order",
			From:   string(from),
			To:     string(to),
			Reason: "status changed concurrently",
		}
	}
	return nil
}

func (r *workOrderRepository) AddMaterialReserved(tx *goqu.TxDatabase, orgID, materialID int, delta decimal.Decimal) error {
	return r.addMaterialQty(tx, orgID, materialID, "reserved_qty", delta)
}

func (r *workOrderRepository) AddMaterialConsumed(tx *goqu.TxDatabase, orgID, materialID int, delta decimal.Decimal) error {
	return r.addMaterialQty(tx, orgID, materialID, "consumed_qty", delta)
}

func (r *workOrderRepository) addMaterialQty(tx *goqu.TxDatabase, orgID, materialID int, column string, delta decimal.Decimal) error {
	result, err := tx.Update("work_order_materials").
		Set(goqu.Record{column: goqu.L(column+" + ?", delta)}).
		Where(
			goqu.Ex{"id": materialID},
			goqu.L("work_order_id IN (SELECT id FROM work_orders WHERE org_id = ?)", orgID),
		).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to update material %s: %w", column, apperrors.WrapDBError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("material line %d not found", materialID)
	}
	return nil
}
