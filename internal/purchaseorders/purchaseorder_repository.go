package purchaseorders

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

var ErrPurchaseOrderNotFound = errors.New("purchase order not found")

// Approval states carried next to the status graph. A pending approval
// blocks every status change.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

type PurchaseOrderRepository interface {
	GetPurchaseOrder(orgID, purchaseOrderID int) (*models.PurchaseOrder, error)
	GetPurchaseOrderForUpdate(tx *goqu.TxDatabase, orgID, purchaseOrderID int) (*models.PurchaseOrder, error)
	GetLinesTx(tx *goqu.TxDatabase, orgID, purchaseOrderID int) ([]models.PurchaseOrderLine, error)
	UpdateStatus(tx *goqu.TxDatabase, orgID, purchaseOrderID int, from, to metadata.PurchaseOrderStatus) error
	SetApprovalStatus(tx *goqu.TxDatabase, orgID, purchaseOrderID int, approval string) error
	AddLineReceived(tx *goqu.TxDatabase, orgID, lineID int, delta decimal.Decimal) error
}

type purchaseOrderRepository struct {
	repo *repository.Repository
}

func NewRepository(r *repository.Repository) *purchaseOrderRepository {
	return &purchaseOrderRepository{repo: r}
}

var purchaseOrderColumns = []any{
	"id", "org_id", "supplier_id", "warehouse_id", "status",
	"approval_status", "approved_at", "closed_at", "created_at",
}

func (r *purchaseOrderRepository) GetPurchaseOrder(orgID, purchaseOrderID int) (*models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	found, err := r.repo.GoquDBWrapper.
		From("purchase_orders").
		Select(purchaseOrderColumns...).
		Where(goqu.Ex{"id": purchaseOrderID, "org_id": orgID}).
		ScanStruct(&po)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch purchase order: %w", apperrors.WrapDBError(err))
	}
	if !found {
		return nil, ErrPurchaseOrderNotFound
	}

	err = r.repo.GoquDBWrapper.
		From(goqu.T("purchase_order_lines").As("l")).
		Join(goqu.T("purchase_orders").As("p"), goqu.On(goqu.I("p.id").Eq(goqu.I("l.purchase_order_id")))).
		Select(
			goqu.I("l.id").As("id"),
			goqu.I("l.purchase_order_id").As("purchase_order_id"),
			goqu.I("l.product_id").As("product_id"),
			goqu.I("l.ordered_qty").As("ordered_qty"),
			goqu.I("l.received_qty").As("received_qty"),
			goqu.I("l.uom").As("uom"),
		).
		Where(goqu.Ex{"l.purchase_order_id": purchaseOrderID, "p.org_id": orgID}).
		Order(goqu.I("l.id").Asc()).
		ScanStructs(&po.Lines)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch purchase order lines: %w", apperrors.WrapDBError(err))
	}
	return &po, nil
}

func (r *purchaseOrderRepository) GetPurchaseOrderForUpdate(tx *goqu.TxDatabase, orgID, purchaseOrderID int) (*models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	found, err := tx.
		From("purchase_orders").
		Select(purchaseOrderColumns...).
		Where(goqu.Ex{"id": purchaseOrderID, "org_id": orgID}).
		ForUpdate(goqu.Wait).
		ScanStruct(&po)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPurchaseOrderNotFound
		}
		return nil, fmt.Errorf("failed to lock purchase order: %w", apperrors.WrapDBError(err))
	}
	if !found {
		return nil, ErrPurchaseOrderNotFound
	}
	return &po, nil
}

func (r *purchaseOrderRepository) GetLinesTx(tx *goqu.TxDatabase, orgID, purchaseOrderID int) ([]models.PurchaseOrderLine, error) {
	var lines []models.PurchaseOrderLine
	err := tx.
		From(goqu.T("purchase_order_lines").As("l")).
		Join(goqu.T("purchase_orders").As("p"), goqu.On(goqu.I("p.id").Eq(goqu.I("l.purchase_order_id")))).
		Select(
			goqu.I("l.id").As("id"),
			goqu.I("l.purchase_order_id").As("purchase_order_id"),
			goqu.I("l.product_id").As("product_id"),
			goqu.I("l.ordered_qty").As("ordered_qty"),
			goqu.I("l.received_qty").As("received_qty"),
			goqu.I("l.uom").As("uom"),
		).
		Where(goqu.Ex{"l.purchase_order_id": purchaseOrderID, "p.org_id": orgID}).
		Order(goqu.I("l.id").Asc()).
		ScanStructs(&lines)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch purchase order lines: %w", apperrors.WrapDBError(err))
	}
	return lines, nil
}

func (r *purchaseOrderRepository) UpdateStatus(tx *goqu.TxDatabase, orgID, purchaseOrderID int, from, to metadata.PurchaseOrderStatus) error {
	record := goqu.Record{"status": to}
	switch to {
	case metadata.POApproved:
		record["approved_at"] = time.Now()
	case metadata.POClosed:
		record["closed_at"] = time.Now()
	}

	result, err := tx.Update("purchase_orders").
		Set(record).
		Where(goqu.Ex{"id": purchaseOrderID, "org_id": orgID, "status": from}).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to update purchase order status: %w", apperrors.WrapDBError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return &apperrors.InvalidTransitionError{
			Entity: "purchase order",
			From:   string(from),
			To:     string(to),
			Reason: "status changed concurrently",
		}
	}
	return nil
}

func (r *purchaseOrderRepository) SetApprovalStatus(tx *goqu.TxDatabase, orgID, purchaseOrderID int, approval string) error {
	result, err := tx.Update("purchase_orders").
		Set(goqu.Record{"approval_status": approval}).
		Where(goqu.Ex{"id": purchaseOrderID, "org_id": orgID}).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to update approval status: %w", apperrors.WrapDBError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrPurchaseOrderNotFound
	}
	return nil
}

func (r *purchaseOrderRepository) AddLineReceived(tx *goqu.TxDatabase, orgID, lineID int, delta decimal.Decimal) error {
	result, err := tx.Update("purchase_order_lines").
		Set(goqu.Record{"received_qty": goqu.L("received_qty + ?", delta)}).
		Where(
			goqu.Ex{"id": lineID},
			goqu.L("purchase_order_id IN (SELECT id FROM purchase_orders WHERE org_id = ?)", orgID),
		).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to update line received_qty: %w", apperrors.WrapDBError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("purchase order line %d not found", lineID)
	}
	return nil
}
