package transferorders

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

var ErrTransferOrderNotFound = errors.New("transfer order not found")

type TransferOrderRepository interface {
	GetTransferOrder(orgID, transferOrderID int) (*models.TransferOrder, error)
	GetTransferOrderForUpdate(tx *goqu.TxDatabase, orgID, transferOrderID int) (*models.TransferOrder, error)
	GetLines(orgID, transferOrderID int) ([]models.TransferOrderLine, error)
	GetLinesTx(tx *goqu.TxDatabase, orgID, transferOrderID int) ([]models.TransferOrderLine, error)
	UpdateStatus(tx *goqu.TxDatabase, orgID, transferOrderID int, from, to metadata.TransferOrderStatus) error
	AddLineShipped(tx *goqu.TxDatabase, orgID, lineID int, delta decimal.Decimal) error
	AddLineReceived(tx *goqu.TxDatabase, orgID, lineID int, delta decimal.Decimal) error
}

type transferOrderRepository struct {
	repo *repository.Repository
}

func NewRepository(r *repository.Repository) *transferOrderRepository {
	return &transferOrderRepository{repo: r}
}

var transferOrderColumns = []any{
	"id", "org_id", "from_warehouse_id", "to_warehouse_id",
	"status", "shipped_at", "received_at", "created_at",
}

func (r *transferOrderRepository) GetTransferOrder(orgID, transferOrderID int) (*models.TransferOrder, error) {
	var to models.TransferOrder
	found, err := r.repo.GoquDBWrapper.
		From("transfer_orders").
		Select(transferOrderColumns...).
		Where(goqu.Ex{"id": transferOrderID, "org_id": orgID}).
		ScanStruct(&to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transfer order: %w", apperrors.WrapDBError(err))
	}
	if !found {
		return nil, ErrTransferOrderNotFound
	}

	to.Lines, err = r.GetLines(orgID, transferOrderID)
	if err != nil {
		return nil, err
	}
	return &to, nil
}

func (r *transferOrderRepository) GetTransferOrderForUpdate(tx *goqu.TxDatabase, orgID, transferOrderID int) (*models.TransferOrder, error) {
	var to models.TransferOrder
	found, err := tx.
		From("transfer_orders").
		Select(transferOrderColumns...).
		Where(goqu.Ex{"id": transferOrderID, "org_id": orgID}).
		ForUpdate(goqu.Wait).
		ScanStruct(&to)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransferOrderNotFound
		}
		return nil, fmt.Errorf("failed to lock transfer order: %w", apperrors.WrapDBError(err))
	}
	if !found {
		return nil, ErrTransferOrderNotFound
	}
	return &to, nil
}

var lineColumns = []any{
	goqu.I("l.id").As("id"),
	goqu.I("l.transfer_order_id").As("transfer_order_id"),
	goqu.I("l.product_id").As("product_id"),
	goqu.I("l.ordered_qty").As("ordered_qty"),
	goqu.I("l.shipped_qty").As("shipped_qty"),
	goqu.I("l.received_qty").As("received_qty"),
	goqu.I("l.uom").As("uom"),
}

func (r *transferOrderRepository) GetLines(orgID, transferOrderID int) ([]models.TransferOrderLine, error) {
	return scanLines(r.repo.GoquDBWrapper.From(goqu.T("transfer_order_lines").As("l")), orgID, transferOrderID)
}

func (r *transferOrderRepository) GetLinesTx(tx *goqu.TxDatabase, orgID, transferOrderID int) ([]models.TransferOrderLine, error) {
	return scanLines(tx.From(goqu.T("transfer_order_lines").As("l")), orgID, transferOrderID)
}

func scanLines(dataset *goqu.SelectDataset, orgID, transferOrderID int) ([]models.TransferOrderLine, error) {
	var lines []models.TransferOrderLine
	err := dataset.
		Join(goqu.T("transfer_orders").As("t"), goqu.On(goqu.I("t.id").Eq(goqu.I("l.transfer_order_id")))).
		Select(lineColumns...).
		Where(goqu.Ex{"l.transfer_order_id": transferOrderID, "t.org_id": orgID}).
		Order(goqu.I("l.id").Asc()).
		ScanStructs(&lines)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transfer order lines: %w", apperrors.WrapDBError(err))
	}
	return lines, nil
}

func (r *transferOrderRepository) UpdateStatus(tx *goqu.TxDatabase, orgID, transferOrderID int, from, to metadata.TransferOrderStatus) error {
	record := goqu.Record{"status": to}
	switch to {
	case metadata.TOShipped:
		record["shipped_at"] = time.Now()
	case metadata.TOReceived:
		record["received_at"] = time.Now()
	}

	result, err := tx.Update("transfer_orders").
		Set(record).
		Where(goqu.Ex{"id": transferOrderID, "org_id": orgID, "status": from}).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to update transfer order status: %w", apperrors.WrapDBError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return &apperrors.InvalidTransitionError{
			Entity: "transfer order",
			From:   string(from),
			To:     string(to),
			Reason: "status changed concurrently",
		}
	}
	return nil
}

func (r *transferOrderRepository) AddLineShipped(tx *goqu.TxDatabase, orgID, lineID int, delta decimal.Decimal) error {
	return r.addLineQty(tx, orgID, lineID, "shipped_qty", delta)
}

func (r *transferOrderRepository) AddLineReceived(tx *goqu.TxDatabase, orgID, lineID int, delta decimal.Decimal) error {
	return r.addLineQty(tx, orgID, lineID, "received_qty", delta)
}

func (r *transferOrderRepository) addLineQty(tx *goqu.TxDatabase, orgID, lineID int, column string, delta decimal.Decimal) error {
	result, err := tx.Update("transfer_order_lines").
		Set(goqu.Record{column: goqu.L(column+" + ?", delta)}).
		Where(
			goqu.Ex{"id": lineID},
			goqu.L("transfer_order_id IN (SELECT id FROM transfer_orders WHERE org_id = ?)", orgID),
		).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to update line %s: %w", column, apperrors.WrapDBError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transfer order line %d not found", lineID)
	}
	return nil
}
