package rma

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

var ErrRMANotFound = errors.New("rma not found")

type RMARepository interface {
	GetRMA(orgID, rmaID int) (*models.RMA, error)
	GetRMAForUpdate(tx *goqu.TxDatabase, orgID, rmaID int) (*models.RMA, error)
	GetLinesTx(tx *goqu.TxDatabase, orgID, rmaID int) ([]models.RMALine, error)
	UpdateStatus(tx *goqu.TxDatabase, orgID, rmaID int, from, to metadata.RMAStatus) error
	UpdateLine(tx *goqu.TxDatabase, orgID, lineID int, expectedQty decimal.Decimal) error
	AddLineReceived(tx *goqu.TxDatabase, orgID, lineID int, delta decimal.Decimal) error
}

type rmaRepository struct {
	repo *repository.Repository
}

func NewRepository(r *repository.Repository) *rmaRepository {
	return &rmaRepository{repo: r}
}

var rmaColumns = []any{
	"id", "org_id", "customer_id", "warehouse_id", "status",
	"received_at", "closed_at", "created_at",
}

func (r *rmaRepository) GetRMA(orgID, rmaID int) (*models.RMA, error) {
	var rma models.RMA
	found, err := r.repo.GoquDBWrapper.
		From("rmas").
		Select(rmaColumns...).
		Where(goqu.Ex{"id": rmaID, "org_id": orgID}).
		ScanStruct(&rma)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rma: %w", apperrors.WrapDBError(err))
	}
	if !found {
		return nil, ErrRMANotFound
	}

	err = scanLines(r.repo.GoquDBWrapper.From(goqu.T("rma_lines").As("l")), orgID, rmaID, &rma.Lines)
	if err != nil {
		return nil, err
	}
	return &rma, nil
}

func (r *rmaRepository) GetRMAForUpdate(tx *goqu.TxDatabase, orgID, rmaID int) (*models.RMA, error) {
	var rma models.RMA
	found, err := tx.
		From("rmas").
		Select(rmaColumns...).
		Where(goqu.Ex{"id": rmaID, "org_id": orgID}).
		ForUpdate(goqu.Wait).
		ScanStruct(&rma)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRMANotFound
		}
		return nil, fmt.Errorf("failed to lock rma: %w", apperrors.WrapDBError(err))
	}
	if !found {
		return nil, ErrRMANotFound
	}
	return &rma, nil
}

func (r *rmaRepository) GetLinesTx(tx *goqu.TxDatabase, orgID, rmaID int) ([]models.RMALine, error) {
	var lines []models.RMALine
	err := scanLines(tx.From(goqu.T("rma_lines").As("l")), orgID, rmaID, &lines)
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func scanLines(dataset *goqu.SelectDataset, orgID, rmaID int, out any) error {
	err := dataset.
		Join(goqu.T("rmas").As("r"), goqu.On(goqu.I("r.id").Eq(goqu.I("l.rma_id")))).
		Select(
			goqu.I("l.id").As("id"),
			goqu.I("l.rma_id").As("rma_id"),
			goqu.I("l.product_id").As("product_id"),
			goqu.I("l.expected_qty").As("expected_qty"),
			goqu.I("l.received_qty").As("received_qty"),
			goqu.I("l.uom").As("uom"),
		).
		Where(goqu.Ex{"l.rma_id": rmaID, "r.org_id": orgID}).
		Order(goqu.I("l.id").Asc()).
		ScanStructs(out)
	if err != nil {
		return fmt.Errorf("failed to fetch rma lines: %w", apperrors.WrapDBError(err))
	}
	return nil
}

func (r *rmaRepository) UpdateStatus(tx *goqu.TxDatabase, orgID, rmaID int, from, to metadata.RMAStatus) error {
	record := goqu.Record{"status": to}
	switch to {
	case metadata.RMAReceived:
		record["received_at"] = time.Now()
	case metadata.RMAClosed:
		record["closed_at"] = time.Now()
	}

	result, err := tx.Update("rmas").
		Set(record).
		Where(goqu.Ex{"id": rmaID, "org_id": orgID, "status": from}).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to update rma status: %w", apperrors.WrapDBError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return &apperrors.InvalidTransitionError{
			Entity: "rma",
			From:   string(from),
			To:     string(to),
			Reason: "status changed concurrently",
		}
	}
	return nil
}

func (r *rmaRepository) UpdateLine(tx *goqu.TxDatabase, orgID, lineID int, expectedQty decimal.Decimal) error {
	result, err := tx.Update("rma_lines").
		Set(goqu.Record{"expected_qty": expectedQty}).
		Where(
			goqu.Ex{"id": lineID},
			goqu.L("rma_id IN (SELECT id FROM rmas WHERE org_id = ?)", orgID),
		).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to update rma line: %w", apperrors.WrapDBError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rma line %d not found", lineID)
	}
	return nil
}

func (r *rmaRepository) AddLineReceived(tx *goqu.TxDatabase, orgID, lineID int, delta decimal.Decimal) error {
	result, err := tx.Update("rma_lines").
		Set(goqu.Record{"received_qty": goqu.L("received_qty + ?", delta)}).
		Where(
			goqu.Ex{"id": lineID},
			goqu.L("rma_id IN (SELECT id FROM rmas WHERE org_id = ?)", orgID),
		).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to update rma line received_qty: %w", apperrors.WrapDBError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rma line %d not found", lineID)
	}
	return nil
}
