package consumption

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/CoderMariusz/MonoPilot-sub046/internal/repository"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/models"
)

type ConsumptionRepository interface {
	InsertRecord(tx *goqu.TxDatabase, record models.ConsumptionRecord) (int, error)
	GetRecord(orgID, recordID int) (*models.ConsumptionRecord, error)
	GetRecordForUpdate(tx *goqu.TxDatabase, orgID, recordID int) (*models.ConsumptionRecord, error)
	MarkReversed(tx *goqu.TxDatabase, orgID, recordID, reversalID int) error
	ListForReservation(orgID, reservationID int) ([]models.ConsumptionRecord, error)
}

type consumptionRepository struct {
	repo *repository.Repository
}

func NewRepository(r *repository.Repository) *consumptionRepository {
	return &consumptionRepository{repo: r}
}

var recordColumns = []any{
	"id", "org_id", "reservation_id", "unit_id", "quantity",
	"direction", "reason_code", "notes", "reversed_record_id",
	"actor_id", "created_at",
}

func (r *consumptionRepository) InsertRecord(tx *goqu.TxDatabase, record models.ConsumptionRecord) (int, error) {
	row := goqu.Record{
		"org_id":         record.OrgID,
		"reservation_id": record.ReservationID,
		"unit_id":        record.UnitID,
		"quantity":       record.Quantity,
		"direction":      record.Direction,
		"actor_id":       record.ActorID,
	}
	if record.ReasonCode != nil {
		row["reason_code"] = *record.ReasonCode
	}
	if record.Notes != "" {
		row["notes"] = record.Notes
	}
	if record.ReversedID != nil {
		row["reversed_record_id"] = *record.ReversedID
	}

	var recordID int
	_, err := tx.Insert("consumption_records").
		Rows(row).
		Returning("id").
		Executor().
		ScanVal(&recordID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert consumption record: %w", apperrors.WrapDBError(err))
	}
	return recordID, nil
}

func (r *consumptionRepository) GetRecord(orgID, recordID int) (*models.ConsumptionRecord, error) {
	var record models.ConsumptionRecord
	found, err := r.repo.GoquDBWrapper.
		From("consumption_records").
		Select(recordColumns...).
		Where(goqu.Ex{"id": recordID, "org_id": orgID}).
		ScanStruct(&record)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch consumption record: %w", apperrors.WrapDBError(err))
	}
	if !found {
		return nil, apperrors.ErrConsumptionRecordNotFound
	}
	return &record, nil
}

func (r *consumptionRepository) GetRecordForUpdate(tx *goqu.TxDatabase, orgID, recordID int) (*models.ConsumptionRecord, error) {
	var record models.ConsumptionRecord
	found, err := tx.
		From("consumption_records").
		Select(recordColumns...).
		Where(goqu.Ex{"id": recordID, "org_id": orgID}).
		ForUpdate(goqu.Wait).
		ScanStruct(&record)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrConsumptionRecordNotFound
		}
		return nil, fmt.Errorf("failed to lock consumption record: %w", apperrors.WrapDBError(err))
	}
	if !found {
		return nil, apperrors.ErrConsumptionRecordNotFound
	}
	return &record, nil
}

// MarkReversed stamps a consume-direction record with the id of its reversal.
// The reversed_record_id IS NULL guard makes a second reversal a no-row
// update, reported as AlreadyReversed.
func (r *consumptionRepository) MarkReversed(tx *goqu.TxDatabase, orgID, recordID, reversalID int) error {
	result, err := tx.Update("consumption_records").
		Set(goqu.Record{"reversed_record_id": reversalID}).
		Where(
			goqu.Ex{"id": recordID, "org_id": orgID, "direction": metadata.DirectionConsume},
			goqu.I("reversed_record_id").IsNull(),
		).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to mark consumption record reversed: %w", apperrors.WrapDBError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrAlreadyReversed
	}
	return nil
}

func (r *consumptionRepository) ListForReservation(orgID, reservationID int) ([]models.ConsumptionRecord, error) {
	var records []models.ConsumptionRecord
	err := r.repo.GoquDBWrapper.
		From("consumption_records").
		Select(recordColumns...).
		Where(goqu.Ex{"org_id": orgID, "reservation_id": reservationID}).
		Order(goqu.I("id").Asc()).
		ScanStructs(&records)
	if err != nil {
		return nil, fmt.Errorf("failed to list consumption records: %w", apperrors.WrapDBError(err))
	}
	return records, nil
}
