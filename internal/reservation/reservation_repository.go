package reservation

import (
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/CoderMariusz/MonoPilot-sub046/internal/repository"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/models"
)

type ReservationRepository interface {
	InsertReservation(tx *goqu.TxDatabase, res models.Reservation) (int, error)
	GetReservation(orgID, reservationID int) (*models.Reservation, error)
	GetReservationForUpdate(tx *goqu.TxDatabase, orgID, reservationID int) (*models.Reservation, error)
	MarkReleased(tx *goqu.TxDatabase, orgID, reservationID int) error
	MarkConsumed(tx *goqu.TxDatabase, orgID, reservationID int) error
	GetActiveForEntity(orgID int, entityType string, entityID int) ([]models.Reservation, error)
	GetActiveForEntityTx(tx *goqu.TxDatabase, orgID int, entityType string, entityID int) ([]models.Reservation, error)
	GetConsumedForEntityTx(tx *goqu.TxDatabase, orgID int, entityType string, entityID int) ([]models.Reservation, error)
	ReleaseAllForEntity(tx *goqu.TxDatabase, orgID int, entityType string, entityID int) (int, error)
}

type reservationRepository struct {
	repo *repository.Repository
}

func NewRepository(r *repository.Repository) *reservationRepository {
	return &reservationRepository{repo: r}
}

var reservationColumns = []any{
	goqu.I("r.id").As("id"),
	goqu.I("r.org_id").As("org_id"),
	goqu.I("r.unit_id").As("unit_id"),
	goqu.I("r.entity_type").As("entity_type"),
	goqu.I("r.entity_id").As("entity_id"),
	goqu.I("r.line_id").As("line_id"),
	goqu.I("r.quantity").As("quantity"),
	goqu.I("r.status").As("status"),
	goqu.I("r.qa_override").As("qa_override"),
	goqu.I("r.reserved_by").As("reserved_by"),
	goqu.I("r.reserved_at").As("reserved_at"),
	goqu.I("r.released_at").As("released_at"),
	goqu.I("r.consumed_at").As("consumed_at"),
}

func (r *reservationRepository) InsertReservation(tx *goqu.TxDatabase, res models.Reservation) (int, error) {
	query := tx.Insert("lp_reservations").
		Rows(goqu.Record{
			"org_id":      res.OrgID,
			"unit_id":     res.UnitID,
			"entity_type": res.EntityType,
			"entity_id":   res.EntityID,
			"line_id":     res.LineID,
			"quantity":    res.Quantity,
			"status":      string(metadata.ReservationActive),
			"qa_override": res.QAOverride,
			"reserved_by": res.ReservedBy,
		}).
		Returning("id")

	var reservationID int
	if _, err := query.Executor().ScanVal(&reservationID); err != nil {
		return 0, fmt.Errorf("failed to insert reservation: %w", apperrors.WrapDBError(err))
	}

	return reservationID, nil
}

func (r *reservationRepository) GetReservation(orgID, reservationID int) (*models.Reservation, error) {
	return scanReservation(
		r.repo.GoquDBWrapper.From(goqu.T("lp_reservations").As("r")),
		orgID, reservationID, false,
	)
}

func (r *reservationRepository) GetReservationForUpdate(tx *goqu.TxDatabase, orgID, reservationID int) (*models.Reservation, error) {
	return scanReservation(
		tx.From(goqu.T("lp_reservations").As("r")),
		orgID, reservationID, true,
	)
}

func scanReservation(dataset *goqu.SelectDataset, orgID, reservationID int, forUpdate bool) (*models.Reservation, error) {
	var res models.Reservation

	query := dataset.
		Select(reservationColumns...).
		Where(goqu.Ex{"r.id": reservationID, "r.org_id": orgID})
	if forUpdate {
		query = query.ForUpdate(goqu.Wait)
	}

	found, err := query.Executor().ScanStruct(&res)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", apperrors.WrapDBError(err))
	}
	if !found {
		return nil, apperrors.ErrReservationNotFound
	}

	return &res, nil
}

// MarkReleased flips an active reservation to released. The status guard in
// the WHERE clause is what makes double-release detectable: zero rows means
// the reservation was not active anymore.
func (r *reservationRepository) MarkReleased(tx *goqu.TxDatabase, orgID, reservationID int) error {
	updateResult, err := tx.Update("lp_reservations").
		Set(goqu.Record{
			"status":      string(metadata.ReservationReleased),
			"released_at": goqu.L("NOW()"),
		}).
		Where(goqu.Ex{
			"id":     reservationID,
			"org_id": orgID,
			"status": string(metadata.ReservationActive),
		}).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to release reservation %d: %w", reservationID, apperrors.WrapDBError(err))
	}

	rowsAffected, err := updateResult.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.ErrAlreadyReleased
	}

	return nil
}

func (r *reservationRepository) MarkConsumed(tx *goqu.TxDatabase, orgID, reservationID int) error {
	updateResult, err := tx.Update("lp_reservations").
		Set(goqu.Record{
			"status":      string(metadata.ReservationConsumed),
			"consumed_at": goqu.L("NOW()"),
		}).
		Where(goqu.Ex{
			"id":     reservationID,
			"org_id": orgID,
			"status": string(metadata.ReservationActive),
		}).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to consume reservation %d: %w", reservationID, apperrors.WrapDBError(err))
	}

	rowsAffected, err := updateResult.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.ErrInvalidReservationStatus
	}

	return nil
}

func (r *reservationRepository) GetActiveForEntity(orgID int, entityType string, entityID int) ([]models.Reservation, error) {
	return scanActiveForEntity(
		r.repo.GoquDBWrapper.From(goqu.T("lp_reservations").As("r")),
		orgID, entityType, entityID,
	)
}

func (r *reservationRepository) GetActiveForEntityTx(tx *goqu.TxDatabase, orgID int, entityType string, entityID int) ([]models.Reservation, error) {
	return scanActiveForEntity(
		tx.From(goqu.T("lp_reservations").As("r")),
		orgID, entityType, entityID,
	)
}

// GetConsumedForEntityTx lists an entity's consumed reservations, the
// material trail work order completion turns into genealogy edges.
func (r *reservationRepository) GetConsumedForEntityTx(tx *goqu.TxDatabase, orgID int, entityType string, entityID int) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := tx.From(goqu.T("lp_reservations").As("r")).
		Select(reservationColumns...).
		Where(goqu.Ex{
			"r.org_id":      orgID,
			"r.entity_type": entityType,
			"r.entity_id":   entityID,
			"r.status":      metadata.ReservationConsumed,
		}).
		Order(goqu.I("r.unit_id").Asc()).
		ScanStructs(&reservations)
	if err != nil {
		return nil, fmt.Errorf("failed to list consumed reservations: %w", apperrors.WrapDBError(err))
	}
	return reservations, nil
}

func scanActiveForEntity(dataset *goqu.SelectDataset, orgID int, entityType string, entityID int) ([]models.Reservation, error) {
	var reservations []models.Reservation

	query := dataset.
		Select(reservationColumns...).
		Where(goqu.Ex{
			"r.org_id":      orgID,
			"r.entity_type": entityType,
			"r.entity_id":   entityID,
			"r.status":      string(metadata.ReservationActive),
		}).
		Order(goqu.I("r.unit_id").Asc())

	if err := query.Executor().ScanStructs(&reservations); err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", apperrors.WrapDBError(err))
	}

	return reservations, nil
}

func (r *reservationRepository) ReleaseAllForEntity(tx *goqu.TxDatabase, orgID int, entityType string, entityID int) (int, error) {
	updateResult, err := tx.Update("lp_reservations").
		Set(goqu.Record{
			"status":      string(metadata.ReservationReleased),
			"released_at": goqu.L("NOW()"),
		}).
		Where(goqu.Ex{
			"org_id":      orgID,
			"entity_type": entityType,
			"entity_id":   entityID,
			"status":      string(metadata.ReservationActive),
		}).
		Executor().
		Exec()
	if err != nil {
		return 0, fmt.Errorf("failed to release reservations for %s %d: %w", entityType, entityID, apperrors.WrapDBError(err))
	}

	rowsAffected, err := updateResult.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}

	return int(rowsAffected), nil
}
