package ledger

import (
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub046/internal/repository"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/models"
)

// EligibleFilters narrows FindEligible beyond org, product and quality.
type EligibleFilters struct {
	WarehouseID int
	LocationID  int
	LotNumber   string
	Strategy    metadata.AllocationStrategy
}

type LedgerRepository interface {
	GetUnit(orgID, unitID int) (*models.InventoryUnit, error)
	GetUnitForUpdate(tx *goqu.TxDatabase, orgID, unitID int) (*models.InventoryUnit, error)
	GetAvailable(orgID, unitID int) (decimal.Decimal, error)
	GetAvailableTx(tx *goqu.TxDatabase, orgID, unitID int) (decimal.Decimal, error)
	FindEligible(orgID, productID int, filters EligibleFilters) ([]models.AvailableUnit, error)
	DecrementOnHand(tx *goqu.TxDatabase, orgID, unitID int, qty decimal.Decimal) error
	IncrementOnHand(tx *goqu.TxDatabase, orgID, unitID int, qty decimal.Decimal) error
	CreateUnit(tx *goqu.TxDatabase, unit *models.InventoryUnit) (int, error)
}

type ledgerRepository struct {
	repo *repository.Repository
}

func NewRepository(r *repository.Repository) *ledgerRepository {
	return &ledgerRepository{repo: r}
}

var unitColumns = []any{
	goqu.I("u.id").As("id"),
	goqu.I("u.lp_number").As("lp_number"),
	goqu.I("u.org_id").As("org_id"),
	goqu.I("u.product_id").As("product_id"),
	goqu.I("u.on_hand").As("on_hand"),
	goqu.I("u.uom").As("uom"),
	goqu.I("u.lot_number").As("lot_number"),
	goqu.I("u.manufacture_date").As("manufacture_date"),
	goqu.I("u.expiry_date").As("expiry_date"),
	goqu.I("u.quality_status").As("quality_status"),
	goqu.I("u.status").As("status"),
	goqu.I("u.location_id").As("location_id"),
	goqu.I("u.warehouse_id").As("warehouse_id"),
	goqu.I("u.created_at").As("created_at"),
}

func (r *ledgerRepository) GetUnit(orgID, unitID int) (*models.InventoryUnit, error) {
	var unit models.InventoryUnit

	query := r.repo.GoquDBWrapper.
		From(goqu.T("license_plates").As("u")).
		Select(unitColumns...).
		Where(goqu.Ex{"u.id": unitID, "u.org_id": orgID})

	found, err := query.Executor().ScanStruct(&unit)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", apperrors.WrapDBError(err))
	}
	if !found {
		return nil, apperrors.ErrUnitNotFound
	}

	return &unit, nil
}

// GetUnitForUpdate reads the unit row under FOR UPDATE inside tx. Callers
// lock units in ascending id order to keep lock acquisition deadlock-free.
func (r *ledgerRepository) GetUnitForUpdate(tx *goqu.TxDatabase, orgID, unitID int) (*models.InventoryUnit, error) {
	var unit models.InventoryUnit

	query := tx.
		From(goqu.T("license_plates").As("u")).
		Select(unitColumns...).
		Where(goqu.Ex{"u.id": unitID, "u.org_id": orgID}).
		ForUpdate(goqu.Wait)

	found, err := query.Executor().ScanStruct(&unit)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", apperrors.WrapDBError(err))
	}
	if !found {
		return nil, apperrors.ErrUnitNotFound
	}

	return &unit, nil
}

// activeReservedExpr is the summed active reservation quantity per unit.
func activeReservedExpr(unitID any) *goqu.SelectDataset {
	return goqu.
		From(goqu.T("lp_reservations").As("res")).
		Select(goqu.COALESCE(goqu.SUM(goqu.I("res.quantity")), goqu.L("0"))).
		Where(
			goqu.I("res.unit_id").Eq(unitID),
			goqu.I("res.status").Eq(string(metadata.ReservationActive)),
		)
}

func (r *ledgerRepository) GetAvailable(orgID, unitID int) (decimal.Decimal, error) {
	return scanAvailable(r.repo.GoquDBWrapper.From(goqu.T("license_plates").As("u")), orgID, unitID)
}

func (r *ledgerRepository) GetAvailableTx(tx *goqu.TxDatabase, orgID, unitID int) (decimal.Decimal, error) {
	return scanAvailable(tx.From(goqu.T("license_plates").As("u")), orgID, unitID)
}

func scanAvailable(dataset *goqu.SelectDataset, orgID, unitID int) (decimal.Decimal, error) {
	var available decimal.Decimal

	query := dataset.
		Select(goqu.L("u.on_hand - (?)", activeReservedExpr(goqu.I("u.id"))).As("available")).
		Where(goqu.Ex{"u.id": unitID, "u.org_id": orgID})

	found, err := query.Executor().ScanVal(&available)
	if err != nil {
		return decimal.Zero, fmt.Errorf("error executing SQL statement: %w", apperrors.WrapDBError(err))
	}
	if !found {
		return decimal.Zero, apperrors.ErrUnitNotFound
	}

	// Reservations being capped at availability keeps this non-negative, but
	// consumed quantity already removed from on_hand can race a release read.
	if available.IsNegative() {
		available = decimal.Zero
	}

	return available, nil
}

// FindEligible returns units the allocation engine may plan against: matching
// product, quality passed, status reservable, positive availability, not past
// expiry. Ordering follows the requested strategy so the greedy walk can
// consume the rows as returned. The result is a snapshot; availability is
// re-validated at commit.
func (r *ledgerRepository) FindEligible(orgID, productID int, filters EligibleFilters) ([]models.AvailableUnit, error) {
	type eligibleRow struct {
		models.InventoryUnit
		Available decimal.Decimal `db:"available"`
	}

	columns := append([]any{}, unitColumns...)
	columns = append(columns, goqu.L("u.on_hand - (?)", activeReservedExpr(goqu.I("u.id"))).As("available"))

	query := r.repo.GoquDBWrapper.
		From(goqu.T("license_plates").As("u")).
		Select(columns...).
		Where(
			goqu.I("u.org_id").Eq(orgID),
			goqu.I("u.product_id").Eq(productID),
			goqu.I("u.quality_status").Eq(string(metadata.QualityPassed)),
			goqu.I("u.status").In(string(metadata.UnitAvailable), string(metadata.UnitReserved)),
			goqu.I("u.on_hand").Gt(0),
			goqu.Or(
				goqu.I("u.expiry_date").IsNull(),
				goqu.I("u.expiry_date").Gte(goqu.L("now()")),
			),
		)

	if filters.WarehouseID != 0 {
		query = query.Where(goqu.I("u.warehouse_id").Eq(filters.WarehouseID))
	}
	if filters.LocationID != 0 {
		query = query.Where(goqu.I("u.location_id").Eq(filters.LocationID))
	}
	if filters.LotNumber != "" {
		query = query.Where(goqu.I("u.lot_number").Eq(filters.LotNumber))
	}

	if filters.Strategy == metadata.StrategyFEFO {
		query = query.Order(
			goqu.I("u.expiry_date").Asc().NullsLast(),
			goqu.I("u.manufacture_date").Asc(),
			goqu.I("u.id").Asc(),
		)
	} else {
		query = query.Order(
			goqu.I("u.manufacture_date").Asc(),
			goqu.I("u.id").Asc(),
		)
	}

	var rows []eligibleRow
	if err := query.Executor().ScanStructs(&rows); err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", apperrors.WrapDBError(err))
	}

	units := make([]models.AvailableUnit, 0, len(rows))
	for _, row := range rows {
		if !row.Available.IsPositive() {
			continue
		}
		units = append(units, models.AvailableUnit{Unit: row.InventoryUnit, Available: row.Available})
	}

	return units, nil
}

// DecrementOnHand permanently lowers a unit's on-hand quantity. The guarded
// UPDATE plus RowsAffected check is what turns a lost-update race into a typed
// InsufficientQuantity failure instead of a negative quantity.
func (r *ledgerRepository) DecrementOnHand(tx *goqu.TxDatabase, orgID, unitID int, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return apperrors.ErrInvalidQuantity
	}

	updateResult, err := tx.Update("license_plates").
		Set(goqu.Record{"on_hand": goqu.L("on_hand - ?", qty)}).
		Where(goqu.Ex{"id": unitID, "org_id": orgID}).
		Where(goqu.C("on_hand").Gte(qty)).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to decrement on-hand for unit %d: %w", unitID, apperrors.WrapDBError(err))
	}

	rowsAffected, err := updateResult.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		available, availErr := r.GetAvailableTx(tx, orgID, unitID)
		if availErr != nil {
			return availErr
		}
		return &apperrors.InsufficientQuantityError{UnitID: unitID, Requested: qty, Available: available}
	}

	// A drained unit is terminal for reservations.
	_, err = tx.Update("license_plates").
		Set(goqu.Record{"status": string(metadata.UnitConsumed)}).
		Where(goqu.Ex{"id": unitID, "org_id": orgID, "on_hand": 0}).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to mark unit %d consumed: %w", unitID, apperrors.WrapDBError(err))
	}

	return nil
}

// IncrementOnHand restores quantity to a unit, reviving a consumed unit back
// to available. Used by consumption reversal and RMA receipt.
func (r *ledgerRepository) IncrementOnHand(tx *goqu.TxDatabase, orgID, unitID int, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return apperrors.ErrInvalidQuantity
	}

	updateResult, err := tx.Update("license_plates").
		Set(goqu.Record{
			"on_hand": goqu.L("on_hand + ?", qty),
			"status": goqu.Case().
				When(goqu.C("status").Eq(string(metadata.UnitConsumed)), string(metadata.UnitAvailable)).
				Else(goqu.C("status")),
		}).
		Where(goqu.Ex{"id": unitID, "org_id": orgID}).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to increment on-hand for unit %d: %w", unitID, apperrors.WrapDBError(err))
	}

	rowsAffected, err := updateResult.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.ErrUnitNotFound
	}

	return nil
}

// CreateUnit inserts a new license plate and stamps it with a generated LP
// number derived from its row id.
func (r *ledgerRepository) CreateUnit(tx *goqu.TxDatabase, unit *models.InventoryUnit) (int, error) {
	query := tx.Insert("license_plates").
		Rows(goqu.Record{
			"org_id":           unit.OrgID,
			"product_id":       unit.ProductID,
			"on_hand":          unit.OnHand,
			"uom":              unit.UOM,
			"lot_number":       unit.LotNumber,
			"manufacture_date": unit.ManufactureDate,
			"expiry_date":      unit.ExpiryDate,
			"quality_status":   string(unit.QualityStatus),
			"status":           string(unit.Status),
			"location_id":      unit.LocationID,
			"warehouse_id":     unit.WarehouseID,
		}).
		Returning("id")

	var unitID int
	if _, err := query.Executor().ScanVal(&unitID); err != nil {
		return 0, fmt.Errorf("failed to insert license plate: %w", apperrors.WrapDBError(err))
	}

	lpNumber := metadata.NewLPNumber(time.Now().Year(), unitID).String()
	_, err := tx.Update("license_plates").
		Set(goqu.Record{"lp_number": lpNumber}).
		Where(goqu.Ex{"id": unitID}).
		Executor().
		Exec()
	if err != nil {
		return 0, fmt.Errorf("failed to stamp LP number on unit %d: %w", unitID, apperrors.WrapDBError(err))
	}
	unit.ID = unitID
	unit.LPNumber = lpNumber

	return unitID, nil
}
