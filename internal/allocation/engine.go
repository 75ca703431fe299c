package allocation

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/models"
)

// Slice is one (unit, quantity) pair of an allocation plan.
type Slice struct {
	UnitID   int             `json:"unit_id"`
	LPNumber string          `json:"lp_number"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Plan is an ordered allocation proposal. It is advisory: the reservation
// manager re-validates every slice at commit time.
type Plan struct {
	ProductID      int                         `json:"product_id"`
	Strategy       metadata.AllocationStrategy `json:"strategy"`
	Requested      decimal.Decimal             `json:"requested"`
	Allocated      decimal.Decimal             `json:"allocated"`
	FullySatisfied bool                        `json:"fully_satisfied"`
	Slices         []Slice                     `json:"slices"`
}

// Shortage is the quantity the plan could not cover.
func (p Plan) Shortage() decimal.Decimal {
	return decimal.Max(decimal.Zero, p.Requested.Sub(p.Allocated))
}

// BuildPlan walks eligible units in strategy order and greedily takes
// min(remaining, unit available) from each until the request is satisfied or
// units run out. Expired units are never planned, even when the snapshot
// carries them. Insufficient inventory yields a partial plan, not an error.
func BuildPlan(productID int, requested decimal.Decimal, strategy metadata.AllocationStrategy, eligible []models.AvailableUnit) (Plan, error) {
	if !requested.IsPositive() {
		return Plan{}, apperrors.ErrInvalidQuantity
	}

	sorted := make([]models.AvailableUnit, len(eligible))
	copy(sorted, eligible)
	sortEligible(sorted, strategy)

	plan := Plan{
		ProductID: productID,
		Strategy:  strategy,
		Requested: requested,
		Allocated: decimal.Zero,
		Slices:    []Slice{},
	}

	now := time.Now()
	remaining := requested
	for _, candidate := range sorted {
		if !remaining.IsPositive() {
			break
		}
		if !candidate.Available.IsPositive() {
			continue
		}
		if expiry := candidate.Unit.ExpiryDate; expiry != nil && expiry.Before(now) {
			continue
		}

		take := decimal.Min(remaining, candidate.Available)
		plan.Slices = append(plan.Slices, Slice{
			UnitID:   candidate.Unit.ID,
			LPNumber: candidate.Unit.LPNumber,
			Quantity: take,
		})
		plan.Allocated = plan.Allocated.Add(take)
		remaining = remaining.Sub(take)
	}

	plan.FullySatisfied = plan.Allocated.GreaterThanOrEqual(requested)
	return plan, nil
}

// sortEligible orders units FIFO (manufacture date asc) or FEFO (expiry asc,
// nulls last). Ties break on unit id ascending so plans are deterministic.
func sortEligible(units []models.AvailableUnit, strategy metadata.AllocationStrategy) {
	sort.SliceStable(units, func(i, j int) bool {
		a, b := units[i].Unit, units[j].Unit

		if strategy == metadata.StrategyFEFO {
			switch {
			case a.ExpiryDate == nil && b.ExpiryDate == nil:
				// fall through to FIFO tiebreak
			case a.ExpiryDate == nil:
				return false
			case b.ExpiryDate == nil:
				return true
			case !a.ExpiryDate.Equal(*b.ExpiryDate):
				return a.ExpiryDate.Before(*b.ExpiryDate)
			}
		}

		if !a.ManufactureDate.Equal(b.ManufactureDate) {
			return a.ManufactureDate.Before(b.ManufactureDate)
		}
		return a.ID < b.ID
	})
}
