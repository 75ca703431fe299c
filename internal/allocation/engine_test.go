package allocation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/models"
)

func day(n int) time.Time {
	return time.Date(2025, 1, n, 0, 0, 0, 0, time.UTC)
}

func daysFromNow(n int) time.Time {
	return time.Now().Add(time.Duration(n) * 24 * time.Hour)
}

func eligibleUnit(id int, manufactured time.Time, expiry *time.Time, available int64) models.AvailableUnit {
	return models.AvailableUnit{
		Unit: models.InventoryUnit{
			ID:              id,
			ProductID:       100,
			ManufactureDate: manufactured,
			ExpiryDate:      expiry,
		},
		Available: decimal.NewFromInt(available),
	}
}

func TestBuildPlanFIFO(t *testing.T) {
	// U1 received day 1, U2 received day 3; request 15 takes 10 from U1, 5 from U2.
	eligible := []models.AvailableUnit{
		eligibleUnit(2, day(3), nil, 10),
		eligibleUnit(1, day(1), nil, 10),
	}

	plan, err := BuildPlan(100, decimal.NewFromInt(15), metadata.StrategyFIFO, eligible)
	assert.NoError(t, err)
	assert.True(t, plan.FullySatisfied)
	assert.True(t, plan.Allocated.Equal(decimal.NewFromInt(15)))

	if assert.Len(t, plan.Slices, 2) {
		assert.Equal(t, 1, plan.Slices[0].UnitID)
		assert.True(t, plan.Slices[0].Quantity.Equal(decimal.NewFromInt(10)))
		assert.Equal(t, 2, plan.Slices[1].UnitID)
		assert.True(t, plan.Slices[1].Quantity.Equal(decimal.NewFromInt(5)))
	}
}

func TestBuildPlanFEFO(t *testing.T) {
	// U1 expires in 30 days, U2 in 10; request 5 comes entirely from U2.
	expiry30 := daysFromNow(30)
	expiry10 := daysFromNow(10)
	eligible := []models.AvailableUnit{
		eligibleUnit(1, day(1), &expiry30, 10),
		eligibleUnit(2, day(2), &expiry10, 10),
	}

	plan, err := BuildPlan(100, decimal.NewFromInt(5), metadata.StrategyFEFO, eligible)
	assert.NoError(t, err)
	assert.True(t, plan.FullySatisfied)

	if assert.Len(t, plan.Slices, 1) {
		assert.Equal(t, 2, plan.Slices[0].UnitID)
		assert.True(t, plan.Slices[0].Quantity.Equal(decimal.NewFromInt(5)))
	}
}

func TestBuildPlanFEFONullExpiryLast(t *testing.T) {
	expiry20 := daysFromNow(20)
	eligible := []models.AvailableUnit{
		eligibleUnit(1, day(1), nil, 10),
		eligibleUnit(2, day(5), &expiry20, 10),
	}

	plan, err := BuildPlan(100, decimal.NewFromInt(12), metadata.StrategyFEFO, eligible)
	assert.NoError(t, err)

	if assert.Len(t, plan.Slices, 2) {
		assert.Equal(t, 2, plan.Slices[0].UnitID)
		assert.Equal(t, 1, plan.Slices[1].UnitID)
	}
}

func TestBuildPlanTieBreaksOnUnitID(t *testing.T) {
	sameDay := day(4)
	eligible := []models.AvailableUnit{
		eligibleUnit(9, sameDay, nil, 10),
		eligibleUnit(3, sameDay, nil, 10),
	}

	plan, err := BuildPlan(100, decimal.NewFromInt(5), metadata.StrategyFIFO, eligible)
	assert.NoError(t, err)
	if assert.Len(t, plan.Slices, 1) {
		assert.Equal(t, 3, plan.Slices[0].UnitID)
	}
}

func TestBuildPlanPartialAllocation(t *testing.T) {
	// 25 requested, only 15 on hand: partial plan, no error.
	eligible := []models.AvailableUnit{
		eligibleUnit(1, day(1), nil, 10),
		eligibleUnit(2, day(2), nil, 5),
	}

	plan, err := BuildPlan(100, decimal.NewFromInt(25), metadata.StrategyFIFO, eligible)
	assert.NoError(t, err)
	assert.False(t, plan.FullySatisfied)
	assert.True(t, plan.Allocated.Equal(decimal.NewFromInt(15)))
	assert.True(t, plan.Shortage().Equal(decimal.NewFromInt(10)))
	assert.Len(t, plan.Slices, 2)
}

func TestBuildPlanNoEligibleUnits(t *testing.T) {
	plan, err := BuildPlan(100, decimal.NewFromInt(5), metadata.StrategyFIFO, nil)
	assert.NoError(t, err)
	assert.False(t, plan.FullySatisfied)
	assert.True(t, plan.Allocated.IsZero())
	assert.Empty(t, plan.Slices)
}

func TestBuildPlanInvalidQuantity(t *testing.T) {
	_, err := BuildPlan(100, decimal.Zero, metadata.StrategyFIFO, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)

	_, err = BuildPlan(100, decimal.NewFromInt(-3), metadata.StrategyFIFO, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)
}

func TestBuildPlanSkipsDrainedUnits(t *testing.T) {
	eligible := []models.AvailableUnit{
		eligibleUnit(1, day(1), nil, 0),
		eligibleUnit(2, day(2), nil, 8),
	}

	plan, err := BuildPlan(100, decimal.NewFromInt(5), metadata.StrategyFIFO, eligible)
	assert.NoError(t, err)
	if assert.Len(t, plan.Slices, 1) {
		assert.Equal(t, 2, plan.Slices[0].UnitID)
	}
}

func TestBuildPlanSkipsExpiredUnits(t *testing.T) {
	// U2 expired two days ago and sorts first under FEFO; the plan must come
	// entirely from the fresh unit.
	expired := daysFromNow(-2)
	fresh := daysFromNow(30)
	eligible := []models.AvailableUnit{
		eligibleUnit(1, day(1), &fresh, 10),
		eligibleUnit(2, day(2), &expired, 10),
	}

	plan, err := BuildPlan(100, decimal.NewFromInt(5), metadata.StrategyFEFO, eligible)
	assert.NoError(t, err)
	assert.True(t, plan.FullySatisfied)

	if assert.Len(t, plan.Slices, 1) {
		assert.Equal(t, 1, plan.Slices[0].UnitID)
	}
}

func TestBuildPlanOnlyExpiredStockAllocatesNothing(t *testing.T) {
	expired := daysFromNow(-1)
	eligible := []models.AvailableUnit{
		eligibleUnit(1, day(1), &expired, 10),
	}

	plan, err := BuildPlan(100, decimal.NewFromInt(5), metadata.StrategyFEFO, eligible)
	assert.NoError(t, err)
	assert.False(t, plan.FullySatisfied)
	assert.True(t, plan.Allocated.IsZero())
	assert.Empty(t, plan.Slices)
}

func TestBuildPlanDoesNotMutateInput(t *testing.T) {
	eligible := []models.AvailableUnit{
		eligibleUnit(2, day(3), nil, 10),
		eligibleUnit(1, day(1), nil, 10),
	}

	_, err := BuildPlan(100, decimal.NewFromInt(5), metadata.StrategyFIFO, eligible)
	assert.NoError(t, err)
	assert.Equal(t, 2, eligible[0].Unit.ID)
}
