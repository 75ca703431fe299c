package transferorders

import (
	"context"
	"testing"

	"github.com/doug-martin/goqu/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/CoderMariusz/MonoPilot-sub046/internal/ledger"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/repository"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/reservation"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/models"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/roles"
)

type MockTransferOrderRepository struct {
	mock.Mock
}

func (m *MockTransferOrderRepository) GetTransferOrder(orgID, transferOrderID int) (*models.TransferOrder, error) {
	args := m.Called(orgID, transferOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TransferOrder), args.Error(1)
}

func (m *MockTransferOrderRepository) GetTransferOrderForUpdate(tx *goqu.TxDatabase, orgID, transferOrderID int) (*models.TransferOrder, error) {
	args := m.Called(tx, orgID, transferOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TransferOrder), args.Error(1)
}

func (m *MockTransferOrderRepository) GetLines(orgID, transferOrderID int) ([]models.TransferOrderLine, error) {
	args := m.Called(orgID, transferOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TransferOrderLine), args.Error(1)
}

func (m *MockTransferOrderRepository) GetLinesTx(tx *goqu.TxDatabase, orgID, transferOrderID int) ([]models.TransferOrderLine, error) {
	args := m.Called(tx, orgID, transferOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TransferOrderLine), args.Error(1)
}

func (m *MockTransferOrderRepository) UpdateStatus(tx *goqu.TxDatabase, orgID, transferOrderID int, from, to metadata.TransferOrderStatus) error {
	args := m.Called(tx, orgID, transferOrderID, from, to)
	return args.Error(0)
}

func (m *MockTransferOrderRepository) AddLineShipped(tx *goqu.TxDatabase, orgID, lineID int, delta decimal.Decimal) error {
	args := m.Called(tx, orgID, lineID, delta)
	return args.Error(0)
}

func (m *MockTransferOrderRepository) AddLineReceived(tx *goqu.TxDatabase, orgID, lineID int, delta decimal.Decimal) error {
	args := m.Called(tx, orgID, lineID, delta)
	return args.Error(0)
}

type MockReserver struct {
	mock.Mock
}

func (m *MockReserver) Reserve(ctx context.Context, orgID int, actor roles.Actor, req reservation.ReserveRequest) ([]models.Reservation, error) {
	args := m.Called(ctx, orgID, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func (m *MockReserver) GetActiveForEntity(orgID int, entityType string, entityID int) ([]models.Reservation, error) {
	args := m.Called(orgID, entityType, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}

type MockReservationRepo struct {
	mock.Mock
}

func (m *MockReservationRepo) InsertReservation(tx *goqu.TxDatabase, res models.Reservation) (int, error) {
	args := m.Called(tx, res)
	return args.Int(0), args.Error(1)
}

func (m *MockReservationRepo) GetReservation(orgID, reservationID int) (*models.Reservation, error) {
	args := m.Called(orgID, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *MockReservationRepo) GetReservationForUpdate(tx *goqu.TxDatabase, orgID, reservationID int) (*models.Reservation, error) {
	args := m.Called(tx, orgID, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *MockReservationRepo) MarkReleased(tx *goqu.TxDatabase, orgID, reservationID int) error {
	args := m.Called(tx, orgID, reservationID)
	return args.Error(0)
}

func (m *MockReservationRepo) MarkConsumed(tx *goqu.TxDatabase, orgID, reservationID int) error {
	args := m.Called(tx, orgID, reservationID)
	return args.Error(0)
}

func (m *MockReservationRepo) GetActiveForEntity(orgID int, entityType string, entityID int) ([]models.Reservation, error) {
	args := m.Called(orgID, entityType, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func (m *MockReservationRepo) GetActiveForEntityTx(tx *goqu.TxDatabase, orgID int, entityType string, entityID int) ([]models.Reservation, error) {
	args := m.Called(tx, orgID, entityType, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func (m *MockReservationRepo) GetConsumedForEntityTx(tx *goqu.TxDatabase, orgID int, entityType string, entityID int) ([]models.Reservation, error) {
	args := m.Called(tx, orgID, entityType, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func (m *MockReservationRepo) ReleaseAllForEntity(tx *goqu.TxDatabase, orgID int, entityType string, entityID int) (int, error) {
	args := m.Called(tx, orgID, entityType, entityID)
	return args.Int(0), args.Error(1)
}

type MockConsumer struct {
	mock.Mock
}

func (m *MockConsumer) ConsumeTx(tx *goqu.TxDatabase, orgID int, actor roles.Actor, reservationID int) (*models.ConsumptionRecord, error) {
	args := m.Called(tx, orgID, actor, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConsumptionRecord), args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) GetUnit(orgID, unitID int) (*models.InventoryUnit, error) {
	args := m.Called(orgID, unitID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventoryUnit), args.Error(1)
}

func (m *MockLedger) GetUnitForUpdate(tx *goqu.TxDatabase, orgID, unitID int) (*models.InventoryUnit, error) {
	args := m.Called(tx, orgID, unitID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventoryUnit), args.Error(1)
}

func (m *MockLedger) GetAvailable(orgID, unitID int) (decimal.Decimal, error) {
	args := m.Called(orgID, unitID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedger) GetAvailableTx(tx *goqu.TxDatabase, orgID, unitID int) (decimal.Decimal, error) {
	args := m.Called(tx, orgID, unitID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedger) FindEligible(orgID, productID int, filters ledger.EligibleFilters) ([]models.AvailableUnit, error) {
	args := m.Called(orgID, productID, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AvailableUnit), args.Error(1)
}

func (m *MockLedger) DecrementOnHand(tx *goqu.TxDatabase, orgID, unitID int, qty decimal.Decimal) error {
	args := m.Called(tx, orgID, unitID, qty)
	return args.Error(0)
}

func (m *MockLedger) IncrementOnHand(tx *goqu.TxDatabase, orgID, unitID int, qty decimal.Decimal) error {
	args := m.Called(tx, orgID, unitID, qty)
	return args.Error(0)
}

func (m *MockLedger) CreateUnit(tx *goqu.TxDatabase, unit *models.InventoryUnit) (int, error) {
	args := m.Called(tx, unit)
	return args.Int(0), args.Error(1)
}

type MockSettings struct {
	mock.Mock
}

func (m *MockSettings) GetSettings(orgID int) (*models.OrgSettings, error) {
	args := m.Called(orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrgSettings), args.Error(1)
}

func (m *MockSettings) GetAllocationStrategy(orgID int) (metadata.AllocationStrategy, error) {
	args := m.Called(orgID)
	return args.Get(0).(metadata.AllocationStrategy), args.Error(1)
}

type serviceMocks struct {
	transferOrders *MockTransferOrderRepository
	reserver       *MockReserver
	resRepo        *MockReservationRepo
	consumer       *MockConsumer
	unitLedger     *MockLedger
	settings       *MockSettings
}

func newTestService() (*TransferOrderService, serviceMocks) {
	mocks := serviceMocks{
		transferOrders: new(MockTransferOrderRepository),
		reserver:       new(MockReserver),
		resRepo:        new(MockReservationRepo),
		consumer:       new(MockConsumer),
		unitLedger:     new(MockLedger),
		settings:       new(MockSettings),
	}
	service := &TransferOrderService{
		transferOrders: mocks.transferOrders,
		reservations:   mocks.reserver,
		resRepo:        mocks.resRepo,
		consumer:       mocks.consumer,
		ledger:         mocks.unitLedger,
		settings:       mocks.settings,
		log:            zap.NewNop(),
		runTx: func(ctx context.Context, r *repository.Repository, fn func(tx *goqu.TxDatabase) error) error {
			return fn(nil)
		},
	}
	return service, mocks
}

var operator = roles.Actor{ID: 5, Role: roles.Operator}

func testTransferOrder(status metadata.TransferOrderStatus) *models.TransferOrder {
	return &models.TransferOrder{
		ID:              66,
		OrgID:           1,
		FromWarehouseID: 3,
		ToWarehouseID:   4,
		Status:          status,
	}
}

func TestConfirmReservesSourceStock(t *testing.T) {
	service, mocks := newTestService()

	to := testTransferOrder(metadata.TODraft)
	lines := []models.TransferOrderLine{
		{ID: 8, TransferOrderID: 66, ProductID: 100, OrderedQty: decimal.NewFromInt(10)},
	}

	mocks.transferOrders.On("GetTransferOrderForUpdate", mock.Anything, 1, 66).Return(to, nil).Once()
	mocks.transferOrders.On("UpdateStatus", mock.Anything, 1, 66, metadata.TODraft, metadata.TOConfirmed).Return(nil).Once()
	mocks.transferOrders.On("GetLines", 1, 66).Return(lines, nil).Once()
	mocks.settings.On("GetAllocationStrategy", 1).Return(metadata.StrategyFIFO, nil).Once()
	mocks.unitLedger.On("FindEligible", 1, 100, ledger.EligibleFilters{WarehouseID: 3, Strategy: metadata.StrategyFIFO}).
		Return([]models.AvailableUnit{
			{Unit: models.InventoryUnit{ID: 1, ProductID: 100}, Available: decimal.NewFromInt(10)},
		}, nil).Once()
	mocks.reserver.On("Reserve", mock.Anything, 1, operator, mock.MatchedBy(func(req reservation.ReserveRequest) bool {
		return req.EntityType == models.EntityTransferOrder && req.EntityID == 66 && req.LineID == 8
	})).Return([]models.Reservation{
		{ID: 41, UnitID: 1, LineID: 8, Quantity: decimal.NewFromInt(10)},
	}, nil).Once()

	result, err := service.Confirm(context.Background(), 1, operator, 66)

	assert.NoError(t, err)
	assert.Equal(t, metadata.TOConfirmed, result.TransferOrder.Status)
	if assert.Len(t, result.Coverage, 1) {
		assert.Equal(t, "full", result.Coverage[0].Coverage.Status)
	}
	mocks.reserver.AssertExpectations(t)
}

func TestShipConsumesAllReservationsAndReportsPartial(t *testing.T) {
	service, mocks := newTestService()

	to := testTransferOrder(metadata.TOConfirmed)
	mocks.transferOrders.On("GetTransferOrderForUpdate", mock.Anything, 1, 66).Return(to, nil).Once()
	mocks.resRepo.On("GetActiveForEntityTx", mock.Anything, 1, models.EntityTransferOrder, 66).Return([]models.Reservation{
		{ID: 41, UnitID: 1, LineID: 8, Quantity: decimal.NewFromInt(6), Status: metadata.ReservationActive},
		{ID: 42, UnitID: 2, LineID: 8, Quantity: decimal.NewFromInt(2), Status: metadata.ReservationActive},
	}, nil).Once()
	mocks.consumer.On("ConsumeTx", mock.Anything, 1, operator, 41).Return(
		&models.ConsumptionRecord{ID: 90, UnitID: 1, Quantity: decimal.NewFromInt(6), Direction: metadata.DirectionConsume}, nil).Once()
	mocks.consumer.On("ConsumeTx", mock.Anything, 1, operator, 42).Return(
		&models.ConsumptionRecord{ID: 91, UnitID: 2, Quantity: decimal.NewFromInt(2), Direction: metadata.DirectionConsume}, nil).Once()
	mocks.transferOrders.On("AddLineShipped", mock.Anything, 1, 8, decimal.NewFromInt(8)).Return(nil).Once()
	mocks.transferOrders.On("UpdateStatus", mock.Anything, 1, 66, metadata.TOConfirmed, metadata.TOShipped).Return(nil).Once()
	mocks.transferOrders.On("GetLinesTx", mock.Anything, 1, 66).Return([]models.TransferOrderLine{
		{ID: 8, OrderedQty: decimal.NewFromInt(10), ShippedQty: decimal.NewFromInt(8)},
	}, nil).Once()

	result, err := service.Ship(context.Background(), 1, operator, 66)

	assert.NoError(t, err)
	assert.Equal(t, metadata.TOShipped, result.TransferOrder.Status)
	assert.Len(t, result.Consumed, 2)
	assert.False(t, result.FullyShipped)
	mocks.consumer.AssertExpectations(t)
	mocks.transferOrders.AssertExpectations(t)
}

func TestShipAgainFinishesRemainder(t *testing.T) {
	service, mocks := newTestService()

	to := testTransferOrder(metadata.TOShipped)
	mocks.transferOrders.On("GetTransferOrderForUpdate", mock.Anything, 1, 66).Return(to, nil).Once()
	mocks.resRepo.On("GetActiveForEntityTx", mock.Anything, 1, models.EntityTransferOrder, 66).Return([]models.Reservation{
		{ID: 43, UnitID: 3, LineID: 8, Quantity: decimal.NewFromInt(2), Status: metadata.ReservationActive},
	}, nil).Once()
	mocks.consumer.On("ConsumeTx", mock.Anything, 1, operator, 43).Return(
		&models.ConsumptionRecord{ID: 92, UnitID: 3, Quantity: decimal.NewFromInt(2), Direction: metadata.DirectionConsume}, nil).Once()
	mocks.transferOrders.On("AddLineShipped", mock.Anything, 1, 8, decimal.NewFromInt(2)).Return(nil).Once()
	mocks.transferOrders.On("UpdateStatus", mock.Anything, 1, 66, metadata.TOShipped, metadata.TOShipped).Return(nil).Once()
	mocks.transferOrders.On("GetLinesTx", mock.Anything, 1, 66).Return([]models.TransferOrderLine{
		{ID: 8, OrderedQty: decimal.NewFromInt(10), ShippedQty: decimal.NewFromInt(10)},
	}, nil).Once()

	result, err := service.Ship(context.Background(), 1, operator, 66)

	assert.NoError(t, err)
	assert.True(t, result.FullyShipped)
}

func TestShipWithoutReservationsRejected(t *testing.T) {
	service, mocks := newTestService()

	to := testTransferOrder(metadata.TOConfirmed)
	mocks.transferOrders.On("GetTransferOrderForUpdate", mock.Anything, 1, 66).Return(to, nil).Once()
	mocks.resRepo.On("GetActiveForEntityTx", mock.Anything, 1, models.EntityTransferOrder, 66).Return([]models.Reservation{}, nil).Once()

	_, err := service.Ship(context.Background(), 1, operator, 66)

	assert.True(t, apperrors.IsInvalidTransition(err))
	mocks.consumer.AssertNotCalled(t, "ConsumeTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestShipFromDraftRejected(t *testing.T) {
	service, mocks := newTestService()

	mocks.transferOrders.On("GetTransferOrderForUpdate", mock.Anything, 1, 66).Return(testTransferOrder(metadata.TODraft), nil).Once()

	_, err := service.Ship(context.Background(), 1, operator, 66)
	assert.True(t, apperrors.IsInvalidTransition(err))
}

func TestShipConsumeFailureAbortsTransition(t *testing.T) {
	service, mocks := newTestService()

	to := testTransferOrder(metadata.TOConfirmed)
	mocks.transferOrders.On("GetTransferOrderForUpdate", mock.Anything, 1, 66).Return(to, nil).Once()
	mocks.resRepo.On("GetActiveForEntityTx", mock.Anything, 1, models.EntityTransferOrder, 66).Return([]models.Reservation{
		{ID: 41, UnitID: 1, LineID: 8, Quantity: decimal.NewFromInt(6), Status: metadata.ReservationActive},
	}, nil).Once()
	mocks.consumer.On("ConsumeTx", mock.Anything, 1, operator, 41).Return(nil,
		&apperrors.InsufficientQuantityError{UnitID: 1, Requested: decimal.NewFromInt(6), Available: decimal.NewFromInt(1)}).Once()

	_, err := service.Ship(context.Background(), 1, operator, 66)

	var insufficient *apperrors.InsufficientQuantityError
	assert.ErrorAs(t, err, &insufficient)
	mocks.transferOrders.AssertNotCalled(t, "UpdateStatus",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReceiveCreatesDestinationUnits(t *testing.T) {
	service, mocks := newTestService()

	to := testTransferOrder(metadata.TOShipped)
	mocks.transferOrders.On("GetTransferOrderForUpdate", mock.Anything, 1, 66).Return(to, nil).Once()
	mocks.transferOrders.On("GetLinesTx", mock.Anything, 1, 66).Return([]models.TransferOrderLine{
		{ID: 8, ProductID: 100, OrderedQty: decimal.NewFromInt(10), ShippedQty: decimal.NewFromInt(10), UOM: "kg"},
	}, nil).Once()
	mocks.unitLedger.On("CreateUnit", mock.Anything, mock.MatchedBy(func(unit *models.InventoryUnit) bool {
		return unit.ProductID == 100 && unit.WarehouseID == 4 && unit.OnHand.Equal(decimal.NewFromInt(10))
	})).Return(78, nil).Once()
	mocks.transferOrders.On("AddLineReceived", mock.Anything, 1, 8, decimal.NewFromInt(10)).Return(nil).Once()
	mocks.transferOrders.On("UpdateStatus", mock.Anything, 1, 66, metadata.TOShipped, metadata.TOReceived).Return(nil).Once()

	received, err := service.Receive(context.Background(), 1, operator, 66)

	assert.NoError(t, err)
	assert.Equal(t, metadata.TOReceived, received.Status)
	mocks.unitLedger.AssertExpectations(t)
}

func TestCancelReleasesReservations(t *testing.T) {
	service, mocks := newTestService()

	to := testTransferOrder(metadata.TOConfirmed)
	mocks.transferOrders.On("GetTransferOrderForUpdate", mock.Anything, 1, 66).Return(to, nil).Once()
	mocks.resRepo.On("ReleaseAllForEntity", mock.Anything, 1, models.EntityTransferOrder, 66).Return(2, nil).Once()
	mocks.transferOrders.On("UpdateStatus", mock.Anything, 1, 66, metadata.TOConfirmed, metadata.TOCancelled).Return(nil).Once()

	cancelled, err := service.Cancel(context.Background(), 1, operator, 66)

	assert.NoError(t, err)
	assert.Equal(t, metadata.TOCancelled, cancelled.Status)
}

func TestCancelShippedRejected(t *testing.T) {
	service, mocks := newTestService()

	mocks.transferOrders.On("GetTransferOrderForUpdate", mock.Anything, 1, 66).Return(testTransferOrder(metadata.TOShipped), nil).Once()

	_, err := service.Cancel(context.Background(), 1, operator, 66)
	assert.True(t, apperrors.IsInvalidTransition(err))
}
