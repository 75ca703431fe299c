package shipments

import (
	"context"
	"testing"

	"github.com/doug-martin/goqu/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/CoderMariusz/MonoPilot-sub046/internal/repository"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/models"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/roles"
)

type MockShipmentRepository struct {
	mock.Mock
}

func (m *MockShipmentRepository) GetShipment(orgID, shipmentID int) (*models.Shipment, error) {
	args := m.Called(orgID, shipmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Shipment), args.Error(1)
}

func (m *MockShipmentRepository) GetShipmentForUpdate(tx *goqu.TxDatabase, orgID, shipmentID int) (*models.Shipment, error) {
	args := m.Called(tx, orgID, shipmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Shipment), args.Error(1)
}

func (m *MockShipmentRepository) GetBoxes(orgID, shipmentID int) ([]models.ShipmentBox, error) {
	args := m.Called(orgID, shipmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ShipmentBox), args.Error(1)
}

func (m *MockShipmentRepository) GetBoxesTx(tx *goqu.TxDatabase, orgID, shipmentID int) ([]models.ShipmentBox, error) {
	args := m.Called(tx, orgID, shipmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ShipmentBox), args.Error(1)
}

func (m *MockShipmentRepository) AddBox(tx *goqu.TxDatabase, orgID, shipmentID, boxNumber int) (int, error) {
	args := m.Called(tx, orgID, shipmentID, boxNumber)
	return args.Int(0), args.Error(1)
}

func (m *MockShipmentRepository) RemoveBox(tx *goqu.TxDatabase, orgID, shipmentID, boxID int) error {
	args := m.Called(tx, orgID, shipmentID, boxID)
	return args.Error(0)
}

func (m *MockShipmentRepository) UpdateStatus(tx *goqu.TxDatabase, orgID, shipmentID int, from, to metadata.ShipmentStatus) error {
	args := m.Called(tx, orgID, shipmentID, from, to)
	return args.Error(0)
}

func (m *MockShipmentRepository) SetSalesOrderStatus(tx *goqu.TxDatabase, orgID, salesOrderID int, status string) error {
	args := m.Called(tx, orgID, salesOrderID, status)
	return args.Error(0)
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

var packer = roles.Actor{ID: 9, Role: roles.Operator}

func newTestService(repo *MockShipmentRepository, resRepo *MockReservationRepo, consumer *MockConsumer) *ShipmentService {
	return &ShipmentService{
		shipments: repo,
		resRepo:   resRepo,
		consumer:  consumer,
		log:       zap.NewNop(),
		runTx: func(ctx context.Context, r *repository.Repository, fn func(tx *goqu.TxDatabase) error) error {
			return fn(nil)
		},
	}
}

func shipmentIn(status metadata.ShipmentStatus) *models.Shipment {
	return &models.Shipment{ID: 8, OrgID: 1, SalesOrderID: 44, WarehouseID: 2, Status: status}
}

func TestShipConsumesReservationsAndCascadesSalesOrder(t *testing.T) {
	repo := new(MockShipmentRepository)
	resRepo := new(MockReservationRepo)
	consumer := new(MockConsumer)
	service := newTestService(repo, resRepo, consumer)

	repo.On("GetShipmentForUpdate", mock.Anything, 1, 8).
		Return(shipmentIn(metadata.ShipmentPacked), nil)
	repo.On("GetBoxesTx", mock.Anything, 1, 8).Return([]models.ShipmentBox{
		{ID: 1, ShipmentID: 8, BoxNumber: 1},
	}, nil)
	resRepo.On("GetActiveForEntityTx", mock.Anything, 1, models.EntityShipment, 8).
		Return([]models.Reservation{
			{ID: 21, UnitID: 3, Quantity: decimal.NewFromInt(5)},
			{ID: 22, UnitID: 6, Quantity: decimal.NewFromInt(2)},
		}, nil)
	consumer.On("ConsumeTx", mock.Anything, 1, packer, 21).
		Return(&models.ConsumptionRecord{ID: 31, ReservationID: 21, UnitID: 3, Quantity: decimal.NewFromInt(5)}, nil)
	consumer.On("ConsumeTx", mock.Anything, 1, packer, 22).
		Return(&models.ConsumptionRecord{ID: 32, ReservationID: 22, UnitID: 6, Quantity: decimal.NewFromInt(2)}, nil)
	repo.On("UpdateStatus", mock.Anything, 1, 8, metadata.ShipmentPacked, metadata.ShipmentShipped).
		Return(nil)
	repo.On("SetSalesOrderStatus", mock.Anything, 1, 44, SalesOrderShipped).Return(nil)

	result, err := service.Ship(context.Background(), 1, packer, 8, true)

	assert.NoError(t, err)
	assert.Equal(t, metadata.ShipmentShipped, result.Shipment.Status)
	assert.Len(t, result.Consumed, 2)
	repo.AssertExpectations(t)
	consumer.AssertExpectations(t)
}

func TestShipWithoutConfirmRejected(t *testing.T) {
	repo := new(MockShipmentRepository)
	service := newTestService(repo, new(MockReservationRepo), new(MockConsumer))

	_, err := service.Ship(context.Background(), 1, packer, 8, false)

	var transitionErr *apperrors.InvalidTransitionError
	assert.ErrorAs(t, err, &transitionErr)
	assert.Contains(t, transitionErr.Reason, "explicit confirmation")
	repo.AssertNotCalled(t, "GetShipmentForUpdate", mock.Anything, mock.Anything, mock.Anything)
}

func TestShipWithoutBoxesRejected(t *testing.T) {
	repo := new(MockShipmentRepository)
	consumer := new(MockConsumer)
	service := newTestService(repo, new(MockReservationRepo), consumer)

	repo.On("GetShipmentForUpdate", mock.Anything, 1, 8).
		Return(shipmentIn(metadata.ShipmentPacked), nil)
	repo.On("GetBoxesTx", mock.Anything, 1, 8).Return([]models.ShipmentBox{}, nil)

	_, err := service.Ship(context.Background(), 1, packer, 8, true)

	var transitionErr *apperrors.InvalidTransitionError
	assert.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, "NO_BOXES", transitionErr.Reason)
	consumer.AssertNotCalled(t, "ConsumeTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestShipConsumeFailureAbortsTransition(t *testing.T) {
	repo := new(MockShipmentRepository)
	resRepo := new(MockReservationRepo)
	consumer := new(MockConsumer)
	service := newTestService(repo, resRepo, consumer)

	repo.On("GetShipmentForUpdate", mock.Anything, 1, 8).
		Return(shipmentIn(metadata.ShipmentPacked), nil)
	repo.On("GetBoxesTx", mock.Anything, 1, 8).Return([]models.ShipmentBox{
		{ID: 1, ShipmentID: 8, BoxNumber: 1},
	}, nil)
	resRepo.On("GetActiveForEntityTx", mock.Anything, 1, models.EntityShipment, 8).
		Return([]models.Reservation{{ID: 21, UnitID: 3, Quantity: decimal.NewFromInt(5)}}, nil)
	consumer.On("ConsumeTx", mock.Anything, 1, packer, 21).
		Return(nil, &apperrors.InsufficientQuantityError{UnitID: 3, Requested: decimal.NewFromInt(5), Available: decimal.NewFromInt(1)})

	_, err := service.Ship(context.Background(), 1, packer, 8, true)

	var insufficientErr *apperrors.InsufficientQuantityError
	assert.ErrorAs(t, err, &insufficientErr)
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "SetSalesOrderStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestShipFromPackingRejected(t *testing.T) {
	repo := new(MockShipmentRepository)
	service := newTestService(repo, new(MockReservationRepo), new(MockConsumer))

	repo.On("GetShipmentForUpdate", mock.Anything, 1, 8).
		Return(shipmentIn(metadata.ShipmentPacking), nil)

	_, err := service.Ship(context.Background(), 1, packer, 8, true)

	var transitionErr *apperrors.InvalidTransitionError
	assert.ErrorAs(t, err, &transitionErr)
}

func TestAddBoxWhilePacking(t *testing.T) {
	repo := new(MockShipmentRepository)
	service := newTestService(repo, new(MockReservationRepo), new(MockConsumer))

	repo.On("GetShipmentForUpdate", mock.Anything, 1, 8).
		Return(shipmentIn(metadata.ShipmentPacking), nil)
	repo.On("AddBox", mock.Anything, 1, 8, 3).Return(15, nil)

	box, err := service.AddBox(context.Background(), 1, packer, 8, 3)

	assert.NoError(t, err)
	assert.Equal(t, 15, box.ID)
	assert.Equal(t, 3, box.BoxNumber)
}

func TestBoxEditsClosedAfterShipping(t *testing.T) {
	repo := new(MockShipmentRepository)
	service := newTestService(repo, new(MockReservationRepo), new(MockConsumer))

	repo.On("GetShipmentForUpdate", mock.Anything, 1, 8).
		Return(shipmentIn(metadata.ShipmentShipped), nil)

	_, err := service.AddBox(context.Background(), 1, packer, 8, 4)

	var transitionErr *apperrors.InvalidTransitionError
	assert.ErrorAs(t, err, &transitionErr)
	repo.AssertNotCalled(t, "AddBox", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeliverCascadesSalesOrder(t *testing.T) {
	repo := new(MockShipmentRepository)
	service := newTestService(repo, new(MockReservationRepo), new(MockConsumer))

	repo.On("GetShipmentForUpdate", mock.Anything, 1, 8).
		Return(shipmentIn(metadata.ShipmentShipped), nil)
	repo.On("UpdateStatus", mock.Anything, 1, 8, metadata.ShipmentShipped, metadata.ShipmentDelivered).
		Return(nil)
	repo.On("SetSalesOrderStatus", mock.Anything, 1, 44, SalesOrderDelivered).Return(nil)

	shipment, err := service.Deliver(context.Background(), 1, packer, 8)

	assert.NoError(t, err)
	assert.Equal(t, metadata.ShipmentDelivered, shipment.Status)
	repo.AssertExpectations(t)
}

func TestCancelReleasesReservations(t *testing.T) {
	repo := new(MockShipmentRepository)
	resRepo := new(MockReservationRepo)
	service := newTestService(repo, resRepo, new(MockConsumer))

	repo.On("GetShipmentForUpdate", mock.Anything, 1, 8).
		Return(shipmentIn(metadata.ShipmentPacked), nil)
	resRepo.On("ReleaseAllForEntity", mock.Anything, 1, models.EntityShipment, 8).Return(2, nil)
	repo.On("UpdateStatus", mock.Anything, 1, 8, metadata.ShipmentPacked, metadata.ShipmentCancelled).
		Return(nil)

	shipment, err := service.Cancel(context.Background(), 1, packer, 8)

	assert.NoError(t, err)
	assert.Equal(t, metadata.ShipmentCancelled, shipment.Status)
	resRepo.AssertExpectations(t)
}

func TestCancelShippedRejected(t *testing.T) {
	repo := new(MockShipmentRepository)
	service := newTestService(repo, new(MockReservationRepo), new(MockConsumer))

	repo.On("GetShipmentForUpdate", mock.Anything, 1, 8).
		Return(shipmentIn(metadata.ShipmentShipped), nil)

	_, err := service.Cancel(context.Background(), 1, packer, 8)

	var transitionErr *apperrors.InvalidTransitionError
	assert.ErrorAs(t, err, &transitionErr)
}
