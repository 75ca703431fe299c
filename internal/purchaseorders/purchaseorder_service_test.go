package purchaseorders

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
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/models"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/roles"
)

type MockPurchaseOrderRepository struct {
	mock.Mock
}

func (m *MockPurchaseOrderRepository) GetPurchaseOrder(orgID, purchaseOrderID int) (*models.PurchaseOrder, error) {
	args := m.Called(orgID, purchaseOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PurchaseOrder), args.Error(1)
}

func (m *MockPurchaseOrderRepository) GetPurchaseOrderForUpdate(tx *goqu.TxDatabase, orgID, purchaseOrderID int) (*models.PurchaseOrder, error) {
	args := m.Called(tx, orgID, purchaseOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PurchaseOrder), args.Error(1)
}

func (m *MockPurchaseOrderRepository) GetLinesTx(tx *goqu.TxDatabase, orgID, purchaseOrderID int) ([]models.PurchaseOrderLine, error) {
	args := m.Called(tx, orgID, purchaseOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PurchaseOrderLine), args.Error(1)
}

func (m *MockPurchaseOrderRepository) UpdateStatus(tx *goqu.TxDatabase, orgID, purchaseOrderID int, from, to metadata.PurchaseOrderStatus) error {
	args := m.Called(tx, orgID, purchaseOrderID, from, to)
	return args.Error(0)
}

func (m *MockPurchaseOrderRepository) SetApprovalStatus(tx *goqu.TxDatabase, orgID, purchaseOrderID int, approval string) error {
	args := m.Called(tx, orgID, purchaseOrderID, approval)
	return args.Error(0)
}

func (m *MockPurchaseOrderRepository) AddLineReceived(tx *goqu.TxDatabase, orgID, lineID int, delta decimal.Decimal) error {
	args := m.Called(tx, orgID, lineID, delta)
	return args.Error(0)
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

var buyer = roles.Actor{ID: 7, Role: roles.Operator}

func newTestService(repo *MockPurchaseOrderRepository, unitLedger *MockLedger) *PurchaseOrderService {
	return &PurchaseOrderService{
		purchaseOrders: repo,
		ledger:         unitLedger,
		log:            zap.NewNop(),
		runTx: func(ctx context.Context, r *repository.Repository, fn func(tx *goqu.TxDatabase) error) error {
			return fn(nil)
		},
	}
}

func pendingOrder(status metadata.PurchaseOrderStatus, approval string) *models.PurchaseOrder {
	return &models.PurchaseOrder{
		ID:             5,
		OrgID:          1,
		SupplierID:     30,
		WarehouseID:    2,
		Status:         status,
		ApprovalStatus: approval,
	}
}

func TestSubmitForApprovalMarksOrderPending(t *testing.T) {
	repo := new(MockPurchaseOrderRepository)
	service := newTestService(repo, new(MockLedger))

	repo.On("GetPurchaseOrderForUpdate", mock.Anything, 1, 5).
		Return(pendingOrder(metadata.PODraft, ""), nil)
	repo.On("UpdateStatus", mock.Anything, 1, 5, metadata.PODraft, metadata.POPendingApproval).
		Return(nil)
	repo.On("SetApprovalStatus", mock.Anything, 1, 5, ApprovalPending).Return(nil)

	po, err := service.SubmitForApproval(context.Background(), 1, buyer, 5)

	assert.NoError(t, err)
	assert.Equal(t, metadata.POPendingApproval, po.Status)
	assert.Equal(t, ApprovalPending, po.ApprovalStatus)
	repo.AssertExpectations(t)
}

func TestPendingApprovalFreezesOtherTransitions(t *testing.T) {
	repo := new(MockPurchaseOrderRepository)
	service := newTestService(repo, new(MockLedger))

	repo.On("GetPurchaseOrderForUpdate", mock.Anything, 1, 5).
		Return(pendingOrder(metadata.POPendingApproval, ApprovalPending), nil)

	_, err := service.Cancel(context.Background(), 1, buyer, 5)

	var transitionErr *apperrors.InvalidTransitionError
	assert.ErrorAs(t, err, &transitionErr)
	assert.Contains(t, transitionErr.Reason, "approval is pending")
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApproveResolvesPendingGate(t *testing.T) {
	repo := new(MockPurchaseOrderRepository)
	service := newTestService(repo, new(MockLedger))

	repo.On("GetPurchaseOrderForUpdate", mock.Anything, 1, 5).
		Return(pendingOrder(metadata.POPendingApproval, ApprovalPending), nil)
	repo.On("UpdateStatus", mock.Anything, 1, 5, metadata.POPendingApproval, metadata.POApproved).
		Return(nil)
	repo.On("SetApprovalStatus", mock.Anything, 1, 5, ApprovalApproved).Return(nil)

	po, err := service.Approve(context.Background(), 1, buyer, 5)

	assert.NoError(t, err)
	assert.Equal(t, metadata.POApproved, po.Status)
	assert.Equal(t, ApprovalApproved, po.ApprovalStatus)
}

func TestRejectReturnsOrderToDraft(t *testing.T) {
	repo := new(MockPurchaseOrderRepository)
	service := newTestService(repo, new(MockLedger))

	repo.On("GetPurchaseOrderForUpdate", mock.Anything, 1, 5).
		Return(pendingOrder(metadata.POPendingApproval, ApprovalPending), nil)
	repo.On("UpdateStatus", mock.Anything, 1, 5, metadata.POPendingApproval, metadata.PODraft).
		Return(nil)
	repo.On("SetApprovalStatus", mock.Anything, 1, 5, ApprovalRejected).Return(nil)

	po, err := service.Reject(context.Background(), 1, buyer, 5)

	assert.NoError(t, err)
	assert.Equal(t, metadata.PODraft, po.Status)
	assert.Equal(t, ApprovalRejected, po.ApprovalStatus)
}

func TestReceiveLineCreatesUnitInOrderWarehouse(t *testing.T) {
	repo := new(MockPurchaseOrderRepository)
	unitLedger := new(MockLedger)
	service := newTestService(repo, unitLedger)

	repo.On("GetPurchaseOrderForUpdate", mock.Anything, 1, 5).
		Return(pendingOrder(metadata.POReceiving, ApprovalApproved), nil)
	repo.On("GetLinesTx", mock.Anything, 1, 5).Return([]models.PurchaseOrderLine{
		{ID: 11, PurchaseOrderID: 5, ProductID: 40, OrderedQty: decimal.NewFromInt(100), UOM: "kg"},
	}, nil)
	unitLedger.On("CreateUnit", mock.Anything, mock.MatchedBy(func(u *models.InventoryUnit) bool {
		return u.ProductID == 40 &&
			u.WarehouseID == 2 &&
			u.OnHand.Equal(decimal.NewFromInt(25)) &&
			u.LotNumber == "LOT-551" &&
			u.QualityStatus == metadata.QualityPassed &&
			u.Status == metadata.UnitAvailable
	})).Return(61, nil)
	repo.On("AddLineReceived", mock.Anything, 1, 11, decimal.NewFromInt(25)).Return(nil)

	unit, err := service.ReceiveLine(context.Background(), 1, buyer, 5, ReceiveLineRequest{
		LineID:    11,
		Quantity:  decimal.NewFromInt(25),
		LotNumber: "LOT-551",
	})

	assert.NoError(t, err)
	assert.Equal(t, 61, unit.ID)
	repo.AssertExpectations(t)
	unitLedger.AssertExpectations(t)
}

func TestReceiveLineRejectedOutsideReceiving(t *testing.T) {
	repo := new(MockPurchaseOrderRepository)
	unitLedger := new(MockLedger)
	service := newTestService(repo, unitLedger)

	repo.On("GetPurchaseOrderForUpdate", mock.Anything, 1, 5).
		Return(pendingOrder(metadata.POApproved, ApprovalApproved), nil)

	_, err := service.ReceiveLine(context.Background(), 1, buyer, 5, ReceiveLineRequest{
		LineID:   11,
		Quantity: decimal.NewFromInt(25),
	})

	var transitionErr *apperrors.InvalidTransitionError
	assert.ErrorAs(t, err, &transitionErr)
	unitLedger.AssertNotCalled(t, "CreateUnit", mock.Anything, mock.Anything)
}

func TestReceiveLineRejectsNonPositiveQuantity(t *testing.T) {
	service := newTestService(new(MockPurchaseOrderRepository), new(MockLedger))

	_, err := service.ReceiveLine(context.Background(), 1, buyer, 5, ReceiveLineRequest{
		LineID:   11,
		Quantity: decimal.Zero,
	})

	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)
}

func TestReceiveLineUnknownLine(t *testing.T) {
	repo := new(MockPurchaseOrderRepository)
	service := newTestService(repo, new(MockLedger))

	repo.On("GetPurchaseOrderForUpdate", mock.Anything, 1, 5).
		Return(pendingOrder(metadata.POReceiving, ApprovalApproved), nil)
	repo.On("GetLinesTx", mock.Anything, 1, 5).Return([]models.PurchaseOrderLine{}, nil)

	_, err := service.ReceiveLine(context.Background(), 1, buyer, 5, ReceiveLineRequest{
		LineID:   99,
		Quantity: decimal.NewFromInt(10),
	})

	assert.ErrorContains(t, err, "line 99 not found")
}

func TestClosedOrderIsImmutable(t *testing.T) {
	repo := new(MockPurchaseOrderRepository)
	service := newTestService(repo, new(MockLedger))

	repo.On("GetPurchaseOrderForUpdate", mock.Anything, 1, 5).
		Return(pendingOrder(metadata.POClosed, ApprovalApproved), nil)

	_, err := service.Cancel(context.Background(), 1, buyer, 5)

	var transitionErr *apperrors.InvalidTransitionError
	assert.ErrorAs(t, err, &transitionErr)
}

func TestCancelDraftOrder(t *testing.T) {
	repo := new(MockPurchaseOrderRepository)
	service := newTestService(repo, new(MockLedger))

	repo.On("GetPurchaseOrderForUpdate", mock.Anything, 1, 5).
		Return(pendingOrder(metadata.PODraft, ""), nil)
	repo.On("UpdateStatus", mock.Anything, 1, 5, metadata.PODraft, metadata.POCancelled).
		Return(nil)

	po, err := service.Cancel(context.Background(), 1, buyer, 5)

	assert.NoError(t, err)
	assert.Equal(t, metadata.POCancelled, po.Status)
}
