package shipments

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/models"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/roles"
)

func setupRouter(service *ShipmentService, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userID", 7)
		c.Set("orgID", 1)
		c.Set("role", role)
		c.Next()
	})
	RegisterRoutes(router, service)
	return router
}

func TestShipEndpoint(t *testing.T) {
	webActor := roles.Actor{ID: 7, Role: roles.Operator}

	tests := []struct {
		name           string
		body           string
		setupMock      func(repo *MockShipmentRepository, resRepo *MockReservationRepo, consumer *MockConsumer)
		expectedStatus int
	}{
		{
			name: "ships packed shipment with confirmation",
			body: `{"confirm": true}`,
			setupMock: func(repo *MockShipmentRepository, resRepo *MockReservationRepo, consumer *MockConsumer) {
				repo.On("GetShipmentForUpdate", mock.Anything, 1, 8).
					Return(shipmentIn(metadata.ShipmentPacked), nil)
				repo.On("GetBoxesTx", mock.Anything, 1, 8).Return([]models.ShipmentBox{
					{ID: 1, ShipmentID: 8, BoxNumber: 1},
				}, nil)
				resRepo.On("GetActiveForEntityTx", mock.Anything, 1, models.EntityShipment, 8).
					Return([]models.Reservation{
						{ID: 21, UnitID: 3, Quantity: decimal.NewFromInt(5)},
					}, nil)
				consumer.On("ConsumeTx", mock.Anything, 1, webActor, 21).
					Return(&models.ConsumptionRecord{ID: 31, ReservationID: 21, UnitID: 3, Quantity: decimal.NewFromInt(5)}, nil)
				repo.On("UpdateStatus", mock.Anything, 1, 8, metadata.ShipmentPacked, metadata.ShipmentShipped).
					Return(nil)
				repo.On("SetSalesOrderStatus", mock.Anything, 1, 44, SalesOrderShipped).Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "rejects shipping without confirmation",
			body:           `{"confirm": false}`,
			setupMock:      func(repo *MockShipmentRepository, resRepo *MockReservationRepo, consumer *MockConsumer) {},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "rejects shipping without boxes",
			body: `{"confirm": true}`,
			setupMock: func(repo *MockShipmentRepository, resRepo *MockReservationRepo, consumer *MockConsumer) {
				repo.On("GetShipmentForUpdate", mock.Anything, 1, 8).
					Return(shipmentIn(metadata.ShipmentPacked), nil)
				repo.On("GetBoxesTx", mock.Anything, 1, 8).Return([]models.ShipmentBox{}, nil)
			},
			expectedStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockShipmentRepository)
			resRepo := new(MockReservationRepo)
			consumer := new(MockConsumer)
			tt.setupMock(repo, resRepo, consumer)
			router := setupRouter(newTestService(repo, resRepo, consumer), "operator")

			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodPatch, "/shipments/8/ship", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			repo.AssertExpectations(t)
		})
	}
}

func TestShipEndpointReturnsConsumedRecords(t *testing.T) {
	webActor := roles.Actor{ID: 7, Role: roles.Operator}
	repo := new(MockShipmentRepository)
	resRepo := new(MockReservationRepo)
	consumer := new(MockConsumer)

	repo.On("GetShipmentForUpdate", mock.Anything, 1, 8).
		Return(shipmentIn(metadata.ShipmentPacked), nil)
	repo.On("GetBoxesTx", mock.Anything, 1, 8).Return([]models.ShipmentBox{
		{ID: 1, ShipmentID: 8, BoxNumber: 1},
	}, nil)
	resRepo.On("GetActiveForEntityTx", mock.Anything, 1, models.EntityShipment, 8).
		Return([]models.Reservation{
			{ID: 21, UnitID: 3, Quantity: decimal.NewFromInt(5)},
		}, nil)
	consumer.On("ConsumeTx", mock.Anything, 1, webActor, 21).
		Return(&models.ConsumptionRecord{ID: 31, ReservationID: 21, UnitID: 3, Quantity: decimal.NewFromInt(5)}, nil)
	repo.On("UpdateStatus", mock.Anything, 1, 8, metadata.ShipmentPacked, metadata.ShipmentShipped).
		Return(nil)
	repo.On("SetSalesOrderStatus", mock.Anything, 1, 44, SalesOrderShipped).Return(nil)

	router := setupRouter(newTestService(repo, resRepo, consumer), "operator")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPatch, "/shipments/8/ship", bytes.NewBufferString(`{"confirm": true}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var result ShipResult
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, metadata.ShipmentShipped, result.Shipment.Status)
	assert.Len(t, result.Consumed, 1)
}

func TestExceptionEndpointRequiresSupervisor(t *testing.T) {
	repo := new(MockShipmentRepository)
	router := setupRouter(newTestService(repo, new(MockReservationRepo), new(MockConsumer)), "operator")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPatch, "/shipments/8/exception", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	repo.AssertNotCalled(t, "GetShipmentForUpdate", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddBoxEndpoint(t *testing.T) {
	repo := new(MockShipmentRepository)
	repo.On("GetShipmentForUpdate", mock.Anything, 1, 8).
		Return(shipmentIn(metadata.ShipmentPacking), nil)
	repo.On("AddBox", mock.Anything, 1, 8, 2).Return(15, nil)

	router := setupRouter(newTestService(repo, new(MockReservationRepo), new(MockConsumer)), "operator")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/shipments/8/boxes", bytes.NewBufferString(`{"box_number": 2}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var box models.ShipmentBox
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &box))
	assert.Equal(t, 15, box.ID)
	repo.AssertExpectations(t)
}
