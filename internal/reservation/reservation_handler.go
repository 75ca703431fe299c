package reservation

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub046/internal/allocation"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/ledger"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/settings"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/models"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/security"
)

type ReservationHandler struct {
	Manager  *ReservationManager
	Ledger   ledger.LedgerRepository
	Settings settings.SettingsRepository
}

func RegisterRoutes(router *gin.Engine, manager *ReservationManager, ledgerRepo ledger.LedgerRepository, settingsRepo settings.SettingsRepository) {
	handler := ReservationHandler{Manager: manager, Ledger: ledgerRepo, Settings: settingsRepo}

	router.POST("/reservations", handler.Reserve)
	router.GET("/reservations", handler.ListActive)
	router.PATCH("/reservations/:id/release", handler.Release)
	router.POST("/reservations/release-entity", handler.ReleaseEntity)
	router.GET("/allocation/plan", handler.PlanPreview)
}

type reserveRequest struct {
	EntityType  string             `json:"entity_type" binding:"required"`
	EntityID    int                `json:"entity_id" binding:"required"`
	LineID      int                `json:"line_id"`
	ProductID   int                `json:"product_id"`
	Quantity    decimal.Decimal    `json:"quantity"`
	WarehouseID int                `json:"warehouse_id"`
	LocationID  int                `json:"location_id"`
	LotNumber   string             `json:"lot_number"`
	Pick        *models.ManualPick `json:"pick,omitempty"`
}

// Reserve commits reservations for one entity line. With a manual pick the
// caller names the unit; otherwise a plan is built from eligible units under
// the org's allocation strategy and committed in full.
func (h *ReservationHandler) Reserve(c *gin.Context) {
	orgID, err := security.OrgFromContext(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	actor, err := security.ActorFromContext(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	managerReq := ReserveRequest{
		EntityType:        req.EntityType,
		EntityID:          req.EntityID,
		LineID:            req.LineID,
		ExpectedProductID: req.ProductID,
		Pick:              req.Pick,
	}

	if req.Pick == nil {
		strategy, err := h.Settings.GetAllocationStrategy(orgID)
		if err != nil {
			c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
			return
		}
		eligible, err := h.Ledger.FindEligible(orgID, req.ProductID, ledger.EligibleFilters{
			WarehouseID: req.WarehouseID,
			LocationID:  req.LocationID,
			LotNumber:   req.LotNumber,
			Strategy:    strategy,
		})
		if err != nil {
			c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
			return
		}
		plan, err := allocation.BuildPlan(req.ProductID, req.Quantity, strategy, eligible)
		if err != nil {
			c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
			return
		}
		managerReq.Plan = &plan
	}

	reserved, err := h.Manager.Reserve(c.Request.Context(), orgID, actor, managerReq)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"reservations": reserved})
}

// PlanPreview builds an advisory allocation plan without reserving anything.
func (h *ReservationHandler) PlanPreview(c *gin.Context) {
	orgID, err := security.OrgFromContext(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	productID, err := strconv.Atoi(c.Query("product_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid product_id"})
		return
	}
	quantity, err := decimal.NewFromString(c.Query("quantity"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid quantity"})
		return
	}
	warehouseID, _ := strconv.Atoi(c.Query("warehouse_id"))
	locationID, _ := strconv.Atoi(c.Query("location_id"))

	strategy, err := h.Settings.GetAllocationStrategy(orgID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	eligible, err := h.Ledger.FindEligible(orgID, productID, ledger.EligibleFilters{
		WarehouseID: warehouseID,
		LocationID:  locationID,
		LotNumber:   c.Query("lot_number"),
		Strategy:    strategy,
	})
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	plan, err := allocation.BuildPlan(productID, quantity, strategy, eligible)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *ReservationHandler) ListActive(c *gin.Context) {
	orgID, err := security.OrgFromContext(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	entityType := c.Query("entity_type")
	entityID, err := strconv.Atoi(c.Query("entity_id"))
	if entityType == "" || err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "entity_type and entity_id are required"})
		return
	}

	active, err := h.Manager.GetActiveForEntity(orgID, entityType, entityID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservations": active})
}

func (h *ReservationHandler) Release(c *gin.Context) {
	orgID, err := security.OrgFromContext(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	actor, err := security.ActorFromContext(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	reservationID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return
	}

	if err := h.Manager.Release(c.Request.Context(), orgID, actor, reservationID); err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Reservation released"})
}

type releaseEntityRequest struct {
	EntityType string `json:"entity_type" binding:"required"`
	EntityID   int    `json:"entity_id" binding:"required"`
}

func (h *ReservationHandler) ReleaseEntity(c *gin.Context) {
	orgID, err := security.OrgFromContext(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var req releaseEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	released, err := h.Manager.ReleaseAllForEntity(c.Request.Context(), orgID, req.EntityType, req.EntityID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"released": released})
}
