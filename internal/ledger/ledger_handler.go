package ledger

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/CoderMariusz/MonoPilot-sub046/internal/settings"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/security"
)

type LedgerHandler struct {
	Ledger   LedgerRepository
	Settings settings.SettingsRepository
}

func RegisterRoutes(router *gin.Engine, ledgerRepo LedgerRepository, settingsRepo settings.SettingsRepository) {
	handler := LedgerHandler{Ledger: ledgerRepo, Settings: settingsRepo}

	router.GET("/units/:id", handler.GetUnit)
	router.GET("/units/:id/available", handler.GetAvailable)
	router.GET("/units", handler.FindEligible)
}

func (h *LedgerHandler) GetUnit(c *gin.Context) {
	orgID, unitID, ok := unitScope(c)
	if !ok {
		return
	}

	unit, err := h.Ledger.GetUnit(orgID, unitID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, unit)
}

func (h *LedgerHandler) GetAvailable(c *gin.Context) {
	orgID, unitID, ok := unitScope(c)
	if !ok {
		return
	}

	available, err := h.Ledger.GetAvailable(orgID, unitID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unit_id": unitID, "available": available})
}

// FindEligible lists reservable units for a product in strategy order.
func (h *LedgerHandler) FindEligible(c *gin.Context) {
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
	warehouseID, _ := strconv.Atoi(c.Query("warehouse_id"))
	locationID, _ := strconv.Atoi(c.Query("location_id"))

	strategy, err := h.Settings.GetAllocationStrategy(orgID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	eligible, err := h.Ledger.FindEligible(orgID, productID, EligibleFilters{
		WarehouseID: warehouseID,
		LocationID:  locationID,
		LotNumber:   c.Query("lot_number"),
		Strategy:    strategy,
	})
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"units": eligible})
}

func unitScope(c *gin.Context) (int, int, bool) {
	orgID, err := security.OrgFromContext(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return 0, 0, false
	}
	unitID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, 0, false
	}
	return orgID, unitID, true
}
