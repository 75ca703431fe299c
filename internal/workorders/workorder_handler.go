package workorders

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/roles"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/security"
)

type WorkOrderHandler struct {
	Service *WorkOrderService
}

func RegisterRoutes(router *gin.Engine, service *WorkOrderService) {
	handler := WorkOrderHandler{Service: service}

	router.GET("/work-orders/:id", handler.GetWorkOrder)
	router.GET("/work-orders/:id/coverage", handler.GetCoverage)
	router.PATCH("/work-orders/:id/release", handler.Release)
	router.PATCH("/work-orders/:id/start", handler.Start)
	router.PATCH("/work-orders/:id/pause", handler.Pause)
	router.PATCH("/work-orders/:id/complete", handler.Complete)
	router.PATCH("/work-orders/:id/cancel", handler.Cancel)
}

func (h *WorkOrderHandler) GetWorkOrder(c *gin.Context) {
	orgID, workOrderID, _, ok := requestScope(c)
	if !ok {
		return
	}

	wo, err := h.Service.GetWorkOrder(orgID, workOrderID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, wo)
}

func (h *WorkOrderHandler) GetCoverage(c *gin.Context) {
	orgID, workOrderID, _, ok := requestScope(c)
	if !ok {
		return
	}

	coverage, err := h.Service.Coverage(orgID, workOrderID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"coverage": coverage})
}

func (h *WorkOrderHandler) Release(c *gin.Context) {
	orgID, workOrderID, actor, ok := requestScope(c)
	if !ok {
		return
	}

	result, err := h.Service.Release(c.Request.Context(), orgID, actor, workOrderID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *WorkOrderHandler) Start(c *gin.Context) {
	orgID, workOrderID, actor, ok := requestScope(c)
	if !ok {
		return
	}

	wo, err := h.Service.Start(c.Request.Context(), orgID, actor, workOrderID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, wo)
}

func (h *WorkOrderHandler) Pause(c *gin.Context) {
	orgID, workOrderID, actor, ok := requestScope(c)
	if !ok {
		return
	}

	wo, err := h.Service.Pause(c.Request.Context(), orgID, actor, workOrderID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, wo)
}

type completeRequest struct {
	OutputQty               decimal.Decimal `json:"output_qty"`
	LotNumber               string          `json:"lot_number"`
	OverConsumptionApproved bool            `json:"over_consumption_approved"`
}

func (h *WorkOrderHandler) Complete(c *gin.Context) {
	orgID, workOrderID, actor, ok := requestScope(c)
	if !ok {
		return
	}

	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	wo, err := h.Service.Complete(c.Request.Context(), orgID, actor, workOrderID,
		req.OutputQty, req.LotNumber, req.OverConsumptionApproved)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, wo)
}

func (h *WorkOrderHandler) Cancel(c *gin.Context) {
	orgID, workOrderID, actor, ok := requestScope(c)
	if !ok {
		return
	}

	wo, err := h.Service.Cancel(c.Request.Context(), orgID, actor, workOrderID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, wo)
}

func requestScope(c *gin.Context) (int, int, roles.Actor, bool) {
	orgID, err := security.OrgFromContext(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return 0, 0, roles.Actor{}, false
	}
	actor, err := security.ActorFromContext(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return 0, 0, roles.Actor{}, false
	}
	entityID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, 0, roles.Actor{}, false
	}
	return orgID, entityID, actor, true
}
