package rma

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/models"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/roles"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/security"
)

type RMAHandler struct {
	Service *RMAService
}

func RegisterRoutes(router *gin.Engine, service *RMAService) {
	handler := RMAHandler{Service: service}

	router.GET("/rmas/:id", handler.GetRMA)
	router.PATCH("/rmas/:id/approve", security.Authorize(roles.Supervisor), handler.Approve)
	router.PATCH("/rmas/:id/start-receiving", handler.StartReceiving)
	router.POST("/rmas/:id/receive", handler.ReceiveLine)
	router.PATCH("/rmas/:id/received", handler.MarkReceived)
	router.PATCH("/rmas/:id/processed", handler.MarkProcessed)
	router.PATCH("/rmas/:id/close", handler.Close)
	router.PUT("/rmas/:id/lines/:lineId", handler.UpdateLine)
}

func (h *RMAHandler) GetRMA(c *gin.Context) {
	orgID, rmaID, _, ok := requestScope(c)
	if !ok {
		return
	}

	rma, err := h.Service.GetRMA(orgID, rmaID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rma)
}

func (h *RMAHandler) Approve(c *gin.Context) {
	h.transition(c, h.Service.Approve)
}

func (h *RMAHandler) StartReceiving(c *gin.Context) {
	h.transition(c, h.Service.StartReceiving)
}

func (h *RMAHandler) MarkReceived(c *gin.Context) {
	h.transition(c, h.Service.MarkReceived)
}

func (h *RMAHandler) MarkProcessed(c *gin.Context) {
	h.transition(c, h.Service.MarkProcessed)
}

func (h *RMAHandler) Close(c *gin.Context) {
	h.transition(c, h.Service.Close)
}

func (h *RMAHandler) ReceiveLine(c *gin.Context) {
	orgID, rmaID, actor, ok := requestScope(c)
	if !ok {
		return
	}

	var req ReceiveLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	unit, err := h.Service.ReceiveLine(c.Request.Context(), orgID, actor, rmaID, req)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, unit)
}

type updateLineRequest struct {
	ExpectedQty decimal.Decimal `json:"expected_qty"`
}

func (h *RMAHandler) UpdateLine(c *gin.Context) {
	orgID, rmaID, actor, ok := requestScope(c)
	if !ok {
		return
	}
	lineID, err := strconv.Atoi(c.Param("lineId"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid line id"})
		return
	}

	var req updateLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	if err := h.Service.UpdateLine(c.Request.Context(), orgID, actor, rmaID, lineID, req.ExpectedQty); err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Line updated"})
}

func (h *RMAHandler) transition(
	c *gin.Context,
	op func(ctx context.Context, orgID int, actor roles.Actor, rmaID int) (*models.RMA, error),
) {
	orgID, rmaID, actor, ok := requestScope(c)
	if !ok {
		return
	}

	rma, err := op(c.Request.Context(), orgID, actor, rmaID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rma)
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
	rmaID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, 0, roles.Actor{}, false
	}
	return orgID, rmaID, actor, true
}
