package transferorders

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/roles"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/security"
)

type TransferOrderHandler struct {
	Service *TransferOrderService
}

func RegisterRoutes(router *gin.Engine, service *TransferOrderService) {
	handler := TransferOrderHandler{Service: service}

	router.GET("/transfer-orders/:id", handler.GetTransferOrder)
	router.PATCH("/transfer-orders/:id/confirm", handler.Confirm)
	router.PATCH("/transfer-orders/:id/ship", handler.Ship)
	router.PATCH("/transfer-orders/:id/receive", handler.Receive)
	router.PATCH("/transfer-orders/:id/close", handler.Close)
	router.PATCH("/transfer-orders/:id/cancel", handler.Cancel)
}

func (h *TransferOrderHandler) GetTransferOrder(c *gin.Context) {
	orgID, transferOrderID, _, ok := requestScope(c)
	if !ok {
		return
	}

	to, err := h.Service.GetTransferOrder(orgID, transferOrderID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, to)
}

func (h *TransferOrderHandler) Confirm(c *gin.Context) {
	orgID, transferOrderID, actor, ok := requestScope(c)
	if !ok {
		return
	}

	result, err := h.Service.Confirm(c.Request.Context(), orgID, actor, transferOrderID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *TransferOrderHandler) Ship(c *gin.Context) {
	orgID, transferOrderID, actor, ok := requestScope(c)
	if !ok {
		return
	}

	result, err := h.Service.Ship(c.Request.Context(), orgID, actor, transferOrderID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *TransferOrderHandler) Receive(c *gin.Context) {
	orgID, transferOrderID, actor, ok := requestScope(c)
	if !ok {
		return
	}

	to, err := h.Service.Receive(c.Request.Context(), orgID, actor, transferOrderID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, to)
}

func (h *TransferOrderHandler) Close(c *gin.Context) {
	orgID, transferOrderID, actor, ok := requestScope(c)
	if !ok {
		return
	}

	to, err := h.Service.Close(c.Request.Context(), orgID, actor, transferOrderID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, to)
}

func (h *TransferOrderHandler) Cancel(c *gin.Context) {
	orgID, transferOrderID, actor, ok := requestScope(c)
	if !ok {
		return
	}

	to, err := h.Service.Cancel(c.Request.Context(), orgID, actor, transferOrderID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, to)
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
	transferOrderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, 0, roles.Actor{}, false
	}
	return orgID, transferOrderID, actor, true
}
