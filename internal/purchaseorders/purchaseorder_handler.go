package purchaseorders

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/models"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/roles"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/security"
)

type PurchaseOrderHandler struct {
	Service *PurchaseOrderService
}

func RegisterRoutes(router *gin.Engine, service *PurchaseOrderService) {
	handler := PurchaseOrderHandler{Service: service}

	router.GET("/purchase-orders/:id", handler.GetPurchaseOrder)
	router.PATCH("/purchase-orders/:id/submit", handler.SubmitForApproval)
	router.PATCH("/purchase-orders/:id/approve", security.Authorize(roles.Supervisor), handler.Approve)
	router.PATCH("/purchase-orders/:id/reject", security.Authorize(roles.Supervisor), handler.Reject)
	router.PATCH("/purchase-orders/:id/start-receiving", handler.StartReceiving)
	router.POST("/purchase-orders/:id/receive", handler.ReceiveLine)
	router.PATCH("/purchase-orders/:id/close", handler.Close)
	router.PATCH("/purchase-orders/:id/cancel", handler.Cancel)
}

func (h *PurchaseOrderHandler) GetPurchaseOrder(c *gin.Context) {
	orgID, purchaseOrderID, _, ok := requestScope(c)
	if !ok {
		return
	}

	po, err := h.Service.GetPurchaseOrder(orgID, purchaseOrderID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, po)
}

func (h *PurchaseOrderHandler) SubmitForApproval(c *gin.Context) {
	h.transition(c, h.Service.SubmitForApproval)
}

func (h *PurchaseOrderHandler) Approve(c *gin.Context) {
	h.transition(c, h.Service.Approve)
}

func (h *PurchaseOrderHandler) Reject(c *gin.Context) {
	h.transition(c, h.Service.Reject)
}

func (h *PurchaseOrderHandler) StartReceiving(c *gin.Context) {
	h.transition(c, h.Service.StartReceiving)
}

func (h *PurchaseOrderHandler) Close(c *gin.Context) {
	h.transition(c, h.Service.Close)
}

func (h *PurchaseOrderHandler) Cancel(c *gin.Context) {
	h.transition(c, h.Service.Cancel)
}

func (h *PurchaseOrderHandler) ReceiveLine(c *gin.Context) {
	orgID, purchaseOrderID, actor, ok := requestScope(c)
	if !ok {
		return
	}

	var req ReceiveLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	unit, err := h.Service.ReceiveLine(c.Request.Context(), orgID, actor, purchaseOrderID, req)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, unit)
}

func (h *PurchaseOrderHandler) transition(
	c *gin.Context,
	op func(ctx context.Context, orgID int, actor roles.Actor, purchaseOrderID int) (*models.PurchaseOrder, error),
) {
	orgID, purchaseOrderID, actor, ok := requestScope(c)
	if !ok {
		return
	}

	po, err := op(c.Request.Context(), orgID, actor, purchaseOrderID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, po)
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
	purchaseOrderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, 0, roles.Actor{}, false
	}
	return orgID, purchaseOrderID, actor, true
}
