package shipments

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

type ShipmentHandler struct {
	Service *ShipmentService
}

func RegisterRoutes(router *gin.Engine, service *ShipmentService) {
	handler := ShipmentHandler{Service: service}

	router.GET("/shipments/:id", handler.GetShipment)
	router.PATCH("/shipments/:id/pack", handler.StartPacking)
	router.PATCH("/shipments/:id/packed", handler.MarkPacked)
	router.POST("/shipments/:id/boxes", handler.AddBox)
	router.DELETE("/shipments/:id/boxes/:boxId", handler.RemoveBox)
	router.PATCH("/shipments/:id/ship", handler.Ship)
	router.PATCH("/shipments/:id/deliver", handler.Deliver)
	router.PATCH("/shipments/:id/cancel", handler.Cancel)
	router.PATCH("/shipments/:id/exception", security.Authorize(roles.Supervisor), handler.MarkException)
}

func (h *ShipmentHandler) GetShipment(c *gin.Context) {
	orgID, shipmentID, _, ok := requestScope(c)
	if !ok {
		return
	}

	shipment, err := h.Service.GetShipment(orgID, shipmentID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, shipment)
}

func (h *ShipmentHandler) StartPacking(c *gin.Context) {
	h.transition(c, h.Service.StartPacking)
}

func (h *ShipmentHandler) MarkPacked(c *gin.Context) {
	h.transition(c, h.Service.MarkPacked)
}

func (h *ShipmentHandler) Deliver(c *gin.Context) {
	h.transition(c, h.Service.Deliver)
}

func (h *ShipmentHandler) Cancel(c *gin.Context) {
	h.transition(c, h.Service.Cancel)
}

func (h *ShipmentHandler) MarkException(c *gin.Context) {
	h.transition(c, h.Service.MarkException)
}

type addBoxRequest struct {
	BoxNumber int `json:"box_number" binding:"required"`
}

func (h *ShipmentHandler) AddBox(c *gin.Context) {
	orgID, shipmentID, actor, ok := requestScope(c)
	if !ok {
		return
	}

	var req addBoxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	box, err := h.Service.AddBox(c.Request.Context(), orgID, actor, shipmentID, req.BoxNumber)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, box)
}

func (h *ShipmentHandler) RemoveBox(c *gin.Context) {
	orgID, shipmentID, actor, ok := requestScope(c)
	if !ok {
		return
	}
	boxID, err := strconv.Atoi(c.Param("boxId"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid box id"})
		return
	}

	if err := h.Service.RemoveBox(c.Request.Context(), orgID, actor, shipmentID, boxID); err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Box removed"})
}

type shipRequest struct {
	Confirm bool `json:"confirm"`
}

func (h *ShipmentHandler) Ship(c *gin.Context) {
	orgID, shipmentID, actor, ok := requestScope(c)
	if !ok {
		return
	}

	var req shipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	result, err := h.Service.Ship(c.Request.Context(), orgID, actor, shipmentID, req.Confirm)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ShipmentHandler) transition(
	c *gin.Context,
	op func(ctx context.Context, orgID int, actor roles.Actor, shipmentID int) (*models.Shipment, error),
) {
	orgID, shipmentID, actor, ok := requestScope(c)
	if !ok {
		return
	}

	shipment, err := op(c.Request.Context(), orgID, actor, shipmentID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, shipment)
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
	shipmentID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, 0, roles.Actor{}, false
	}
	return orgID, shipmentID, actor, true
}
