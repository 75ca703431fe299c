package consumption

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/security"
)

type ConsumptionHandler struct {
	Processor *ConsumptionProcessor
}

func RegisterRoutes(router *gin.Engine, processor *ConsumptionProcessor) {
	handler := ConsumptionHandler{Processor: processor}

	router.POST("/reservations/:id/consume", handler.Consume)
	router.GET("/reservations/:id/consumption-history", handler.History)
	router.POST("/consumption-records/:id/reverse", handler.Reverse)
}

func (h *ConsumptionHandler) Consume(c *gin.Context) {
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

	record, err := h.Processor.Consume(c.Request.Context(), orgID, actor, reservationID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, record)
}

type reverseRequest struct {
	ReasonCode string `json:"reason_code" binding:"required"`
	Notes      string `json:"notes"`
}

func (h *ConsumptionHandler) Reverse(c *gin.Context) {
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
	recordID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return
	}

	var req reverseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	record, err := h.Processor.Reverse(c.Request.Context(), orgID, actor, recordID, req.ReasonCode, req.Notes)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *ConsumptionHandler) History(c *gin.Context) {
	orgID, err := security.OrgFromContext(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	reservationID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return
	}

	records, err := h.Processor.History(orgID, reservationID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}
