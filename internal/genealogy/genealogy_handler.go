package genealogy

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/models"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/security"
)

type GenealogyHandler struct {
	Service *GenealogyService
}

func RegisterRoutes(router *gin.Engine, service *GenealogyService) {
	handler := GenealogyHandler{Service: service}

	router.POST("/genealogy", handler.RecordEdge)
	router.GET("/units/:id/ancestors", handler.Ancestors)
	router.GET("/units/:id/descendants", handler.Descendants)
}

func (h *GenealogyHandler) RecordEdge(c *gin.Context) {
	orgID, err := security.OrgFromContext(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var edge models.GenealogyEdge
	if err := c.ShouldBindJSON(&edge); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	edgeID, err := h.Service.RecordEdge(c.Request.Context(), orgID, edge)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": edgeID})
}

func (h *GenealogyHandler) Ancestors(c *gin.Context) {
	h.traverse(c, h.Service.Ancestors)
}

func (h *GenealogyHandler) Descendants(c *gin.Context) {
	h.traverse(c, h.Service.Descendants)
}

func (h *GenealogyHandler) traverse(c *gin.Context, op func(orgID, unitID int) ([]models.GenealogyEdge, error)) {
	orgID, err := security.OrgFromContext(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	unitID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return
	}

	edges, err := op(orgID, unitID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"edges": edges})
}
