package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/CoderMariusz/MonoPilot-sub046/internal/consumption"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/core/container"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/genealogy"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/ledger"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/middleware"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/purchaseorders"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/reservation"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/rma"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/shipments"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/transferorders"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/workorders"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/security"
)

// RegisterRoutes wires every domain handler behind the JWT middleware.
func RegisterRoutes(router *gin.Engine, c *container.Container) {
	router.Use(security.JWTMiddleware())

	ledger.RegisterRoutes(router, c.LedgerRepo, c.SettingsRepo)
	reservation.RegisterRoutes(router, c.ReservationManager, c.LedgerRepo, c.SettingsRepo)
	consumption.RegisterRoutes(router, c.ConsumptionProcessor)
	genealogy.RegisterRoutes(router, c.GenealogyService)
	workorders.RegisterRoutes(router, c.WorkOrderService)
	transferorders.RegisterRoutes(router, c.TransferOrderService)
	purchaseorders.RegisterRoutes(router, c.PurchaseOrderService)
	shipments.RegisterRoutes(router, c.ShipmentService)
	rma.RegisterRoutes(router, c.RMAService)
}

// RegisterUtilityRoutes wires endpoints that skip authentication.
func RegisterUtilityRoutes(router *gin.Engine) {
	router.GET("/health", middleware.HealthCheckMiddleware())
}
