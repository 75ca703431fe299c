package container

import (
	"database/sql"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	auditLogRepo "github.com/CoderMariusz/MonoPilot-sub046/internal/auditlog"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/consumption"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/events"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/genealogy"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/ledger"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/purchaseorders"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/repository"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/reservation"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/rma"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/settings"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/shipments"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/transferorders"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/workorders"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/auditlog"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/roles"
)

type Container struct {
	Repository           *repository.Repository
	AuditLog             *auditlog.Auditlog
	Producer             *events.Producer
	LedgerRepo           ledger.LedgerRepository
	SettingsRepo         settings.SettingsRepository
	ReservationManager   *reservation.ReservationManager
	ConsumptionProcessor *consumption.ConsumptionProcessor
	GenealogyService     *genealogy.GenealogyService
	WorkOrderService     *workorders.WorkOrderService
	TransferOrderService *transferorders.TransferOrderService
	PurchaseOrderService *purchaseorders.PurchaseOrderService
	ShipmentService      *shipments.ShipmentService
	RMAService           *rma.RMAService
}

func NewAppContainer(db *sql.DB, log *zap.Logger) *Container {
	repo := repository.NewRepository(db)
	auditRepo := auditLogRepo.NewRepository(repo)
	audit := auditlog.NewAuditLog(auditRepo, log)
	producer := events.NewProducer(kafkaBrokers(), kafkaTopic(), log)

	ledgerRepo := ledger.NewRepository(repo)
	settingsRepo := settings.NewRepository(repo)
	resRepo := reservation.NewRepository(repo)
	records := consumption.NewRepository(repo)
	edges := genealogy.NewRepository(repo)
	policy := roles.RolePolicy{}

	manager := reservation.NewManager(repo, resRepo, ledgerRepo, audit, producer, policy, log)
	processor := consumption.NewProcessor(repo, records, resRepo, ledgerRepo, producer, log, reversalWindow())
	genealogyService := genealogy.NewService(repo, edges, log)

	workOrderRepo := workorders.NewRepository(repo)
	workOrderService := workorders.NewService(
		repo, workOrderRepo, manager, resRepo, ledgerRepo, edges, settingsRepo, policy, producer, log)

	transferOrderRepo := transferorders.NewRepository(repo)
	transferOrderService := transferorders.NewService(
		repo, transferOrderRepo, manager, resRepo, processor, ledgerRepo, settingsRepo, producer, log)

	purchaseOrderRepo := purchaseorders.NewRepository(repo)
	purchaseOrderService := purchaseorders.NewService(repo, purchaseOrderRepo, ledgerRepo, producer, log)

	shipmentRepo := shipments.NewRepository(repo)
	shipmentService := shipments.NewService(repo, shipmentRepo, resRepo, processor, producer, log)

	rmaRepo := rma.NewRepository(repo)
	rmaService := rma.NewService(repo, rmaRepo, ledgerRepo, producer, log)

	return &Container{
		Repository:           repo,
		AuditLog:             audit,
		Producer:             producer,
		LedgerRepo:           ledgerRepo,
		SettingsRepo:         settingsRepo,
		ReservationManager:   manager,
		ConsumptionProcessor: processor,
		GenealogyService:     genealogyService,
		WorkOrderService:     workOrderService,
		TransferOrderService: transferOrderService,
		PurchaseOrderService: purchaseOrderService,
		ShipmentService:      shipmentService,
		RMAService:           rmaService,
	}
}

func kafkaBrokers() []string {
	raw := os.Getenv("KAFKA_BROKERS")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func kafkaTopic() string {
	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "inventory-events"
	}
	return topic
}

func reversalWindow() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("REVERSAL_WINDOW_HOURS"))
	if err != nil || hours <= 0 {
		return 0
	}
	return time.Duration(hours) * time.Hour
}
