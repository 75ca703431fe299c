package auditlog

import (
	"github.com/doug-martin/goqu/v9"
	"go.uber.org/zap"

	auditLogRepo "github.com/CoderMariusz/MonoPilot-sub046/internal/auditlog"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/models"
)

type Auditlog struct {
	r   *auditLogRepo.AuditLogRepository
	log *zap.Logger
}

type Auditable interface {
	CreateLogView() models.AuditLog
}

func NewAuditLog(repository *auditLogRepo.AuditLogRepository, log *zap.Logger) *Auditlog {
	return &Auditlog{r: repository, log: log}
}

func (a *Auditlog) Log(action string, actorID int, data any, item Auditable) {
	auditLog := item.CreateLogView()
	auditLog.Action = action
	auditLog.ActorID = actorID

	if err := a.r.PersistLog(auditLog, data); err != nil {
		a.log.Warn("unable to create audit log entry",
			zap.Int("resource_id", auditLog.ResourceID),
			zap.String("resource_type", auditLog.ResourceType),
			zap.Error(err))
		return
	}
}

// LogTx writes the audit entry inside the caller's transaction.
func (a *Auditlog) LogTx(tx *goqu.TxDatabase, action string, actorID int, data any, item Auditable) error {
	auditLog := item.CreateLogView()
	auditLog.Action = action
	auditLog.ActorID = actorID

	return a.r.PersistLogTx(tx, auditLog, data)
}
