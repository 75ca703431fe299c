package consumption

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"go.uber.org/zap"

	"github.com/CoderMariusz/MonoPilot-sub046/internal/events"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/ledger"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/repository"
	"github.com/CoderMariusz/MonoPilot-sub046/internal/reservation"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/models"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/roles"
)

// DefaultReversalWindow bounds how long after consumption a reversal is
// accepted when no explicit window is configured.
const DefaultReversalWindow = 72 * time.Hour

type ConsumptionProcessor struct {
	r        *repository.Repository
	records  ConsumptionRepository
	resRepo  reservation.ReservationRepository
	ledger   ledger.LedgerRepository
	producer *events.Producer
	log      *zap.Logger
	window   time.Duration
	now      func() time.Time
	runTx    func(ctx context.Context, r *repository.Repository, fn func(tx *goqu.TxDatabase) error) error
}

func NewProcessor(
	r *repository.Repository,
	records ConsumptionRepository,
	resRepo reservation.ReservationRepository,
	ledgerRepo ledger.LedgerRepository,
	producer *events.Producer,
	log *zap.Logger,
	reversalWindow time.Duration,
) *ConsumptionProcessor {
	if reversalWindow <= 0 {
		reversalWindow = DefaultReversalWindow
	}
	return &ConsumptionProcessor{
		r:        r,
		records:  records,
		resRepo:  resRepo,
		ledger:   ledgerRepo,
		producer: producer,
		log:      log,
		window:   reversalWindow,
		now:      time.Now,
		runTx:    repository.WithTransaction,
	}
}

// Consume finalizes an active reservation into a permanent on-hand decrement.
// The reservation's full quantity is consumed; the decrement, the record and
// the status flip commit together or not at all.
func (p *ConsumptionProcessor) Consume(ctx context.Context, orgID int, actor roles.Actor, reservationID int) (*models.ConsumptionRecord, error) {
	var record *models.ConsumptionRecord

	err := p.runTxRetry(ctx, func(tx *goqu.TxDatabase) error {
		var err error
		record, err = p.ConsumeTx(tx, orgID, actor, reservationID)
		return err
	})
	if err != nil {
		return nil, err
	}

	p.producer.Publish(ctx, events.TypeConsumptionRecorded, orgID,
		fmt.Sprintf("unit-%d", record.UnitID), record)
	p.log.Info("reservation consumed",
		zap.Int("org_id", orgID),
		zap.Int("reservation_id", reservationID),
		zap.Int("record_id", record.ID))

	return record, nil
}

// runTxRetry re-runs the transaction once when it fails on a transient
// serialization or deadlock error. The closure must be safe to re-execute.
func (p *ConsumptionProcessor) runTxRetry(ctx context.Context, fn func(tx *goqu.TxDatabase) error) error {
	err := p.runTx(ctx, p.r, fn)
	if err != nil && apperrors.Retryable(err) {
		p.log.Warn("transient transaction failure, retrying once", zap.Error(err))
		err = p.runTx(ctx, p.r, fn)
	}
	return err
}

// ConsumeTx runs the consume step inside a caller-owned transaction, used by
// transitions that must consume and change status atomically.
func (p *ConsumptionProcessor) ConsumeTx(tx *goqu.TxDatabase, orgID int, actor roles.Actor, reservationID int) (*models.ConsumptionRecord, error) {
	res, err := p.resRepo.GetReservationForUpdate(tx, orgID, reservationID)
	if err != nil {
		return nil, err
	}
	if res.Status != metadata.ReservationActive {
		return nil, fmt.Errorf("reservation %d has status %q: %w",
			res.ID, res.Status, apperrors.ErrInvalidReservationStatus)
	}

	if err := p.ledger.DecrementOnHand(tx, orgID, res.UnitID, res.Quantity); err != nil {
		return nil, err
	}

	record := models.ConsumptionRecord{
		OrgID:         orgID,
		ReservationID: res.ID,
		UnitID:        res.UnitID,
		Quantity:      res.Quantity,
		Direction:     metadata.DirectionConsume,
		ActorID:       actor.ID,
	}
	recordID, err := p.records.InsertRecord(tx, record)
	if err != nil {
		return nil, err
	}
	record.ID = recordID

	if err := p.resRepo.MarkConsumed(tx, orgID, res.ID); err != nil {
		return nil, err
	}
	return &record, nil
}

// Reverse undoes a prior consumption: on-hand quantity returns to the unit
// and a reverse-direction record points back at the original. The consumed
// reservation stays consumed; material needed again must be re-reserved.
func (p *ConsumptionProcessor) Reverse(ctx context.Context, orgID int, actor roles.Actor, recordID int, reasonCode, notes string) (*models.ConsumptionRecord, error) {
	reason, err := metadata.NewReversalReason(reasonCode, notes)
	if err != nil {
		return nil, err
	}

	var reversal models.ConsumptionRecord

	err = p.runTxRetry(ctx, func(tx *goqu.TxDatabase) error {
		original, err := p.records.GetRecordForUpdate(tx, orgID, recordID)
		if err != nil {
			return err
		}
		if original.Direction != metadata.DirectionConsume {
			return fmt.Errorf("record %d is not a consumption: %w",
				original.ID, apperrors.ErrAlreadyReversed)
		}
		if original.ReversedID != nil {
			return fmt.Errorf("record %d was reversed by record %d: %w",
				original.ID, *original.ReversedID, apperrors.ErrAlreadyReversed)
		}
		if p.now().Sub(original.CreatedAt) > p.window {
			return fmt.Errorf("record %d consumed at %s: %w",
				original.ID, original.CreatedAt.Format(time.RFC3339), apperrors.ErrReversalWindowClosed)
		}

		if err := p.ledger.IncrementOnHand(tx, orgID, original.UnitID, original.Quantity); err != nil {
			return err
		}

		reversal = models.ConsumptionRecord{
			OrgID:         orgID,
			ReservationID: original.ReservationID,
			UnitID:        original.UnitID,
			Quantity:      original.Quantity,
			Direction:     metadata.DirectionReverse,
			ReasonCode:    &reason,
			Notes:         notes,
			ReversedID:    &original.ID,
			ActorID:       actor.ID,
		}
		reversalID, err := p.records.InsertRecord(tx, reversal)
		if err != nil {
			return err
		}
		reversal.ID = reversalID

		return p.records.MarkReversed(tx, orgID, original.ID, reversalID)
	})
	if err != nil {
		return nil, err
	}

	p.producer.Publish(ctx, events.TypeConsumptionReversed, orgID,
		fmt.Sprintf("unit-%d", reversal.UnitID), reversal)
	p.log.Info("consumption reversed",
		zap.Int("org_id", orgID),
		zap.Int("record_id", recordID),
		zap.Int("reversal_id", reversal.ID),
		zap.String("reason", string(reason)))

	return &reversal, nil
}

// History lists every consumption record written against a reservation,
// oldest first.
func (p *ConsumptionProcessor) History(orgID, reservationID int) ([]models.ConsumptionRecord, error) {
	return p.records.ListForReservation(orgID, reservationID)
}
