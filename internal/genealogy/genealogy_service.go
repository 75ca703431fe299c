package genealogy

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"go.uber.org/zap"

	"github.com/CoderMariusz/MonoPilot-sub046/internal/repository"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/models"
)

type GenealogyService struct {
	r     *repository.Repository
	edges GenealogyRepository
	log   *zap.Logger
	runTx func(ctx context.Context, r *repository.Repository, fn func(tx *goqu.TxDatabase) error) error
}

func NewService(r *repository.Repository, edges GenealogyRepository, log *zap.Logger) *GenealogyService {
	return &GenealogyService{
		r:     r,
		edges: edges,
		log:   log,
		runTx: repository.WithTransaction,
	}
}

// RecordEdge links a parent unit to the child it produced.
func (s *GenealogyService) RecordEdge(ctx context.Context, orgID int, edge models.GenealogyEdge) (int, error) {
	edge.OrgID = orgID

	var edgeID int
	err := s.runTx(ctx, s.r, func(tx *goqu.TxDatabase) error {
		var err error
		edgeID, err = s.edges.InsertEdge(tx, edge)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("genealogy edge recorded",
		zap.Int("org_id", orgID),
		zap.Int("parent_unit_id", edge.ParentUnitID),
		zap.Int("child_unit_id", edge.ChildUnitID),
		zap.String("link_type", string(edge.LinkType)))
	return edgeID, nil
}

// RecordEdgeTx links units inside a caller-owned transaction, used by work
// order completion to write output lineage atomically with unit creation.
func (s *GenealogyService) RecordEdgeTx(tx *goqu.TxDatabase, orgID int, edge models.GenealogyEdge) (int, error) {
	edge.OrgID = orgID
	return s.edges.InsertEdge(tx, edge)
}

// Ancestors lists the upstream lineage of a unit.
func (s *GenealogyService) Ancestors(orgID, unitID int) ([]models.GenealogyEdge, error) {
	return s.edges.Ancestors(orgID, unitID)
}

// Descendants lists the downstream lineage of a unit.
func (s *GenealogyService) Descendants(orgID, unitID int) ([]models.GenealogyEdge, error) {
	return s.edges.Descendants(orgID, unitID)
}
