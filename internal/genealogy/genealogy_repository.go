package genealogy

import (
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/CoderMariusz/MonoPilot-sub046/internal/repository"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/models"
)

// ErrGenealogyCycle rejects an edge whose child is already an ancestor of its
// parent. Lineage stays a DAG.
var ErrGenealogyCycle = errors.New("genealogy edge would create a cycle")

type GenealogyRepository interface {
	InsertEdge(tx *goqu.TxDatabase, edge models.GenealogyEdge) (int, error)
	Ancestors(orgID, unitID int) ([]models.GenealogyEdge, error)
	Descendants(orgID, unitID int) ([]models.GenealogyEdge, error)
}

type genealogyRepository struct {
	repo *repository.Repository
}

func NewRepository(r *repository.Repository) *genealogyRepository {
	return &genealogyRepository{repo: r}
}

const ancestorsQuery = `
WITH RECURSIVE lineage AS (
    SELECT id, org_id, parent_unit_id, child_unit_id, link_type, work_order_id, created_at
    FROM lp_genealogy
    WHERE org_id = $1 AND child_unit_id = $2
    UNION
    SELECT g.id, g.org_id, g.parent_unit_id, g.child_unit_id, g.link_type, g.work_order_id, g.created_at
    FROM lp_genealogy g
    JOIN lineage l ON g.child_unit_id = l.parent_unit_id AND g.org_id = l.org_id
)
SELECT id, org_id, parent_unit_id, child_unit_id, link_type, work_order_id, created_at
FROM lineage
ORDER BY id`

const descendantsQuery = `
WITH RECURSIVE lineage AS (
    SELECT id, org_id, parent_unit_id, child_unit_id, link_type, work_order_id, created_at
    FROM lp_genealogy
    WHERE org_id = $1 AND parent_unit_id = $2
    UNION
    SELECT g.id, g.org_id, g.parent_unit_id, g.child_unit_id, g.link_type, g.work_order_id, g.created_at
    FROM lp_genealogy g
    JOIN lineage l ON g.parent_unit_id = l.child_unit_id AND g.org_id = l.org_id
)
SELECT id, org_id, parent_unit_id, child_unit_id, link_type, work_order_id, created_at
FROM lineage
ORDER BY id`

// InsertEdge records a parent→child production link. Self-links and links
// whose child already sits upstream of the parent fail with ErrGenealogyCycle.
func (r *genealogyRepository) InsertEdge(tx *goqu.TxDatabase, edge models.GenealogyEdge) (int, error) {
	if edge.ParentUnitID == edge.ChildUnitID {
		return 0, ErrGenealogyCycle
	}

	var onPath bool
	_, err := tx.Select(goqu.L(`EXISTS (
WITH RECURSIVE upstream AS (
    SELECT parent_unit_id FROM lp_genealogy WHERE org_id = ? AND child_unit_id = ?
    UNION
    SELECT g.parent_unit_id FROM lp_genealogy g
    JOIN upstream u ON g.child_unit_id = u.parent_unit_id
    WHERE g.org_id = ?
)
SELECT 1 FROM upstream WHERE parent_unit_id = ?)`,
		edge.OrgID, edge.ParentUnitID, edge.OrgID, edge.ChildUnitID)).
		Executor().
		ScanVal(&onPath)
	if err != nil {
		return 0, fmt.Errorf("failed to check genealogy for cycles: %w", apperrors.WrapDBError(err))
	}
	if onPath {
		return 0, ErrGenealogyCycle
	}

	row := goqu.Record{
		"org_id":         edge.OrgID,
		"parent_unit_id": edge.ParentUnitID,
		"child_unit_id":  edge.ChildUnitID,
		"link_type":      edge.LinkType,
	}
	if edge.WorkOrderID != nil {
		row["work_order_id"] = *edge.WorkOrderID
	}

	var edgeID int
	_, err = tx.Insert("lp_genealogy").
		Rows(row).
		Returning("id").
		Executor().
		ScanVal(&edgeID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert genealogy edge: %w", apperrors.WrapDBError(err))
	}
	return edgeID, nil
}

// Ancestors returns every edge on the upstream path of a unit, the raw
// material trail behind a finished good.
func (r *genealogyRepository) Ancestors(orgID, unitID int) ([]models.GenealogyEdge, error) {
	return r.traverse(ancestorsQuery, orgID, unitID)
}

// Descendants returns every edge downstream of a unit, where a recalled lot
// ended up.
func (r *genealogyRepository) Descendants(orgID, unitID int) ([]models.GenealogyEdge, error) {
	return r.traverse(descendantsQuery, orgID, unitID)
}

func (r *genealogyRepository) traverse(query string, orgID, unitID int) ([]models.GenealogyEdge, error) {
	rows, err := r.repo.DB.Query(query, orgID, unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to traverse genealogy: %w", apperrors.WrapDBError(err))
	}
	defer rows.Close()

	var edges []models.GenealogyEdge
	for rows.Next() {
		var edge models.GenealogyEdge
		err := rows.Scan(&edge.ID, &edge.OrgID, &edge.ParentUnitID, &edge.ChildUnitID,
			&edge.LinkType, &edge.WorkOrderID, &edge.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan genealogy edge: %w", err)
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to traverse genealogy: %w", apperrors.WrapDBError(err))
	}
	return edges, nil
}
