package settings

import (
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/CoderMariusz/MonoPilot-sub046/internal/repository"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/metadata"
	"github.com/CoderMariusz/MonoPilot-sub046/pkg/models"
)

type SettingsRepository interface {
	GetSettings(orgID int) (*models.OrgSettings, error)
	GetAllocationStrategy(orgID int) (metadata.AllocationStrategy, error)
}

type settingsRepository struct {
	repo *repository.Repository
}

func NewRepository(r *repository.Repository) *settingsRepository {
	return &settingsRepository{repo: r}
}

// GetSettings returns the org's engine configuration, or defaults when the
// org has never saved any.
func (r *settingsRepository) GetSettings(orgID int) (*models.OrgSettings, error) {
	var s models.OrgSettings
	found, err := r.repo.GoquDBWrapper.
		From("org_settings").
		Select("org_id", "enable_fefo", "reversal_window_hours").
		Where(goqu.Ex{"org_id": orgID}).
		ScanStruct(&s)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch org settings: %w", apperrors.WrapDBError(err))
	}
	if !found {
		return &models.OrgSettings{OrgID: orgID, ReversalWindowHours: 72}, nil
	}
	return &s, nil
}

// GetAllocationStrategy resolves the org's default allocation order.
func (r *settingsRepository) GetAllocationStrategy(orgID int) (metadata.AllocationStrategy, error) {
	s, err := r.GetSettings(orgID)
	if err != nil {
		return "", err
	}
	if s.EnableFEFO {
		return metadata.StrategyFEFO, nil
	}
	return metadata.StrategyFIFO, nil
}
