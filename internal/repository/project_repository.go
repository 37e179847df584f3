package repository

import (
	"context"
	"errors"

	"github.com/ds-monitor/engine/internal/models"
	appErr "github.com/ds-monitor/engine/pkg/errors"
	"gorm.io/gorm"
)

type ProjectRepository interface {
	BaseRepository[models.Project]
	// ListActive returns projects still in flight: status below 100 and no
	// completion date, ordered by remaining backlog (largest first, nulls
	// last).
	ListActive(ctx context.Context) ([]models.Project, error)
	// ListCompleted returns projects with a completion date or full status,
	// most recently completed first.
	ListCompleted(ctx context.Context) ([]models.Project, error)
	ListAll(ctx context.Context) ([]models.Project, error)
	// UpdateFields applies a sparse column update.
	UpdateFields(ctx context.Context, id uint, fields map[string]any) error
	// ForecastedProjectIDs reports which of the given projects own at least
	// one forecast item.
	ForecastedProjectIDs(ctx context.Context, ids []uint) (map[uint]struct{}, error)
}

type projectRepository struct {
	BaseRepository[models.Project]
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{BaseRepository: NewBaseRepository[models.Project](db), db: db}
}

func (r *projectRepository) Create(ctx context.Context, p *models.Project) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return appErr.New(appErr.CodeConflict, "project number already exists")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "create project failed")
	}
	return nil
}

func (r *projectRepository) ListActive(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	err := r.db.WithContext(ctx).
		Where("status < 100.0 AND date_completed IS NULL").
		Order("CASE WHEN remaining_amount IS NULL THEN 1 ELSE 0 END, remaining_amount DESC").
		Find(&out).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list active projects failed")
	}
	return out, nil
}

func (r *projectRepository) ListCompleted(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	err := r.db.WithContext(ctx).
		Where("date_completed IS NOT NULL OR status >= 100.0").
		Order("date_completed DESC, id DESC").
		Find(&out).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list completed projects failed")
	}
	return out, nil
}

func (r *projectRepository) ListAll(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	if err := r.db.WithContext(ctx).Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list projects failed")
	}
	return out, nil
}

func (r *projectRepository) UpdateFields(ctx context.Context, id uint, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return appErr.New(appErr.CodeConflict, "project number already exists")
		}
		return appErr.Wrap(res.Error, appErr.CodeInternal, "update project fields failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "project not found")
	}
	return nil
}

func (r *projectRepository) ForecastedProjectIDs(ctx context.Context, ids []uint) (map[uint]struct{}, error) {
	out := map[uint]struct{}{}
	if len(ids) == 0 {
		return out, nil
	}
	var forecasted []uint
	err := r.db.WithContext(ctx).
		Model(&models.ForecastItem{}).
		Distinct("project_id").
		Where("project_id IN ?", ids).
		Pluck("project_id", &forecasted).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list forecasted project ids failed")
	}
	for _, id := range forecasted {
		out[id] = struct{}{}
	}
	return out, nil
}
