package repository

import (
	"context"
	"time"

	"github.com/ds-monitor/engine/internal/models"
	appErr "github.com/ds-monitor/engine/pkg/errors"
	"gorm.io/gorm"
)

// UpdateLogEntry is a project update joined with its project's identity, for
// the cross-project updates log.
type UpdateLogEntry struct {
	UpdateID            uint       `gorm:"column:update_id" json:"update_id"`
	ProjectID           uint       `gorm:"column:project_id" json:"project_id"`
	ProjectNo           *string    `gorm:"column:project_no" json:"project_no"`
	ProjectName         string     `gorm:"column:project_name" json:"project_name"`
	UpdateText          string     `gorm:"column:update_text" json:"update_text"`
	IsCompleted         bool       `gorm:"column:is_completed" json:"is_completed"`
	Timestamp           time.Time  `gorm:"column:timestamp" json:"timestamp"`
	CompletionTimestamp *time.Time `gorm:"column:completion_timestamp" json:"completion_timestamp"`
}

type UpdateRepository interface {
	BaseRepository[models.ProjectUpdate]
	ListByProject(ctx context.Context, projectID uint) ([]models.ProjectUpdate, error)
	// ListByProjects groups updates by project id, newest first within each
	// project.
	ListByProjects(ctx context.Context, ids []uint) (map[uint][]models.ProjectUpdate, error)
	ListLog(ctx context.Context, limit int) ([]UpdateLogEntry, error)
	// SetCompletion flips the completion flag, stamping or clearing the
	// completion time.
	SetCompletion(ctx context.Context, id uint, completed bool, at *time.Time) error
}

type updateRepository struct {
	BaseRepository[models.ProjectUpdate]
	db *gorm.DB
}

func NewUpdateRepository(db *gorm.DB) UpdateRepository {
	return &updateRepository{BaseRepository: NewBaseRepository[models.ProjectUpdate](db), db: db}
}

func (r *updateRepository) ListByProject(ctx context.Context, projectID uint) ([]models.ProjectUpdate, error) {
	var out []models.ProjectUpdate
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("timestamp DESC, id DESC").
		Find(&out).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list project updates failed")
	}
	return out, nil
}

func (r *updateRepository) ListByProjects(ctx context.Context, ids []uint) (map[uint][]models.ProjectUpdate, error) {
	out := map[uint][]models.ProjectUpdate{}
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.ProjectUpdate
	err := r.db.WithContext(ctx).
		Where("project_id IN ?", ids).
		Order("project_id, timestamp DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list project updates failed")
	}
	for _, u := range rows {
		out[u.ProjectID] = append(out[u.ProjectID], u)
	}
	return out, nil
}

func (r *updateRepository) ListLog(ctx context.Context, limit int) ([]UpdateLogEntry, error) {
	q := r.db.WithContext(ctx).
		Model(&models.ProjectUpdate{}).
		Select(`project_updates.id AS update_id, project_updates.project_id,
projects.project_no, projects.project_name, project_updates.update_text,
project_updates.is_completed, project_updates.timestamp, project_updates.completion_timestamp`).
		Joins("JOIN projects ON project_updates.project_id = projects.id").
		Order("project_updates.timestamp DESC, project_updates.id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []UpdateLogEntry
	if err := q.Scan(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list updates log failed")
	}
	return out, nil
}

func (r *updateRepository) SetCompletion(ctx context.Context, id uint, completed bool, at *time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.ProjectUpdate{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_completed": completed, "completion_timestamp": at})
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "toggle update completion failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "update not found")
	}
	return nil
}
