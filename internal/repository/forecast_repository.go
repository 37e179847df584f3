package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ds-monitor/engine/internal/models"
	appErr "github.com/ds-monitor/engine/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ForecastEntry is the joined view of a forecast item with its owning
// project's context, the shape the toggle and dashboard operations work on.
type ForecastEntry struct {
	EntryID      uint            `gorm:"column:forecast_entry_id" json:"forecast_entry_id"`
	ProjectID    uint            `gorm:"column:project_id" json:"project_id"`
	InputType    string          `gorm:"column:forecast_input_type" json:"forecast_input_type"`
	InputValue   float64         `gorm:"column:forecast_input_value" json:"forecast_input_value"`
	IsCompleted  bool            `gorm:"column:is_forecast_completed" json:"is_forecast_completed"`
	IsDeduction  bool            `gorm:"column:is_deduction" json:"is_deduction"`
	ForecastDate *datatypes.Date `gorm:"column:forecast_date" json:"-"`

	ProjectNo     *string  `gorm:"column:project_no" json:"project_no"`
	ProjectName   string   `gorm:"column:project_name" json:"project_name"`
	ProjectAmount *float64 `gorm:"column:project_amount" json:"project_amount"`
	ProjectStatus float64  `gorm:"column:project_status" json:"project_status"`
	ProjectPIC    string   `gorm:"column:project_pic" json:"project_pic"`
}

// Item reconstructs the calculator-facing view of the entry.
func (e *ForecastEntry) Item() *models.ForecastItem {
	return &models.ForecastItem{
		ID:           e.EntryID,
		ProjectID:    e.ProjectID,
		InputType:    e.InputType,
		InputValue:   e.InputValue,
		IsDeduction:  e.IsDeduction,
		IsCompleted:  e.IsCompleted,
		ForecastDate: e.ForecastDate,
	}
}

const forecastEntrySelect = `forecast_items.id AS forecast_entry_id, forecast_items.project_id,
forecast_items.forecast_input_type, forecast_items.forecast_input_value,
forecast_items.is_forecast_completed, forecast_items.forecast_date, forecast_items.is_deduction,
projects.project_no, projects.project_name, projects.amount AS project_amount,
projects.status AS project_status, projects.pic AS project_pic`

type ForecastRepository interface {
	BaseRepository[models.ForecastItem]
	// Count returns the number of stored forecast items.
	Count(ctx context.Context) (int64, error)
	// ListEntries returns every forecast item joined with its project,
	// ordered by forecast date, project number, id.
	ListEntries(ctx context.Context) ([]ForecastEntry, error)
	// ListEntriesByYear returns joined entries whose forecast date falls in
	// the given calendar year.
	ListEntriesByYear(ctx context.Context, year int) ([]ForecastEntry, error)
	// GetEntry returns one joined entry.
	GetEntry(ctx context.Context, id uint) (*ForecastEntry, error)
	// GetEntryTx is GetEntry inside a caller-owned transaction.
	GetEntryTx(tx *gorm.DB, id uint) (*ForecastEntry, error)
}

type forecastRepository struct {
	BaseRepository[models.ForecastItem]
	db *gorm.DB
}

func NewForecastRepository(db *gorm.DB) ForecastRepository {
	return &forecastRepository{BaseRepository: NewBaseRepository[models.ForecastItem](db), db: db}
}

func (r *forecastRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.ForecastItem{}).Count(&n).Error; err != nil {
		return 0, appErr.Wrap(err, appErr.CodeInternal, "count forecast items failed")
	}
	return n, nil
}

func entryQuery(db *gorm.DB) *gorm.DB {
	return db.Model(&models.ForecastItem{}).
		Select(forecastEntrySelect).
		Joins("JOIN projects ON forecast_items.project_id = projects.id")
}

func (r *forecastRepository) ListEntries(ctx context.Context) ([]ForecastEntry, error) {
	var out []ForecastEntry
	err := entryQuery(r.db.WithContext(ctx)).
		Order("forecast_items.forecast_date, projects.project_no, forecast_items.id").
		Scan(&out).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list forecast entries failed")
	}
	return out, nil
}

func (r *forecastRepository) ListEntriesByYear(ctx context.Context, year int) ([]ForecastEntry, error) {
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)

	var out []ForecastEntry
	err := entryQuery(r.db.WithContext(ctx)).
		Where("forecast_items.forecast_date >= ? AND forecast_items.forecast_date < ?", start, end).
		Order("forecast_items.forecast_date, forecast_items.id").
		Scan(&out).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list forecast entries by year failed")
	}
	return out, nil
}

func (r *forecastRepository) GetEntry(ctx context.Context, id uint) (*ForecastEntry, error) {
	return r.GetEntryTx(r.db.WithContext(ctx), id)
}

func (r *forecastRepository) GetEntryTx(tx *gorm.DB, id uint) (*ForecastEntry, error) {
	var e ForecastEntry
	err := entryQuery(tx).
		Where("forecast_items.id = ?", id).
		Take(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.New(appErr.CodeNotFound, "forecast entry not found")
		}
		return nil, appErr.Wrap(err, appErr.CodeInternal, "get forecast entry failed")
	}
	return &e, nil
}
