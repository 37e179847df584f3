package services

import (
	"context"
	"errors"
	"math"

	"github.com/ds-monitor/engine/internal/forecast"
	"github.com/ds-monitor/engine/internal/models"
	"github.com/ds-monitor/engine/internal/repository"
	"github.com/ds-monitor/engine/pkg/datetime"
	appErr "github.com/ds-monitor/engine/pkg/errors"
	"github.com/ds-monitor/engine/pkg/logger"
	"github.com/ds-monitor/engine/pkg/numeric"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// pctEpsilon bounds both the negligible-percentage cutoff and the
// change-detection threshold on project status.
const pctEpsilon = 1e-9

// CreateForecastInput is the validated shape of a new forecast entry.
// InputValue accepts lenient numeric formats ("600,000", "25%").
type CreateForecastInput struct {
	ProjectID    uint   `json:"project_id" validate:"required"`
	InputType    string `json:"forecast_input_type" validate:"required,oneof=percent amount deduction_percent"`
	InputValue   any    `json:"forecast_input_value" validate:"required"`
	ForecastDate string `json:"forecast_date" validate:"required"`
	IsDeduction  bool   `json:"is_deduction"`
}

// ForecastEntryView is a joined forecast entry ready for API consumption:
// ISO date string plus the monetary amount the entry resolves to against its
// project.
type ForecastEntryView struct {
	repository.ForecastEntry

	ForecastDate   *string `json:"forecast_date"`
	ForecastAmount float64 `json:"forecast_amount"`
}

// NewForecastEntryView derives the rendered view of a joined entry.
func NewForecastEntryView(e repository.ForecastEntry) ForecastEntryView {
	return ForecastEntryView{
		ForecastEntry:  e,
		ForecastDate:   isoDate(e.ForecastDate),
		ForecastAmount: forecast.ComputeAmount(e.Item(), e.ProjectAmount),
	}
}

// ToggleResult is the outcome of flipping a forecast entry's completion flag.
type ToggleResult struct {
	Entry          ForecastEntryView `json:"entry"`
	ProjectUpdated bool              `json:"project_updated"`
}

type ForecastService interface {
	Create(ctx context.Context, in *CreateForecastInput) (*ForecastEntryView, error)
	List(ctx context.Context) ([]ForecastEntryView, error)
	Delete(ctx context.Context, entryID uint) error
	// ToggleCompletion flips is_forecast_completed and, for non-deduction
	// items with a meaningful percentage equivalent, applies (or reverses)
	// that percentage on the owning project's status and remaining amount.
	// Both writes commit or roll back together.
	ToggleCompletion(ctx context.Context, entryID uint) (*ToggleResult, error)
}

type forecastService struct {
	db           *gorm.DB
	forecastRepo repository.ForecastRepository
	projectRepo  repository.ProjectRepository
	limit        int
}

func NewForecastService(db *gorm.DB, forecastRepo repository.ForecastRepository, projectRepo repository.ProjectRepository, limit int) ForecastService {
	return &forecastService{db: db, forecastRepo: forecastRepo, projectRepo: projectRepo, limit: limit}
}

var _ ForecastService = (*forecastService)(nil)

func (s *forecastService) Create(ctx context.Context, in *CreateForecastInput) (*ForecastEntryView, error) {
	count, err := s.forecastRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	if s.limit > 0 && count >= int64(s.limit) {
		return nil, appErr.Newf(appErr.CodeInvalid, "maximum forecast limit (%d) reached", s.limit)
	}

	item, err := buildForecastItem(in)
	if err != nil {
		return nil, err
	}

	var proj models.Project
	if err := s.projectRepo.GetByID(ctx, in.ProjectID, &proj); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, appErr.Newf(appErr.CodeNotFound, "project %d not found", in.ProjectID)
		}
		return nil, err
	}

	if err := s.forecastRepo.Create(ctx, item); err != nil {
		return nil, err
	}

	logger.L().Info("forecast entry created",
		zap.Uint("forecast_entry_id", item.ID),
		zap.Uint("project_id", item.ProjectID),
		zap.String("input_type", item.InputType),
		zap.Float64("input_value", item.InputValue),
		zap.Bool("is_deduction", item.IsDeduction),
	)

	entry, err := s.forecastRepo.GetEntry(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	view := NewForecastEntryView(*entry)
	return &view, nil
}

func (s *forecastService) List(ctx context.Context) ([]ForecastEntryView, error) {
	entries, err := s.forecastRepo.ListEntries(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]ForecastEntryView, len(entries))
	for i, e := range entries {
		views[i] = NewForecastEntryView(e)
	}
	return views, nil
}

// Delete removes a forecast entry. A previously applied status delta on the
// owning project is intentionally not reversed; see the service tests.
func (s *forecastService) Delete(ctx context.Context, entryID uint) error {
	if err := s.forecastRepo.Delete(ctx, entryID); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return appErr.New(appErr.CodeNotFound, "forecast entry not found")
		}
		return err
	}
	logger.L().Info("forecast entry removed", zap.Uint("forecast_entry_id", entryID))
	return nil
}

func (s *forecastService) ToggleCompletion(ctx context.Context, entryID uint) (*ToggleResult, error) {
	var result ToggleResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.ForecastItem
		if err := tx.First(&item, "id = ?", entryID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return appErr.New(appErr.CodeNotFound, "forecast entry not found")
			}
			return appErr.Wrap(err, appErr.CodeInternal, "load forecast entry failed")
		}

		// Serialize concurrent toggles targeting the same project. SQLite
		// has no FOR UPDATE; its transaction lock covers the same need.
		projQ := tx
		if tx.Dialector.Name() == "postgres" {
			projQ = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var proj models.Project
		if err := projQ.First(&proj, "id = ?", item.ProjectID).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "load owning project failed")
		}

		item.IsCompleted = !item.IsCompleted
		pct := forecast.ComputePercentEquivalent(&item, proj.Amount)

		if err := tx.Model(&models.ForecastItem{}).
			Where("id = ?", item.ID).
			Update("is_forecast_completed", item.IsCompleted).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "update forecast entry failed")
		}

		if !item.IsDeduction && math.Abs(pct) > pctEpsilon {
			next := proj.Status - pct
			if item.IsCompleted {
				next = proj.Status + pct
			}
			clamped := numeric.ClampPercent(next)

			if math.Abs(clamped-proj.Status) > pctEpsilon {
				remaining := numeric.RemainingAmount(proj.Amount, &clamped)
				if err := tx.Model(&models.Project{}).
					Where("id = ?", proj.ID).
					Updates(map[string]any{
						"status":           clamped,
						"remaining_amount": remaining,
					}).Error; err != nil {
					return appErr.Wrap(err, appErr.CodeInternal, "update project status failed")
				}
				result.ProjectUpdated = true

				logger.L().Info("project status reconciled from forecast toggle",
					zap.Uint("project_id", proj.ID),
					zap.Uint("forecast_entry_id", item.ID),
					zap.Float64("pct_equivalent", pct),
					zap.Float64("old_status", proj.Status),
					zap.Float64("new_status", clamped),
				)
			}
		}

		entry, err := s.forecastRepo.GetEntryTx(tx, entryID)
		if err != nil {
			return err
		}
		result.Entry = NewForecastEntryView(*entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.L().Info("forecast entry toggled",
		zap.Uint("forecast_entry_id", entryID),
		zap.Bool("is_forecast_completed", result.Entry.IsCompleted),
		zap.Bool("project_updated", result.ProjectUpdated),
	)
	return &result, nil
}

// buildForecastItem normalizes a creation request: deduction_percent folds
// into percent + deduction, magnitudes for deductions are stored absolute,
// and the forecast date accepts both supported calendar conventions.
func buildForecastItem(in *CreateForecastInput) (*models.ForecastItem, error) {
	inputType := in.InputType
	isDeduction := in.IsDeduction
	if inputType == "deduction_percent" {
		inputType = models.ForecastTypePercent
		isDeduction = true
	}
	if inputType != models.ForecastTypePercent && inputType != models.ForecastTypeAmount {
		return nil, appErr.New(appErr.CodeInvalid, "invalid forecast_input_type")
	}

	value := numeric.ParseFloatValue(in.InputValue, nil)
	if value == nil || math.IsNaN(*value) {
		return nil, appErr.New(appErr.CodeInvalid, "invalid forecast_input_value")
	}
	v := *value
	if v < 0 {
		if isDeduction {
			v = math.Abs(v)
		} else {
			logger.L().Warn("negative forecast value for non-deduction entry", zap.Float64("value", v))
		}
	}

	parsed, ok := datetime.ParseFlexible(in.ForecastDate)
	if !ok {
		return nil, appErr.Newf(appErr.CodeInvalid, "invalid forecast_date format: %q", in.ForecastDate)
	}

	return &models.ForecastItem{
		ProjectID:    in.ProjectID,
		InputType:    inputType,
		InputValue:   v,
		IsDeduction:  isDeduction,
		ForecastDate: models.NewDate(parsed),
	}, nil
}
