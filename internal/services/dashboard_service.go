package services

import (
	"context"
	"time"

	"github.com/ds-monitor/engine/internal/forecast"
	"github.com/ds-monitor/engine/internal/models"
	"github.com/ds-monitor/engine/internal/repository"
	"github.com/ds-monitor/engine/pkg/logger"
	"go.uber.org/zap"
)

// newProjectDays is how far back a PO date still counts as "new". PO dates
// carry no time of day, so the window is compared at date granularity.
const newProjectDays = 15

// DashboardMetrics is the monthly financial dashboard for one calendar year.
// Month maps always carry all twelve months, zero-filled.
type DashboardMetrics struct {
	Year                     int                `json:"year"`
	TotalRemaining           float64            `json:"total_remaining"`
	MonthlyActualInvoiced    map[int]float64    `json:"monthly_actual_invoiced"`
	MonthlyTotalForecast     map[int]float64    `json:"monthly_total_forecast"`
	CompletedThisYearCount   int                `json:"completed_this_year_count"`
	TotalActiveProjectsCount int                `json:"total_active_projects_count"`
	NewProjectsCount         int                `json:"new_projects_count"`
	BacklogsPerClient        map[string]float64 `json:"backlogs_per_client"`
}

type DashboardService interface {
	// Compute aggregates all projects and the given year's forecast items
	// into dashboard metrics. year <= 0 means the current calendar year.
	Compute(ctx context.Context, year int) (*DashboardMetrics, error)
}

type dashboardService struct {
	projectRepo  repository.ProjectRepository
	forecastRepo repository.ForecastRepository
	now          func() time.Time
}

func NewDashboardService(projectRepo repository.ProjectRepository, forecastRepo repository.ForecastRepository) DashboardService {
	return &dashboardService{projectRepo: projectRepo, forecastRepo: forecastRepo, now: time.Now}
}

var _ DashboardService = (*dashboardService)(nil)

func (s *dashboardService) Compute(ctx context.Context, year int) (*DashboardMetrics, error) {
	today := s.now()
	if year <= 0 {
		year = today.Year()
	}

	metrics := &DashboardMetrics{
		Year:                  year,
		MonthlyActualInvoiced: zeroMonths(),
		MonthlyTotalForecast:  zeroMonths(),
		BacklogsPerClient:     map[string]float64{},
	}

	projects, err := s.projectRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	todayDate := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	newCutoff := todayDate.AddDate(0, 0, -newProjectDays)
	for i := range projects {
		p := &projects[i]

		completedDate, hasCompleted := models.DateValue(p.DateCompleted)
		poDate, hasPO := models.DateValue(p.PoDate)

		if p.Status < 100.0 && !hasCompleted {
			metrics.TotalActiveProjectsCount++
			if p.RemainingAmount != nil {
				metrics.TotalRemaining += *p.RemainingAmount
				if p.Client != "" {
					metrics.BacklogsPerClient[p.Client] += *p.RemainingAmount
				}
			}
		}
		if hasCompleted && completedDate.Year() == year {
			metrics.CompletedThisYearCount++
		}
		if hasPO && !poDate.Before(newCutoff) {
			metrics.NewProjectsCount++
		}
	}

	entries, err := s.forecastRepo.ListEntriesByYear(ctx, year)
	if err != nil {
		return nil, err
	}

	for i := range entries {
		e := &entries[i]
		date, ok := models.DateValue(e.ForecastDate)
		if !ok {
			logger.L().Warn("forecast entry without usable date skipped from dashboard",
				zap.Uint("forecast_entry_id", e.EntryID),
			)
			continue
		}
		month := int(date.Month())

		amount := forecast.ComputeAmount(e.Item(), e.ProjectAmount)
		metrics.MonthlyTotalForecast[month] += amount
		if e.IsCompleted {
			metrics.MonthlyActualInvoiced[month] += amount
		}
	}

	logger.L().Debug("dashboard computed",
		zap.Int("year", year),
		zap.Int("projects", len(projects)),
		zap.Int("forecast_entries", len(entries)),
		zap.Int("active", metrics.TotalActiveProjectsCount),
		zap.Float64("total_remaining", metrics.TotalRemaining),
	)
	return metrics, nil
}

func zeroMonths() map[int]float64 {
	m := make(map[int]float64, 12)
	for month := 1; month <= 12; month++ {
		m[month] = 0
	}
	return m
}
