package services

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ds-monitor/engine/internal/models"
	"github.com/ds-monitor/engine/internal/repository"
	"github.com/ds-monitor/engine/pkg/logger"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	if _, err := logger.Init("error", "console"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type testEnv struct {
	db           *gorm.DB
	projectRepo  repository.ProjectRepository
	forecastRepo repository.ForecastRepository
	updateRepo   repository.UpdateRepository
	projects     ProjectService
	forecasts    ForecastService
	dashboards   DashboardService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)", filepath.Join(t.TempDir(), "engine.db"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Project{}, &models.ForecastItem{}, &models.ProjectUpdate{}))

	env := &testEnv{
		db:           db,
		projectRepo:  repository.NewProjectRepository(db),
		forecastRepo: repository.NewForecastRepository(db),
		updateRepo:   repository.NewUpdateRepository(db),
	}
	env.projects = NewProjectService(env.projectRepo, env.updateRepo)
	env.forecasts = NewForecastService(db, env.forecastRepo, env.projectRepo, 100)
	env.dashboards = NewDashboardService(env.projectRepo, env.forecastRepo)
	return env
}

func (e *testEnv) seedProject(t *testing.T, p *models.Project) *models.Project {
	t.Helper()
	require.NoError(t, e.db.Create(p).Error)
	return p
}

func (e *testEnv) seedForecast(t *testing.T, item *models.ForecastItem) *models.ForecastItem {
	t.Helper()
	require.NoError(t, e.db.Create(item).Error)
	return item
}

func (e *testEnv) reloadProject(t *testing.T, id uint) *models.Project {
	t.Helper()
	var p models.Project
	require.NoError(t, e.db.First(&p, "id = ?", id).Error)
	return &p
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
