package services

import (
	"context"
	"testing"
	"time"

	"github.com/ds-monitor/engine/internal/models"
	appErr "github.com/ds-monitor/engine/pkg/errors"
	"github.com/ds-monitor/engine/pkg/numeric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pinnedProjects(env *testEnv, now time.Time) *projectService {
	return &projectService{
		projectRepo: env.projectRepo,
		updateRepo:  env.updateRepo,
		now:         func() time.Time { return now },
	}
}

func TestProjectCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	view, err := env.projects.Create(ctx, &CreateProjectInput{
		ProjectName: "  Refinery Upgrade ",
		ProjectNo:   "P-100",
		Client:      "Acme",
		Year:        "2025",
		Amount:      "1,250,000",
		Status:      "20",
		PoDate:      "01/15/2025",
	})
	require.NoError(t, err)

	assert.Equal(t, "Refinery Upgrade", view.ProjectName)
	require.NotNil(t, view.Year)
	assert.Equal(t, 2025, *view.Year)
	require.NotNil(t, view.Amount)
	assert.Equal(t, 1_250_000.0, *view.Amount)
	assert.Equal(t, 20.0, view.Status)
	require.NotNil(t, view.RemainingAmount)
	assert.InDelta(t, 1_000_000.0, *view.RemainingAmount, 1e-6)
	require.NotNil(t, view.PoDate)
	assert.Equal(t, "2025-01-15", *view.PoDate)
	assert.False(t, view.HasForecasts)

	t.Run("duplicate project number", func(t *testing.T) {
		_, err := env.projects.Create(ctx, &CreateProjectInput{
			ProjectName: "Other",
			ProjectNo:   "P-100",
		})
		require.Error(t, err)
		assert.True(t, appErr.IsCode(err, appErr.CodeConflict))
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := env.projects.Create(ctx, &CreateProjectInput{ProjectName: "   "})
		assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))
	})

	t.Run("status out of range", func(t *testing.T) {
		_, err := env.projects.Create(ctx, &CreateProjectInput{ProjectName: "X", Status: 150})
		assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))
	})
}

func TestProjectUpdateFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	proj := env.seedProject(t, &models.Project{
		ProjectName:     "Editable",
		Amount:          numeric.Ptr(200_000.0),
		Status:          0,
		RemainingAmount: numeric.Ptr(200_000.0),
	})

	t.Run("status recomputes remaining", func(t *testing.T) {
		view, updated, err := env.projects.UpdateFields(ctx, proj.ID, map[string]any{"status": "25"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"status", "remaining_amount"}, updated)
		assert.Equal(t, 25.0, view.Status)
		require.NotNil(t, view.RemainingAmount)
		assert.InDelta(t, 150_000.0, *view.RemainingAmount, 1e-6)
	})

	t.Run("amount recomputes remaining with current status", func(t *testing.T) {
		view, _, err := env.projects.UpdateFields(ctx, proj.ID, map[string]any{"amount": "400,000"})
		require.NoError(t, err)
		require.NotNil(t, view.RemainingAmount)
		assert.InDelta(t, 300_000.0, *view.RemainingAmount, 1e-6)
	})

	t.Run("emptied amount clears remaining", func(t *testing.T) {
		view, _, err := env.projects.UpdateFields(ctx, proj.ID, map[string]any{"amount": ""})
		require.NoError(t, err)
		assert.Nil(t, view.Amount)
		assert.Nil(t, view.RemainingAmount)
	})

	t.Run("emptied status resets to zero", func(t *testing.T) {
		view, _, err := env.projects.UpdateFields(ctx, proj.ID, map[string]any{"status": ""})
		require.NoError(t, err)
		assert.Zero(t, view.Status)
	})

	t.Run("dates parse both conventions", func(t *testing.T) {
		view, _, err := env.projects.UpdateFields(ctx, proj.ID, map[string]any{
			"po_date":        "02/01/2025",
			"date_completed": "2025-06-30",
		})
		require.NoError(t, err)
		require.NotNil(t, view.PoDate)
		assert.Equal(t, "2025-02-01", *view.PoDate)
		require.NotNil(t, view.DateCompleted)
		assert.Equal(t, "2025-06-30", *view.DateCompleted)

		view, _, err = env.projects.UpdateFields(ctx, proj.ID, map[string]any{"date_completed": ""})
		require.NoError(t, err)
		assert.Nil(t, view.DateCompleted)
	})

	t.Run("invalid values collect into one error", func(t *testing.T) {
		_, _, err := env.projects.UpdateFields(ctx, proj.ID, map[string]any{
			"status":       "150",
			"po_date":      "31-12-2025",
			"project_name": "  ",
		})
		require.Error(t, err)
		assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))
		var ae *appErr.AppError
		require.ErrorAs(t, err, &ae)
		assert.Len(t, ae.Details, 3)
	})

	t.Run("unknown fields ignored", func(t *testing.T) {
		view, updated, err := env.projects.UpdateFields(ctx, proj.ID, map[string]any{"id": 99, "bogus": "x"})
		require.NoError(t, err)
		assert.Empty(t, updated)
		assert.Equal(t, proj.ID, view.ID)
	})

	t.Run("not found", func(t *testing.T) {
		_, _, err := env.projects.UpdateFields(ctx, 9999, map[string]any{"client": "New"})
		assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
	})
}

func TestProjectListsAndEnrichment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := date(2025, time.January, 15)
	projects := pinnedProjects(env, now)

	running := env.seedProject(t, &models.Project{
		ProjectName:     "Running",
		Amount:          numeric.Ptr(100_000.0),
		Status:          40,
		RemainingAmount: numeric.Ptr(60_000.0),
		PoDate:          models.NewDate(date(2025, time.January, 1)),
	})
	done := env.seedProject(t, &models.Project{
		ProjectName:   "Done",
		Status:        100,
		PoDate:        models.NewDate(date(2025, time.January, 1)),
		DateCompleted: models.NewDate(date(2025, time.January, 8)),
	})
	env.seedForecast(t, &models.ForecastItem{
		ProjectID:    running.ID,
		InputType:    models.ForecastTypePercent,
		InputValue:   10,
		ForecastDate: models.NewDate(date(2025, time.March, 1)),
	})
	_, err := projects.AddUpdate(ctx, running.ID, &CreateUpdateInput{UpdateText: "kickoff meeting held"})
	require.NoError(t, err)

	activeViews, err := projects.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, activeViews, 1)
	av := activeViews[0]
	assert.Equal(t, running.ID, av.ID)
	assert.True(t, av.HasForecasts)
	require.NotNil(t, av.TotalRunningWeeks)
	assert.Equal(t, 3, *av.TotalRunningWeeks, "two elapsed weeks count as the third running week")
	assert.Equal(t, "kickoff meeting held", av.LatestUpdate)
	require.Len(t, av.Updates, 1)

	completedViews, err := projects.ListCompleted(ctx)
	require.NoError(t, err)
	require.Len(t, completedViews, 1)
	cv := completedViews[0]
	assert.Equal(t, done.ID, cv.ID)
	assert.False(t, cv.HasForecasts)
	require.NotNil(t, cv.TotalRunningWeeks)
	assert.Equal(t, 2, *cv.TotalRunningWeeks, "completion date caps the running window")

	t.Run("no po date means no running weeks", func(t *testing.T) {
		p := env.seedProject(t, &models.Project{ProjectName: "Dateless"})
		view, err := projects.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Nil(t, view.TotalRunningWeeks)
	})

	t.Run("future po date floors at zero", func(t *testing.T) {
		p := env.seedProject(t, &models.Project{
			ProjectName: "Not Started",
			PoDate:      models.NewDate(date(2025, time.February, 1)),
		})
		view, err := projects.Get(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, view.TotalRunningWeeks)
		assert.Zero(t, *view.TotalRunningWeeks)
	})
}

func TestProjectDeleteCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	proj := env.seedProject(t, &models.Project{ProjectName: "Doomed", Amount: numeric.Ptr(10_000.0)})
	env.seedForecast(t, &models.ForecastItem{
		ProjectID:    proj.ID,
		InputType:    models.ForecastTypePercent,
		InputValue:   10,
		ForecastDate: models.NewDate(date(2025, time.March, 1)),
	})
	_, err := env.projects.AddUpdate(ctx, proj.ID, &CreateUpdateInput{UpdateText: "will be dropped"})
	require.NoError(t, err)

	require.NoError(t, env.projects.Delete(ctx, proj.ID))

	var forecasts, updates int64
	require.NoError(t, env.db.Model(&models.ForecastItem{}).Count(&forecasts).Error)
	require.NoError(t, env.db.Model(&models.ProjectUpdate{}).Count(&updates).Error)
	assert.EqualValues(t, 0, forecasts)
	assert.EqualValues(t, 0, updates)

	assert.True(t, appErr.IsCode(env.projects.Delete(ctx, proj.ID), appErr.CodeNotFound))
}

func TestProjectUpdatesLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := date(2025, time.May, 2)
	projects := pinnedProjects(env, now)
	proj := env.seedProject(t, &models.Project{ProjectName: "Tracked"})

	created, err := projects.AddUpdate(ctx, proj.ID, &CreateUpdateInput{
		UpdateText: "awaiting vendor drawings",
		DueDate:    "2025-05-30",
	})
	require.NoError(t, err)
	require.NotNil(t, created.DueDate)
	assert.Equal(t, "2025-05-30", *created.DueDate)
	assert.False(t, created.IsCompleted)

	t.Run("toggle stamps completion", func(t *testing.T) {
		result, err := projects.ToggleUpdate(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, result.IsCompleted)
		require.NotNil(t, result.CompletionTimestamp)
		assert.True(t, result.CompletionTimestamp.Equal(now))

		result, err = projects.ToggleUpdate(ctx, created.ID)
		require.NoError(t, err)
		assert.False(t, result.IsCompleted)
		assert.Nil(t, result.CompletionTimestamp)
	})

	t.Run("log joins project context", func(t *testing.T) {
		log, err := projects.UpdatesLog(ctx, 50)
		require.NoError(t, err)
		require.Len(t, log, 1)
		assert.Equal(t, "Tracked", log[0].ProjectName)
		assert.Equal(t, "awaiting vendor drawings", log[0].UpdateText)
	})

	t.Run("blank text rejected", func(t *testing.T) {
		_, err := projects.AddUpdate(ctx, proj.ID, &CreateUpdateInput{UpdateText: "  "})
		assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, projects.DeleteUpdate(ctx, created.ID))
		assert.True(t, appErr.IsCode(projects.DeleteUpdate(ctx, created.ID), appErr.CodeNotFound))
	})
}
