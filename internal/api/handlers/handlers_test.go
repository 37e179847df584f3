package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ds-monitor/engine/internal/api/types"
	"github.com/ds-monitor/engine/internal/repository"
	"github.com/ds-monitor/engine/internal/services"
	appErr "github.com/ds-monitor/engine/pkg/errors"
	"github.com/ds-monitor/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	_, err := logger.Init("error", "json")
	if err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}

type mockProjectService struct {
	mock.Mock
}

func (m *mockProjectService) Create(ctx context.Context, in *services.CreateProjectInput) (*services.ProjectView, error) {
	args := m.Called(ctx, in)
	if v := args.Get(0); v != nil {
		return v.(*services.ProjectView), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProjectService) Get(ctx context.Context, id uint) (*services.ProjectView, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*services.ProjectView), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProjectService) ListActive(ctx context.Context) ([]services.ProjectView, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]services.ProjectView), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProjectService) ListCompleted(ctx context.Context) ([]services.ProjectView, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]services.ProjectView), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProjectService) UpdateFields(ctx context.Context, id uint, fields map[string]any) (*services.ProjectView, []string, error) {
	args := m.Called(ctx, id, fields)
	var view *services.ProjectView
	if v := args.Get(0); v != nil {
		view = v.(*services.ProjectView)
	}
	var updated []string
	if v := args.Get(1); v != nil {
		updated = v.([]string)
	}
	return view, updated, args.Error(2)
}

func (m *mockProjectService) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockProjectService) ListUpdates(ctx context.Context, projectID uint) ([]services.UpdateView, error) {
	args := m.Called(ctx, projectID)
	if v := args.Get(0); v != nil {
		return v.([]services.UpdateView), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProjectService) AddUpdate(ctx context.Context, projectID uint, in *services.CreateUpdateInput) (*services.UpdateView, error) {
	args := m.Called(ctx, projectID, in)
	if v := args.Get(0); v != nil {
		return v.(*services.UpdateView), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProjectService) ToggleUpdate(ctx context.Context, updateID uint) (*services.UpdateToggleResult, error) {
	args := m.Called(ctx, updateID)
	if v := args.Get(0); v != nil {
		return v.(*services.UpdateToggleResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProjectService) DeleteUpdate(ctx context.Context, updateID uint) error {
	args := m.Called(ctx, updateID)
	return args.Error(0)
}

func (m *mockProjectService) UpdatesLog(ctx context.Context, limit int) ([]repository.UpdateLogEntry, error) {
	args := m.Called(ctx, limit)
	if v := args.Get(0); v != nil {
		return v.([]repository.UpdateLogEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockForecastService struct {
	mock.Mock
}

func (m *mockForecastService) Create(ctx context.Context, in *services.CreateForecastInput) (*services.ForecastEntryView, error) {
	args := m.Called(ctx, in)
	if v := args.Get(0); v != nil {
		return v.(*services.ForecastEntryView), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockForecastService) List(ctx context.Context) ([]services.ForecastEntryView, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]services.ForecastEntryView), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockForecastService) Delete(ctx context.Context, entryID uint) error {
	args := m.Called(ctx, entryID)
	return args.Error(0)
}

func (m *mockForecastService) ToggleCompletion(ctx context.Context, entryID uint) (*services.ToggleResult, error) {
	args := m.Called(ctx, entryID)
	if v := args.Get(0); v != nil {
		return v.(*services.ToggleResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockDashboardService struct {
	mock.Mock
}

func (m *mockDashboardService) Compute(ctx context.Context, year int) (*services.DashboardMetrics, error) {
	args := m.Called(ctx, year)
	if v := args.Get(0); v != nil {
		return v.(*services.DashboardMetrics), args.Error(1)
	}
	return nil, args.Error(1)
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) types.APIResponse {
	t.Helper()
	var resp types.APIResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestProjectsHandlerGet(t *testing.T) {
	svc := &mockProjectService{}
	h := NewProjectsHandler(svc)

	r := chi.NewRouter()
	r.Get("/projects/{id}", h.Get)

	t.Run("found", func(t *testing.T) {
		view := &services.ProjectView{}
		view.ID = 7
		view.ProjectName = "Plant"
		svc.On("Get", mock.Anything, uint(7)).Return(view, nil).Once()

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/projects/7", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		resp := decodeEnvelope(t, rr)
		require.True(t, resp.Success)
	})

	t.Run("not found", func(t *testing.T) {
		svc.On("Get", mock.Anything, uint(8)).
			Return(nil, appErr.New(appErr.CodeNotFound, "project not found")).Once()

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/projects/8", nil))

		require.Equal(t, http.StatusNotFound, rr.Code)
		resp := decodeEnvelope(t, rr)
		require.False(t, resp.Success)
		require.Equal(t, "not_found", resp.Error.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/projects/abc", nil))
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	svc.AssertExpectations(t)
}

func TestProjectsHandlerCreate(t *testing.T) {
	svc := &mockProjectService{}
	h := NewProjectsHandler(svc)

	t.Run("created", func(t *testing.T) {
		view := &services.ProjectView{}
		view.ID = 1
		view.ProjectName = "New Build"
		svc.On("Create", mock.Anything, mock.MatchedBy(func(in *services.CreateProjectInput) bool {
			return in.ProjectName == "New Build"
		})).Return(view, nil).Once()

		body := strings.NewReader(`{"project_name":"New Build","client":"Acme"}`)
		rr := httptest.NewRecorder()
		h.Create(rr, httptest.NewRequest(http.MethodPost, "/projects", body))

		require.Equal(t, http.StatusCreated, rr.Code)
	})

	t.Run("invalid json", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.Create(rr, httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader("{nope")))
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing name", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.Create(rr, httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader(`{"client":"Acme"}`)))
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	svc.AssertExpectations(t)
}

func TestProjectsHandlerPatch(t *testing.T) {
	svc := &mockProjectService{}
	h := NewProjectsHandler(svc)

	r := chi.NewRouter()
	r.Patch("/projects/{id}", h.Patch)

	t.Run("conflict maps to 409", func(t *testing.T) {
		svc.On("UpdateFields", mock.Anything, uint(3), mock.Anything).
			Return(nil, nil, appErr.New(appErr.CodeConflict, "project number already exists")).Once()

		body := strings.NewReader(`{"project_no":"P-100"}`)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/projects/3", body))

		require.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("updated fields reported", func(t *testing.T) {
		view := &services.ProjectView{}
		view.ID = 3
		svc.On("UpdateFields", mock.Anything, uint(3), map[string]any{"status": "25"}).
			Return(view, []string{"status", "remaining_amount"}, nil).Once()

		body := strings.NewReader(`{"status":"25"}`)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/projects/3", body))

		require.Equal(t, http.StatusOK, rr.Code)
		resp := decodeEnvelope(t, rr)
		data := resp.Data.(map[string]any)
		require.ElementsMatch(t, []any{"status", "remaining_amount"}, data["updated_fields"])
	})

	svc.AssertExpectations(t)
}

func TestForecastHandlerToggle(t *testing.T) {
	svc := &mockForecastService{}
	h := NewForecastHandler(svc)

	r := chi.NewRouter()
	r.Put("/forecast/entry/{id}/complete", h.ToggleComplete)

	t.Run("toggled", func(t *testing.T) {
		result := &services.ToggleResult{ProjectUpdated: true}
		result.Entry.EntryID = 5
		result.Entry.IsCompleted = true
		svc.On("ToggleCompletion", mock.Anything, uint(5)).Return(result, nil).Once()

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/forecast/entry/5/complete", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		resp := decodeEnvelope(t, rr)
		data := resp.Data.(map[string]any)
		require.Equal(t, true, data["project_updated"])
	})

	t.Run("missing entry", func(t *testing.T) {
		svc.On("ToggleCompletion", mock.Anything, uint(6)).
			Return(nil, appErr.New(appErr.CodeNotFound, "forecast entry not found")).Once()

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/forecast/entry/6/complete", nil))
		require.Equal(t, http.StatusNotFound, rr.Code)
	})

	svc.AssertExpectations(t)
}

func TestForecastHandlerCreate(t *testing.T) {
	svc := &mockForecastService{}
	h := NewForecastHandler(svc)

	t.Run("created", func(t *testing.T) {
		view := &services.ForecastEntryView{}
		view.EntryID = 9
		svc.On("Create", mock.Anything, mock.MatchedBy(func(in *services.CreateForecastInput) bool {
			return in.ProjectID == 2 && in.InputType == "percent"
		})).Return(view, nil).Once()

		body := strings.NewReader(`{"project_id":2,"forecast_input_type":"percent","forecast_input_value":"25","forecast_date":"2025-03-01"}`)
		rr := httptest.NewRecorder()
		h.Create(rr, httptest.NewRequest(http.MethodPost, "/forecast", body))

		require.Equal(t, http.StatusCreated, rr.Code)
	})

	t.Run("rejects unknown input type", func(t *testing.T) {
		body := strings.NewReader(`{"project_id":2,"forecast_input_type":"weird","forecast_input_value":"25","forecast_date":"2025-03-01"}`)
		rr := httptest.NewRecorder()
		h.Create(rr, httptest.NewRequest(http.MethodPost, "/forecast", body))
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	svc.AssertExpectations(t)
}

func TestDashboardHandlerGet(t *testing.T) {
	svc := &mockDashboardService{}
	h := NewDashboardHandler(svc, nil)

	t.Run("explicit year", func(t *testing.T) {
		metrics := &services.DashboardMetrics{Year: 2025, TotalActiveProjectsCount: 3}
		svc.On("Compute", mock.Anything, 2025).Return(metrics, nil).Once()

		rr := httptest.NewRecorder()
		h.Get(rr, httptest.NewRequest(http.MethodGet, "/dashboard?year=2025", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		resp := decodeEnvelope(t, rr)
		data := resp.Data.(map[string]any)
		require.EqualValues(t, 2025, data["year"])
	})

	t.Run("default year", func(t *testing.T) {
		metrics := &services.DashboardMetrics{Year: 2026}
		svc.On("Compute", mock.Anything, 0).Return(metrics, nil).Once()

		rr := httptest.NewRecorder()
		h.Get(rr, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("bad year", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.Get(rr, httptest.NewRequest(http.MethodGet, "/dashboard?year=abc", nil))
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("report without queue", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.Report(rr, httptest.NewRequest(http.MethodPost, "/dashboard/report", strings.NewReader(`{"year":2025}`)))
		require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})

	svc.AssertExpectations(t)
}

func TestUpdatesHandlerLog(t *testing.T) {
	svc := &mockProjectService{}
	h := NewUpdatesHandler(svc)

	t.Run("default limit", func(t *testing.T) {
		entries := []repository.UpdateLogEntry{{UpdateID: 1, ProjectName: "Plant", UpdateText: "note"}}
		svc.On("UpdatesLog", mock.Anything, 100).Return(entries, nil).Once()

		rr := httptest.NewRecorder()
		h.Log(rr, httptest.NewRequest(http.MethodGet, "/updates/log", nil))

		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("explicit limit", func(t *testing.T) {
		svc.On("UpdatesLog", mock.Anything, 5).Return([]repository.UpdateLogEntry{}, nil).Once()

		rr := httptest.NewRecorder()
		h.Log(rr, httptest.NewRequest(http.MethodGet, "/updates/log?limit=5", nil))
		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("invalid limit", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.Log(rr, httptest.NewRequest(http.MethodGet, "/updates/log?limit=-1", nil))
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	svc.AssertExpectations(t)
}
