package handlers

import (
	"net/http"
	"strconv"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/ds-monitor/engine/internal/api/types"
	"github.com/ds-monitor/engine/internal/api/validators"
	"github.com/ds-monitor/engine/internal/queue/tasks"
	"github.com/ds-monitor/engine/internal/services"
	appErr "github.com/ds-monitor/engine/pkg/errors"
	"github.com/ds-monitor/engine/pkg/logger"
)

type DashboardHandler struct {
	dashboards services.DashboardService
	queue      *asynq.Client
}

func NewDashboardHandler(dashboards services.DashboardService, queue *asynq.Client) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards, queue: queue}
}

// Get computes the dashboard for ?year=, defaulting to the current year.
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	year := 0
	if raw := r.URL.Query().Get("year"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeInvalid(w, "year must be an integer")
			return
		}
		year = n
	}

	metrics, err := h.dashboards.Compute(r.Context(), year)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, metrics)
}

// Report enqueues an asynchronous CSV export of the requested year.
func (h *DashboardHandler) Report(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		writeError(w, appErr.New(appErr.CodeUnavailable, "report queue not configured"))
		return
	}

	var req types.DashboardReportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validators.New().Struct(&req); err != nil {
		writeInvalid(w, err.Error())
		return
	}

	task, err := tasks.NewDashboardReportTask(req.Year)
	if err != nil {
		writeError(w, err)
		return
	}
	info, err := h.queue.EnqueueContext(r.Context(), task)
	if err != nil {
		writeError(w, appErr.Wrap(err, appErr.CodeUnavailable, "enqueue report task failed"))
		return
	}

	logger.L().Info("dashboard report enqueued", zap.String("task_id", info.ID), zap.Int("year", req.Year))
	writeData(w, http.StatusAccepted, map[string]any{"task_id": info.ID, "year": req.Year})
}
