package tasks

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ds-monitor/engine/internal/services"
	appErr "github.com/ds-monitor/engine/pkg/errors"
	"github.com/ds-monitor/engine/pkg/logger"
)

// TypeDashboardReport is the task type for yearly dashboard CSV exports.
const TypeDashboardReport = "dashboard:report"

// ReportPayload is the task payload for dashboard report exports.
type ReportPayload struct {
	Year int `json:"year"`
}

// NewDashboardReportTask builds the enqueueable task for a yearly export.
func NewDashboardReportTask(year int) (*asynq.Task, error) {
	payload, err := json.Marshal(ReportPayload{Year: year})
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "marshal report payload failed")
	}
	return asynq.NewTask(TypeDashboardReport, payload), nil
}

// ReportTaskHandler renders dashboard metrics to CSV files on disk.
type ReportTaskHandler struct {
	dashboards services.DashboardService
	outDir     string
}

func NewReportTaskHandler(dashboards services.DashboardService, outDir string) *ReportTaskHandler {
	return &ReportTaskHandler{dashboards: dashboards, outDir: outDir}
}

func (h *ReportTaskHandler) HandleDashboardReport(ctx context.Context, t *asynq.Task) error {
	var p ReportPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		logger.L().Error("invalid report task payload", zap.Error(err))
		return err
	}

	logger.L().Info("handling dashboard report task", zap.Int("year", p.Year))

	metrics, err := h.dashboards.Compute(ctx, p.Year)
	if err != nil {
		logger.L().Error("dashboard compute failed", zap.Int("year", p.Year), zap.Error(err))
		return err
	}

	path := filepath.Join(h.outDir, fmt.Sprintf("dashboard-%d.csv", metrics.Year))
	if err := writeReportCSV(path, metrics); err != nil {
		logger.L().Error("write report failed", zap.String("path", path), zap.Error(err))
		return err
	}

	logger.L().Info("dashboard report written", zap.Int("year", metrics.Year), zap.String("path", path))
	return nil
}

// writeReportCSV renders one metrics snapshot. Monetary values round to two
// decimal places.
func writeReportCSV(path string, m *services.DashboardMetrics) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "create report dir failed")
	}
	f, err := os.Create(path)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "create report file failed")
	}
	defer f.Close()

	w := csv.NewWriter(f)

	rows := [][]string{
		{"metric", "month", "value"},
		{"year", "", fmt.Sprintf("%d", m.Year)},
		{"total_remaining", "", money(m.TotalRemaining)},
		{"total_active_projects", "", fmt.Sprintf("%d", m.TotalActiveProjectsCount)},
		{"completed_this_year", "", fmt.Sprintf("%d", m.CompletedThisYearCount)},
		{"new_projects", "", fmt.Sprintf("%d", m.NewProjectsCount)},
	}
	for month := 1; month <= 12; month++ {
		rows = append(rows,
			[]string{"monthly_total_forecast", time.Month(month).String(), money(m.MonthlyTotalForecast[month])},
			[]string{"monthly_actual_invoiced", time.Month(month).String(), money(m.MonthlyActualInvoiced[month])},
		)
	}

	clients := make([]string, 0, len(m.BacklogsPerClient))
	for client := range m.BacklogsPerClient {
		clients = append(clients, client)
	}
	sort.Strings(clients)
	for _, client := range clients {
		rows = append(rows, []string{"backlog:" + client, "", money(m.BacklogsPerClient[client])})
	}

	if err := w.WriteAll(rows); err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "write report rows failed")
	}
	return nil
}

func money(v float64) string {
	return decimal.NewFromFloat(v).Round(2).StringFixed(2)
}
