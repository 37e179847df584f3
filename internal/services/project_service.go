package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ds-monitor/engine/internal/models"
	"github.com/ds-monitor/engine/internal/repository"
	"github.com/ds-monitor/engine/pkg/datetime"
	appErr "github.com/ds-monitor/engine/pkg/errors"
	"github.com/ds-monitor/engine/pkg/logger"
	"github.com/ds-monitor/engine/pkg/numeric"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// ProjectView is a project enriched for API consumption: ISO date strings,
// forecast linkage, computed running weeks and the update trail.
type ProjectView struct {
	models.Project

	PoDate            *string      `json:"po_date"`
	DateCompleted     *string      `json:"date_completed"`
	HasForecasts      bool         `json:"has_forecasts"`
	TotalRunningWeeks *int         `json:"total_running_weeks"`
	Updates           []UpdateView `json:"updates"`
	LatestUpdate      string       `json:"latest_update"`
}

// UpdateView renders a project update with its due date as an ISO string.
type UpdateView struct {
	models.ProjectUpdate

	DueDate *string `json:"due_date"`
}

// CreateProjectInput carries a new project. Numeric fields accept lenient
// formats; dates accept ISO or MM/DD/YYYY.
type CreateProjectInput struct {
	ProjectName   string `json:"project_name" validate:"required"`
	ProjectNo     string `json:"project_no"`
	Client        string `json:"client"`
	DS            string `json:"ds"`
	Year          any    `json:"year"`
	Amount        any    `json:"amount"`
	Status        any    `json:"status"`
	PoDate        string `json:"po_date"`
	PoNo          string `json:"po_no"`
	DateCompleted string `json:"date_completed"`
	PIC           string `json:"pic"`
	Address       string `json:"address"`
}

// CreateUpdateInput carries a new project update note.
type CreateUpdateInput struct {
	UpdateText string `json:"update_text" validate:"required"`
	DueDate    string `json:"due_date"`
}

// UpdateToggleResult reports the new completion state of a project update.
type UpdateToggleResult struct {
	UpdateID            uint       `json:"update_id"`
	IsCompleted         bool       `json:"is_completed"`
	CompletionTimestamp *time.Time `json:"completion_timestamp"`
}

type ProjectService interface {
	Create(ctx context.Context, in *CreateProjectInput) (*ProjectView, error)
	Get(ctx context.Context, id uint) (*ProjectView, error)
	ListActive(ctx context.Context) ([]ProjectView, error)
	ListCompleted(ctx context.Context) ([]ProjectView, error)
	// UpdateFields applies a sparse, leniently-parsed field edit. Editing
	// amount or status recomputes remaining_amount. Returns the refreshed
	// project and the names of the fields written.
	UpdateFields(ctx context.Context, id uint, fields map[string]any) (*ProjectView, []string, error)
	// Delete removes a project and cascades to its forecast items and
	// updates.
	Delete(ctx context.Context, id uint) error

	ListUpdates(ctx context.Context, projectID uint) ([]UpdateView, error)
	AddUpdate(ctx context.Context, projectID uint, in *CreateUpdateInput) (*UpdateView, error)
	ToggleUpdate(ctx context.Context, updateID uint) (*UpdateToggleResult, error)
	DeleteUpdate(ctx context.Context, updateID uint) error
	UpdatesLog(ctx context.Context, limit int) ([]repository.UpdateLogEntry, error)
}

type projectService struct {
	projectRepo repository.ProjectRepository
	updateRepo  repository.UpdateRepository
	now         func() time.Time
}

func NewProjectService(projectRepo repository.ProjectRepository, updateRepo repository.UpdateRepository) ProjectService {
	return &projectService{projectRepo: projectRepo, updateRepo: updateRepo, now: time.Now}
}

var _ ProjectService = (*projectService)(nil)

func (s *projectService) Create(ctx context.Context, in *CreateProjectInput) (*ProjectView, error) {
	if strings.TrimSpace(in.ProjectName) == "" {
		return nil, appErr.New(appErr.CodeInvalid, "project_name is required")
	}

	p := &models.Project{
		ProjectName: strings.TrimSpace(in.ProjectName),
		Client:      strings.TrimSpace(in.Client),
		DS:          strings.TrimSpace(in.DS),
		PIC:         strings.TrimSpace(in.PIC),
		Address:     strings.TrimSpace(in.Address),
		Year:        numeric.ParseInt(in.Year, nil),
		Amount:      numeric.ParseFloatValue(in.Amount, nil),
	}
	if no := strings.TrimSpace(in.ProjectNo); no != "" {
		p.ProjectNo = &no
	}
	if no := strings.TrimSpace(in.PoNo); no != "" {
		p.PoNo = &no
	}

	if status := numeric.ParseFloatValue(in.Status, nil); status != nil {
		if *status < 0 || *status > 100 {
			return nil, appErr.Newf(appErr.CodeInvalid, "invalid status %v: must be 0-100", *status)
		}
		p.Status = *status
	}

	var err error
	if p.PoDate, err = parseOptionalDate("po_date", in.PoDate); err != nil {
		return nil, err
	}
	if p.DateCompleted, err = parseOptionalDate("date_completed", in.DateCompleted); err != nil {
		return nil, err
	}

	p.RemainingAmount = numeric.RemainingAmount(p.Amount, &p.Status)

	if err := s.projectRepo.Create(ctx, p); err != nil {
		return nil, err
	}
	logger.L().Info("project created", zap.Uint("project_id", p.ID), zap.String("project_name", p.ProjectName))
	return s.Get(ctx, p.ID)
}

func (s *projectService) Get(ctx context.Context, id uint) (*ProjectView, error) {
	var p models.Project
	if err := s.projectRepo.GetByID(ctx, id, &p); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, appErr.New(appErr.CodeNotFound, "project not found")
		}
		return nil, err
	}
	views, err := s.enrich(ctx, []models.Project{p})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *projectService) ListActive(ctx context.Context) ([]ProjectView, error) {
	projects, err := s.projectRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, projects)
}

func (s *projectService) ListCompleted(ctx context.Context) ([]ProjectView, error) {
	projects, err := s.projectRepo.ListCompleted(ctx)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, projects)
}

// editableFields maps the JSON field name to the parse strategy used for its
// value. Values failing their strategy collect into one validation error.
var editableFields = map[string]string{
	"client":         "string",
	"status":         "status",
	"po_date":        "date",
	"po_no":          "optional_string",
	"date_completed": "date",
	"pic":            "string",
	"address":        "string",
	"amount":         "amount",
	"project_name":   "name",
	"year":           "int",
	"ds":             "string",
}

func (s *projectService) UpdateFields(ctx context.Context, id uint, fields map[string]any) (*ProjectView, []string, error) {
	columns := map[string]any{}
	var details []string
	var newAmount, newStatus *float64
	amountSet, statusSet := false, false

	for field, strategy := range editableFields {
		raw, present := fields[field]
		if !present {
			continue
		}
		switch strategy {
		case "string":
			columns[field] = strings.TrimSpace(fmt.Sprintf("%v", orEmpty(raw)))
		case "name":
			name := strings.TrimSpace(fmt.Sprintf("%v", orEmpty(raw)))
			if name == "" {
				details = append(details, "project name cannot be empty")
				continue
			}
			columns[field] = name
		case "optional_string":
			v := strings.TrimSpace(fmt.Sprintf("%v", orEmpty(raw)))
			if v == "" {
				columns[field] = nil
			} else {
				columns[field] = v
			}
		case "int":
			if isEmpty(raw) {
				columns[field] = nil
				continue
			}
			n := numeric.ParseInt(raw, nil)
			if n == nil {
				details = append(details, fmt.Sprintf("invalid value for %q: %v (expected integer or empty)", field, raw))
				continue
			}
			columns[field] = *n
		case "amount":
			if isEmpty(raw) {
				columns[field] = nil
				newAmount, amountSet = nil, true
				continue
			}
			f := numeric.ParseFloatValue(raw, nil)
			if f == nil {
				details = append(details, fmt.Sprintf("invalid amount: %v (must be a number or empty)", raw))
				continue
			}
			columns[field] = *f
			newAmount, amountSet = f, true
		case "status":
			// An emptied status resets to zero, it never becomes NULL.
			status := 0.0
			if !isEmpty(raw) {
				f := numeric.ParseFloatValue(raw, nil)
				if f == nil || *f < 0 || *f > 100 {
					details = append(details, fmt.Sprintf("invalid status: %v (must be 0-100 or empty)", raw))
					continue
				}
				status = *f
			}
			columns[field] = status
			newStatus, statusSet = &status, true
		case "date":
			if isEmpty(raw) {
				columns[field] = nil
				continue
			}
			d, err := parseOptionalDate(field, fmt.Sprintf("%v", raw))
			if err != nil {
				details = append(details, fmt.Sprintf("invalid date format for %q: %v (use yyyy-MM-dd or MM/dd/yyyy)", field, raw))
				continue
			}
			columns[field] = d
		}
	}

	if len(details) > 0 {
		return nil, nil, appErr.New(appErr.CodeInvalid, "validation failed").WithDetails(details...)
	}
	if len(columns) == 0 {
		view, err := s.Get(ctx, id)
		return view, nil, err
	}

	var current models.Project
	if err := s.projectRepo.GetByID(ctx, id, &current); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, nil, appErr.New(appErr.CodeNotFound, "project not found")
		}
		return nil, nil, err
	}

	// Amount or status edits take remaining_amount with them.
	if amountSet || statusSet {
		amount := current.Amount
		if amountSet {
			amount = newAmount
		}
		status := current.Status
		if statusSet {
			status = *newStatus
		}
		columns["remaining_amount"] = numeric.RemainingAmount(amount, &status)
	}

	if err := s.projectRepo.UpdateFields(ctx, id, columns); err != nil {
		return nil, nil, err
	}

	updated := make([]string, 0, len(columns))
	for col := range columns {
		updated = append(updated, col)
	}
	logger.L().Info("project fields updated", zap.Uint("project_id", id), zap.Strings("fields", updated))

	view, err := s.Get(ctx, id)
	return view, updated, err
}

func (s *projectService) Delete(ctx context.Context, id uint) error {
	if err := s.projectRepo.Delete(ctx, id); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return appErr.New(appErr.CodeNotFound, "project not found")
		}
		return err
	}
	logger.L().Info("project deleted", zap.Uint("project_id", id))
	return nil
}

func (s *projectService) ListUpdates(ctx context.Context, projectID uint) ([]UpdateView, error) {
	var p models.Project
	if err := s.projectRepo.GetByID(ctx, projectID, &p); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, appErr.New(appErr.CodeNotFound, "project not found")
		}
		return nil, err
	}
	updates, err := s.updateRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return updateViews(updates), nil
}

func (s *projectService) AddUpdate(ctx context.Context, projectID uint, in *CreateUpdateInput) (*UpdateView, error) {
	if strings.TrimSpace(in.UpdateText) == "" {
		return nil, appErr.New(appErr.CodeInvalid, "update_text is required")
	}
	var p models.Project
	if err := s.projectRepo.GetByID(ctx, projectID, &p); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, appErr.New(appErr.CodeNotFound, "project not found")
		}
		return nil, err
	}

	u := &models.ProjectUpdate{
		ProjectID:  projectID,
		UpdateText: strings.TrimSpace(in.UpdateText),
	}
	var err error
	if u.DueDate, err = parseOptionalDate("due_date", in.DueDate); err != nil {
		return nil, err
	}

	if err := s.updateRepo.Create(ctx, u); err != nil {
		return nil, err
	}
	logger.L().Info("project update added", zap.Uint("project_id", projectID), zap.Uint("update_id", u.ID))
	view := newUpdateView(*u)
	return &view, nil
}

func (s *projectService) ToggleUpdate(ctx context.Context, updateID uint) (*UpdateToggleResult, error) {
	var u models.ProjectUpdate
	if err := s.updateRepo.GetByID(ctx, updateID, &u); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, appErr.New(appErr.CodeNotFound, "update not found")
		}
		return nil, err
	}

	completed := !u.IsCompleted
	var at *time.Time
	if completed {
		t := s.now()
		at = &t
	}
	if err := s.updateRepo.SetCompletion(ctx, updateID, completed, at); err != nil {
		return nil, err
	}
	return &UpdateToggleResult{UpdateID: updateID, IsCompleted: completed, CompletionTimestamp: at}, nil
}

func (s *projectService) DeleteUpdate(ctx context.Context, updateID uint) error {
	if err := s.updateRepo.Delete(ctx, updateID); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return appErr.New(appErr.CodeNotFound, "update not found")
		}
		return err
	}
	return nil
}

func (s *projectService) UpdatesLog(ctx context.Context, limit int) ([]repository.UpdateLogEntry, error) {
	return s.updateRepo.ListLog(ctx, limit)
}

// enrich joins projects with their forecast linkage and update trail, and
// derives running weeks from the PO date.
func (s *projectService) enrich(ctx context.Context, projects []models.Project) ([]ProjectView, error) {
	ids := make([]uint, len(projects))
	for i := range projects {
		ids[i] = projects[i].ID
	}

	forecasted, err := s.projectRepo.ForecastedProjectIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	updatesByProject, err := s.updateRepo.ListByProjects(ctx, ids)
	if err != nil {
		return nil, err
	}

	today := s.now()
	views := make([]ProjectView, len(projects))
	for i := range projects {
		p := projects[i]
		_, hasForecasts := forecasted[p.ID]
		updates := updateViews(updatesByProject[p.ID])

		latest := ""
		if len(updates) > 0 {
			latest = updates[0].UpdateText
		}

		views[i] = ProjectView{
			Project:           p,
			PoDate:            isoDate(p.PoDate),
			DateCompleted:     isoDate(p.DateCompleted),
			HasForecasts:      hasForecasts,
			TotalRunningWeeks: runningWeeks(p.PoDate, p.DateCompleted, today),
			Updates:           updates,
			LatestUpdate:      latest,
		}
	}
	return views, nil
}

// runningWeeks counts elapsed weeks from the PO date to the completion date
// or today, whichever is earlier. Nil without a PO date; zero for inverted
// ranges.
func runningWeeks(poDate, dateCompleted *datatypes.Date, today time.Time) *int {
	start, ok := models.DateValue(poDate)
	if !ok {
		return nil
	}
	end := today
	if completed, ok := models.DateValue(dateCompleted); ok && completed.Before(end) {
		end = completed
	}
	weeks := 0
	if !start.After(end) {
		weeks = int(end.Sub(start).Hours()/24)/7 + 1
	}
	return &weeks
}

func updateViews(updates []models.ProjectUpdate) []UpdateView {
	out := make([]UpdateView, len(updates))
	for i, u := range updates {
		out[i] = newUpdateView(u)
	}
	return out
}

func newUpdateView(u models.ProjectUpdate) UpdateView {
	return UpdateView{ProjectUpdate: u, DueDate: isoDate(u.DueDate)}
}

func isoDate(d *datatypes.Date) *string {
	t, ok := models.DateValue(d)
	if !ok {
		return nil
	}
	s := datetime.FormatISO(t)
	return &s
}

func parseOptionalDate(field, raw string) (*datatypes.Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, ok := datetime.ParseFlexible(raw)
	if !ok {
		return nil, appErr.Newf(appErr.CodeInvalid, "invalid %s format: %q", field, raw)
	}
	return models.NewDate(t), nil
}

func orEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}
