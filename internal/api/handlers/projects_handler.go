package handlers

import (
	"net/http"

	"github.com/ds-monitor/engine/internal/api/types"
	"github.com/ds-monitor/engine/internal/api/validators"
	"github.com/ds-monitor/engine/internal/services"
)

type ProjectsHandler struct {
	projects services.ProjectService
}

func NewProjectsHandler(projects services.ProjectService) *ProjectsHandler {
	return &ProjectsHandler{projects: projects}
}

// List returns active projects ordered by remaining backlog.
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.projects.ListActive(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{
		Success: true,
		Data:    views,
		Meta:    &types.Meta{Total: int64(len(views))},
	})
}

// ListCompleted returns finished projects, most recently completed first.
func (h *ProjectsHandler) ListCompleted(w http.ResponseWriter, r *http.Request) {
	views, err := h.projects.ListCompleted(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{
		Success: true,
		Data:    views,
		Meta:    &types.Meta{Total: int64(len(views))},
	})
}

func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.CreateProjectInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validators.New().Struct(&req); err != nil {
		writeInvalid(w, err.Error())
		return
	}
	view, err := h.projects.Create(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, view)
}

func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := h.projects.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, view)
}

// Patch applies a sparse field edit and reports the refreshed project plus
// the touched fields.
func (h *ProjectsHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req types.UpdateProjectFieldsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	view, updated, err := h.projects.UpdateFields(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"project":        view,
		"updated_fields": updated,
	})
}

func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.projects.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"deleted": id})
}

func (h *ProjectsHandler) ListUpdates(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	updates, err := h.projects.ListUpdates(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, updates)
}

func (h *ProjectsHandler) AddUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req services.CreateUpdateInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validators.New().Struct(&req); err != nil {
		writeInvalid(w, err.Error())
		return
	}
	update, err := h.projects.AddUpdate(r.Context(), id, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, update)
}
