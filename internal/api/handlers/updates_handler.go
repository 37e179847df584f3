package handlers

import (
	"net/http"
	"strconv"

	"github.com/ds-monitor/engine/internal/services"
)

const defaultLogLimit = 100

type UpdatesHandler struct {
	projects services.ProjectService
}

func NewUpdatesHandler(projects services.ProjectService) *UpdatesHandler {
	return &UpdatesHandler{projects: projects}
}

func (h *UpdatesHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := h.projects.ToggleUpdate(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (h *UpdatesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.projects.DeleteUpdate(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"deleted": id})
}

// Log returns the newest updates across all projects, joined with project
// identity. ?limit= caps the page, defaulting to 100.
func (h *UpdatesHandler) Log(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeInvalid(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	log, err := h.projects.UpdatesLog(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, log)
}
