package handlers

import (
	"net/http"

	"github.com/ds-monitor/engine/internal/api/types"
	"github.com/ds-monitor/engine/internal/api/validators"
	"github.com/ds-monitor/engine/internal/services"
)

type ForecastHandler struct {
	forecasts services.ForecastService
}

func NewForecastHandler(forecasts services.ForecastService) *ForecastHandler {
	return &ForecastHandler{forecasts: forecasts}
}

func (h *ForecastHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.forecasts.List(r.Context())
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

func (h *ForecastHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.CreateForecastInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validators.New().Struct(&req); err != nil {
		writeInvalid(w, err.Error())
		return
	}
	entry, err := h.forecasts.Create(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, entry)
}

func (h *ForecastHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.forecasts.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"deleted": id})
}

// ToggleComplete flips an entry's completion flag and reconciles the owning
// project's status inside one transaction.
func (h *ForecastHandler) ToggleComplete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := h.forecasts.ToggleCompletion(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, result)
}
