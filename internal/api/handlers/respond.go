package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ds-monitor/engine/internal/api/types"
	appErr "github.com/ds-monitor/engine/pkg/errors"
	"github.com/go-chi/chi/v5"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.APIResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, types.HTTPStatus(err), types.APIResponse{Success: false, Error: types.FromAppError(err)})
}

func writeInvalid(w http.ResponseWriter, msg string) {
	writeError(w, appErr.New(appErr.CodeInvalid, msg))
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return appErr.New(appErr.CodeInvalid, "invalid json body")
	}
	return nil
}

// idParam reads the {id} route parameter as an unsigned integer.
func idParam(r *http.Request) (uint, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, appErr.Newf(appErr.CodeInvalid, "invalid id %q", raw)
	}
	return uint(id), nil
}
