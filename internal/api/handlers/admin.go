package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/matiasleandrokruk/calcatalog/internal/domain/calculator/script"
	"github.com/matiasleandrokruk/calcatalog/internal/domain/journal"
	"github.com/matiasleandrokruk/calcatalog/internal/infra/logging"
)

// ReloadFunc reconciles the registry with the calculator manifest.
type ReloadFunc func(ctx context.Context) (script.ReloadReport, error)

// JournalReader is the read side of the execution journal. *journal.Service satisfies it.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
	Stats(ctx context.Context) ([]journal.CalculatorStats, error)
}

// AdminHandler serves the JWT-protected operator endpoints. Either
// dependency may be nil when the feature is not configured.
type AdminHandler struct {
	reload  ReloadFunc
	journal JournalReader
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(reload ReloadFunc, journal JournalReader) *AdminHandler {
	return &AdminHandler{reload: reload, journal: journal}
}

// Reload handles POST /api/v1/admin/reload.
//
// Response codes:
//   - 200 OK: manifest applied; per-calculator failures are listed in the body
//   - 404 Not Found: no manifest configured
//   - 422 Unprocessable Entity: manifest does not parse; catalog unchanged
//   - 500 Internal Server Error: manifest could not be read
func (h *AdminHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if h.reload == nil {
		writeError(w, http.StatusNotFound, "no calculator manifest configured")
		return
	}
	report, err := h.reload(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("manifest reload failed", "error", err)
		if errors.Is(err, script.ErrInvalidManifest) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to reload manifest")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Journal handles GET /api/v1/admin/journal?limit=.
func (h *AdminHandler) Journal(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, http.StatusNotFound, "execution journal disabled")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.journal.Recent(r.Context(), limit)
	if err != nil {
		logging.FromContext(r.Context()).Error("journal read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entries, "meta": map[string]int{"total": len(entries)}})
}

// JournalStats handles GET /api/v1/admin/journal/stats.
func (h *AdminHandler) JournalStats(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, http.StatusNotFound, "execution journal disabled")
		return
	}
	stats, err := h.journal.Stats(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("journal stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read journal stats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": stats})
}
