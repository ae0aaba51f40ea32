package reconcile

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// Report handles GET /admin/reconciliation (admin). Runs the comparison
// synchronously and returns the full report.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Run(r.Context())
	if err != nil {
		h.log.Error("reconciliation failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}
