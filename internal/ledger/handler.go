package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/visaforge/backend/internal/auth"
	"github.com/visaforge/backend/internal/middleware"
	"github.com/visaforge/backend/internal/models"
)

// EntryLister reads commission ledger entries. repository.CommissionRepo
// satisfies it.
type EntryLister interface {
	ListByBeneficiary(ctx context.Context, beneficiaryType string, beneficiaryID uuid.UUID) ([]*models.CommissionEntry, error)
}

type Handler struct {
	entries EntryLister
	log     *slog.Logger
}

func NewHandler(entries EntryLister, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{entries: entries, log: log}
}

// ListMine handles GET /commissions (student or agent): the caller's full
// commission ledger, newest first.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	var beneficiaryType string
	switch {
	case p == nil:
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	case p.Role == auth.RoleStudent:
		beneficiaryType = models.BeneficiaryStudent
	case p.Role == auth.RoleAgent:
		beneficiaryType = models.BeneficiaryAgent
	default:
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	list, err := h.entries.ListByBeneficiary(r.Context(), beneficiaryType, p.ID)
	if err != nil {
		h.log.Error("list commissions", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}
