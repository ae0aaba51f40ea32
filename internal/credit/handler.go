package credit

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/visaforge/backend/internal/auth"
	"github.com/visaforge/backend/internal/ledger"
	"github.com/visaforge/backend/internal/middleware"
	"github.com/visaforge/backend/internal/models"
)

type SubmitRequest struct {
	Kind   string          `json:"kind" validate:"required,oneof=withdrawal discount_use"`
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

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

// Submit handles POST /credit-requests (student or agent). The beneficiary
// is always the authenticated principal; callers cannot file requests for
// someone else.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	beneficiaryType, ok := beneficiaryTypeFor(p)
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	cr, err := h.svc.Submit(r.Context(), beneficiaryType, p.ID, req.Kind, req.Amount)
	if err != nil {
		h.writeError(w, err, "submit credit request")
		return
	}
	writeJSON(w, http.StatusCreated, cr)
}

// ListMine handles GET /credit-requests (student or agent).
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	beneficiaryType, ok := beneficiaryTypeFor(p)
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	list, err := h.svc.ListByBeneficiary(r.Context(), beneficiaryType, p.ID)
	if err != nil {
		h.writeError(w, err, "list credit requests")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ListPending handles GET /admin/credit-requests/pending (admin).
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListPending(r.Context())
	if err != nil {
		h.writeError(w, err, "list pending credit requests")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Approve handles POST /admin/credit-requests/{id}/approve (admin).
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid id"}`, http.StatusBadRequest)
		return
	}
	cr, err := h.svc.Approve(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "approve credit request")
		return
	}
	writeJSON(w, http.StatusOK, cr)
}

// Reject handles POST /admin/credit-requests/{id}/reject (admin).
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid id"}`, http.StatusBadRequest)
		return
	}
	var req RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	cr, err := h.svc.Reject(r.Context(), id, req.Reason)
	if err != nil {
		h.writeError(w, err, "reject credit request")
		return
	}
	writeJSON(w, http.StatusOK, cr)
}

func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		http.Error(w, `{"error":"credit request not found"}`, http.StatusNotFound)
	case errors.Is(err, ledger.ErrInsufficientCredit):
		// The request was rejected with the reason recorded; 409 tells the
		// admin the approval could not go through.
		http.Error(w, `{"error":"insufficient credit"}`, http.StatusConflict)
	case errors.Is(err, ledger.ErrAlreadyDecided):
		http.Error(w, `{"error":"credit request already decided"}`, http.StatusConflict)
	case errors.Is(err, ErrUnknownBeneficiary),
		errors.Is(err, ErrNonPositiveAmount),
		errors.Is(err, ErrUnknownKind):
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
	default:
		h.log.Error(op+" failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}

func beneficiaryTypeFor(p *middleware.Principal) (string, bool) {
	if p == nil {
		return "", false
	}
	switch p.Role {
	case auth.RoleStudent:
		return models.BeneficiaryStudent, true
	case auth.RoleAgent:
		return models.BeneficiaryAgent, true
	}
	return "", false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
