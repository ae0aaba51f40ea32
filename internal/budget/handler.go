package budget

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/visaforge/backend/internal/ledger"
	"github.com/visaforge/backend/internal/middleware"
)

type CreateBudgetRequest struct {
	Services []string `json:"services" validate:"required,min=1,dive,required"`
}

type OfferBudgetRequest struct {
	PriceUpfront  *decimal.Decimal `json:"price_upfront"`
	PriceOnVisa   *decimal.Decimal `json:"price_on_visa"`
	PriceFinanced *decimal.Decimal `json:"price_financed"`
	AdminMessage  string           `json:"admin_message"`
}

type AcceptBudgetRequest struct {
	Modality string `json:"modality" validate:"required"`
}

type MarkPaidRequest struct {
	Modality string `json:"modality" validate:"required"`
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

// Create handles POST /budgets (student).
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	if p == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req CreateBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	b, err := h.svc.Create(r.Context(), p.ID, req.Services)
	if err != nil {
		h.writeError(w, err, "create budget")
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// ListMine handles GET /budgets (student).
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	if p == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	list, err := h.svc.ListByStudent(r.Context(), p.ID)
	if err != nil {
		h.writeError(w, err, "list budgets")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Accept handles POST /budgets/{id}/accept (student).
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	if p == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req AcceptBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	b, err := h.svc.Accept(r.Context(), id, p.ID, req.Modality)
	if err != nil {
		h.writeError(w, err, "accept budget")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Reject handles POST /budgets/{id}/reject (student).
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	if p == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b, err := h.svc.Reject(r.Context(), id, p.ID)
	if err != nil {
		h.writeError(w, err, "reject budget")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ListPending handles GET /admin/budgets/pending (admin).
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListPending(r.Context())
	if err != nil {
		h.writeError(w, err, "list pending budgets")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// MakeOffer handles POST /admin/budgets/{id}/offer (admin).
func (h *Handler) MakeOffer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req OfferBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	b, err := h.svc.MakeOffer(r.Context(), id, Offer{
		PriceUpfront:  req.PriceUpfront,
		PriceOnVisa:   req.PriceOnVisa,
		PriceFinanced: req.PriceFinanced,
		AdminMessage:  req.AdminMessage,
	})
	if err != nil {
		h.writeError(w, err, "offer budget")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// MarkPaid handles POST /admin/budgets/{id}/paid (admin).
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req MarkPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	b, err := h.svc.MarkModalityPaid(r.Context(), id, req.Modality)
	if err != nil {
		h.writeError(w, err, "mark modality paid")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Delete handles DELETE /admin/budgets/{id} (admin cleanup).
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeError(w, err, "delete budget")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		http.Error(w, `{"error":"budget not found"}`, http.StatusNotFound)
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ledger.ErrBudgetNotAccepted),
		errors.Is(err, ledger.ErrModalityNotSelected):
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusConflict)
	case errors.Is(err, ErrNoOffer),
		errors.Is(err, ErrModalityUnpriced),
		errors.Is(err, ErrUnknownModality),
		errors.Is(err, ErrNoServices),
		errors.Is(err, ErrNonPositivePrice):
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
	default:
		h.log.Error(op+" failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid id"}`, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
