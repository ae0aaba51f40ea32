// Package dashboard serves the profile view backing the account screen:
// who am I, my referral code, and my credit balances.
package dashboard

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/visaforge/backend/internal/auth"
	"github.com/visaforge/backend/internal/credit"
	"github.com/visaforge/backend/internal/middleware"
)

type Handler struct {
	students credit.StudentDirectory
	agents   credit.AgentDirectory
	log      *slog.Logger
}

func NewHandler(students credit.StudentDirectory, agents credit.AgentDirectory, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{students: students, agents: agents, log: log}
}

// GetMe handles GET /me (student or agent).
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	if p == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	switch p.Role {
	case auth.RoleStudent:
		st, err := h.students.GetByID(r.Context(), p.ID)
		if err != nil {
			h.log.Error("get student profile", "error", err)
			http.Error(w, `{"error":"profile not found"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{
			"id":               st.ID,
			"role":             auth.RoleStudent,
			"email":            st.Email,
			"full_name":        st.FullName,
			"referral_code":    st.ReferralCode,
			"available_credit": st.AvailableCredit,
			"withdrawn_credit": st.WithdrawnCredit,
			"created_at":       st.CreatedAt,
		})
	case auth.RoleAgent:
		a, err := h.agents.GetByID(r.Context(), p.ID)
		if err != nil {
			h.log.Error("get agent profile", "error", err)
			http.Error(w, `{"error":"profile not found"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{
			"id":               a.ID,
			"role":             auth.RoleAgent,
			"email":            a.Email,
			"name":             a.Name,
			"agency":           a.Agency,
			"referral_code":    a.ReferralCode,
			"available_credit": a.AvailableCredit,
			"withdrawn_credit": a.WithdrawnCredit,
			"created_at":       a.CreatedAt,
		})
	default:
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
