package router

import (
	"encoding/json"
	"net/http"

	"github.com/visaforge/backend/internal/auth"
	"github.com/visaforge/backend/internal/budget"
	"github.com/visaforge/backend/internal/credit"
	"github.com/visaforge/backend/internal/dashboard"
	"github.com/visaforge/backend/internal/ledger"
	"github.com/visaforge/backend/internal/middleware"
	"github.com/visaforge/backend/internal/reconcile"
)

// Handlers bundles the per-domain HTTP handlers the router wires up.
type Handlers struct {
	Auth      *auth.Handler
	Budget    *budget.Handler
	Credit    *credit.Handler
	Dashboard *dashboard.Handler
	Ledger    *ledger.Handler
	Reconcile *reconcile.Handler
}

// New returns the API handler. All routes live under /api/v1; everything
// except registration, login and the health check requires a bearer token.
func New(h Handlers, validator middleware.TokenValidator) http.Handler {
	mux := http.NewServeMux()
	const base = "/api/v1"

	authn := middleware.JWTAuth(validator)
	student := middleware.RequireRole(auth.RoleStudent)
	beneficiary := middleware.RequireRole(auth.RoleStudent, auth.RoleAgent)
	admin := middleware.RequireRole(auth.RoleAdmin)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST "+base+"/auth/register/student", h.Auth.RegisterStudent)
	mux.HandleFunc("POST "+base+"/auth/register/agent", h.Auth.RegisterAgent)
	mux.HandleFunc("POST "+base+"/auth/login", h.Auth.Login)

	// Students: budget lifecycle.
	handle := func(pattern string, mw func(http.Handler) http.Handler, fn http.HandlerFunc) {
		mux.Handle(pattern, authn(mw(fn)))
	}
	handle("POST "+base+"/budgets", student, h.Budget.Create)
	handle("GET "+base+"/budgets", student, h.Budget.ListMine)
	handle("POST "+base+"/budgets/{id}/accept", student, h.Budget.Accept)
	handle("POST "+base+"/budgets/{id}/reject", student, h.Budget.Reject)

	// Students and agents: credit requests and their commission ledger.
	handle("POST "+base+"/credit-requests", beneficiary, h.Credit.Submit)
	handle("GET "+base+"/credit-requests", beneficiary, h.Credit.ListMine)
	handle("GET "+base+"/commissions", beneficiary, h.Ledger.ListMine)
	handle("GET "+base+"/me", beneficiary, h.Dashboard.GetMe)

	// Admin: offers, payments, decisions, reconciliation.
	handle("GET "+base+"/admin/budgets/pending", admin, h.Budget.ListPending)
	handle("POST "+base+"/admin/budgets/{id}/offer", admin, h.Budget.MakeOffer)
	handle("POST "+base+"/admin/budgets/{id}/paid", admin, h.Budget.MarkPaid)
	handle("DELETE "+base+"/admin/budgets/{id}", admin, h.Budget.Delete)
	handle("GET "+base+"/admin/credit-requests/pending", admin, h.Credit.ListPending)
	handle("POST "+base+"/admin/credit-requests/{id}/approve", admin, h.Credit.Approve)
	handle("POST "+base+"/admin/credit-requests/{id}/reject", admin, h.Credit.Reject)
	handle("GET "+base+"/admin/reconciliation", admin, h.Reconcile.Report)

	return mux
}
