package budget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/visaforge/backend/internal/ledger"
	"github.com/visaforge/backend/internal/models"
	"github.com/visaforge/backend/internal/notification"
)

// ---------------------------------------------------------------------------
// In-memory mocks
// ---------------------------------------------------------------------------

type mockStore struct {
	mu      sync.Mutex
	budgets map[uuid.UUID]*models.Budget
}

func newMockStore(bs ...*models.Budget) *mockStore {
	m := &mockStore{budgets: make(map[uuid.UUID]*models.Budget)}
	for _, b := range bs {
		m.budgets[b.ID] = b
	}
	return m
}

func (m *mockStore) Create(_ context.Context, b *models.Budget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.CreatedAt = time.Now()
	cp := *b
	m.budgets[b.ID] = &cp
	return nil
}

func (m *mockStore) GetByID(_ context.Context, id uuid.UUID) (*models.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *b
	return &cp, nil
}

func (m *mockStore) ListByStudent(_ context.Context, studentID uuid.UUID) ([]*models.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Budget
	for _, b := range m.budgets {
		if b.StudentID == studentID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockStore) ListByState(_ context.Context, state string) ([]*models.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Budget
	for _, b := range m.budgets {
		if b.State == state {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockStore) Offer(_ context.Context, id uuid.UUID, upfront, onVisa, financed decimal.NullDecimal, message string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[id]
	if !ok || b.State != models.BudgetPending {
		return false, nil
	}
	b.State = models.BudgetOffered
	b.PriceUpfront, b.PriceOnVisa, b.PriceFinanced = upfront, onVisa, financed
	b.AdminMessage = &message
	return true, nil
}

func (m *mockStore) Accept(_ context.Context, id, studentID uuid.UUID, modality string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[id]
	if !ok || b.StudentID != studentID || b.State != models.BudgetOffered {
		return false, nil
	}
	now := time.Now()
	b.State = models.BudgetAccepted
	b.SelectedModality = &modality
	b.AcceptedAt = &now
	return true, nil
}

func (m *mockStore) Reject(_ context.Context, id, studentID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[id]
	if !ok || b.StudentID != studentID || b.State != models.BudgetOffered {
		return false, nil
	}
	b.State = models.BudgetRejected
	return true, nil
}

func (m *mockStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.budgets, id)
	return nil
}

// --- directories ---

type mockStudents struct {
	students map[uuid.UUID]*models.Student
}

func (m *mockStudents) GetByID(_ context.Context, id uuid.UUID) (*models.Student, error) {
	s, ok := m.students[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return s, nil
}

type mockAgents struct{}

func (mockAgents) GetByID(_ context.Context, _ uuid.UUID) (*models.Agent, error) {
	return nil, pgx.ErrNoRows
}

// --- ledger stub ---

type stubLedger struct {
	commission *ledger.Commission
	err        error
	calls      []string
}

func (s *stubLedger) RecordModalityPaid(_ context.Context, budgetID uuid.UUID, modality string) (*ledger.Commission, error) {
	s.calls = append(s.calls, fmt.Sprintf("%s/%s", budgetID, modality))
	return s.commission, s.err
}

func (s *stubLedger) ApproveCreditRequest(context.Context, uuid.UUID) (*models.CreditRequest, error) {
	return nil, errors.New("not implemented")
}

func (s *stubLedger) RejectCreditRequest(context.Context, uuid.UUID, string) (*models.CreditRequest, error) {
	return nil, errors.New("not implemented")
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func price(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func newService(store *mockStore, lgr ledger.Service) Service {
	if lgr == nil {
		lgr = &stubLedger{}
	}
	return NewService(store, &mockStudents{students: map[uuid.UUID]*models.Student{}}, mockAgents{}, lgr, notification.Noop{})
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCreate(t *testing.T) {
	store := newMockStore()
	svc := newService(store, nil)
	student := uuid.New()

	b, err := svc.Create(context.Background(), student, []string{"visa application", "document review"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.State != models.BudgetPending {
		t.Errorf("state: got %s, want pending", b.State)
	}
	if b.SelectedModality != nil {
		t.Error("new budget must not have a selected modality")
	}

	if _, err := svc.Create(context.Background(), student, nil); !errors.Is(err, ErrNoServices) {
		t.Errorf("empty services: got %v, want ErrNoServices", err)
	}
}

func TestMakeOffer(t *testing.T) {
	student := uuid.New()
	pending := &models.Budget{ID: uuid.New(), StudentID: student, State: models.BudgetPending}
	store := newMockStore(pending)
	svc := newService(store, nil)
	ctx := context.Background()

	// No prices at all.
	if _, err := svc.MakeOffer(ctx, pending.ID, Offer{AdminMessage: "hi"}); !errors.Is(err, ErrNoOffer) {
		t.Errorf("no prices: got %v, want ErrNoOffer", err)
	}

	// One price is enough.
	b, err := svc.MakeOffer(ctx, pending.ID, Offer{PriceUpfront: price("1200"), AdminMessage: "our offer"})
	if err != nil {
		t.Fatalf("MakeOffer: %v", err)
	}
	if b.State != models.BudgetOffered {
		t.Errorf("state: got %s, want offered", b.State)
	}
	if !b.PriceUpfront.Valid || !b.PriceUpfront.Decimal.Equal(*price("1200")) {
		t.Error("price_upfront not stored")
	}

	// Offering twice is an invalid transition.
	if _, err := svc.MakeOffer(ctx, pending.ID, Offer{PriceUpfront: price("1000")}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double offer: got %v, want ErrInvalidTransition", err)
	}

	// Negative prices are rejected outright.
	if _, err := svc.MakeOffer(ctx, uuid.New(), Offer{PriceOnVisa: price("-5")}); err == nil {
		t.Error("negative price should be rejected")
	}
}

func TestAccept(t *testing.T) {
	student := uuid.New()
	offered := &models.Budget{
		ID:           uuid.New(),
		StudentID:    student,
		State:        models.BudgetOffered,
		PriceUpfront: decimal.NewNullDecimal(*price("1000")),
	}
	store := newMockStore(offered)
	svc := newService(store, nil)
	ctx := context.Background()

	// Unknown modality.
	if _, err := svc.Accept(ctx, offered.ID, student, "pay_later"); !errors.Is(err, ErrUnknownModality) {
		t.Errorf("unknown modality: got %v, want ErrUnknownModality", err)
	}
	// Unpriced modality.
	if _, err := svc.Accept(ctx, offered.ID, student, models.ModalityFinanced); !errors.Is(err, ErrModalityUnpriced) {
		t.Errorf("unpriced modality: got %v, want ErrModalityUnpriced", err)
	}
	// Someone else's budget.
	if _, err := svc.Accept(ctx, offered.ID, uuid.New(), models.ModalityUpfront); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("foreign budget: got %v, want ErrInvalidTransition", err)
	}

	b, err := svc.Accept(ctx, offered.ID, student, models.ModalityUpfront)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	// selected_modality is non-nil iff state == accepted.
	if b.State != models.BudgetAccepted {
		t.Errorf("state: got %s, want accepted", b.State)
	}
	if b.SelectedModality == nil || *b.SelectedModality != models.ModalityUpfront {
		t.Error("selected_modality not set on acceptance")
	}
	if b.AcceptedAt == nil {
		t.Error("accepted_at not set on acceptance")
	}

	// Accepting again is an invalid transition.
	if _, err := svc.Accept(ctx, offered.ID, student, models.ModalityUpfront); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double accept: got %v, want ErrInvalidTransition", err)
	}
}

func TestReject(t *testing.T) {
	student := uuid.New()
	offered := &models.Budget{
		ID:          uuid.New(),
		StudentID:   student,
		State:       models.BudgetOffered,
		PriceOnVisa: decimal.NewNullDecimal(*price("700")),
	}
	store := newMockStore(offered)
	svc := newService(store, nil)
	ctx := context.Background()

	b, err := svc.Reject(ctx, offered.ID, student)
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if b.State != models.BudgetRejected {
		t.Errorf("state: got %s, want rejected", b.State)
	}
	if b.SelectedModality != nil {
		t.Error("rejected budget must not have a selected modality")
	}

	// Rejected is terminal: no transition back.
	if _, err := svc.Reject(ctx, offered.ID, student); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double reject: got %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.Accept(ctx, offered.ID, student, models.ModalityOnVisa); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("accept after reject: got %v, want ErrInvalidTransition", err)
	}
}

func TestMarkModalityPaid_DelegatesToLedger(t *testing.T) {
	student := uuid.New()
	modality := models.ModalityUpfront
	accepted := &models.Budget{
		ID:               uuid.New(),
		StudentID:        student,
		State:            models.BudgetAccepted,
		SelectedModality: &modality,
		PriceUpfront:     decimal.NewNullDecimal(*price("1000")),
		PaidUpfront:      true,
	}
	store := newMockStore(accepted)
	lgr := &stubLedger{}
	svc := newService(store, lgr)

	b, err := svc.MarkModalityPaid(context.Background(), accepted.ID, modality)
	if err != nil {
		t.Fatalf("MarkModalityPaid: %v", err)
	}
	if len(lgr.calls) != 1 {
		t.Fatalf("ledger calls: got %d, want 1", len(lgr.calls))
	}
	if !b.Paid() {
		t.Error("derived paid flag should be true once the selected modality is paid")
	}
}

func TestMarkModalityPaid_LedgerErrorPropagates(t *testing.T) {
	store := newMockStore()
	lgr := &stubLedger{err: ledger.ErrBudgetNotAccepted}
	svc := newService(store, lgr)

	if _, err := svc.MarkModalityPaid(context.Background(), uuid.New(), models.ModalityUpfront); !errors.Is(err, ledger.ErrBudgetNotAccepted) {
		t.Errorf("got %v, want ErrBudgetNotAccepted", err)
	}
}

func TestDerivedPaidFlag(t *testing.T) {
	modality := models.ModalityOnVisa
	b := &models.Budget{
		State:            models.BudgetAccepted,
		SelectedModality: &modality,
		PriceOnVisa:      decimal.NewNullDecimal(*price("500")),
		PriceUpfront:     decimal.NewNullDecimal(*price("450")),
	}
	if b.Paid() {
		t.Error("unpaid selected modality: derived paid must be false")
	}
	// Paying an unselected modality does not make the budget paid.
	b.PaidUpfront = true
	if b.Paid() {
		t.Error("paid flag on unselected modality must stay inert")
	}
	b.PaidOnVisa = true
	if !b.Paid() {
		t.Error("paid selected modality: derived paid must be true")
	}
}
