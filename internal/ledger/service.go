// Package ledger holds the commission and credit accounting rules: crediting
// referrers when a referred student's budget is paid, and moving value from
// available_credit to withdrawn_credit when a credit request is approved.
// All balance mutations happen inside a single transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/visaforge/backend/internal/models"
)

// ReasonInsufficientCredit is recorded on requests rejected at approval
// time because the balance no longer covers the amount.
const ReasonInsufficientCredit = "insufficient credit"

var (
	// ErrInsufficientCredit is returned when an approval finds the
	// beneficiary's available_credit below the requested amount. The
	// request is rejected, not left pending.
	ErrInsufficientCredit = errors.New("insufficient credit")

	// ErrAlreadyDecided is returned when approving or rejecting a request
	// that already reached a terminal state.
	ErrAlreadyDecided = errors.New("credit request already decided")

	// ErrBudgetNotAccepted is returned when marking a modality paid on a
	// budget that is not in accepted state.
	ErrBudgetNotAccepted = errors.New("budget is not accepted")

	// ErrModalityNotSelected is returned when marking paid a modality other
	// than the one the student selected.
	ErrModalityNotSelected = errors.New("modality is not the selected one")
)

// TxBeginner starts transactions. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// BudgetStore is the minimal budget access the ledger needs.
type BudgetStore interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Budget, error)
	MarkModalityPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID, modality string) (bool, error)
}

// BeneficiaryStore is the balance access shared by students and agents.
type BeneficiaryStore interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (available decimal.Decimal, err error)
	AddCredit(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	WithdrawCredit(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (available, withdrawn decimal.Decimal, err error)
}

// StudentStore extends BeneficiaryStore with the referrer lookup.
type StudentStore interface {
	BeneficiaryStore
	GetReferrer(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Referrer, error)
}

// RequestStore is the minimal credit-request access the ledger needs.
type RequestStore interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.CreditRequest, error)
	Decide(ctx context.Context, tx pgx.Tx, id uuid.UUID, state, reason string) (bool, error)
}

// EntryStore appends commission ledger rows.
type EntryStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, e *models.CommissionEntry) error
}

// Referrer identifies who referred a student, if anyone.
type Referrer struct {
	Type string // models.BeneficiaryStudent or models.BeneficiaryAgent
	ID   uuid.UUID
}

// Commission is the result of a successful commission credit.
type Commission struct {
	Beneficiary  Referrer
	BudgetID     uuid.UUID
	Modality     string
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
}

type Service interface {
	// RecordModalityPaid marks the budget's modality paid and credits the
	// referrer's commission in one transaction. Returns (nil, nil) when the
	// modality was already paid (idempotent no-op) or when the student has
	// no referrer.
	RecordModalityPaid(ctx context.Context, budgetID uuid.UUID, modality string) (*Commission, error)

	// ApproveCreditRequest re-checks the balance at approval time and either
	// applies the withdrawal atomically or rejects the request with
	// ReasonInsufficientCredit (returning ErrInsufficientCredit).
	ApproveCreditRequest(ctx context.Context, requestID uuid.UUID) (*models.CreditRequest, error)

	// RejectCreditRequest records a rejection with the given reason. No
	// balance is touched.
	RejectCreditRequest(ctx context.Context, requestID uuid.UUID, reason string) (*models.CreditRequest, error)
}

type service struct {
	db       TxBeginner
	budgets  BudgetStore
	students StudentStore
	agents   BeneficiaryStore
	requests RequestStore
	entries  EntryStore
}

func NewService(db TxBeginner, budgets BudgetStore, students StudentStore, agents BeneficiaryStore, requests RequestStore, entries EntryStore) Service {
	return &service{db: db, budgets: budgets, students: students, agents: agents, requests: requests, entries: entries}
}

var _ Service = (*service)(nil)

func (s *service) RecordModalityPaid(ctx context.Context, budgetID uuid.UUID, modality string) (*Commission, error) {
	if !models.ValidModality(modality) {
		return nil, fmt.Errorf("unknown modality %q", modality)
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	b, err := s.budgets.GetByIDForUpdate(ctx, tx, budgetID)
	if err != nil {
		return nil, err
	}
	if b.State != models.BudgetAccepted {
		return nil, ErrBudgetNotAccepted
	}
	if b.SelectedModality == nil || *b.SelectedModality != modality {
		return nil, ErrModalityNotSelected
	}
	price, ok := b.Price(modality)
	if !ok {
		// Accept guards against this; a priceless selected modality means
		// corrupted data.
		return nil, fmt.Errorf("selected modality %s has no price on budget %s", modality, budgetID)
	}

	flipped, err := s.budgets.MarkModalityPaid(ctx, tx, budgetID, modality)
	if err != nil {
		return nil, err
	}
	if !flipped {
		// Already paid: commit nothing new, credit nothing. Marking twice
		// must leave balances exactly as marking once.
		return nil, tx.Commit(ctx)
	}

	ref, err := s.students.GetReferrer(ctx, tx, b.StudentID)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, tx.Commit(ctx)
	}

	var rate decimal.Decimal
	var store BeneficiaryStore
	switch ref.Type {
	case models.BeneficiaryStudent:
		rate = models.StudentCommissionRate
		store = s.students
	case models.BeneficiaryAgent:
		rate = models.AgentCommissionRate
		store = s.agents
	default:
		return nil, fmt.Errorf("unknown referrer type %q", ref.Type)
	}

	amount := price.Mul(rate).Round(2)
	balance, err := store.AddCredit(ctx, tx, ref.ID, amount)
	if err != nil {
		return nil, err
	}
	entry := &models.CommissionEntry{
		ID:              uuid.New(),
		BeneficiaryType: ref.Type,
		BeneficiaryID:   ref.ID,
		BudgetID:        &budgetID,
		Modality:        &modality,
		EntryType:       models.EntryReferralCommission,
		Amount:          amount,
		BalanceAfter:    balance,
	}
	if err := s.entries.CreateTx(ctx, tx, entry); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &Commission{
		Beneficiary:  *ref,
		BudgetID:     budgetID,
		Modality:     modality,
		Amount:       amount,
		BalanceAfter: balance,
	}, nil
}

func (s *service) ApproveCreditRequest(ctx context.Context, requestID uuid.UUID) (*models.CreditRequest, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	req, err := s.requests.GetByIDForUpdate(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if req.State != models.CreditRequestPending {
		return nil, ErrAlreadyDecided
	}
	store, err := s.storeFor(req.BeneficiaryType)
	if err != nil {
		return nil, err
	}

	// Lock the beneficiary and re-check the balance now, not at submission
	// time. Balances move between request and approval.
	available, err := store.GetByIDForUpdate(ctx, tx, req.BeneficiaryID)
	if err != nil {
		return nil, err
	}
	if available.LessThan(req.Amount) {
		if _, err := s.requests.Decide(ctx, tx, requestID, models.CreditRequestRejected, ReasonInsufficientCredit); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return nil, ErrInsufficientCredit
	}

	newAvailable, _, err := store.WithdrawCredit(ctx, tx, req.BeneficiaryID, req.Amount)
	if err != nil {
		return nil, err
	}
	entryType := models.EntryWithdrawal
	if req.Kind == models.CreditKindDiscountUse {
		entryType = models.EntryDiscountUse
	}
	if err := s.entries.CreateTx(ctx, tx, &models.CommissionEntry{
		ID:              uuid.New(),
		BeneficiaryType: req.BeneficiaryType,
		BeneficiaryID:   req.BeneficiaryID,
		EntryType:       entryType,
		Amount:          req.Amount,
		BalanceAfter:    newAvailable,
	}); err != nil {
		return nil, err
	}
	if _, err := s.requests.Decide(ctx, tx, requestID, models.CreditRequestApproved, ""); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	req.State = models.CreditRequestApproved
	return req, nil
}

func (s *service) RejectCreditRequest(ctx context.Context, requestID uuid.UUID, reason string) (*models.CreditRequest, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	req, err := s.requests.GetByIDForUpdate(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if req.State != models.CreditRequestPending {
		return nil, ErrAlreadyDecided
	}
	if _, err := s.requests.Decide(ctx, tx, requestID, models.CreditRequestRejected, reason); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	req.State = models.CreditRequestRejected
	req.Reason = &reason
	return req, nil
}

func (s *service) storeFor(beneficiaryType string) (BeneficiaryStore, error) {
	switch beneficiaryType {
	case models.BeneficiaryStudent:
		return s.students, nil
	case models.BeneficiaryAgent:
		return s.agents, nil
	}
	return nil, fmt.Errorf("unknown beneficiary type %q", beneficiaryType)
}
