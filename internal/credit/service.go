// Package credit handles withdrawal and discount-use requests against
// accumulated referral credit. Requests are created by the beneficiary and
// decided exactly once by the admin; the balance mutation itself lives in
// the ledger so check and update share one transaction.
package credit

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/visaforge/backend/internal/ledger"
	"github.com/visaforge/backend/internal/models"
	"github.com/visaforge/backend/internal/notification"
)

var (
	// ErrUnknownBeneficiary is returned when the request references a
	// student or agent that does not exist.
	ErrUnknownBeneficiary = errors.New("beneficiary not found")

	// ErrNonPositiveAmount rejects zero or negative request amounts.
	ErrNonPositiveAmount = errors.New("amount must be positive")

	// ErrUnknownKind rejects kinds outside withdrawal and discount_use.
	ErrUnknownKind = errors.New("unknown credit request kind")
)

// RequestStore is the credit-request storage the service needs.
type RequestStore interface {
	Create(ctx context.Context, cr *models.CreditRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.CreditRequest, error)
	ListPending(ctx context.Context) ([]*models.CreditRequest, error)
	ListByBeneficiary(ctx context.Context, beneficiaryType string, beneficiaryID uuid.UUID) ([]*models.CreditRequest, error)
}

// StudentDirectory resolves students for validation and notifications.
type StudentDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Student, error)
}

// AgentDirectory resolves agents for validation and notifications.
type AgentDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Agent, error)
}

type Service interface {
	Submit(ctx context.Context, beneficiaryType string, beneficiaryID uuid.UUID, kind string, amount decimal.Decimal) (*models.CreditRequest, error)
	ListPending(ctx context.Context) ([]*models.CreditRequest, error)
	ListByBeneficiary(ctx context.Context, beneficiaryType string, beneficiaryID uuid.UUID) ([]*models.CreditRequest, error)
	Approve(ctx context.Context, requestID uuid.UUID) (*models.CreditRequest, error)
	Reject(ctx context.Context, requestID uuid.UUID, reason string) (*models.CreditRequest, error)
}

type service struct {
	store    RequestStore
	students StudentDirectory
	agents   AgentDirectory
	ledger   ledger.Service
	notifier notification.Notifier
}

func NewService(store RequestStore, students StudentDirectory, agents AgentDirectory, ledgerSvc ledger.Service, notifier notification.Notifier) Service {
	if notifier == nil {
		notifier = notification.Noop{}
	}
	return &service{store: store, students: students, agents: agents, ledger: ledgerSvc, notifier: notifier}
}

var _ Service = (*service)(nil)

func (s *service) Submit(ctx context.Context, beneficiaryType string, beneficiaryID uuid.UUID, kind string, amount decimal.Decimal) (*models.CreditRequest, error) {
	if kind != models.CreditKindWithdrawal && kind != models.CreditKindDiscountUse {
		return nil, ErrUnknownKind
	}
	if !amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	name, email, err := s.contact(ctx, beneficiaryType, beneficiaryID)
	if err != nil {
		return nil, err
	}
	cr := &models.CreditRequest{
		ID:              uuid.New(),
		BeneficiaryType: beneficiaryType,
		BeneficiaryID:   beneficiaryID,
		Kind:            kind,
		Amount:          amount,
		State:           models.CreditRequestPending,
	}
	if err := s.store.Create(ctx, cr); err != nil {
		return nil, err
	}
	subject, body := notification.CreditRequestSubmitted(name, amount)
	s.notifier.Send(ctx, email, subject, body)
	return cr, nil
}

func (s *service) ListPending(ctx context.Context) ([]*models.CreditRequest, error) {
	return s.store.ListPending(ctx)
}

func (s *service) ListByBeneficiary(ctx context.Context, beneficiaryType string, beneficiaryID uuid.UUID) ([]*models.CreditRequest, error) {
	return s.store.ListByBeneficiary(ctx, beneficiaryType, beneficiaryID)
}

// Approve re-checks the balance inside the ledger transaction. When the
// balance no longer covers the amount the request lands in rejected with
// the insufficient-credit reason and ErrInsufficientCredit is returned;
// the beneficiary is notified either way.
func (s *service) Approve(ctx context.Context, requestID uuid.UUID) (*models.CreditRequest, error) {
	req, err := s.store.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	name, email, cerr := s.contact(ctx, req.BeneficiaryType, req.BeneficiaryID)

	approved, err := s.ledger.ApproveCreditRequest(ctx, requestID)
	if errors.Is(err, ledger.ErrInsufficientCredit) {
		if cerr == nil {
			subject, body := notification.CreditRequestRejected(name, ledger.ReasonInsufficientCredit)
			s.notifier.Send(ctx, email, subject, body)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if cerr == nil {
		subject, body := notification.CreditRequestApproved(name, approved.Amount)
		s.notifier.Send(ctx, email, subject, body)
	}
	return approved, nil
}

func (s *service) Reject(ctx context.Context, requestID uuid.UUID, reason string) (*models.CreditRequest, error) {
	rejected, err := s.ledger.RejectCreditRequest(ctx, requestID, reason)
	if err != nil {
		return nil, err
	}
	if name, email, cerr := s.contact(ctx, rejected.BeneficiaryType, rejected.BeneficiaryID); cerr == nil {
		subject, body := notification.CreditRequestRejected(name, reason)
		s.notifier.Send(ctx, email, subject, body)
	}
	return rejected, nil
}

func (s *service) contact(ctx context.Context, beneficiaryType string, id uuid.UUID) (name, email string, err error) {
	switch beneficiaryType {
	case models.BeneficiaryStudent:
		st, err := s.students.GetByID(ctx, id)
		if err != nil {
			return "", "", ErrUnknownBeneficiary
		}
		return st.FullName, st.Email, nil
	case models.BeneficiaryAgent:
		a, err := s.agents.GetByID(ctx, id)
		if err != nil {
			return "", "", ErrUnknownBeneficiary
		}
		return a.Name, a.Email, nil
	}
	return "", "", ErrUnknownBeneficiary
}
