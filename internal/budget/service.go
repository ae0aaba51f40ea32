// Package budget drives a budget's lifecycle: a student requests one, the
// admin offers modality prices, the student accepts or rejects, and the
// admin confirms payments. Payment confirmation delegates to the ledger so
// the paid flag and the referral commission move in one transaction.
package budget

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
	// ErrInvalidTransition is returned when a budget is not in the state
	// the operation requires (or does not belong to the caller).
	ErrInvalidTransition = errors.New("invalid budget state transition")

	// ErrNoOffer is returned when an offer carries no modality price at all.
	ErrNoOffer = errors.New("offer requires at least one modality price")

	// ErrModalityUnpriced is returned when accepting a modality whose price
	// was not offered.
	ErrModalityUnpriced = errors.New("selected modality has no price")

	// ErrUnknownModality is returned for modality values outside the three
	// payment options.
	ErrUnknownModality = errors.New("unknown payment modality")

	// ErrNoServices is returned when a budget request lists no services.
	ErrNoServices = errors.New("budget requires at least one service")

	// ErrNonPositivePrice rejects zero or negative modality prices.
	ErrNonPositivePrice = errors.New("modality price must be positive")
)

// Offer is the admin's pricing of a budget. Nil prices mean the modality is
// not offered.
type Offer struct {
	PriceUpfront  *decimal.Decimal
	PriceOnVisa   *decimal.Decimal
	PriceFinanced *decimal.Decimal
	AdminMessage  string
}

// Store is the budget storage the service needs.
type Store interface {
	Create(ctx context.Context, b *models.Budget) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Budget, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*models.Budget, error)
	ListByState(ctx context.Context, state string) ([]*models.Budget, error)
	Offer(ctx context.Context, id uuid.UUID, upfront, onVisa, financed decimal.NullDecimal, message string) (bool, error)
	Accept(ctx context.Context, id, studentID uuid.UUID, modality string) (bool, error)
	Reject(ctx context.Context, id, studentID uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// StudentDirectory resolves students for notifications.
type StudentDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Student, error)
}

// AgentDirectory resolves agents for commission notifications.
type AgentDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Agent, error)
}

type Service interface {
	Create(ctx context.Context, studentID uuid.UUID, services []string) (*models.Budget, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Budget, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*models.Budget, error)
	ListPending(ctx context.Context) ([]*models.Budget, error)
	MakeOffer(ctx context.Context, id uuid.UUID, offer Offer) (*models.Budget, error)
	Accept(ctx context.Context, id, studentID uuid.UUID, modality string) (*models.Budget, error)
	Reject(ctx context.Context, id, studentID uuid.UUID) (*models.Budget, error)
	MarkModalityPaid(ctx context.Context, id uuid.UUID, modality string) (*models.Budget, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	store    Store
	students StudentDirectory
	agents   AgentDirectory
	ledger   ledger.Service
	notifier notification.Notifier
}

func NewService(store Store, students StudentDirectory, agents AgentDirectory, ledgerSvc ledger.Service, notifier notification.Notifier) Service {
	if notifier == nil {
		notifier = notification.Noop{}
	}
	return &service{store: store, students: students, agents: agents, ledger: ledgerSvc, notifier: notifier}
}

var _ Service = (*service)(nil)

func (s *service) Create(ctx context.Context, studentID uuid.UUID, services []string) (*models.Budget, error) {
	if len(services) == 0 {
		return nil, ErrNoServices
	}
	b := &models.Budget{
		ID:        uuid.New(),
		StudentID: studentID,
		Services:  services,
		State:     models.BudgetPending,
	}
	if err := s.store.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Budget, error) {
	return s.store.GetByID(ctx, id)
}

func (s *service) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*models.Budget, error) {
	return s.store.ListByStudent(ctx, studentID)
}

func (s *service) ListPending(ctx context.Context) ([]*models.Budget, error) {
	return s.store.ListByState(ctx, models.BudgetPending)
}

func (s *service) MakeOffer(ctx context.Context, id uuid.UUID, offer Offer) (*models.Budget, error) {
	upfront, err := toNullPrice(offer.PriceUpfront)
	if err != nil {
		return nil, err
	}
	onVisa, err := toNullPrice(offer.PriceOnVisa)
	if err != nil {
		return nil, err
	}
	financed, err := toNullPrice(offer.PriceFinanced)
	if err != nil {
		return nil, err
	}
	if !upfront.Valid && !onVisa.Valid && !financed.Valid {
		return nil, ErrNoOffer
	}

	ok, err := s.store.Offer(ctx, id, upfront, onVisa, financed, offer.AdminMessage)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if st, err := s.students.GetByID(ctx, b.StudentID); err == nil {
		subject, body := notification.BudgetOffered(st.FullName)
		s.notifier.Send(ctx, st.Email, subject, body)
	}
	return b, nil
}

func (s *service) Accept(ctx context.Context, id, studentID uuid.UUID, modality string) (*models.Budget, error) {
	if !models.ValidModality(modality) {
		return nil, ErrUnknownModality
	}
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, priced := b.Price(modality); !priced {
		return nil, ErrModalityUnpriced
	}
	ok, err := s.store.Accept(ctx, id, studentID, modality)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	b, err = s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if st, err := s.students.GetByID(ctx, studentID); err == nil {
		subject, body := notification.BudgetAccepted(st.FullName, modality)
		s.notifier.Send(ctx, st.Email, subject, body)
	}
	return b, nil
}

func (s *service) Reject(ctx context.Context, id, studentID uuid.UUID) (*models.Budget, error) {
	ok, err := s.store.Reject(ctx, id, studentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	return s.store.GetByID(ctx, id)
}

// MarkModalityPaid confirms a payment. The ledger flips the paid flag and
// credits the referrer commission in one transaction; this method then
// fans out the notifications.
func (s *service) MarkModalityPaid(ctx context.Context, id uuid.UUID, modality string) (*models.Budget, error) {
	com, err := s.ledger.RecordModalityPaid(ctx, id, modality)
	if err != nil {
		return nil, err
	}
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if st, err := s.students.GetByID(ctx, b.StudentID); err == nil {
		if price, ok := b.Price(modality); ok {
			subject, body := notification.PaymentConfirmed(st.FullName, modality, price)
			s.notifier.Send(ctx, st.Email, subject, body)
		}
	}
	if com != nil {
		s.notifyCommission(ctx, com)
	}
	return b, nil
}

func (s *service) notifyCommission(ctx context.Context, com *ledger.Commission) {
	var name, email string
	switch com.Beneficiary.Type {
	case models.BeneficiaryStudent:
		st, err := s.students.GetByID(ctx, com.Beneficiary.ID)
		if err != nil {
			return
		}
		name, email = st.FullName, st.Email
	case models.BeneficiaryAgent:
		a, err := s.agents.GetByID(ctx, com.Beneficiary.ID)
		if err != nil {
			return
		}
		name, email = a.Name, a.Email
	default:
		return
	}
	subject, body := notification.CommissionEarned(name, com.Amount, com.BalanceAfter)
	s.notifier.Send(ctx, email, subject, body)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.Delete(ctx, id)
}

func toNullPrice(p *decimal.Decimal) (decimal.NullDecimal, error) {
	if p == nil {
		return decimal.NullDecimal{}, nil
	}
	if p.IsNegative() || p.IsZero() {
		return decimal.NullDecimal{}, ErrNonPositivePrice
	}
	return decimal.NewNullDecimal(*p), nil
}
