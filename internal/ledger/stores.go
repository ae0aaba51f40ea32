package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/visaforge/backend/internal/models"
	"github.com/visaforge/backend/internal/repository"
)

// Adapters narrowing the concrete repositories to the stores the ledger
// needs. Balance reads lock the row (FOR UPDATE) so the check and the
// mutation sit under the same lock.

type studentStore struct {
	repo *repository.StudentRepo
}

// NewStudentStore adapts a StudentRepo to the ledger's StudentStore.
func NewStudentStore(repo *repository.StudentRepo) StudentStore {
	return studentStore{repo: repo}
}

func (s studentStore) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (decimal.Decimal, error) {
	st, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return st.AvailableCredit, nil
}

func (s studentStore) AddCredit(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.repo.AddCredit(ctx, tx, id, amount)
}

func (s studentStore) WithdrawCredit(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	return s.repo.WithdrawCredit(ctx, tx, id, amount)
}

// GetReferrer locks the referred student's row so the referrer link cannot
// change while the commission is being credited.
func (s studentStore) GetReferrer(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Referrer, error) {
	st, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case st.ReferredByStudentID != nil:
		return &Referrer{Type: models.BeneficiaryStudent, ID: *st.ReferredByStudentID}, nil
	case st.ReferredByAgentID != nil:
		return &Referrer{Type: models.BeneficiaryAgent, ID: *st.ReferredByAgentID}, nil
	}
	return nil, nil
}

type agentStore struct {
	repo *repository.AgentRepo
}

// NewAgentStore adapts an AgentRepo to the ledger's BeneficiaryStore.
func NewAgentStore(repo *repository.AgentRepo) BeneficiaryStore {
	return agentStore{repo: repo}
}

func (s agentStore) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (decimal.Decimal, error) {
	a, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return a.AvailableCredit, nil
}

func (s agentStore) AddCredit(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.repo.AddCredit(ctx, tx, id, amount)
}

func (s agentStore) WithdrawCredit(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	return s.repo.WithdrawCredit(ctx, tx, id, amount)
}
