package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/visaforge/backend/internal/models"
)

const agentColumns = `id, email, name, agency, password_hash, referral_code, available_credit, withdrawn_credit, created_at, updated_at`

type AgentRepo struct {
	pool *pgxpool.Pool
}

func NewAgentRepo(pool *pgxpool.Pool) *AgentRepo {
	return &AgentRepo{pool: pool}
}

func scanAgent(row pgx.Row) (*models.Agent, error) {
	var a models.Agent
	err := row.Scan(&a.ID, &a.Email, &a.Name, &a.Agency, &a.PasswordHash, &a.ReferralCode, &a.AvailableCredit, &a.WithdrawnCredit, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AgentRepo) Create(ctx context.Context, a *models.Agent) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO agents (id, email, name, agency, password_hash, referral_code, available_credit, withdrawn_credit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, a.ID, a.Email, a.Name, a.Agency, a.PasswordHash, a.ReferralCode, a.AvailableCredit, a.WithdrawnCredit).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *AgentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	return scanAgent(r.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, id))
}

func (r *AgentRepo) GetByEmail(ctx context.Context, email string) (*models.Agent, error) {
	return scanAgent(r.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE email = $1`, email))
}

func (r *AgentRepo) GetByReferralCode(ctx context.Context, code string) (*models.Agent, error) {
	return scanAgent(r.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE referral_code = $1`, code))
}

// ReferralCodeExists reports whether any agent already holds the code.
func (r *AgentRepo) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM agents WHERE referral_code = $1)`, code).Scan(&exists)
	return exists, err
}

func (r *AgentRepo) List(ctx context.Context) ([]*models.Agent, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// GetByIDForUpdate locks the agent row for update. Call within a transaction.
func (r *AgentRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Agent, error) {
	return scanAgent(tx.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1 FOR UPDATE`, id))
}

// AddCredit adds amount to available_credit and returns the new balance.
func (r *AgentRepo) AddCredit(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	var newBalance decimal.Decimal
	err := tx.QueryRow(ctx, `
		UPDATE agents SET available_credit = available_credit + $1, updated_at = now()
		WHERE id = $2
		RETURNING available_credit
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

// WithdrawCredit atomically moves amount from available_credit to
// withdrawn_credit if the available balance covers it. pgx.ErrNoRows means
// the balance was insufficient.
func (r *AgentRepo) WithdrawCredit(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (available, withdrawn decimal.Decimal, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE agents SET available_credit = available_credit - $1, withdrawn_credit = withdrawn_credit + $1, updated_at = now()
		WHERE id = $2 AND available_credit >= $1
		RETURNING available_credit, withdrawn_credit
	`, amount, id).Scan(&available, &withdrawn)
	return available, withdrawn, err
}
