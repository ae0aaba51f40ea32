package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/visaforge/backend/internal/models"
)

const creditRequestColumns = `id, beneficiary_type, beneficiary_id, kind, amount, state, reason, decided_at, created_at`

type CreditRequestRepo struct {
	pool *pgxpool.Pool
}

func NewCreditRequestRepo(pool *pgxpool.Pool) *CreditRequestRepo {
	return &CreditRequestRepo{pool: pool}
}

func scanCreditRequest(row pgx.Row) (*models.CreditRequest, error) {
	var cr models.CreditRequest
	err := row.Scan(&cr.ID, &cr.BeneficiaryType, &cr.BeneficiaryID, &cr.Kind, &cr.Amount, &cr.State, &cr.Reason, &cr.DecidedAt, &cr.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &cr, nil
}

func (r *CreditRequestRepo) Create(ctx context.Context, cr *models.CreditRequest) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO credit_requests (id, beneficiary_type, beneficiary_id, kind, amount, state)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, cr.ID, cr.BeneficiaryType, cr.BeneficiaryID, cr.Kind, cr.Amount, cr.State).Scan(&cr.CreatedAt)
}

func (r *CreditRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.CreditRequest, error) {
	return scanCreditRequest(r.pool.QueryRow(ctx, `SELECT `+creditRequestColumns+` FROM credit_requests WHERE id = $1`, id))
}

// GetByIDForUpdate locks the request row for update. Call within a transaction.
func (r *CreditRequestRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.CreditRequest, error) {
	return scanCreditRequest(tx.QueryRow(ctx, `SELECT `+creditRequestColumns+` FROM credit_requests WHERE id = $1 FOR UPDATE`, id))
}

func (r *CreditRequestRepo) ListPending(ctx context.Context) ([]*models.CreditRequest, error) {
	return r.list(ctx, `SELECT `+creditRequestColumns+` FROM credit_requests WHERE state = $1 ORDER BY created_at ASC`, models.CreditRequestPending)
}

func (r *CreditRequestRepo) ListByBeneficiary(ctx context.Context, beneficiaryType string, beneficiaryID uuid.UUID) ([]*models.CreditRequest, error) {
	return r.list(ctx, `SELECT `+creditRequestColumns+` FROM credit_requests WHERE beneficiary_type = $1 AND beneficiary_id = $2 ORDER BY created_at DESC`, beneficiaryType, beneficiaryID)
}

func (r *CreditRequestRepo) list(ctx context.Context, query string, args ...any) ([]*models.CreditRequest, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.CreditRequest
	for rows.Next() {
		cr, err := scanCreditRequest(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, cr)
	}
	return list, rows.Err()
}

// Decide moves a pending request to its terminal state inside the caller's
// transaction. Returns false if the request was already decided.
func (r *CreditRequestRepo) Decide(ctx context.Context, tx pgx.Tx, id uuid.UUID, state, reason string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE credit_requests SET state = $2, reason = $3, decided_at = now()
		WHERE id = $1 AND state = $4
	`, id, state, reason, models.CreditRequestPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
