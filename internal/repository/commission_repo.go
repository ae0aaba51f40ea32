package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/visaforge/backend/internal/models"
)

const commissionColumns = `id, beneficiary_type, beneficiary_id, budget_id, modality, entry_type, amount, balance_after, created_at`

type CommissionRepo struct {
	pool *pgxpool.Pool
}

func NewCommissionRepo(pool *pgxpool.Pool) *CommissionRepo {
	return &CommissionRepo{pool: pool}
}

// CreateTx inserts a ledger entry inside the given transaction.
func (r *CommissionRepo) CreateTx(ctx context.Context, tx pgx.Tx, e *models.CommissionEntry) error {
	return tx.QueryRow(ctx, `
		INSERT INTO commission_ledger (id, beneficiary_type, beneficiary_id, budget_id, modality, entry_type, amount, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, e.ID, e.BeneficiaryType, e.BeneficiaryID, e.BudgetID, e.Modality, e.EntryType, e.Amount, e.BalanceAfter).Scan(&e.CreatedAt)
}

func (r *CommissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.CommissionEntry, error) {
	return scanCommission(r.pool.QueryRow(ctx, `SELECT `+commissionColumns+` FROM commission_ledger WHERE id = $1`, id))
}

func (r *CommissionRepo) ListByBeneficiary(ctx context.Context, beneficiaryType string, beneficiaryID uuid.UUID) ([]*models.CommissionEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+commissionColumns+` FROM commission_ledger
		WHERE beneficiary_type = $1 AND beneficiary_id = $2 ORDER BY created_at DESC
	`, beneficiaryType, beneficiaryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.CommissionEntry
	for rows.Next() {
		e, err := scanCommission(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

func scanCommission(row pgx.Row) (*models.CommissionEntry, error) {
	var e models.CommissionEntry
	err := row.Scan(&e.ID, &e.BeneficiaryType, &e.BeneficiaryID, &e.BudgetID, &e.Modality, &e.EntryType, &e.Amount, &e.BalanceAfter, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
