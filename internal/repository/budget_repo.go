package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/visaforge/backend/internal/models"
)

const budgetColumns = `id, student_id, services, state, admin_message, price_upfront, price_on_visa, price_financed, selected_modality, accepted_at, paid_upfront, paid_upfront_at, paid_on_visa, paid_on_visa_at, paid_financed, paid_financed_at, created_at, updated_at`

// paidColumn maps a modality to its paid flag and timestamp columns. Only
// these fixed identifiers are ever interpolated into SQL.
var paidColumn = map[string][2]string{
	models.ModalityUpfront:  {"paid_upfront", "paid_upfront_at"},
	models.ModalityOnVisa:   {"paid_on_visa", "paid_on_visa_at"},
	models.ModalityFinanced: {"paid_financed", "paid_financed_at"},
}

type BudgetRepo struct {
	pool *pgxpool.Pool
}

func NewBudgetRepo(pool *pgxpool.Pool) *BudgetRepo {
	return &BudgetRepo{pool: pool}
}

// Begin starts a transaction on the underlying pool.
func (r *BudgetRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func scanBudget(row pgx.Row) (*models.Budget, error) {
	var b models.Budget
	err := row.Scan(&b.ID, &b.StudentID, &b.Services, &b.State, &b.AdminMessage,
		&b.PriceUpfront, &b.PriceOnVisa, &b.PriceFinanced, &b.SelectedModality, &b.AcceptedAt,
		&b.PaidUpfront, &b.PaidUpfrontAt, &b.PaidOnVisa, &b.PaidOnVisaAt, &b.PaidFinanced, &b.PaidFinancedAt,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BudgetRepo) Create(ctx context.Context, b *models.Budget) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO budgets (id, student_id, services, state)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, b.ID, b.StudentID, b.Services, b.State).Scan(&b.CreatedAt, &b.UpdatedAt)
}

func (r *BudgetRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Budget, error) {
	return scanBudget(r.pool.QueryRow(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = $1`, id))
}

// GetByIDForUpdate locks the budget row for update. Call within a transaction.
func (r *BudgetRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Budget, error) {
	return scanBudget(tx.QueryRow(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = $1 FOR UPDATE`, id))
}

func (r *BudgetRepo) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*models.Budget, error) {
	return r.list(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE student_id = $1 ORDER BY created_at DESC`, studentID)
}

func (r *BudgetRepo) ListByState(ctx context.Context, state string) ([]*models.Budget, error) {
	return r.list(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE state = $1 ORDER BY created_at ASC`, state)
}

func (r *BudgetRepo) list(ctx context.Context, query string, args ...any) ([]*models.Budget, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}

// Offer moves a pending budget to offered with the given modality prices and
// admin message. Returns false if the budget was not in pending state.
func (r *BudgetRepo) Offer(ctx context.Context, id uuid.UUID, upfront, onVisa, financed decimal.NullDecimal, message string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE budgets
		SET state = $2, price_upfront = $3, price_on_visa = $4, price_financed = $5, admin_message = $6, updated_at = now()
		WHERE id = $1 AND state = $7
	`, id, models.BudgetOffered, upfront, onVisa, financed, message, models.BudgetPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Accept moves an offered budget to accepted with the chosen modality.
// Returns false if the budget was not offered or does not belong to the
// student. The price check for the chosen modality happens in the service.
func (r *BudgetRepo) Accept(ctx context.Context, id, studentID uuid.UUID, modality string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE budgets
		SET state = $3, selected_modality = $4, accepted_at = now(), updated_at = now()
		WHERE id = $1 AND student_id = $2 AND state = $5
	`, id, studentID, models.BudgetAccepted, modality, models.BudgetOffered)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Reject moves an offered budget to rejected. Terminal: a new request means
// a brand-new budget row.
func (r *BudgetRepo) Reject(ctx context.Context, id, studentID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE budgets
		SET state = $3, updated_at = now()
		WHERE id = $1 AND student_id = $2 AND state = $4
	`, id, studentID, models.BudgetRejected, models.BudgetOffered)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkModalityPaid flips the modality's paid flag inside the caller's
// transaction. The WHERE NOT <paid> guard makes the false→true transition
// happen at most once; a second call affects zero rows and returns false,
// which is how commission crediting stays idempotent.
func (r *BudgetRepo) MarkModalityPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID, modality string) (bool, error) {
	cols, ok := paidColumn[modality]
	if !ok {
		return false, fmt.Errorf("unknown modality %q", modality)
	}
	tag, err := tx.Exec(ctx, fmt.Sprintf(`
		UPDATE budgets SET %s = true, %s = now(), updated_at = now()
		WHERE id = $1 AND NOT %s
	`, cols[0], cols[1], cols[0]), id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes a budget. Admin cleanup only; the workflow never deletes.
func (r *BudgetRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM budgets WHERE id = $1`, id)
	return err
}
