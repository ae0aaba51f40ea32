package reconcile

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ExpectedRow is the commission a beneficiary should have earned, recomputed
// from accepted budgets whose selected modality is paid.
type ExpectedRow struct {
	BeneficiaryType string
	BeneficiaryID   uuid.UUID
	Expected        decimal.Decimal
}

// LedgerRow aggregates the commission ledger per beneficiary: Earned sums
// referral_commission entries, Spent sums withdrawal and discount_use entries.
type LedgerRow struct {
	BeneficiaryType string
	BeneficiaryID   uuid.UUID
	Earned          decimal.Decimal
	Spent           decimal.Decimal
}

// BalanceRow is the stored credit state of a student or agent row.
type BalanceRow struct {
	BeneficiaryType string
	BeneficiaryID   uuid.UUID
	Available       decimal.Decimal
	Withdrawn       decimal.Decimal
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// paidBudgets resolves the selected modality's price and paid flag per
// accepted budget. Commission is rounded per budget, matching how it was
// credited, so the sums stay comparable.
const expectedSQL = `
	WITH paid_budgets AS (
		SELECT b.student_id,
			CASE b.selected_modality
				WHEN 'pay_upfront' THEN b.price_upfront
				WHEN 'pay_on_visa' THEN b.price_on_visa
				WHEN 'pay_financed' THEN b.price_financed
			END AS price,
			CASE b.selected_modality
				WHEN 'pay_upfront' THEN b.paid_upfront
				WHEN 'pay_on_visa' THEN b.paid_on_visa
				WHEN 'pay_financed' THEN b.paid_financed
			END AS paid
		FROM budgets b
		WHERE b.state = 'accepted' AND b.selected_modality IS NOT NULL
	)
	SELECT 'student' AS beneficiary_type, s.referred_by_student_id AS beneficiary_id,
		SUM(ROUND(pb.price * 0.05, 2)) AS expected
	FROM paid_budgets pb
	JOIN students s ON s.id = pb.student_id
	WHERE pb.paid AND s.referred_by_student_id IS NOT NULL
	GROUP BY s.referred_by_student_id
	UNION ALL
	SELECT 'agent', s.referred_by_agent_id,
		SUM(ROUND(pb.price * 0.10, 2))
	FROM paid_budgets pb
	JOIN students s ON s.id = pb.student_id
	WHERE pb.paid AND s.referred_by_agent_id IS NOT NULL
	GROUP BY s.referred_by_agent_id
`

func (r *Repository) ExpectedCommissions(ctx context.Context) ([]ExpectedRow, error) {
	rows, err := r.pool.Query(ctx, expectedSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ExpectedRow
	for rows.Next() {
		var e ExpectedRow
		if err := rows.Scan(&e.BeneficiaryType, &e.BeneficiaryID, &e.Expected); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const ledgerSQL = `
	SELECT beneficiary_type, beneficiary_id,
		COALESCE(SUM(amount) FILTER (WHERE entry_type = 'referral_commission'), 0) AS earned,
		COALESCE(SUM(amount) FILTER (WHERE entry_type IN ('withdrawal', 'discount_use')), 0) AS spent
	FROM commission_ledger
	GROUP BY beneficiary_type, beneficiary_id
`

func (r *Repository) LedgerTotals(ctx context.Context) ([]LedgerRow, error) {
	rows, err := r.pool.Query(ctx, ledgerSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LedgerRow
	for rows.Next() {
		var l LedgerRow
		if err := rows.Scan(&l.BeneficiaryType, &l.BeneficiaryID, &l.Earned, &l.Spent); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

const balancesSQL = `
	SELECT 'student' AS beneficiary_type, id, available_credit, withdrawn_credit FROM students
	UNION ALL
	SELECT 'agent', id, available_credit, withdrawn_credit FROM agents
`

func (r *Repository) Balances(ctx context.Context) ([]BalanceRow, error) {
	rows, err := r.pool.Query(ctx, balancesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BalanceRow
	for rows.Next() {
		var b BalanceRow
		if err := rows.Scan(&b.BeneficiaryType, &b.BeneficiaryID, &b.Available, &b.Withdrawn); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
