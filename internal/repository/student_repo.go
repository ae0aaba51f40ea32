package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/visaforge/backend/internal/models"
)

const studentColumns = `id, email, full_name, password_hash, referral_code, referred_by_student_id, referred_by_agent_id, available_credit, withdrawn_credit, created_at, updated_at`

type StudentRepo struct {
	pool *pgxpool.Pool
}

func NewStudentRepo(pool *pgxpool.Pool) *StudentRepo {
	return &StudentRepo{pool: pool}
}

func scanStudent(row pgx.Row) (*models.Student, error) {
	var s models.Student
	err := row.Scan(&s.ID, &s.Email, &s.FullName, &s.PasswordHash, &s.ReferralCode, &s.ReferredByStudentID, &s.ReferredByAgentID, &s.AvailableCredit, &s.WithdrawnCredit, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StudentRepo) Create(ctx context.Context, s *models.Student) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO students (id, email, full_name, password_hash, referral_code, referred_by_student_id, referred_by_agent_id, available_credit, withdrawn_credit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, s.ID, s.Email, s.FullName, s.PasswordHash, s.ReferralCode, s.ReferredByStudentID, s.ReferredByAgentID, s.AvailableCredit, s.WithdrawnCredit).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *StudentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	return scanStudent(r.pool.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id))
}

func (r *StudentRepo) GetByEmail(ctx context.Context, email string) (*models.Student, error) {
	return scanStudent(r.pool.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE email = $1`, email))
}

func (r *StudentRepo) GetByReferralCode(ctx context.Context, code string) (*models.Student, error) {
	return scanStudent(r.pool.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE referral_code = $1`, code))
}

// ReferralCodeExists reports whether any student already holds the code.
func (r *StudentRepo) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM students WHERE referral_code = $1)`, code).Scan(&exists)
	return exists, err
}

func (r *StudentRepo) List(ctx context.Context) ([]*models.Student, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+studentColumns+` FROM students ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// GetByIDForUpdate locks the student row for update. Call within a transaction.
func (r *StudentRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Student, error) {
	return scanStudent(tx.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1 FOR UPDATE`, id))
}

// AddCredit adds amount to available_credit and returns the new balance.
func (r *StudentRepo) AddCredit(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	var newBalance decimal.Decimal
	err := tx.QueryRow(ctx, `
		UPDATE students SET available_credit = available_credit + $1, updated_at = now()
		WHERE id = $2
		RETURNING available_credit
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

// WithdrawCredit atomically moves amount from available_credit to
// withdrawn_credit if the available balance covers it. Returns the new
// balances; pgx.ErrNoRows means the balance was insufficient.
func (r *StudentRepo) WithdrawCredit(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (available, withdrawn decimal.Decimal, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE students SET available_credit = available_credit - $1, withdrawn_credit = withdrawn_credit + $1, updated_at = now()
		WHERE id = $2 AND available_credit >= $1
		RETURNING available_credit, withdrawn_credit
	`, amount, id).Scan(&available, &withdrawn)
	return available, withdrawn, err
}
