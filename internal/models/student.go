package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Beneficiary types used by credit requests and the commission ledger.
const (
	BeneficiaryStudent = "student"
	BeneficiaryAgent   = "agent"
)

// Commission rates applied to the paid modality price of a referred
// student's budget.
var (
	StudentCommissionRate = decimal.NewFromFloat(0.05)
	AgentCommissionRate   = decimal.NewFromFloat(0.10)
)

type Student struct {
	ID                  uuid.UUID       `json:"id"`
	Email               string          `json:"email"`
	FullName            string          `json:"full_name"`
	PasswordHash        string          `json:"-"`
	ReferralCode        string          `json:"referral_code"`
	ReferredByStudentID *uuid.UUID      `json:"referred_by_student_id,omitempty"`
	ReferredByAgentID   *uuid.UUID      `json:"referred_by_agent_id,omitempty"`
	AvailableCredit     decimal.Decimal `json:"available_credit"`
	WithdrawnCredit     decimal.Decimal `json:"withdrawn_credit"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// CommissionRate returns the rate earned when this student is the referrer.
func (s *Student) CommissionRate() decimal.Decimal {
	return StudentCommissionRate
}

// HasReferrer reports whether this student was referred by anyone.
func (s *Student) HasReferrer() bool {
	return s.ReferredByStudentID != nil || s.ReferredByAgentID != nil
}
