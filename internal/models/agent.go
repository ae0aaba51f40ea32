package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Agent is a referral partner. Agents earn 10% commission on paid budgets
// of students they referred (students referring students earn 5%).
type Agent struct {
	ID              uuid.UUID       `json:"id"`
	Email           string          `json:"email"`
	Name            string          `json:"name"`
	Agency          string          `json:"agency,omitempty"`
	PasswordHash    string          `json:"-"`
	ReferralCode    string          `json:"referral_code"`
	AvailableCredit decimal.Decimal `json:"available_credit"`
	WithdrawnCredit decimal.Decimal `json:"withdrawn_credit"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CommissionRate returns the rate earned when this agent is the referrer.
func (a *Agent) CommissionRate() decimal.Decimal {
	return AgentCommissionRate
}
