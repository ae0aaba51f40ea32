package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Credit request state enums. Approved and rejected are terminal.
const (
	CreditRequestPending  = "pending"
	CreditRequestApproved = "approved"
	CreditRequestRejected = "rejected"
)

// Credit request kinds.
const (
	CreditKindWithdrawal  = "withdrawal"
	CreditKindDiscountUse = "discount_use"
)

type CreditRequest struct {
	ID              uuid.UUID       `json:"id"`
	BeneficiaryType string          `json:"beneficiary_type"`
	BeneficiaryID   uuid.UUID       `json:"beneficiary_id"`
	Kind            string          `json:"kind"`
	Amount          decimal.Decimal `json:"amount"`
	State           string          `json:"state"`
	Reason          *string         `json:"reason,omitempty"`
	DecidedAt       *time.Time      `json:"decided_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
