package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Commission ledger entry_type enums. referral_commission adds to
// available_credit; withdrawal and discount_use move value from
// available_credit to withdrawn_credit.
const (
	EntryReferralCommission = "referral_commission"
	EntryWithdrawal         = "withdrawal"
	EntryDiscountUse        = "discount_use"
)

// CommissionEntry is an append-only ledger row recording every change to a
// beneficiary's credit. BalanceAfter is available_credit after the entry
// was applied.
type CommissionEntry struct {
	ID              uuid.UUID       `json:"id"`
	BeneficiaryType string          `json:"beneficiary_type"`
	BeneficiaryID   uuid.UUID       `json:"beneficiary_id"`
	BudgetID        *uuid.UUID      `json:"budget_id,omitempty"`
	Modality        *string         `json:"modality,omitempty"`
	EntryType       string          `json:"entry_type"`
	Amount          decimal.Decimal `json:"amount"`
	BalanceAfter    decimal.Decimal `json:"balance_after"`
	CreatedAt       time.Time       `json:"created_at"`
}
