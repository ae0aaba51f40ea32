package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Budget state enums.
const (
	BudgetPending  = "pending"
	BudgetOffered  = "offered"
	BudgetAccepted = "accepted"
	BudgetRejected = "rejected"
)

// Payment modality enums.
const (
	ModalityUpfront  = "pay_upfront"
	ModalityOnVisa   = "pay_on_visa"
	ModalityFinanced = "pay_financed"
)

// Modalities lists every payment modality in a stable order.
var Modalities = []string{ModalityUpfront, ModalityOnVisa, ModalityFinanced}

// ValidModality reports whether m is a known payment modality.
func ValidModality(m string) bool {
	switch m {
	case ModalityUpfront, ModalityOnVisa, ModalityFinanced:
		return true
	}
	return false
}

type Budget struct {
	ID               uuid.UUID           `json:"id"`
	StudentID        uuid.UUID           `json:"student_id"`
	Services         []string            `json:"services"`
	State            string              `json:"state"`
	AdminMessage     *string             `json:"admin_message,omitempty"`
	PriceUpfront     decimal.NullDecimal `json:"price_upfront"`
	PriceOnVisa      decimal.NullDecimal `json:"price_on_visa"`
	PriceFinanced    decimal.NullDecimal `json:"price_financed"`
	SelectedModality *string             `json:"selected_modality,omitempty"`
	AcceptedAt       *time.Time          `json:"accepted_at,omitempty"`
	PaidUpfront      bool                `json:"paid_upfront"`
	PaidUpfrontAt    *time.Time          `json:"paid_upfront_at,omitempty"`
	PaidOnVisa       bool                `json:"paid_on_visa"`
	PaidOnVisaAt     *time.Time          `json:"paid_on_visa_at,omitempty"`
	PaidFinanced     bool                `json:"paid_financed"`
	PaidFinancedAt   *time.Time          `json:"paid_financed_at,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// Price returns the price of the given modality and whether it is set.
func (b *Budget) Price(modality string) (decimal.Decimal, bool) {
	var p decimal.NullDecimal
	switch modality {
	case ModalityUpfront:
		p = b.PriceUpfront
	case ModalityOnVisa:
		p = b.PriceOnVisa
	case ModalityFinanced:
		p = b.PriceFinanced
	}
	return p.Decimal, p.Valid
}

// ModalityPaid reports whether the given modality has been marked paid.
func (b *Budget) ModalityPaid(modality string) bool {
	switch modality {
	case ModalityUpfront:
		return b.PaidUpfront
	case ModalityOnVisa:
		return b.PaidOnVisa
	case ModalityFinanced:
		return b.PaidFinanced
	}
	return false
}

// Paid is the derived top-level paid flag: true once the selected modality
// has been marked paid. Paid flags on unselected modalities are inert.
func (b *Budget) Paid() bool {
	if b.State != BudgetAccepted || b.SelectedModality == nil {
		return false
	}
	return b.ModalityPaid(*b.SelectedModality)
}

// HasOffer reports whether at least one modality price is set.
func (b *Budget) HasOffer() bool {
	return b.PriceUpfront.Valid || b.PriceOnVisa.Valid || b.PriceFinanced.Valid
}
