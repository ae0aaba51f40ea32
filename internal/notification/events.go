package notification

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Subject/body builders for every workflow event. Plain text on purpose.

func Welcome(name, referralCode string) (subject, body string) {
	return "Welcome to VisaForge",
		fmt.Sprintf("Hi %s,\n\nYour account is ready. Your personal referral code is %s. Share it and earn commission when your referrals complete a budget.\n\nThe VisaForge team", name, referralCode)
}

func BudgetOffered(name string) (subject, body string) {
	return "Your budget is ready",
		fmt.Sprintf("Hi %s,\n\nWe have prepared a budget for your visa application. Log in to review the payment options and accept the one that suits you.\n\nThe VisaForge team", name)
}

func BudgetAccepted(name, modality string) (subject, body string) {
	return "Budget accepted",
		fmt.Sprintf("Hi %s,\n\nYou accepted your budget with the %s payment option. We will contact you with the next steps.\n\nThe VisaForge team", name, modality)
}

func PaymentConfirmed(name, modality string, amount decimal.Decimal) (subject, body string) {
	return "Payment confirmed",
		fmt.Sprintf("Hi %s,\n\nWe confirmed your payment of €%s (%s). Thank you!\n\nThe VisaForge team", name, amount.StringFixed(2), modality)
}

func CommissionEarned(name string, amount, balance decimal.Decimal) (subject, body string) {
	return "You earned a referral commission",
		fmt.Sprintf("Hi %s,\n\nOne of your referrals completed a payment and you earned €%s in commission. Your available credit is now €%s.\n\nThe VisaForge team", name, amount.StringFixed(2), balance.StringFixed(2))
}

func CreditRequestSubmitted(name string, amount decimal.Decimal) (subject, body string) {
	return "Credit request received",
		fmt.Sprintf("Hi %s,\n\nWe received your credit request for €%s. We will review it shortly.\n\nThe VisaForge team", name, amount.StringFixed(2))
}

func CreditRequestApproved(name string, amount decimal.Decimal) (subject, body string) {
	return "Credit request approved",
		fmt.Sprintf("Hi %s,\n\nYour credit request for €%s was approved.\n\nThe VisaForge team", name, amount.StringFixed(2))
}

func CreditRequestRejected(name, reason string) (subject, body string) {
	return "Credit request rejected",
		fmt.Sprintf("Hi %s,\n\nYour credit request was rejected. Reason: %s.\n\nThe VisaForge team", name, reason)
}
