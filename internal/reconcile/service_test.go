package reconcile

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type stubSource struct {
	expected []ExpectedRow
	ledger   []LedgerRow
	balances []BalanceRow
}

func (s *stubSource) ExpectedCommissions(context.Context) ([]ExpectedRow, error) {
	return s.expected, nil
}
func (s *stubSource) LedgerTotals(context.Context) ([]LedgerRow, error) { return s.ledger, nil }
func (s *stubSource) Balances(context.Context) ([]BalanceRow, error)   { return s.balances, nil }

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestRun_CleanBooks(t *testing.T) {
	// Referrer earned 50 from a paid 1000 budget, withdrew 30.
	referrer := uuid.New()
	src := &stubSource{
		expected: []ExpectedRow{{BeneficiaryType: "student", BeneficiaryID: referrer, Expected: dec("50")}},
		ledger:   []LedgerRow{{BeneficiaryType: "student", BeneficiaryID: referrer, Earned: dec("50"), Spent: dec("30")}},
		balances: []BalanceRow{{BeneficiaryType: "student", BeneficiaryID: referrer, Available: dec("20"), Withdrawn: dec("30")}},
	}
	report, err := NewService(src).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Clean() {
		t.Errorf("expected clean report, got %+v", report.Discrepancies)
	}
	if report.Checked != 1 {
		t.Errorf("checked: got %d, want 1", report.Checked)
	}
}

func TestRun_CommissionMismatch(t *testing.T) {
	// Ledger credited 40 but the paid budgets justify 50.
	referrer := uuid.New()
	src := &stubSource{
		expected: []ExpectedRow{{BeneficiaryType: "agent", BeneficiaryID: referrer, Expected: dec("50")}},
		ledger:   []LedgerRow{{BeneficiaryType: "agent", BeneficiaryID: referrer, Earned: dec("40"), Spent: dec("0")}},
		balances: []BalanceRow{{BeneficiaryType: "agent", BeneficiaryID: referrer, Available: dec("40"), Withdrawn: dec("0")}},
	}
	report, err := NewService(src).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Discrepancies) != 1 {
		t.Fatalf("discrepancies: got %d, want 1: %+v", len(report.Discrepancies), report.Discrepancies)
	}
	d := report.Discrepancies[0]
	if d.Type != DiscrepancyCommission {
		t.Errorf("type: got %s, want %s", d.Type, DiscrepancyCommission)
	}
	if !d.Delta.Equal(dec("-10")) {
		t.Errorf("delta: got %s, want -10", d.Delta)
	}
}

func TestRun_BalanceDrift(t *testing.T) {
	// Balance was patched by hand: available no longer matches earned-spent,
	// and withdrawn_credit does not match ledger spend.
	referrer := uuid.New()
	src := &stubSource{
		expected: []ExpectedRow{{BeneficiaryType: "student", BeneficiaryID: referrer, Expected: dec("100")}},
		ledger:   []LedgerRow{{BeneficiaryType: "student", BeneficiaryID: referrer, Earned: dec("100"), Spent: dec("25")}},
		balances: []BalanceRow{{BeneficiaryType: "student", BeneficiaryID: referrer, Available: dec("80"), Withdrawn: dec("20")}},
	}
	report, err := NewService(src).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Discrepancies) != 2 {
		t.Fatalf("discrepancies: got %d, want 2: %+v", len(report.Discrepancies), report.Discrepancies)
	}
	types := map[string]bool{}
	for _, d := range report.Discrepancies {
		types[d.Type] = true
	}
	if !types[DiscrepancyBalance] || !types[DiscrepancyWithdrawn] {
		t.Errorf("expected balance and withdrawn mismatches, got %+v", report.Discrepancies)
	}
}

func TestRun_BeneficiaryWithNoLedgerRows(t *testing.T) {
	// A student with zero activity shows up only in balances and must not
	// trip any check.
	quiet := uuid.New()
	src := &stubSource{
		balances: []BalanceRow{{BeneficiaryType: "student", BeneficiaryID: quiet, Available: decimal.Zero, Withdrawn: decimal.Zero}},
	}
	report, err := NewService(src).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Clean() {
		t.Errorf("expected clean report, got %+v", report.Discrepancies)
	}
}
