package jobs

import (
	"slices"
	"testing"

	"github.com/shopspring/decimal"
)

func TestClassifyAccountCleanAccount(t *testing.T) {
	checkpoint := decimal.RequireFromString("150.00")
	kinds := classifyAccount("ACTIVE", decimal.RequireFromString("150.00"), &checkpoint)
	if len(kinds) != 0 {
		t.Fatalf("expected no findings, got %v", kinds)
	}
}

func TestClassifyAccountZeroBalanceNoTransactions(t *testing.T) {
	kinds := classifyAccount("ACTIVE", decimal.Zero, nil)
	if len(kinds) != 0 {
		t.Fatalf("expected no findings for a fresh account, got %v", kinds)
	}
}

func TestClassifyAccountFindings(t *testing.T) {
	cp := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}
	cases := []struct {
		name       string
		status     string
		balance    string
		checkpoint *decimal.Decimal
		want       []string
	}{
		{"negative balance", "ACTIVE", "-10.00", cp("-10.00"), []string{"negative_balance"}},
		{"checkpoint mismatch", "ACTIVE", "100.00", cp("90.00"), []string{"checkpoint_mismatch"}},
		{"closed with funds", "CLOSED", "5.00", cp("5.00"), []string{"closed_nonzero"}},
		{"balance without transactions", "ACTIVE", "25.00", nil, []string{"missing_checkpoint"}},
		{"closed with mismatch", "CLOSED", "5.00", cp("0.00"), []string{"closed_nonzero", "checkpoint_mismatch"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyAccount(tc.status, decimal.RequireFromString(tc.balance), tc.checkpoint)
			if !slices.Equal(got, tc.want) {
				t.Fatalf("classifyAccount = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestClassifyAccountEqualScaleInsensitive(t *testing.T) {
	checkpoint := decimal.RequireFromString("150")
	kinds := classifyAccount("ACTIVE", decimal.RequireFromString("150.00"), &checkpoint)
	if len(kinds) != 0 {
		t.Fatalf("150 and 150.00 must compare equal, got %v", kinds)
	}
}
