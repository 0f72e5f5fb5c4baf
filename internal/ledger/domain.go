package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/accounts"
)

// TransactionType classifies a ledger row.
type TransactionType string

// Supported transaction types. Transfers always come in linked pairs, one
// TRANSFER_OUT on the source and one TRANSFER_IN on the destination.
const (
	TypeDeposit     TransactionType = "DEPOSIT"
	TypeWithdrawal  TransactionType = "WITHDRAWAL"
	TypeTransferIn  TransactionType = "TRANSFER_IN"
	TypeTransferOut TransactionType = "TRANSFER_OUT"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeTransferIn, TypeTransferOut:
		return true
	default:
		return false
	}
}

// Transaction is one immutable ledger row. BalanceAfter snapshots the
// account balance immediately after the change, so history can be read at
// any point without replaying every prior row. RelatedAccountID is set only
// on transfer legs and names the counterparty account.
type Transaction struct {
	ID               int64
	AccountID        int64
	Type             TransactionType
	Amount           decimal.Decimal
	Description      string
	BalanceAfter     decimal.Decimal
	RelatedAccountID *int64
	TransactionDate  time.Time
}

// TransferInput names the two sides of a transfer.
type TransferInput struct {
	FromAccountID int64
	ToAccountID   int64
	Amount        decimal.Decimal
}

// HistoryFilter narrows a history query. From and To are inclusive on both
// ends and must be supplied together. A zero Limit falls back to the
// repository cap.
type HistoryFilter struct {
	From  time.Time
	To    time.Time
	Type  TransactionType
	Limit int
}

// AccountState is the slice of the account row the posting flows lock and
// mutate.
type AccountState struct {
	ID         int64
	CustomerID string
	Number     string
	Status     accounts.AccountStatus
	Balance    decimal.Decimal
}
