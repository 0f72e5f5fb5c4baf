package accounts

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType enumerates supported account products.
type AccountType string

const (
	// TypeSavings is the default consumer account.
	TypeSavings AccountType = "SAVINGS"
	// TypeCurrent is a checking account.
	TypeCurrent AccountType = "CURRENT"
	// TypeFixedDeposit is a term deposit account.
	TypeFixedDeposit AccountType = "FIXED_DEPOSIT"
	// TypeRecurringDeposit is a scheduled-contribution deposit account.
	TypeRecurringDeposit AccountType = "RECURRING_DEPOSIT"
)

// Valid reports whether the type is one of the supported products.
func (t AccountType) Valid() bool {
	switch t {
	case TypeSavings, TypeCurrent, TypeFixedDeposit, TypeRecurringDeposit:
		return true
	}
	return false
}

// AccountStatus enumerates account lifecycle states.
type AccountStatus string

const (
	// StatusActive allows all operations.
	StatusActive AccountStatus = "ACTIVE"
	// StatusInactive is reserved for dormancy sweeps. No operation sets it
	// today, but stored values must round-trip.
	StatusInactive AccountStatus = "INACTIVE"
	// StatusSuspended blocks money movement until an operator lifts it.
	StatusSuspended AccountStatus = "SUSPENDED"
	// StatusClosed is terminal.
	StatusClosed AccountStatus = "CLOSED"
)

// Valid reports whether the status is a known lifecycle state.
func (s AccountStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended, StatusClosed:
		return true
	}
	return false
}

// CanTransact reports whether deposits, withdrawals and transfers may touch
// an account in this state.
func (s AccountStatus) CanTransact() bool {
	return s == StatusActive
}

// Account is a ledger account owned by one customer.
type Account struct {
	ID         int64
	CustomerID string
	Number     string
	Type       AccountType
	Status     AccountStatus
	Balance    decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// OpenInput describes a request to open an account.
type OpenInput struct {
	CustomerID     string
	Type           AccountType
	InitialDeposit decimal.Decimal
}
