package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/accounts"
	"github.com/ledgerline/ledgerline/internal/auth"
	"github.com/ledgerline/ledgerline/internal/customers"
	"github.com/ledgerline/ledgerline/internal/ledger"
	"github.com/ledgerline/ledgerline/internal/shared"
)

const consoleRule = "============================================="

// AuthService is the slice of the auth service the console needs.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*customers.Customer, error)
	Authenticate(ctx context.Context, username, password string) (*customers.Customer, error)
	ChangePassword(ctx context.Context, customerID, current, next string) error
}

// CustomerService exposes profile reads and updates.
type CustomerService interface {
	Profile(ctx context.Context, customerID string) (*customers.Customer, error)
	UpdateProfile(ctx context.Context, customerID string, in customers.ProfileUpdate) (*customers.Customer, error)
}

// AccountService exposes the account operations the menus call.
type AccountService interface {
	Open(ctx context.Context, in accounts.OpenInput) (*accounts.Account, error)
	ListMine(ctx context.Context, customerID string) ([]accounts.Account, error)
	GetOwnedByNumber(ctx context.Context, customerID, number string) (*accounts.Account, error)
	Close(ctx context.Context, customerID string, id int64) (*accounts.Account, error)
	ResolvePayee(ctx context.Context, number string) (int64, error)
}

// LedgerService exposes the money movements the menus call.
type LedgerService interface {
	Deposit(ctx context.Context, customerID string, accountID int64, amount decimal.Decimal, idemKey string) (*ledger.Transaction, error)
	Withdraw(ctx context.Context, customerID string, accountID int64, amount decimal.Decimal, idemKey string) (*ledger.Transaction, error)
	Transfer(ctx context.Context, customerID string, in ledger.TransferInput, idemKey string) ([]ledger.Transaction, error)
	History(ctx context.Context, customerID string, accountID int64, f ledger.HistoryFilter) ([]ledger.Transaction, error)
}

// ConsoleDeps collects the services the interactive console drives.
type ConsoleDeps struct {
	Auth      AuthService
	Customers CustomerService
	Accounts  AccountService
	Ledger    LedgerService
	In        io.Reader
	Out       io.Writer
}

// Console is a menu driven terminal client. It talks to the services
// directly, so it works without the HTTP server running.
type Console struct {
	deps    ConsoleDeps
	scanner *bufio.Scanner
	current *customers.Customer
}

// NewConsole builds a console over the given dependencies.
func NewConsole(deps ConsoleDeps) *Console {
	return &Console{
		deps:    deps,
		scanner: bufio.NewScanner(deps.In),
	}
}

// Run loops over the menus until the user exits or input ends.
func (c *Console) Run(ctx context.Context) error {
	c.printf("%s\n", consoleRule)
	c.printf("  LEDGERLINE BANKING\n")
	c.printf("%s\n", consoleRule)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		done := false
		if c.current == nil {
			done, err = c.welcomeMenu(ctx)
		} else {
			err = c.mainMenu(ctx)
		}
		if errors.Is(err, io.EOF) {
			done = true
			err = nil
		}
		if err != nil {
			return err
		}
		if done {
			c.printf("\nThank you for banking with Ledgerline.\n")
			return nil
		}
	}
}

func (c *Console) welcomeMenu(ctx context.Context) (bool, error) {
	c.printf("\n%s\n", consoleRule)
	c.printf("1. Login\n")
	c.printf("2. Register\n")
	c.printf("3. Exit\n")
	c.printf("%s\n", consoleRule)

	choice, err := c.promptChoice()
	if err != nil {
		return true, err
	}
	switch choice {
	case 1:
		c.login(ctx)
	case 2:
		c.register(ctx)
	case 3:
		return true, nil
	default:
		c.printf("Invalid choice.\n")
	}
	return false, nil
}

func (c *Console) mainMenu(ctx context.Context) error {
	c.printf("\n%s\n", consoleRule)
	c.printf("MAIN MENU - %s\n", c.current.FullName())
	c.printf("%s\n", consoleRule)
	c.printf("1. Account Management\n")
	c.printf("2. Banking Operations\n")
	c.printf("3. Transaction History\n")
	c.printf("4. Profile\n")
	c.printf("5. Logout\n")
	c.printf("%s\n", consoleRule)

	choice, err := c.promptChoice()
	if err != nil {
		return err
	}
	switch choice {
	case 1:
		return c.accountsMenu(ctx)
	case 2:
		return c.bankingMenu(ctx)
	case 3:
		c.history(ctx)
	case 4:
		return c.profileMenu(ctx)
	case 5:
		c.current = nil
		c.printf("Logged out.\n")
	default:
		c.printf("Invalid choice.\n")
	}
	return nil
}

func (c *Console) accountsMenu(ctx context.Context) error {
	for {
		c.printf("\nACCOUNT MANAGEMENT\n")
		c.printf("1. Open New Account\n")
		c.printf("2. View My Accounts\n")
		c.printf("3. Account Details\n")
		c.printf("4. Close Account\n")
		c.printf("5. Back\n")

		choice, err := c.promptChoice()
		if err != nil {
			return err
		}
		switch choice {
		case 1:
			c.openAccount(ctx)
		case 2:
			c.listAccounts(ctx)
		case 3:
			c.accountDetails(ctx)
		case 4:
			c.closeAccount(ctx)
		case 5:
			return nil
		default:
			c.printf("Invalid choice.\n")
		}
	}
}

func (c *Console) bankingMenu(ctx context.Context) error {
	for {
		c.printf("\nBANKING OPERATIONS\n")
		c.printf("1. Deposit\n")
		c.printf("2. Withdraw\n")
		c.printf("3. Transfer\n")
		c.printf("4. Check Balance\n")
		c.printf("5. Back\n")

		choice, err := c.promptChoice()
		if err != nil {
			return err
		}
		switch choice {
		case 1:
			c.deposit(ctx)
		case 2:
			c.withdraw(ctx)
		case 3:
			c.transfer(ctx)
		case 4:
			c.checkBalance(ctx)
		case 5:
			return nil
		default:
			c.printf("Invalid choice.\n")
		}
	}
}

func (c *Console) profileMenu(ctx context.Context) error {
	for {
		c.printf("\nPROFILE\n")
		c.printf("1. View Profile\n")
		c.printf("2. Change Password\n")
		c.printf("3. Update Contact Details\n")
		c.printf("4. Back\n")

		choice, err := c.promptChoice()
		if err != nil {
			return err
		}
		switch choice {
		case 1:
			c.viewProfile(ctx)
		case 2:
			c.changePassword(ctx)
		case 3:
			c.updateProfile(ctx)
		case 4:
			return nil
		default:
			c.printf("Invalid choice.\n")
		}
	}
}

func (c *Console) login(ctx context.Context) {
	username := c.prompt("Username: ")
	password := c.prompt("Password: ")
	customer, err := c.deps.Auth.Authenticate(ctx, username, password)
	if err != nil {
		c.fail("Login failed", err)
		return
	}
	c.current = customer
	c.printf("\nWelcome, %s.\n", customer.FullName())
}

func (c *Console) register(ctx context.Context) {
	c.printf("\nCUSTOMER REGISTRATION\n")
	in := auth.RegisterInput{
		FirstName: c.prompt("First name: "),
		LastName:  c.prompt("Last name: "),
		Email:     c.prompt("Email: "),
		Phone:     c.prompt("Phone (10 digits): "),
		Username:  c.prompt("Username: "),
		Password:  c.prompt("Password: "),
	}
	confirm := c.prompt("Confirm password: ")
	if in.Password != confirm {
		c.printf("Passwords do not match.\n")
		return
	}
	customer, err := c.deps.Auth.Register(ctx, in)
	if err != nil {
		c.fail("Registration failed", err)
		return
	}
	c.printf("\nRegistration successful. Your customer ID is %s.\n", customer.ID)
	c.printf("You can now login with your username and password.\n")
}

func (c *Console) openAccount(ctx context.Context) {
	c.printf("\nOPEN NEW ACCOUNT\n")
	c.printf("1. SAVINGS\n")
	c.printf("2. CURRENT\n")
	c.printf("3. FIXED_DEPOSIT\n")
	c.printf("4. RECURRING_DEPOSIT\n")

	choice, err := c.promptChoice()
	if err != nil {
		c.printf("Invalid choice.\n")
		return
	}
	var accountType accounts.AccountType
	switch choice {
	case 1:
		accountType = accounts.TypeSavings
	case 2:
		accountType = accounts.TypeCurrent
	case 3:
		accountType = accounts.TypeFixedDeposit
	case 4:
		accountType = accounts.TypeRecurringDeposit
	default:
		c.printf("Invalid choice.\n")
		return
	}

	deposit := decimal.Zero
	if raw := c.prompt("Initial deposit (blank for none): "); raw != "" {
		deposit, err = shared.ParseAmount(raw)
		if err != nil {
			c.fail("Invalid amount", err)
			return
		}
	}

	account, err := c.deps.Accounts.Open(ctx, accounts.OpenInput{
		CustomerID:     c.current.ID,
		Type:           accountType,
		InitialDeposit: deposit,
	})
	if err != nil {
		c.fail("Could not open account", err)
		return
	}
	c.printf("\nAccount opened. Number: %s\n", account.Number)
	c.printf("Balance: %s\n", shared.FormatAmount(account.Balance))
}

func (c *Console) listAccounts(ctx context.Context) {
	list, err := c.deps.Accounts.ListMine(ctx, c.current.ID)
	if err != nil {
		c.fail("Could not list accounts", err)
		return
	}
	if len(list) == 0 {
		c.printf("\nYou have no accounts yet.\n")
		return
	}
	c.printf("\n%-15s %-18s %-10s %15s\n", "NUMBER", "TYPE", "STATUS", "BALANCE")
	for _, a := range list {
		c.printf("%-15s %-18s %-10s %15s\n", a.Number, a.Type, a.Status, shared.FormatAmount(a.Balance))
	}
}

func (c *Console) accountDetails(ctx context.Context) {
	account, ok := c.promptOwnAccount(ctx)
	if !ok {
		return
	}
	c.printf("\nAccount Number: %s\n", account.Number)
	c.printf("Type: %s\n", account.Type)
	c.printf("Status: %s\n", account.Status)
	c.printf("Balance: %s\n", shared.FormatAmount(account.Balance))
	c.printf("Opened: %s\n", account.CreatedAt.Format("2006-01-02 15:04:05"))
}

func (c *Console) closeAccount(ctx context.Context) {
	account, ok := c.promptOwnAccount(ctx)
	if !ok {
		return
	}
	if !strings.EqualFold(c.prompt("Close this account? (yes/no): "), "yes") {
		c.printf("Closure cancelled.\n")
		return
	}
	if _, err := c.deps.Accounts.Close(ctx, c.current.ID, account.ID); err != nil {
		c.fail("Could not close account", err)
		return
	}
	c.printf("Account %s closed.\n", account.Number)
}

func (c *Console) deposit(ctx context.Context) {
	account, ok := c.promptOwnAccount(ctx)
	if !ok {
		return
	}
	amount, err := c.promptAmount("Amount to deposit: ")
	if err != nil {
		c.fail("Invalid amount", err)
		return
	}
	tx, err := c.deps.Ledger.Deposit(ctx, c.current.ID, account.ID, amount, uuid.NewString())
	if err != nil {
		c.fail("Deposit failed", err)
		return
	}
	c.printf("\nDeposit successful. Transaction ID: %d\n", tx.ID)
	c.printf("New balance: %s\n", shared.FormatAmount(tx.BalanceAfter))
}

func (c *Console) withdraw(ctx context.Context) {
	account, ok := c.promptOwnAccount(ctx)
	if !ok {
		return
	}
	amount, err := c.promptAmount("Amount to withdraw: ")
	if err != nil {
		c.fail("Invalid amount", err)
		return
	}
	tx, err := c.deps.Ledger.Withdraw(ctx, c.current.ID, account.ID, amount, uuid.NewString())
	if err != nil {
		c.fail("Withdrawal failed", err)
		return
	}
	c.printf("\nWithdrawal successful. Transaction ID: %d\n", tx.ID)
	c.printf("New balance: %s\n", shared.FormatAmount(tx.BalanceAfter))
}

func (c *Console) transfer(ctx context.Context) {
	from, ok := c.promptOwnAccount(ctx)
	if !ok {
		return
	}
	toNumber := c.prompt("Destination account number: ")
	toID, err := c.deps.Accounts.ResolvePayee(ctx, toNumber)
	if err != nil {
		c.fail("Unknown destination account", err)
		return
	}
	amount, err := c.promptAmount("Amount to transfer: ")
	if err != nil {
		c.fail("Invalid amount", err)
		return
	}
	legs, err := c.deps.Ledger.Transfer(ctx, c.current.ID, ledger.TransferInput{
		FromAccountID: from.ID,
		ToAccountID:   toID,
		Amount:        amount,
	}, uuid.NewString())
	if err != nil {
		c.fail("Transfer failed", err)
		return
	}
	c.printf("\nTransfer successful.\n")
	c.printf("From %s to %s: %s\n", from.Number, toNumber, shared.FormatAmount(amount))
	c.printf("New balance: %s\n", shared.FormatAmount(legs[0].BalanceAfter))
}

func (c *Console) checkBalance(ctx context.Context) {
	account, ok := c.promptOwnAccount(ctx)
	if !ok {
		return
	}
	c.printf("\nCurrent balance: %s\n", shared.FormatAmount(account.Balance))
}

func (c *Console) history(ctx context.Context) {
	account, ok := c.promptOwnAccount(ctx)
	if !ok {
		return
	}
	list, err := c.deps.Ledger.History(ctx, c.current.ID, account.ID, ledger.HistoryFilter{})
	if err != nil {
		c.fail("Could not fetch history", err)
		return
	}
	if len(list) == 0 {
		c.printf("\nNo transactions found for this account.\n")
		return
	}
	c.printf("\nTRANSACTION HISTORY - %s\n", account.Number)
	c.printf("%-20s %-14s %15s %15s  %s\n", "DATE", "TYPE", "AMOUNT", "BALANCE", "DESCRIPTION")
	for _, t := range list {
		c.printf("%-20s %-14s %15s %15s  %s\n",
			t.TransactionDate.Format("2006-01-02 15:04:05"),
			t.Type,
			shared.FormatAmount(t.Amount),
			shared.FormatAmount(t.BalanceAfter),
			t.Description,
		)
	}
}

func (c *Console) viewProfile(ctx context.Context) {
	profile, err := c.deps.Customers.Profile(ctx, c.current.ID)
	if err != nil {
		c.fail("Could not load profile", err)
		return
	}
	c.printf("\nCustomer ID: %s\n", profile.ID)
	c.printf("Name: %s\n", profile.FullName())
	c.printf("Email: %s\n", profile.Email)
	c.printf("Phone: %s\n", profile.Phone)
	c.printf("Username: %s\n", profile.Username)
	c.printf("Member since: %s\n", profile.CreatedAt.Format("2006-01-02"))
}

func (c *Console) changePassword(ctx context.Context) {
	current := c.prompt("Current password: ")
	next := c.prompt("New password: ")
	if next != c.prompt("Confirm new password: ") {
		c.printf("Passwords do not match.\n")
		return
	}
	if err := c.deps.Auth.ChangePassword(ctx, c.current.ID, current, next); err != nil {
		c.fail("Could not change password", err)
		return
	}
	c.printf("Password changed.\n")
}

func (c *Console) updateProfile(ctx context.Context) {
	c.printf("Leave a field blank to keep its current value.\n")
	update := customers.ProfileUpdate{}
	if v := c.prompt("First name: "); v != "" {
		update.FirstName = &v
	}
	if v := c.prompt("Last name: "); v != "" {
		update.LastName = &v
	}
	if v := c.prompt("Email: "); v != "" {
		update.Email = &v
	}
	if v := c.prompt("Phone: "); v != "" {
		update.Phone = &v
	}
	profile, err := c.deps.Customers.UpdateProfile(ctx, c.current.ID, update)
	if err != nil {
		c.fail("Could not update profile", err)
		return
	}
	c.current = profile
	c.printf("Profile updated.\n")
}

// promptOwnAccount asks for one of the customer's account numbers and loads it.
func (c *Console) promptOwnAccount(ctx context.Context) (*accounts.Account, bool) {
	number := c.prompt("Account number: ")
	account, err := c.deps.Accounts.GetOwnedByNumber(ctx, c.current.ID, number)
	if err != nil {
		c.fail("Could not access account", err)
		return nil, false
	}
	return account, true
}

func (c *Console) readLine(label string) (string, bool) {
	c.printf("%s", label)
	if !c.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.scanner.Text()), true
}

func (c *Console) prompt(label string) string {
	line, _ := c.readLine(label)
	return line
}

func (c *Console) promptChoice() (int, error) {
	raw, ok := c.readLine("Choice: ")
	if !ok {
		return 0, io.EOF
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1, nil
	}
	return n, nil
}

func (c *Console) promptAmount(label string) (decimal.Decimal, error) {
	return shared.ParseAmount(c.prompt(label))
}

func (c *Console) fail(prefix string, err error) {
	c.printf("%s: %v\n", prefix, err)
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.deps.Out, format, args...)
}
