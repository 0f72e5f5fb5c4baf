package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// AuditPort records ledger events in the audit trail.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts posted transactions and rejected debits.
type MetricsPort interface {
	ObserveTransaction(txType string)
	ObserveInsufficientFunds()
}

// Service posts money movements and serves transaction history. Every
// balance mutation runs inside a single database transaction with the
// touched account rows locked, so a concurrent movement on the same account
// waits instead of computing against a stale balance. Transfers lock both
// rows in ascending account ID order; two opposing transfers on the same
// pair then contend on the same first lock and cannot deadlock.
type Service struct {
	repo        Repository
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	metrics     MetricsPort
	logger      *slog.Logger
}

// NewService wires the ledger service. audit, idempotency and metrics may
// be nil.
func NewService(repo Repository, audit AuditPort, idem *shared.IdempotencyStore, metrics MetricsPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, idempotency: idem, metrics: metrics, logger: logger}
}

// Deposit credits an active account owned by the customer and appends the
// DEPOSIT row carrying the new balance.
func (s *Service) Deposit(ctx context.Context, customerID string, accountID int64, amount decimal.Decimal, idemKey string) (*Transaction, error) {
	amount, err := shared.CheckAmount(amount)
	if err != nil {
		return nil, err
	}

	release, err := s.claimKey(ctx, idemKey)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var posted Transaction
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := s.lockOwned(ctx, tx, customerID, accountID)
		if err != nil {
			return err
		}
		newBalance := account.Balance.Add(amount)
		if err := tx.UpdateBalance(ctx, accountID, newBalance); err != nil {
			return err
		}
		posted, err = tx.InsertTransaction(ctx, Transaction{
			AccountID:       accountID,
			Type:            TypeDeposit,
			Amount:          amount,
			Description:     "Deposit",
			BalanceAfter:    newBalance,
			TransactionDate: now,
		})
		return err
	})
	if err != nil {
		release(ctx)
		return nil, err
	}

	s.observe(TypeDeposit)
	s.recordMovement(ctx, customerID, "ledger.deposit", posted)
	s.logger.Info("deposit posted",
		slog.Int64("account_id", accountID),
		slog.String("amount", amount.StringFixed(2)),
	)
	return &posted, nil
}

// Withdraw debits an active account owned by the customer. The debit is
// refused outright when it would push the balance below zero.
func (s *Service) Withdraw(ctx context.Context, customerID string, accountID int64, amount decimal.Decimal, idemKey string) (*Transaction, error) {
	amount, err := shared.CheckAmount(amount)
	if err != nil {
		return nil, err
	}

	release, err := s.claimKey(ctx, idemKey)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var posted Transaction
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := s.lockOwned(ctx, tx, customerID, accountID)
		if err != nil {
			return err
		}
		if account.Balance.LessThan(amount) {
			s.observeInsufficientFunds()
			return fmt.Errorf("%w: balance %s is less than %s", shared.ErrInsufficientFunds,
				account.Balance.StringFixed(2), amount.StringFixed(2))
		}
		newBalance := account.Balance.Sub(amount)
		if err := tx.UpdateBalance(ctx, accountID, newBalance); err != nil {
			return err
		}
		posted, err = tx.InsertTransaction(ctx, Transaction{
			AccountID:       accountID,
			Type:            TypeWithdrawal,
			Amount:          amount,
			Description:     "Withdrawal",
			BalanceAfter:    newBalance,
			TransactionDate: now,
		})
		return err
	})
	if err != nil {
		release(ctx)
		return nil, err
	}

	s.observe(TypeWithdrawal)
	s.recordMovement(ctx, customerID, "ledger.withdrawal", posted)
	s.logger.Info("withdrawal posted",
		slog.Int64("account_id", accountID),
		slog.String("amount", amount.StringFixed(2)),
	)
	return &posted, nil
}

// Transfer moves funds between two accounts as one atomic unit: both
// balances change and both ledger rows appear, or nothing does. The source
// must belong to the customer; the destination may be any active account.
// Returns the two legs, source first.
func (s *Service) Transfer(ctx context.Context, customerID string, in TransferInput, idemKey string) ([]Transaction, error) {
	amount, err := shared.CheckAmount(in.Amount)
	if err != nil {
		return nil, err
	}
	if in.FromAccountID == in.ToAccountID {
		return nil, fmt.Errorf("%w: cannot transfer to the same account", shared.ErrValidation)
	}

	release, err := s.claimKey(ctx, idemKey)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var out, inTx Transaction
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		src, dst, err := lockPair(ctx, tx, in.FromAccountID, in.ToAccountID)
		if err != nil {
			return err
		}
		if src.CustomerID != customerID {
			return shared.ErrNotFound
		}
		if !src.Status.CanTransact() {
			return fmt.Errorf("%w: source account is %s", shared.ErrInvalidState, string(src.Status))
		}
		if !dst.Status.CanTransact() {
			return fmt.Errorf("%w: destination account is %s", shared.ErrInvalidState, string(dst.Status))
		}
		if src.Balance.LessThan(amount) {
			s.observeInsufficientFunds()
			return fmt.Errorf("%w: balance %s is less than %s", shared.ErrInsufficientFunds,
				src.Balance.StringFixed(2), amount.StringFixed(2))
		}

		newSrc := src.Balance.Sub(amount)
		newDst := dst.Balance.Add(amount)
		if err := tx.UpdateBalance(ctx, src.ID, newSrc); err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, dst.ID, newDst); err != nil {
			return err
		}

		out, err = tx.InsertTransaction(ctx, Transaction{
			AccountID:        src.ID,
			Type:             TypeTransferOut,
			Amount:           amount,
			Description:      fmt.Sprintf("Transfer to account %s", dst.Number),
			BalanceAfter:     newSrc,
			RelatedAccountID: &dst.ID,
			TransactionDate:  now,
		})
		if err != nil {
			return err
		}
		inTx, err = tx.InsertTransaction(ctx, Transaction{
			AccountID:        dst.ID,
			Type:             TypeTransferIn,
			Amount:           amount,
			Description:      fmt.Sprintf("Transfer from account %s", src.Number),
			BalanceAfter:     newDst,
			RelatedAccountID: &src.ID,
			TransactionDate:  now,
		})
		return err
	})
	if err != nil {
		release(ctx)
		return nil, err
	}

	s.observe(TypeTransferOut)
	s.observe(TypeTransferIn)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  customerID,
			Action:   "ledger.transfer",
			Entity:   "transaction",
			EntityID: strconv.FormatInt(out.ID, 10),
			Meta: map[string]any{
				"from_account_id": in.FromAccountID,
				"to_account_id":   in.ToAccountID,
				"amount":          amount.StringFixed(2),
			},
		})
	}
	s.logger.Info("transfer posted",
		slog.Int64("from_account_id", in.FromAccountID),
		slog.Int64("to_account_id", in.ToAccountID),
		slog.String("amount", amount.StringFixed(2)),
	)
	return []Transaction{out, inTx}, nil
}

// History lists an owned account's transactions, newest first. The date
// range is inclusive on both ends; an account without transactions yields
// an empty slice.
func (s *Service) History(ctx context.Context, customerID string, accountID int64, f HistoryFilter) ([]Transaction, error) {
	if f.From.IsZero() != f.To.IsZero() {
		return nil, fmt.Errorf("%w: both from and to dates are required", shared.ErrValidation)
	}
	if f.Type != "" && !f.Type.Valid() {
		return nil, fmt.Errorf("%w: unsupported transaction type %q", shared.ErrValidation, string(f.Type))
	}
	if err := s.ensureOwned(ctx, customerID, accountID); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, accountID, f)
}

// GetOwned fetches one transaction, hidden unless its account belongs to
// the customer.
func (s *Service) GetOwned(ctx context.Context, customerID string, id int64) (*Transaction, error) {
	t, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureOwned(ctx, customerID, t.AccountID); err != nil {
		return nil, err
	}
	return t, nil
}

// ListAll returns the most recent transactions across every account. The
// router guards it with the operator key.
func (s *Service) ListAll(ctx context.Context, limit int) ([]Transaction, error) {
	return s.repo.ListAll(ctx, limit)
}

// lockOwned locks an account row and verifies customer ownership and that
// the status allows transacting.
func (s *Service) lockOwned(ctx context.Context, tx TxRepository, customerID string, accountID int64) (AccountState, error) {
	account, err := tx.GetAccountForUpdate(ctx, accountID)
	if err != nil {
		return AccountState{}, err
	}
	if account.CustomerID != customerID {
		// Report foreign accounts as absent so account IDs cannot be probed.
		return AccountState{}, shared.ErrNotFound
	}
	if !account.Status.CanTransact() {
		return AccountState{}, fmt.Errorf("%w: account is %s", shared.ErrInvalidState, string(account.Status))
	}
	return account, nil
}

// lockPair locks two account rows in ascending ID order and hands them back
// as (source, destination).
func lockPair(ctx context.Context, tx TxRepository, fromID, toID int64) (AccountState, AccountState, error) {
	first, second := fromID, toID
	if second < first {
		first, second = second, first
	}
	a, err := tx.GetAccountForUpdate(ctx, first)
	if err != nil {
		return AccountState{}, AccountState{}, err
	}
	b, err := tx.GetAccountForUpdate(ctx, second)
	if err != nil {
		return AccountState{}, AccountState{}, err
	}
	if a.ID == fromID {
		return a, b, nil
	}
	return b, a, nil
}

func (s *Service) ensureOwned(ctx context.Context, customerID string, accountID int64) error {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account.CustomerID != customerID {
		return shared.ErrNotFound
	}
	return nil
}

// claimKey reserves an idempotency key before any write happens. The
// returned release drops the key again so a failed movement can be retried
// with the same key.
func (s *Service) claimKey(ctx context.Context, key string) (func(context.Context), error) {
	if s.idempotency == nil || key == "" {
		return func(context.Context) {}, nil
	}
	if err := s.idempotency.Reserve(ctx, key, "ledger"); err != nil {
		return nil, err
	}
	return func(ctx context.Context) {
		_ = s.idempotency.Release(ctx, key)
	}, nil
}

func (s *Service) observe(t TransactionType) {
	if s.metrics != nil {
		s.metrics.ObserveTransaction(string(t))
	}
}

func (s *Service) observeInsufficientFunds() {
	if s.metrics != nil {
		s.metrics.ObserveInsufficientFunds()
	}
}

func (s *Service) recordMovement(ctx context.Context, customerID, action string, t Transaction) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  customerID,
		Action:   action,
		Entity:   "transaction",
		EntityID: strconv.FormatInt(t.ID, 10),
		Meta: map[string]any{
			"account_id":    t.AccountID,
			"amount":        t.Amount.StringFixed(2),
			"balance_after": t.BalanceAfter.StringFixed(2),
		},
	})
}
