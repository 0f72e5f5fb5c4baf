package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ledgerline/ledgerline/internal/customers"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// CustomerPort verifies account owners exist.
type CustomerPort interface {
	GetByID(ctx context.Context, id string) (*customers.Customer, error)
}

// AuditPort records account lifecycle events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig tunes the account service.
type ServiceConfig struct {
	// MaxNumberAttempts bounds account number generation retries.
	MaxNumberAttempts int
}

const defaultNumberAttempts = 5

// Service owns the account lifecycle: opening, lookups, type changes,
// closing and the operator state transitions.
type Service struct {
	repo      Repository
	customers CustomerPort
	audit     AuditPort
	cfg       ServiceConfig
	logger    *slog.Logger
}

// NewService wires the account service.
func NewService(repo Repository, customerPort CustomerPort, audit AuditPort, cfg ServiceConfig, logger *slog.Logger) *Service {
	if cfg.MaxNumberAttempts <= 0 {
		cfg.MaxNumberAttempts = defaultNumberAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		customers: customerPort,
		audit:     audit,
		cfg:       cfg,
		logger:    logger,
	}
}

// Open creates an account for the customer. A positive initial deposit is
// recorded as the account's first transaction inside the same database
// transaction, so the account never exists without its opening entry.
func (s *Service) Open(ctx context.Context, in OpenInput) (*Account, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unsupported account type %q", shared.ErrValidation, string(in.Type))
	}
	if in.InitialDeposit.IsNegative() {
		return nil, fmt.Errorf("%w: initial deposit cannot be negative", shared.ErrValidation)
	}
	if !in.InitialDeposit.IsZero() {
		if _, err := shared.CheckAmount(in.InitialDeposit); err != nil {
			return nil, err
		}
	}
	if _, err := s.customers.GetByID(ctx, in.CustomerID); err != nil {
		return nil, err
	}

	var opened Account
	for attempt := 0; attempt < s.cfg.MaxNumberAttempts; attempt++ {
		number, err := GenerateNumber()
		if err != nil {
			return nil, err
		}
		exists, err := s.repo.NumberExists(ctx, number)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			created, err := tx.InsertAccount(ctx, Account{
				CustomerID: in.CustomerID,
				Number:     number,
				Type:       in.Type,
				Status:     StatusActive,
				Balance:    in.InitialDeposit,
			})
			if err != nil {
				return err
			}
			if in.InitialDeposit.IsPositive() {
				if err := tx.InsertInitialDeposit(ctx, created.ID, in.InitialDeposit); err != nil {
					return err
				}
			}
			opened = created
			return nil
		})
		if errors.Is(err, errNumberTaken) {
			// Lost the race on this number, try another candidate.
			continue
		}
		if err != nil {
			return nil, err
		}

		if s.audit != nil {
			_ = s.audit.Record(ctx, shared.AuditLog{
				ActorID:  in.CustomerID,
				Action:   "account.opened",
				Entity:   "account",
				EntityID: opened.Number,
				Meta:     map[string]any{"type": string(opened.Type), "initial_deposit": in.InitialDeposit.StringFixed(2)},
			})
		}
		s.logger.Info("account opened",
			slog.String("customer_id", in.CustomerID),
			slog.String("number", opened.Number),
			slog.String("type", string(opened.Type)),
		)
		return &opened, nil
	}
	return nil, fmt.Errorf("accounts: could not allocate a unique account number after %d attempts", s.cfg.MaxNumberAttempts)
}

// GetOwned fetches an account and hides it unless the customer owns it.
func (s *Service) GetOwned(ctx context.Context, customerID string, id int64) (*Account, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ensureOwner(account, customerID); err != nil {
		return nil, err
	}
	return account, nil
}

// GetOwnedByNumber fetches an account by number with the same ownership rule.
func (s *Service) GetOwnedByNumber(ctx context.Context, customerID, number string) (*Account, error) {
	if !ValidNumber(number) {
		return nil, fmt.Errorf("%w: malformed account number", shared.ErrValidation)
	}
	account, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if err := ensureOwner(account, customerID); err != nil {
		return nil, err
	}
	return account, nil
}

// ListMine lists the customer's accounts, newest first.
func (s *Service) ListMine(ctx context.Context, customerID string) ([]Account, error) {
	return s.repo.ListByCustomer(ctx, customerID)
}

// ResolvePayee returns the ID of the account with the given number, no matter
// who owns it. It exposes nothing beyond the ID, which the caller already
// implied by knowing the number.
func (s *Service) ResolvePayee(ctx context.Context, number string) (int64, error) {
	if !ValidNumber(number) {
		return 0, fmt.Errorf("%w: malformed account number", shared.ErrValidation)
	}
	account, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return 0, err
	}
	return account.ID, nil
}

// Close marks an account CLOSED. Only zero-balance accounts can close. The
// row lock keeps a concurrent deposit from sneaking in between the balance
// check and the status change.
func (s *Service) Close(ctx context.Context, customerID string, id int64) (*Account, error) {
	var closed *Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := ensureOwner(account, customerID); err != nil {
			return err
		}
		if !account.Balance.IsZero() {
			return fmt.Errorf("%w: cannot close account with non-zero balance", shared.ErrValidation)
		}
		if err := tx.UpdateStatus(ctx, id, StatusClosed); err != nil {
			return err
		}
		account.Status = StatusClosed
		closed = account
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  customerID,
			Action:   "account.closed",
			Entity:   "account",
			EntityID: closed.Number,
		})
	}
	s.logger.Info("account closed", slog.String("number", closed.Number))
	return closed, nil
}

// UpdateType switches the account to another product. Only active accounts
// can change type.
func (s *Service) UpdateType(ctx context.Context, customerID string, id int64, newType AccountType) (*Account, error) {
	if !newType.Valid() {
		return nil, fmt.Errorf("%w: unsupported account type %q", shared.ErrValidation, string(newType))
	}
	var updated *Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := ensureOwner(account, customerID); err != nil {
			return err
		}
		if !account.Status.CanTransact() {
			return fmt.Errorf("%w: account is %s", shared.ErrInvalidState, string(account.Status))
		}
		if err := tx.UpdateType(ctx, id, newType); err != nil {
			return err
		}
		account.Type = newType
		updated = account
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  customerID,
			Action:   "account.type_updated",
			Entity:   "account",
			EntityID: updated.Number,
			Meta:     map[string]any{"type": string(newType)},
		})
	}
	return updated, nil
}

// Admin operations below act without an owning customer; the router guards
// them with the operator key.

// Get fetches any account by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

// ListAll pages through every account, newest first.
func (s *Service) ListAll(ctx context.Context, page, perPage int) ([]Account, shared.Pagination, error) {
	p := shared.NewPagination(page, perPage, 0)
	items, total, err := s.repo.ListAll(ctx, p)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// Suspend freezes an account. The transition is unconditional beyond the
// account existing; suspending twice is a no-op.
func (s *Service) Suspend(ctx context.Context, id int64) (*Account, error) {
	return s.setStatus(ctx, id, StatusSuspended, "account.suspended")
}

// Activate returns an account to ACTIVE, again unconditionally.
func (s *Service) Activate(ctx context.Context, id int64) (*Account, error) {
	return s.setStatus(ctx, id, StatusActive, "account.activated")
}

func (s *Service) setStatus(ctx context.Context, id int64, to AccountStatus, action string) (*Account, error) {
	var result *Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, id, to); err != nil {
			return err
		}
		account.Status = to
		result = account
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  "operator",
			Action:   action,
			Entity:   "account",
			EntityID: result.Number,
		})
	}
	s.logger.Info(action, slog.String("number", result.Number))
	return result, nil
}

// Delete removes a zero-balance account and its transactions permanently.
func (s *Service) Delete(ctx context.Context, id int64) error {
	var number string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !account.Balance.IsZero() {
			return fmt.Errorf("%w: cannot delete account with non-zero balance", shared.ErrValidation)
		}
		number = account.Number
		if err := tx.DeleteTransactions(ctx, id); err != nil {
			return err
		}
		return tx.DeleteAccount(ctx, id)
	})
	if err != nil {
		return err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  "operator",
			Action:   "account.deleted",
			Entity:   "account",
			EntityID: number,
		})
	}
	s.logger.Warn("account deleted", slog.String("number", number))
	return nil
}

func ensureOwner(a *Account, customerID string) error {
	if a.CustomerID != customerID {
		// Report foreign accounts as absent so account IDs cannot be probed.
		return shared.ErrNotFound
	}
	return nil
}
