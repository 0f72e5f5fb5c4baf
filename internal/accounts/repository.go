package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/platform/db"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// errNumberTaken signals an account number collision on insert. The open
// flow retries with a fresh candidate.
var errNumberTaken = errors.New("accounts: number taken")

// Repository encapsulates DB operations for accounts.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetByID(ctx context.Context, id int64) (*Account, error)
	GetByNumber(ctx context.Context, number string) (*Account, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Account, error)
	ListAll(ctx context.Context, p shared.Pagination) ([]Account, int, error)
	NumberExists(ctx context.Context, number string) (bool, error)
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	InsertAccount(ctx context.Context, a Account) (Account, error)
	InsertInitialDeposit(ctx context.Context, accountID int64, amount decimal.Decimal) error
	GetForUpdate(ctx context.Context, id int64) (*Account, error)
	UpdateStatus(ctx context.Context, id int64, status AccountStatus) error
	UpdateType(ctx context.Context, id int64, accountType AccountType) error
	DeleteTransactions(ctx context.Context, accountID int64) error
	DeleteAccount(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a PostgreSQL-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const accountColumns = `id, customer_id, number, type, status, balance::text, created_at, updated_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var (
		a       Account
		typ     string
		status  string
		balance string
	)
	err := row.Scan(&a.ID, &a.CustomerID, &a.Number, &typ, &status, &balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, shared.StorageErr("accounts: scan", err)
	}
	a.Type = AccountType(typ)
	a.Status = AccountStatus(status)
	a.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, shared.StorageErr("accounts: parse balance", err)
	}
	return &a, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

func (r *repository) GetByNumber(ctx context.Context, number string) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE number = $1`, number)
	return scanAccount(row)
}

func (r *repository) ListByCustomer(ctx context.Context, customerID string) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE customer_id = $1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, shared.StorageErr("accounts: list by customer", err)
	}
	defer rows.Close()
	return collectAccounts(rows)
}

func (r *repository) ListAll(ctx context.Context, p shared.Pagination) ([]Account, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&total); err != nil {
		return nil, 0, shared.StorageErr("accounts: count", err)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at DESC LIMIT $1 OFFSET $2`, p.PerPage, p.Offset())
	if err != nil {
		return nil, 0, shared.StorageErr("accounts: list all", err)
	}
	defer rows.Close()
	items, err := collectAccounts(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func collectAccounts(rows pgx.Rows) ([]Account, error) {
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StorageErr("accounts: iterate", err)
	}
	return accounts, nil
}

func (r *repository) NumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE number = $1)`, number).Scan(&exists)
	if err != nil {
		return false, shared.StorageErr("accounts: number exists", err)
	}
	return exists, nil
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertAccount(ctx context.Context, a Account) (Account, error) {
	row := r.tx.QueryRow(ctx, `
		INSERT INTO accounts (customer_id, number, type, status, balance)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		a.CustomerID, a.Number, string(a.Type), string(a.Status), a.Balance.StringFixed(2),
	)
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, errNumberTaken
		}
		return Account{}, shared.StorageErr("accounts: insert", err)
	}
	return a, nil
}

func (r *txRepository) InsertInitialDeposit(ctx context.Context, accountID int64, amount decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO transactions (account_id, type, amount, description, balance_after)
		VALUES ($1, 'DEPOSIT', $2, 'Initial deposit', $2)`,
		accountID, amount.StringFixed(2),
	)
	if err != nil {
		return shared.StorageErr("accounts: insert initial deposit", err)
	}
	return nil
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (*Account, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
	return scanAccount(row)
}

func (r *txRepository) UpdateStatus(ctx context.Context, id int64, status AccountStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE accounts SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), id)
	if err != nil {
		return shared.StorageErr("accounts: update status", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) UpdateType(ctx context.Context, id int64, accountType AccountType) error {
	tag, err := r.tx.Exec(ctx, `UPDATE accounts SET type = $1, updated_at = NOW() WHERE id = $2`, string(accountType), id)
	if err != nil {
		return shared.StorageErr("accounts: update type", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) DeleteTransactions(ctx context.Context, accountID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM transactions WHERE account_id = $1`, accountID)
	if err != nil {
		return shared.StorageErr("accounts: delete transactions", err)
	}
	return nil
}

func (r *txRepository) DeleteAccount(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return shared.StorageErr("accounts: delete", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
