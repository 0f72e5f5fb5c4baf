package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/accounts"
	"github.com/ledgerline/ledgerline/internal/platform/db"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// maxListRows caps unbounded history and admin listings.
const maxListRows = 1000

// Repository persists ledger rows in PostgreSQL.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetAccount(ctx context.Context, accountID int64) (AccountState, error)
	GetTransaction(ctx context.Context, id int64) (*Transaction, error)
	History(ctx context.Context, accountID int64, f HistoryFilter) ([]Transaction, error)
	ListAll(ctx context.Context, limit int) ([]Transaction, error)
}

// TxRepository exposes the operations available while posting a movement.
// GetAccountForUpdate takes a row lock; callers that lock two accounts must
// do so in ascending account ID order.
type TxRepository interface {
	GetAccountForUpdate(ctx context.Context, accountID int64) (AccountState, error)
	UpdateBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error
	InsertTransaction(ctx context.Context, t Transaction) (Transaction, error)
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

const accountStateColumns = `id, customer_id, number, status, balance::text`

func scanAccountState(row pgx.Row) (AccountState, error) {
	var (
		st      AccountState
		status  string
		balance string
	)
	err := row.Scan(&st.ID, &st.CustomerID, &st.Number, &status, &balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountState{}, shared.ErrNotFound
		}
		return AccountState{}, shared.StorageErr("ledger: scan account", err)
	}
	st.Status = accounts.AccountStatus(status)
	st.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return AccountState{}, shared.StorageErr("ledger: parse balance", err)
	}
	return st, nil
}

func (r *repository) GetAccount(ctx context.Context, accountID int64) (AccountState, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountStateColumns+` FROM accounts WHERE id = $1`, accountID)
	return scanAccountState(row)
}

const transactionColumns = `id, account_id, type, amount::text, description, balance_after::text, related_account_id, transaction_date`

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var (
		t       Transaction
		typ     string
		amount  string
		balance string
	)
	err := row.Scan(&t.ID, &t.AccountID, &typ, &amount, &t.Description, &balance, &t.RelatedAccountID, &t.TransactionDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, shared.StorageErr("ledger: scan transaction", err)
	}
	t.Type = TransactionType(typ)
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, shared.StorageErr("ledger: parse amount", err)
	}
	if t.BalanceAfter, err = decimal.NewFromString(balance); err != nil {
		return nil, shared.StorageErr("ledger: parse balance_after", err)
	}
	return &t, nil
}

func (r *repository) GetTransaction(ctx context.Context, id int64) (*Transaction, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	return scanTransaction(row)
}

func (r *repository) History(ctx context.Context, accountID int64, f HistoryFilter) ([]Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE account_id = $1`
	args := []any{accountID}
	if !f.From.IsZero() && !f.To.IsZero() {
		query += fmt.Sprintf(` AND transaction_date BETWEEN $%d AND $%d`, len(args)+1, len(args)+2)
		args = append(args, f.From, f.To)
	}
	if f.Type != "" {
		query += fmt.Sprintf(` AND type = $%d`, len(args)+1)
		args = append(args, string(f.Type))
	}
	query += fmt.Sprintf(` ORDER BY transaction_date DESC, id DESC LIMIT $%d`, len(args)+1)
	args = append(args, clampLimit(f.Limit))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.StorageErr("ledger: history", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *repository) ListAll(ctx context.Context, limit int) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions ORDER BY transaction_date DESC, id DESC LIMIT $1`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, shared.StorageErr("ledger: list all", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]Transaction, error) {
	var transactions []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StorageErr("ledger: iterate", err)
	}
	return transactions, nil
}

func clampLimit(n int) int {
	if n <= 0 || n > maxListRows {
		return maxListRows
	}
	return n
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetAccountForUpdate(ctx context.Context, accountID int64) (AccountState, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+accountStateColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, accountID)
	return scanAccountState(row)
}

func (r *txRepository) UpdateBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE accounts SET balance = $1, updated_at = NOW() WHERE id = $2`,
		balance.StringFixed(2), accountID,
	)
	if err != nil {
		return shared.StorageErr("ledger: update balance", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) InsertTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	row := r.tx.QueryRow(ctx, `
		INSERT INTO transactions (account_id, type, amount, description, balance_after, related_account_id, transaction_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		t.AccountID, string(t.Type), t.Amount.StringFixed(2), t.Description,
		t.BalanceAfter.StringFixed(2), t.RelatedAccountID, t.TransactionDate,
	)
	if err := row.Scan(&t.ID); err != nil {
		return Transaction{}, shared.StorageErr("ledger: insert transaction", err)
	}
	return t, nil
}
