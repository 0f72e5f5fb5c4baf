package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/ledgerline/ledgerline/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// LedgerIntegrityJob cross-checks stored account balances against the latest
// transaction checkpoint.
type LedgerIntegrityJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewLedgerIntegrityJob initialises the integrity scan handler.
func NewLedgerIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type integrityAccount struct {
	ID      int64
	Status  string
	Balance decimal.Decimal
}

type integrityFinding struct {
	AccountID int64
	Kind      string
}

// Handle executes the integrity scan.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("integrity scan: handler not configured")
	}
	var payload IntegrityScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.Concurrency <= 0 {
		payload.Concurrency = 4
	}

	start := j.now()
	tracker := j.metrics().Track(TaskLedgerIntegrityScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting integrity scan", slog.Int("concurrency", payload.Concurrency))

	accounts, err := j.fetchAccounts(ctx)
	if err != nil {
		resultErr = err
		logger.Error("load accounts", slog.Any("error", err))
		return resultErr
	}

	findings, err := j.scan(ctx, accounts, payload.Concurrency)
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}

	for _, f := range findings {
		logger.Warn("integrity finding",
			slog.Int64("account_id", f.AccountID),
			slog.String("kind", f.Kind),
		)
		j.metrics().AddFindings(f.Kind, 1)
	}

	logger.Info("completed integrity scan",
		slog.Int("accounts", len(accounts)),
		slog.Int("findings", len(findings)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *LedgerIntegrityJob) fetchAccounts(ctx context.Context) ([]integrityAccount, error) {
	if j.Pool == nil {
		return nil, errors.New("integrity scan: pool not configured")
	}
	rows, err := j.Pool.Query(ctx, `SELECT id, status, balance::text FROM accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]integrityAccount, 0)
	for rows.Next() {
		var acc integrityAccount
		var balance string
		if err := rows.Scan(&acc.ID, &acc.Status, &balance); err != nil {
			return nil, err
		}
		acc.Balance, err = decimal.NewFromString(balance)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

func (j *LedgerIntegrityJob) scan(ctx context.Context, accounts []integrityAccount, concurrency int) ([]integrityFinding, error) {
	var mu sync.Mutex
	findings := make([]integrityFinding, 0)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, acc := range accounts {
		acc := acc
		g.Go(func() error {
			checkpoint, err := j.latestCheckpoint(ctx, acc.ID)
			if err != nil {
				return err
			}
			kinds := classifyAccount(acc.Status, acc.Balance, checkpoint)
			if len(kinds) == 0 {
				return nil
			}
			mu.Lock()
			for _, kind := range kinds {
				findings = append(findings, integrityFinding{AccountID: acc.ID, Kind: kind})
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return findings, nil
}

// latestCheckpoint returns the balance_after of the account's newest transaction,
// or nil when the account has none.
func (j *LedgerIntegrityJob) latestCheckpoint(ctx context.Context, accountID int64) (*decimal.Decimal, error) {
	var raw string
	err := j.Pool.QueryRow(ctx, `
		SELECT balance_after::text FROM transactions
		WHERE account_id = $1
		ORDER BY transaction_date DESC, id DESC
		LIMIT 1`, accountID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// classifyAccount reports which invariants the account violates. The checkpoint
// is the balance_after of the newest transaction, nil when there is none.
func classifyAccount(status string, balance decimal.Decimal, checkpoint *decimal.Decimal) []string {
	kinds := make([]string, 0, 2)
	if balance.IsNegative() {
		kinds = append(kinds, "negative_balance")
	}
	if status == "CLOSED" && !balance.IsZero() {
		kinds = append(kinds, "closed_nonzero")
	}
	switch {
	case checkpoint == nil && !balance.IsZero():
		kinds = append(kinds, "missing_checkpoint")
	case checkpoint != nil && !checkpoint.Equal(balance):
		kinds = append(kinds, "checkpoint_mismatch")
	}
	return kinds
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrityScan))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrityScan))
}

func (j *LedgerIntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LedgerIntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
