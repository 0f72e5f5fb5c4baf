package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/ledgerline/ledgerline/internal/jobs"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// Reserved idempotency keys outlive any sane client retry loop by a wide
// margin before the purge drops them.
const idempotencyRetention = 48 * time.Hour

// SessionPurgeJob removes login session records that expired and sweeps
// idempotency keys past their retention window. Live sessions age out of
// Redis on their own; this keeps the Postgres copies bounded.
type SessionPurgeJob struct {
	Pool        *pgxpool.Pool
	Idempotency *shared.IdempotencyStore
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
}

// NewSessionPurgeJob initialises the purge handler.
func NewSessionPurgeJob(pool *pgxpool.Pool, idem *shared.IdempotencyStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionPurgeJob {
	return &SessionPurgeJob{Pool: pool, Idempotency: idem, Logger: logger, Metrics: metrics}
}

// Handle executes the purge.
func (j *SessionPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("session purge: handler not configured")
	}

	start := time.Now()
	tracker := j.metrics().Track(TaskSessionPurge)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	if j.Pool == nil {
		resultErr = errors.New("session purge: pool not configured")
		return resultErr
	}

	tag, err := j.Pool.Exec(ctx, `DELETE FROM login_sessions WHERE expires_at < NOW()`)
	if err != nil {
		resultErr = err
		logger.Error("purge failed", slog.Any("error", err))
		return resultErr
	}

	var sweptKeys int64
	if j.Idempotency != nil {
		sweptKeys, err = j.Idempotency.Sweep(ctx, idempotencyRetention)
		if err != nil {
			resultErr = err
			logger.Error("idempotency sweep failed", slog.Any("error", err))
			return resultErr
		}
	}

	logger.Info("completed session purge",
		slog.Int64("sessions_removed", tag.RowsAffected()),
		slog.Int64("idempotency_keys_removed", sweptKeys),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *SessionPurgeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSessionPurge))
	}
	return slog.Default().With(slog.String("job", TaskSessionPurge))
}

func (j *SessionPurgeJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
