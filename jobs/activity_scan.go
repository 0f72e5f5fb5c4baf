package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/ledgerline/ledgerline/internal/jobs"
)

// ActivityScanJob inspects daily outflow per account looking for unusual spikes.
type ActivityScanJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewActivityScanJob initialises the activity scan handler.
func NewActivityScanJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *ActivityScanJob {
	return &ActivityScanJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the activity scan logic.
func (j *ActivityScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("activity scan: handler not configured")
	}
	var payload ActivityScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.WindowDays <= 0 {
		payload.WindowDays = 30
	}
	if payload.Z <= 0 {
		payload.Z = 2.5
	}

	start := j.now()
	tracker := j.metrics().Track(TaskLedgerActivityScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.Int("window_days", payload.WindowDays),
		slog.Float64("z_threshold", payload.Z),
	)
	logger.Info("starting activity scan")

	accounts, anomalies, err := j.scan(ctx, payload, start)
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}

	for _, a := range anomalies {
		logger.Warn("unusual account activity",
			slog.Int64("account_id", a.AccountID),
			slog.String("day", a.Day),
			slog.String("severity", a.Severity),
			slog.Float64("z_score", a.ZScore),
			slog.Float64("outflow", a.Outflow),
		)
		j.metrics().AddAnomalies(a.Severity, 1)
	}

	logger.Info("completed activity scan",
		slog.Int("accounts", accounts),
		slog.Int("anomalies", len(anomalies)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *ActivityScanJob) scan(ctx context.Context, payload ActivityScanPayload, now time.Time) (int, []activityAnomaly, error) {
	if j.Pool == nil {
		return 0, nil, errors.New("activity scan: pool not configured")
	}
	from := now.AddDate(0, 0, -payload.WindowDays)
	rows, err := j.Pool.Query(ctx, `
		SELECT account_id, transaction_date::date::text AS day, SUM(amount)::double precision
		FROM transactions
		WHERE type IN ('WITHDRAWAL', 'TRANSFER_OUT') AND transaction_date >= $1
		GROUP BY account_id, day
		ORDER BY account_id, day`, from)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	series := make(map[int64]*outflowSeries)
	for rows.Next() {
		var accountID int64
		var day string
		var outflow float64
		if err := rows.Scan(&accountID, &day, &outflow); err != nil {
			return 0, nil, err
		}
		entry, ok := series[accountID]
		if !ok {
			entry = &outflowSeries{AccountID: accountID}
			series[accountID] = entry
		}
		entry.Days = append(entry.Days, day)
		entry.Values = append(entry.Values, outflow)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}

	anomalies := make([]activityAnomaly, 0)
	for _, entry := range series {
		if len(entry.Values) < 3 {
			continue
		}
		last := entry.Values[len(entry.Values)-1]
		severity, zscore := classifyOutflow(entry.Values[:len(entry.Values)-1], last, payload.Z)
		if severity == "" {
			continue
		}
		anomalies = append(anomalies, activityAnomaly{
			AccountID: entry.AccountID,
			Day:       entry.Days[len(entry.Days)-1],
			Severity:  severity,
			ZScore:    zscore,
			Outflow:   last,
		})
	}

	return len(series), anomalies, nil
}

// classifyOutflow scores the latest daily outflow against the account's history.
// It returns an empty severity when the value is unremarkable.
func classifyOutflow(history []float64, last float64, z float64) (string, float64) {
	if len(history) < 2 {
		return "", 0
	}
	mean := average(history)
	stddev := std(history, mean)
	if stddev == 0 {
		return "", 0
	}
	zscore := math.Abs((last - mean) / stddev)
	switch {
	case zscore >= z:
		return "HIGH", zscore
	case zscore >= z*0.6:
		return "MEDIUM", zscore
	default:
		return "", zscore
	}
}

func (j *ActivityScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerActivityScan))
	}
	return slog.Default().With(slog.String("job", TaskLedgerActivityScan))
}

func (j *ActivityScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ActivityScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

type outflowSeries struct {
	AccountID int64
	Days      []string
	Values    []float64
}

type activityAnomaly struct {
	AccountID int64
	Day       string
	Severity  string
	ZScore    float64
	Outflow   float64
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func std(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var variance float64
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values) - 1)
	return math.Sqrt(variance)
}
