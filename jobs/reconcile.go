package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/mini-erp/mini-erp/internal/jobs"
	"github.com/mini-erp/mini-erp/internal/reconcile"
	"github.com/mini-erp/mini-erp/internal/shared"
)

// DefaultReconcileLockTTL bounds how long a crashed worker can block others.
const DefaultReconcileLockTTL = 10 * time.Minute

// Reconciler runs a reconciliation.
type Reconciler interface {
	Run(ctx context.Context, opts reconcile.Options) (reconcile.Report, error)
}

// ReconcileJob runs the reconciliation under a Redis lock so at most one
// worker touches the caches at a time.
type ReconcileJob struct {
	Service Reconciler
	Locker  *redislock.Client
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	LockTTL time.Duration
}

// NewReconcileJob constructs the job handler.
func NewReconcileJob(service Reconciler, locker *redislock.Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconcileJob {
	return &ReconcileJob{Service: service, Locker: locker, Logger: logger, Metrics: metrics, LockTTL: DefaultReconcileLockTTL}
}

// Handle executes the reconcile job.
func (j *ReconcileJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Service == nil || j.Locker == nil {
		return errors.New("reconcile: dependencies not configured")
	}
	var payload ReconcilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	logger := j.log().With(slog.String("request_id", payload.traceID(ctx)))

	ttl := j.LockTTL
	if ttl <= 0 {
		ttl = DefaultReconcileLockTTL
	}
	lock, err := j.Locker.Obtain(ctx, shared.ReconcileLockKey(""), ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		logger.Info("reconciliation already running elsewhere, skipping")
		j.metrics().Skip(TaskLedgerReconcile)
		return nil
	}
	if err != nil {
		logger.Error("obtain reconcile lock", slog.Any("error", err))
		return err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.Warn("release reconcile lock", slog.Any("error", err))
		}
	}()

	return j.metrics().Observe(TaskLedgerReconcile, func() error {
		report, err := j.Service.Run(ctx, reconcile.Options{Repair: payload.Repair})
		if err != nil {
			logger.Error("reconcile balances", slog.Any("error", err))
			return err
		}
		var accounts, customers int
		for _, d := range report.Drifts {
			if d.Kind == reconcile.KindAccount {
				accounts++
			} else {
				customers++
			}
		}
		j.metrics().CountDrifts(string(reconcile.KindAccount), accounts)
		j.metrics().CountDrifts(string(reconcile.KindCustomer), customers)
		j.metrics().CountRepaired(TaskLedgerReconcile, report.Repaired)
		logger.Info("reconciled balances",
			slog.Int("drifts", len(report.Drifts)),
			slog.Int("repaired", report.Repaired),
			slog.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
		)
		return nil
	})
}

// traceID prefers the caller's request id, then the asynq task id.
func (p ReconcilePayload) traceID(ctx context.Context) string {
	if p.RequestID != "" {
		return p.RequestID
	}
	if id, ok := asynq.GetTaskID(ctx); ok {
		return id
	}
	return uuid.NewString()
}

func (j *ReconcileJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *ReconcileJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerReconcile))
	}
	return slog.Default().With(slog.String("job", TaskLedgerReconcile))
}
