package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
)

const defaultConcurrency = 5

// WorkerConfig configures the task server.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Logger      *slog.Logger
	Concurrency int
}

// Worker processes queued tasks and, once something is scheduled, enqueues
// cron tasks from the same process.
type Worker struct {
	redis     asynq.RedisClientOpt
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// NewWorker builds a worker. Handlers and schedules are added before Run.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	server := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueDefault: 1},
		Logger:      asynqLogger{logger.With(slog.String("component", "asynq"))},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			logger.ErrorContext(ctx, "task failed",
				slog.String("type", task.Type()),
				slog.Int("retried", retried),
				slog.Any("error", err),
			)
		}),
	})
	return &Worker{redis: cfg.RedisOpts, server: server, mux: asynq.NewServeMux(), logger: logger}
}

// Handle routes tasks of taskType to fn.
func (w *Worker) Handle(taskType string, fn asynq.HandlerFunc) {
	w.mux.HandleFunc(taskType, fn)
}

// Schedule enqueues task on the cron spec, evaluated in UTC.
func (w *Worker) Schedule(spec string, task *asynq.Task, opts ...asynq.Option) error {
	if task == nil {
		return errors.New("worker: nil scheduled task")
	}
	if w.scheduler == nil {
		w.scheduler = asynq.NewScheduler(w.redis, &asynq.SchedulerOpts{
			Location: time.UTC,
			Logger:   asynqLogger{w.logger.With(slog.String("component", "scheduler"))},
		})
	}
	if _, err := w.scheduler.Register(spec, task, opts...); err != nil {
		return fmt.Errorf("worker: schedule %s on %q: %w", task.Type(), spec, err)
	}
	return nil
}

// Run serves tasks until ctx is cancelled, then drains in-flight work.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return errors.New("worker: not configured")
	}
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("worker: start server: %w", err)
	}
	defer w.server.Shutdown()
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return fmt.Errorf("worker: start scheduler: %w", err)
		}
		defer w.scheduler.Shutdown()
	}
	<-ctx.Done()
	w.logger.Info("worker stopping")
	return nil
}

// asynqLogger routes asynq's internal logging through slog.
type asynqLogger struct{ l *slog.Logger }

func (a asynqLogger) Debug(args ...any) { a.l.Debug(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...any)  { a.l.Info(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...any) { a.l.Error(fmt.Sprint(args...)) }

func (a asynqLogger) Fatal(args ...any) {
	a.l.Error(fmt.Sprint(args...))
	os.Exit(1)
}
