// Package cli implements the ledgerctl operational commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mini-erp/mini-erp/internal/app"
	"github.com/mini-erp/mini-erp/internal/fx"
	"github.com/mini-erp/mini-erp/internal/platform/db"
	"github.com/mini-erp/mini-erp/internal/reconcile"
)

var version = "dev"

// deps lazily opens the resources a command needs.
type deps struct {
	envFile string
	cfg     *app.Config
	logger  *slog.Logger
	pool    *pgxpool.Pool
}

func (rt *deps) config() (*app.Config, error) {
	if rt.cfg != nil {
		return rt.cfg, nil
	}
	cfg, err := app.LoadConfig(rt.envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	rt.cfg = cfg
	rt.logger = app.NewLogger(cfg)
	return cfg, nil
}

func (rt *deps) database(ctx context.Context) (*pgxpool.Pool, error) {
	if rt.pool != nil {
		return rt.pool, nil
	}
	cfg, err := rt.config()
	if err != nil {
		return nil, err
	}
	pool, err := db.New(ctx, cfg.PGDSN, db.PoolConfig{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return nil, err
	}
	rt.pool = pool
	return pool, nil
}

func (rt *deps) close() {
	if rt.pool != nil {
		rt.pool.Close()
	}
}

// NewRootCommand builds the ledgerctl command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&deps{})
}

func newRootCommand(rt *deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operate the mini-ERP ledger schema, reconciliation and exchange rates",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&rt.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(newMigrateCommand(rt), newReconcileCommand(rt), newFXCommand(rt), newJobsCommand(rt), newPruneKeysCommand(rt))
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rt := &deps{}
	defer rt.close()
	root := newRootCommand(rt)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		var code exitError
		if errors.As(err, &code) {
			return int(code)
		}
		fmt.Fprintf(stderr, "ledgerctl: %v\n", err)
		return 1
	}
	return 0
}

type exitError int

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

func newMigrateCommand(rt *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema to the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := rt.database(cmd.Context())
			if err != nil {
				return err
			}
			if err := db.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newPruneKeysCommand(rt *deps) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune-keys",
		Short: "Delete payment idempotency keys older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			pool, err := rt.database(cmd.Context())
			if err != nil {
				return err
			}
			removed, err := db.PruneKeys(cmd.Context(), pool, time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d key(s)\n", removed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "retention window")
	return cmd
}

func newReconcileCommand(rt *deps) *cobra.Command {
	var repair, enqueue, asJSON bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare cached balances with ledger and invoice rows",
		Example: `  # Report drift only
  ledgerctl reconcile

  # Rewrite drifted caches now
  ledgerctl reconcile --repair

  # Hand the run to the worker
  ledgerctl reconcile --enqueue --repair`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rt.config()
			if err != nil {
				return err
			}
			if enqueue {
				jobsCLI := NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
				defer jobsCLI.Close()
				info, err := jobsCLI.TriggerReconcile(cmd.Context(), repair)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as %s\n", info.Type, info.ID)
				return nil
			}
			pool, err := rt.database(cmd.Context())
			if err != nil {
				return err
			}
			report, err := reconcile.NewService(reconcile.NewRepository(pool), rt.logger).Run(cmd.Context(), reconcile.Options{Repair: repair})
			if err != nil {
				return err
			}
			if asJSON {
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(report); err != nil {
					return err
				}
			} else {
				renderReport(cmd.OutOrStdout(), report)
			}
			if !report.Clean() && !repair {
				return exitError(10)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "rewrite drifted caches to their computed values")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "enqueue the run for the worker instead of running it here")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func renderReport(out io.Writer, report reconcile.Report) {
	fmt.Fprintf(out, "Checked %d account(s) and %d customer(s).\n", report.CheckedAccounts, report.CheckedCustomers)
	if report.Clean() {
		fmt.Fprintln(out, "No drift detected.")
		return
	}
	fmt.Fprintf(out, "%d drift(s):\n", len(report.Drifts))
	for _, d := range report.Drifts {
		fmt.Fprintf(out, " - %s %d (%s): cached %s computed %s\n", d.Kind, d.ID, d.Label, d.Cached.StringFixed(2), d.Computed.StringFixed(2))
	}
	if report.Repaired > 0 {
		fmt.Fprintf(out, "Repaired %d balance(s).\n", report.Repaired)
	}
}

func (rt *deps) rateService(ctx context.Context) (*fx.Service, error) {
	pool, err := rt.database(ctx)
	if err != nil {
		return nil, err
	}
	return fx.NewService(fx.NewRepository(pool), rt.cfg.BaseCurrency), nil
}

func newFXCommand(rt *deps) *cobra.Command {
	cmd := &cobra.Command{Use: "fx", Short: "Manage exchange rates"}

	var from, to, rate, date string
	setRate := &cobra.Command{
		Use:   "set-rate",
		Short: "Store one exchange rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := decimal.NewFromString(strings.TrimSpace(rate))
			if err != nil {
				return fmt.Errorf("invalid --rate %q", rate)
			}
			in := fx.SetRateInput{From: from, To: to, Rate: value}
			if date != "" {
				if in.EffectiveDate, err = time.Parse(time.DateOnly, date); err != nil {
					return fmt.Errorf("invalid --date %q (expected YYYY-MM-DD)", date)
				}
			}
			svc, err := rt.rateService(cmd.Context())
			if err != nil {
				return err
			}
			stored, err := svc.SetRate(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s = %s effective %s\n", stored.From, stored.To, stored.Rate.String(), stored.EffectiveDate.Format(time.DateOnly))
			return nil
		},
	}
	setRate.Flags().StringVar(&from, "from", "", "source currency (ISO 4217)")
	setRate.Flags().StringVar(&to, "to", "", "target currency, defaults to the base currency")
	setRate.Flags().StringVar(&rate, "rate", "", "units of target per unit of source")
	setRate.Flags().StringVar(&date, "date", "", "effective date YYYY-MM-DD, defaults to today")
	_ = setRate.MarkFlagRequired("from")
	_ = setRate.MarkFlagRequired("rate")

	var apply, yes, asJSON bool
	importCmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Import exchange rates from CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.rateService(cmd.Context())
			if err != nil {
				return err
			}
			ops, err := NewFXOpsCLI(svc)
			if err != nil {
				return err
			}
			opts := FXImportOptions{
				Mode:       FXImportModeDry,
				Source:     args[0],
				JSONOutput: asJSON,
				Stdout:     cmd.OutOrStdout(),
				Stderr:     cmd.ErrOrStderr(),
				Stdin:      cmd.InOrStdin(),
			}
			if apply {
				opts.Mode = FXImportModeApply
			}
			if yes {
				opts.Confirm = func(io.Reader, io.Writer) (bool, error) { return true, nil }
			}
			if code := ops.ImportCommand(cmd.Context(), opts); code != 0 {
				return exitError(code)
			}
			return nil
		},
	}
	importCmd.Flags().BoolVar(&apply, "apply", false, "store the rates instead of previewing them")
	importCmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	importCmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")

	cmd.AddCommand(setRate, importCmd)
	return cmd
}

func newJobsCommand(rt *deps) *cobra.Command {
	cmd := &cobra.Command{Use: "jobs", Short: "Inspect background jobs"}
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print default queue statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rt.config()
			if err != nil {
				return err
			}
			jobsCLI := NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
			defer jobsCLI.Close()
			stats, err := jobsCLI.InspectQueue()
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(stats)
		},
	})
	return cmd
}
