// Command seed loads a small demo ledger through the domain services so every
// cached balance starts consistent with the rows behind it.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mini-erp/mini-erp/internal/accounting"
	"github.com/mini-erp/mini-erp/internal/app"
	"github.com/mini-erp/mini-erp/internal/ar"
	"github.com/mini-erp/mini-erp/internal/fx"
	"github.com/mini-erp/mini-erp/internal/partners"
	"github.com/mini-erp/mini-erp/internal/platform/db"
	"github.com/mini-erp/mini-erp/internal/shared"
)

const seedActor int64 = 1

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig(".env")
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolConfig{MaxConns: 2})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("migrate", slog.Any("error", err))
		os.Exit(1)
	}

	ledger := accounting.NewService(accounting.NewRepository(pool), logger, accounting.ServiceConfig{BaseCurrency: cfg.BaseCurrency})
	receivables := ar.NewService(ar.NewRepository(pool), logger, ar.ServiceConfig{BaseCurrency: cfg.BaseCurrency})
	parties := partners.NewService(partners.NewRepository(pool), logger)
	rates := fx.NewService(fx.NewRepository(pool), cfg.BaseCurrency)

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"exchange rates", func(ctx context.Context) error { return seedRates(ctx, rates) }},
		{"ledger", func(ctx context.Context) error { return seedLedger(ctx, ledger) }},
		{"receivables", func(ctx context.Context) error { return seedReceivables(ctx, parties, receivables) }},
	}
	for _, step := range steps {
		fmt.Printf("→ Seeding %s...\n", step.name)
		if err := step.run(ctx); err != nil {
			logger.Error("seed failed", slog.String("step", step.name), slog.Any("error", err))
			os.Exit(1)
		}
	}
	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func seedRates(ctx context.Context, rates *fx.Service) error {
	for code, rate := range map[string]string{"EUR": "1.0825", "GBP": "1.2650", "IDR": "0.000062"} {
		if code == rates.Base() {
			continue
		}
		if _, err := rates.SetRate(ctx, fx.SetRateInput{From: code, Rate: decimal.RequireFromString(rate)}); err != nil {
			return err
		}
	}
	return nil
}

func seedLedger(ctx context.Context, ledger *accounting.Service) error {
	chart := []accounting.CreateAccountInput{
		{Code: "1000", Name: "Cash", Type: accounting.AccountTypeAsset},
		{Code: "1100", Name: "Accounts Receivable", Type: accounting.AccountTypeAsset},
		{Code: "3000", Name: "Owner Equity", Type: accounting.AccountTypeEquity},
		{Code: "4000", Name: "Service Revenue", Type: accounting.AccountTypeRevenue},
		{Code: "6000", Name: "Office Expense", Type: accounting.AccountTypeExpense},
	}
	ids := map[string]int64{}
	for _, in := range chart {
		acc, err := ledger.CreateAccount(ctx, in)
		if errors.Is(err, shared.ErrConstraintViolation) {
			fmt.Printf("  account %s exists, skipping ledger seed\n", in.Code)
			return nil
		}
		if err != nil {
			return err
		}
		ids[in.Code] = acc.ID
	}

	line := func(code, debit, credit string) accounting.PostingLineInput {
		return accounting.PostingLineInput{AccountID: ids[code], Debit: decimal.RequireFromString(debit), Credit: decimal.RequireFromString(credit)}
	}
	day := shared.StartOfDay(time.Now())
	entries := []accounting.PostingInput{
		{Date: day, Description: "Owner contribution", Reference: "SEED-1", CreatedBy: seedActor,
			Lines: []accounting.PostingLineInput{line("1000", "10000", "0"), line("3000", "0", "10000")}},
		{Date: day, Description: "Office supplies", Reference: "SEED-2", CreatedBy: seedActor,
			Lines: []accounting.PostingLineInput{line("6000", "250.75", "0"), line("1000", "0", "250.75")}},
	}
	for _, in := range entries {
		res, err := ledger.PostJournalEntry(ctx, in)
		if err != nil {
			return err
		}
		if _, err := ledger.ApproveJournalEntry(ctx, res.Entry.ID, seedActor); err != nil {
			return err
		}
	}
	return nil
}

func seedReceivables(ctx context.Context, parties *partners.Service, receivables *ar.Service) error {
	customer, err := parties.CreateCustomer(ctx, partners.CustomerInput{
		Name: "Acme Corporation", ContactPerson: "Dana Reyes", Email: "billing@acme.example",
		CreditLimit: decimal.RequireFromString("50000"),
	})
	if err != nil {
		return err
	}
	if _, err := parties.CreateVendor(ctx, partners.VendorInput{Name: "Paper & Co", PaymentTerms: "NET30"}); err != nil {
		return err
	}

	now := shared.StartOfDay(time.Now())
	invoices := []ar.CreateInvoiceInput{
		{Number: fmt.Sprintf("SEED-%d-001", customer.ID), CustomerID: customer.ID, InvoiceDate: now.AddDate(0, 0, -45),
			DueDate: now.AddDate(0, 0, -15), TotalAmount: decimal.RequireFromString("1200"), CreatedBy: seedActor},
		{Number: fmt.Sprintf("SEED-%d-002", customer.ID), CustomerID: customer.ID, InvoiceDate: now, Currency: "EUR",
			DueDate: now.AddDate(0, 0, 30), TotalAmount: decimal.RequireFromString("800"), CreatedBy: seedActor},
	}
	for i, in := range invoices {
		inv, err := receivables.CreateInvoice(ctx, in)
		if err != nil {
			return err
		}
		if i == 0 {
			_, err = receivables.RecordPayment(ctx, ar.RecordPaymentInput{
				InvoiceID: inv.ID, Amount: decimal.RequireFromString("500"), PaymentMethod: "bank", ActorID: seedActor,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}
