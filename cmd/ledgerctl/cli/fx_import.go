package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mini-erp/mini-erp/internal/fx"
)

// RateSetter stores one exchange rate.
type RateSetter interface {
	SetRate(ctx context.Context, in fx.SetRateInput) (fx.ExchangeRate, error)
}

// FXImportMode enumerates supported execution strategies.
type FXImportMode string

const (
	// FXImportModeDry parses and reports rates without storing them.
	FXImportModeDry FXImportMode = "dry"
	// FXImportModeApply stores rates after confirmation.
	FXImportModeApply FXImportMode = "apply"
)

// FXImportOptions configures the import command execution.
type FXImportOptions struct {
	Mode         FXImportMode
	Source       string
	SourceReader io.Reader
	JSONOutput   bool
	Stdout       io.Writer
	Stderr       io.Writer
	Stdin        io.Reader
	Confirm      func(io.Reader, io.Writer) (bool, error)
}

// FXImportRow is one rate read from the source.
type FXImportRow struct {
	From          string          `json:"from_currency"`
	To            string          `json:"to_currency"`
	Rate          decimal.Decimal `json:"rate"`
	EffectiveDate string          `json:"effective_date"`
}

// FXImportSummary captures the structured reporting outcome.
type FXImportSummary struct {
	Mode    FXImportMode  `json:"mode"`
	Rows    []FXImportRow `json:"rows"`
	Applied int           `json:"applied"`
}

// FXOpsCLI offers operational helpers to manage exchange rates.
type FXOpsCLI struct {
	rates RateSetter
}

// NewFXOpsCLI constructs a new helper instance.
func NewFXOpsCLI(rates RateSetter) (*FXOpsCLI, error) {
	if rates == nil {
		return nil, errors.New("fx cli: rate service required")
	}
	return &FXOpsCLI{rates: rates}, nil
}

// ImportCommand reads rates from CSV (columns from, to, rate, effective_date)
// and stores them in apply mode. It returns the process exit code.
func (c *FXOpsCLI) ImportCommand(ctx context.Context, opts FXImportOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Mode == "" {
		opts.Mode = FXImportModeDry
	}
	mode := FXImportMode(strings.ToLower(string(opts.Mode)))
	switch mode {
	case FXImportModeDry, FXImportModeApply:
	default:
		fmt.Fprintf(opts.Stderr, "fx import: invalid mode %q (expected dry or apply)\n", opts.Mode)
		return 1
	}
	rows, err := loadImportRows(opts)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "fx import: %v\n", err)
		return 1
	}
	summary := FXImportSummary{Mode: mode, Rows: rows}
	if mode == FXImportModeDry || len(rows) == 0 {
		if err := writeImportOutput(opts, summary); err != nil {
			fmt.Fprintf(opts.Stderr, "fx import: %v\n", err)
			return 1
		}
		return 0
	}
	confirm := opts.Confirm
	if confirm == nil {
		confirm = defaultImportConfirm
	}
	ok, err := confirm(opts.Stdin, opts.Stdout)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "fx import: confirmation failed: %v\n", err)
		return 1
	}
	if !ok {
		fmt.Fprintln(opts.Stderr, "fx import: cancelled by user")
		return 1
	}
	for _, row := range rows {
		date, _ := time.Parse(time.DateOnly, row.EffectiveDate)
		if _, err := c.rates.SetRate(ctx, fx.SetRateInput{From: row.From, To: row.To, Rate: row.Rate, EffectiveDate: date}); err != nil {
			fmt.Fprintf(opts.Stderr, "fx import: apply %s/%s %s: %v\n", row.From, row.To, row.EffectiveDate, err)
			return 1
		}
		summary.Applied++
	}
	if err := writeImportOutput(opts, summary); err != nil {
		fmt.Fprintf(opts.Stderr, "fx import: %v\n", err)
		return 1
	}
	return 0
}

func loadImportRows(opts FXImportOptions) ([]FXImportRow, error) {
	var data []byte
	var err error
	switch {
	case opts.SourceReader != nil:
		data, err = io.ReadAll(opts.SourceReader)
	case opts.Source == "-":
		data, err = io.ReadAll(opts.Stdin)
	case strings.TrimSpace(opts.Source) == "":
		return nil, errors.New("source file required")
	default:
		data, err = os.ReadFile(opts.Source)
	}
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	header, err := nextNonEmptyRecord(reader)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	indexes := map[string]int{"from": -1, "to": -1, "rate": -1, "effective_date": -1}
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "from", "from_currency":
			indexes["from"] = i
		case "to", "to_currency":
			indexes["to"] = i
		case "rate":
			indexes["rate"] = i
		case "effective_date", "date":
			indexes["effective_date"] = i
		}
	}
	for col, idx := range indexes {
		if idx < 0 && col != "to" {
			return nil, fmt.Errorf("missing required column %q in source (need from, rate, effective_date)", col)
		}
	}
	var rows []FXImportRow
	for line := 2; ; line++ {
		record, err := nextNonEmptyRecord(reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		field := func(name string) string {
			idx := indexes[name]
			if idx < 0 || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}
		from, err := fx.NormalizeCurrency(field("from"))
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", line, err)
		}
		to := ""
		if raw := field("to"); raw != "" {
			if to, err = fx.NormalizeCurrency(raw); err != nil {
				return nil, fmt.Errorf("record %d: %w", line, err)
			}
		}
		rate, err := decimal.NewFromString(field("rate"))
		if err != nil || !rate.IsPositive() {
			return nil, fmt.Errorf("record %d: invalid rate %q", line, field("rate"))
		}
		date, err := time.Parse(time.DateOnly, field("effective_date"))
		if err != nil {
			return nil, fmt.Errorf("record %d: invalid effective_date %q (expected YYYY-MM-DD)", line, field("effective_date"))
		}
		rows = append(rows, FXImportRow{From: from, To: to, Rate: rate, EffectiveDate: date.Format(time.DateOnly)})
	}
	return rows, nil
}

func nextNonEmptyRecord(r *csv.Reader) ([]string, error) {
	for {
		record, err := r.Read()
		if err != nil {
			return nil, err
		}
		skip := true
		for _, field := range record {
			trimmed := strings.TrimSpace(field)
			if trimmed == "" || strings.HasPrefix(trimmed, "#") {
				continue
			}
			skip = false
		}
		if skip {
			continue
		}
		return record, nil
	}
}

func writeImportOutput(opts FXImportOptions, summary FXImportSummary) error {
	if opts.JSONOutput {
		return json.NewEncoder(opts.Stdout).Encode(summary)
	}
	fmt.Fprintf(opts.Stdout, "FX import (%s): %d rate(s)\n", summary.Mode, len(summary.Rows))
	for _, row := range summary.Rows {
		to := row.To
		if to == "" {
			to = "base"
		}
		fmt.Fprintf(opts.Stdout, " - %s %s/%s %s\n", row.EffectiveDate, row.From, to, row.Rate.String())
	}
	if summary.Mode == FXImportModeApply {
		fmt.Fprintf(opts.Stdout, "Applied %d rate(s).\n", summary.Applied)
	}
	return nil
}

func defaultImportConfirm(r io.Reader, w io.Writer) (bool, error) {
	fmt.Fprint(w, "Store these exchange rates? Type YES to confirm: ")
	reader := bufio.NewReader(r)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(line), "YES"), nil
}
