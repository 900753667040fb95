package accounting

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mini-erp/mini-erp/internal/fx"
	"github.com/mini-erp/mini-erp/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// ServiceConfig carries ledger defaults.
type ServiceConfig struct {
	BaseCurrency string
}

// Service coordinates posting, approving, reversing and deleting journal
// entries together with chart of accounts maintenance.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	cfg    ServiceConfig
	now    func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseCurrency == "" {
		cfg.BaseCurrency = fx.DefaultBaseCurrency
	}
	return &Service{repo: repo, logger: logger, cfg: cfg, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PostJournalEntry validates and persists a new journal entry, applying each
// line to its account balance. Nothing is persisted when the totals differ by
// more than the tolerance.
func (s *Service) PostJournalEntry(ctx context.Context, input PostingInput) (PostingResult, error) {
	if err := input.Validate(); err != nil {
		return PostingResult{}, err
	}
	var result PostingResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		result, err = post(ctx, tx, input)
		return err
	})
	if err != nil {
		return PostingResult{}, err
	}
	s.logger.InfoContext(ctx, "journal entry posted",
		slog.Int64("entry_id", result.Entry.ID),
		slog.Int("lines", len(result.Entry.Lines)),
		slog.String("total", result.TotalDebit.StringFixed(2)),
	)
	return result, nil
}

func post(ctx context.Context, tx TxRepository, input PostingInput) (PostingResult, error) {
	entry, err := tx.InsertJournalEntry(ctx, input)
	if err != nil {
		return PostingResult{}, err
	}
	debit, credit := decimal.Zero, decimal.Zero
	for idx, line := range input.Lines {
		inserted, err := tx.InsertTransactionLine(ctx, entry.ID, idx+1, line)
		if err != nil {
			return PostingResult{}, lineError(idx+1, line.AccountID, err)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
		entry.Lines = append(entry.Lines, inserted)
	}
	// Balance rows are locked in account id order, the same order for every
	// entry.
	order := make([]int, len(input.Lines))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(input.Lines[a].AccountID, input.Lines[b].AccountID)
	})
	for _, idx := range order {
		line := input.Lines[idx]
		if err := tx.AdjustAccountBalance(ctx, line.AccountID, line.Delta()); err != nil {
			return PostingResult{}, lineError(idx+1, line.AccountID, err)
		}
	}
	if !shared.WithinTolerance(debit, credit) {
		return PostingResult{}, &UnbalancedEntryError{Debit: debit, Credit: credit}
	}
	return PostingResult{Entry: entry, TotalDebit: debit, TotalCredit: credit}, nil
}

func lineError(lineNo int, accountID int64, err error) error {
	if errors.Is(err, shared.ErrUnknownReference) || errors.Is(err, shared.ErrNotFound) {
		return &UnknownAccountError{Line: lineNo, AccountID: accountID}
	}
	return err
}

// ApproveJournalEntry marks a draft entry approved. Balances were applied at
// posting time and are left untouched.
func (s *Service) ApproveJournalEntry(ctx context.Context, entryID, approverID int64) (JournalEntry, error) {
	if entryID <= 0 {
		return JournalEntry{}, shared.Validationf("accounting: entry id required")
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetJournalWithLines(ctx, entryID, true)
		if err != nil {
			return err
		}
		if current.Status == JournalStatusApproved {
			return fmt.Errorf("accounting: entry %d: %w", entryID, shared.ErrAlreadyApproved)
		}
		approved, err := tx.MarkJournalApproved(ctx, entryID, approverID, s.now())
		if err != nil {
			return err
		}
		approved.Lines = current.Lines
		entry = approved
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.logger.InfoContext(ctx, "journal entry approved", slog.Int64("entry_id", entryID), slog.Int64("approver_id", approverID))
	return entry, nil
}

// ReverseJournalEntry posts a new entry that swaps debit and credit of every
// line of an approved entry. The original is left unchanged.
func (s *Service) ReverseJournalEntry(ctx context.Context, input ReverseInput) (PostingResult, error) {
	if input.EntryID <= 0 {
		return PostingResult{}, shared.Validationf("accounting: entry id required")
	}
	var result PostingResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetJournalWithLines(ctx, input.EntryID, true)
		if err != nil {
			return err
		}
		if original.Status != JournalStatusApproved {
			return fmt.Errorf("accounting: reverse entry %d in status %s: %w", original.ID, original.Status, shared.ErrInvalidStatus)
		}
		date := shared.StartOfDay(s.now())
		if input.Date != nil {
			date = *input.Date
		}
		posting := PostingInput{
			Date:        date,
			Description: defaultReversalDescription(input.Description, original.ID),
			Reference:   fmt.Sprintf("REV-%d", original.ID),
			CreatedBy:   input.ActorID,
			Lines:       reverseLines(original.Lines),
		}
		if err := posting.Validate(); err != nil {
			return err
		}
		result, err = post(ctx, tx, posting)
		return err
	})
	if err != nil {
		return PostingResult{}, err
	}
	s.logger.InfoContext(ctx, "journal entry reversed", slog.Int64("entry_id", input.EntryID), slog.Int64("reversal_id", result.Entry.ID))
	return result, nil
}

func reverseLines(lines []TransactionLine) []PostingLineInput {
	out := make([]PostingLineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, PostingLineInput{
			AccountID:   line.AccountID,
			Debit:       line.Credit,
			Credit:      line.Debit,
			Description: line.Description,
		})
	}
	return out
}

func defaultReversalDescription(desc string, id int64) string {
	if desc != "" {
		return desc
	}
	return fmt.Sprintf("Reversal of JE %d", id)
}

// DeleteJournalEntry removes a draft entry and takes its lines back out of the
// account balances.
func (s *Service) DeleteJournalEntry(ctx context.Context, entryID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entry, err := tx.GetJournalWithLines(ctx, entryID, true)
		if err != nil {
			return err
		}
		if entry.Status != JournalStatusDraft {
			return fmt.Errorf("accounting: delete entry %d in status %s: %w", entryID, entry.Status, shared.ErrInvalidStatus)
		}
		for _, line := range entry.Lines {
			if err := tx.AdjustAccountBalance(ctx, line.AccountID, line.Delta().Neg()); err != nil {
				return err
			}
		}
		return tx.DeleteJournalEntry(ctx, entryID)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "journal entry deleted", slog.Int64("entry_id", entryID))
	return nil
}

// GetJournalEntry returns a journal header with its lines.
func (s *Service) GetJournalEntry(ctx context.Context, entryID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = tx.GetJournalWithLines(ctx, entryID, false)
		return err
	})
	return entry, err
}

// ListJournalEntries retrieves all journal entries, newest first.
func (s *Service) ListJournalEntries(ctx context.Context) ([]JournalEntry, error) {
	var entries []JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entries, err = tx.ListJournalEntries(ctx)
		return err
	})
	return entries, err
}

// CreateAccount adds a chart of accounts node with a zero balance.
func (s *Service) CreateAccount(ctx context.Context, input CreateAccountInput) (Account, error) {
	input.Code = strings.TrimSpace(input.Code)
	input.Name = strings.TrimSpace(input.Name)
	if err := input.Validate(); err != nil {
		return Account{}, err
	}
	if input.Currency == "" {
		input.Currency = s.cfg.BaseCurrency
	}
	code, err := fx.NormalizeCurrency(input.Currency)
	if err != nil {
		return Account{}, err
	}
	input.Currency = code
	var account Account
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		account, err = tx.InsertAccount(ctx, input)
		return err
	})
	if err != nil {
		return Account{}, err
	}
	s.logger.InfoContext(ctx, "account created", slog.Int64("account_id", account.ID), slog.String("code", account.Code))
	return account, nil
}

// UpdateAccount applies a partial update. The balance is never written here.
func (s *Service) UpdateAccount(ctx context.Context, id int64, patch AccountPatch) (Account, error) {
	if patch.Type != nil && !patch.Type.Valid() {
		return Account{}, shared.Validationf("accounting: unknown account type %q", *patch.Type)
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return Account{}, shared.Validationf("accounting: account name required")
	}
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		account, err = tx.UpdateAccount(ctx, id, patch)
		return err
	})
	return account, err
}

// DeleteAccount removes an account that no line references.
func (s *Service) DeleteAccount(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteAccount(ctx, id)
	})
}

// GetAccount loads one account.
func (s *Service) GetAccount(ctx context.Context, id int64) (Account, error) {
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		account, err = tx.GetAccount(ctx, id)
		return err
	})
	return account, err
}

// ListAccounts retrieves all chart of accounts entries ordered by code.
func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		accounts, err = tx.ListAccounts(ctx)
		return err
	})
	return accounts, err
}
