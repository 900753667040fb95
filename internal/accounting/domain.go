package accounting

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mini-erp/mini-erp/internal/shared"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "Asset"
	AccountTypeLiability AccountType = "Liability"
	AccountTypeEquity    AccountType = "Equity"
	AccountTypeRevenue   AccountType = "Revenue"
	AccountTypeExpense   AccountType = "Expense"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// JournalStatus enumerates journal lifecycle values.
type JournalStatus string

const (
	JournalStatusDraft    JournalStatus = "draft"
	JournalStatusApproved JournalStatus = "approved"
)

// Account models a chart of accounts node. Balance is the running net of
// debits minus credits of every posted line against the account.
type Account struct {
	ID        int64           `json:"id"`
	Code      string          `json:"account_code"`
	Name      string          `json:"account_name"`
	Type      AccountType     `json:"account_type"`
	ParentID  *int64          `json:"parent_account_id,omitempty"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// JournalEntry captures posting metadata.
type JournalEntry struct {
	ID          int64             `json:"id"`
	Date        time.Time         `json:"entry_date"`
	Description string            `json:"description"`
	Reference   string            `json:"reference"`
	CreatedBy   int64             `json:"created_by"`
	Status      JournalStatus     `json:"status"`
	ApprovedBy  *int64            `json:"approved_by,omitempty"`
	ApprovedAt  *time.Time        `json:"approved_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Lines       []TransactionLine `json:"transactions,omitempty"`
}

// TransactionLine stores debit or credit amount for an account.
type TransactionLine struct {
	ID             int64           `json:"id"`
	JournalEntryID int64           `json:"journal_entry_id"`
	LineNo         int             `json:"line_no"`
	AccountID      int64           `json:"account_id"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	Description    string          `json:"description"`
}

// Delta is the signed effect of the line on its account balance.
func (l TransactionLine) Delta() decimal.Decimal {
	return l.Debit.Sub(l.Credit)
}

// PostingLineInput describes a journal line for posting request.
type PostingLineInput struct {
	AccountID   int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// Delta is the signed balance change the line applies.
func (l PostingLineInput) Delta() decimal.Decimal {
	return l.Debit.Sub(l.Credit)
}

// PostingInput groups fields required to create a journal entry.
type PostingInput struct {
	Date        time.Time
	Description string
	Reference   string
	CreatedBy   int64
	Lines       []PostingLineInput
}

// PostingResult is the created entry with the totals computed while posting.
type PostingResult struct {
	Entry       JournalEntry    `json:"entry"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	EntryID     int64
	ActorID     int64
	Date        *time.Time
	Description string
}

// CreateAccountInput describes a new chart of accounts node.
type CreateAccountInput struct {
	Code     string
	Name     string
	Type     AccountType
	ParentID *int64
	Currency string
}

// AccountPatch carries optional account changes; nil fields keep their value.
type AccountPatch struct {
	Name     *string
	Type     *AccountType
	IsActive *bool
}

var (
	// ErrUnknownAccount indicates a line references an account that does not exist.
	ErrUnknownAccount = errors.New("accounting: unknown account")
	// ErrUnbalanced aliases the shared taxonomy entry for callers of this package.
	ErrUnbalanced = shared.ErrUnbalancedEntry
)

// UnbalancedEntryError reports the totals of an entry whose sides differ.
type UnbalancedEntryError struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

func (e *UnbalancedEntryError) Error() string {
	return fmt.Sprintf("accounting: %s: debit %s, credit %s", shared.ErrUnbalancedEntry, e.Debit.StringFixed(2), e.Credit.StringFixed(2))
}

func (e *UnbalancedEntryError) Unwrap() error { return shared.ErrUnbalancedEntry }

// UnknownAccountError names the offending line and account.
type UnknownAccountError struct {
	Line      int
	AccountID int64
}

func (e *UnknownAccountError) Error() string {
	return fmt.Sprintf("accounting: line %d: account %d does not exist", e.Line, e.AccountID)
}

func (e *UnknownAccountError) Is(target error) bool { return target == ErrUnknownAccount }

func (e *UnknownAccountError) Unwrap() error { return shared.ErrUnknownReference }

// Validate ensures posting input meets minimum criteria. The debit/credit
// balance is checked later, inside the posting transaction.
func (in PostingInput) Validate() error {
	if len(in.Lines) == 0 {
		return fmt.Errorf("accounting: %w", shared.ErrEmptyEntry)
	}
	if in.Date.IsZero() {
		return shared.Validationf("accounting: entry date required")
	}
	for idx, line := range in.Lines {
		if line.AccountID <= 0 {
			return shared.Validationf("accounting: line %d missing account", idx+1)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return shared.Validationf("accounting: line %d negative amount", idx+1)
		}
		if !shared.WholeCents(line.Debit) || !shared.WholeCents(line.Credit) {
			return shared.Validationf("accounting: line %d amount has fractional cents", idx+1)
		}
	}
	return nil
}

// Validate checks required account fields.
func (in CreateAccountInput) Validate() error {
	if strings.TrimSpace(in.Code) == "" {
		return shared.Validationf("accounting: account code required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return shared.Validationf("accounting: account name required")
	}
	if !in.Type.Valid() {
		return shared.Validationf("accounting: unknown account type %q", in.Type)
	}
	if in.ParentID != nil && *in.ParentID <= 0 {
		return shared.Validationf("accounting: invalid parent account")
	}
	return nil
}
