package accounting

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mini-erp/mini-erp/internal/platform/db"
	"github.com/mini-erp/mini-erp/internal/shared"
)

// Repository persists accounting entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	ListAccounts(ctx context.Context) ([]Account, error)
	GetAccount(ctx context.Context, id int64) (Account, error)
	InsertAccount(ctx context.Context, in CreateAccountInput) (Account, error)
	UpdateAccount(ctx context.Context, id int64, patch AccountPatch) (Account, error)
	DeleteAccount(ctx context.Context, id int64) error
	AdjustAccountBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error

	ListJournalEntries(ctx context.Context) ([]JournalEntry, error)
	InsertJournalEntry(ctx context.Context, in PostingInput) (JournalEntry, error)
	InsertTransactionLine(ctx context.Context, entryID int64, lineNo int, line PostingLineInput) (TransactionLine, error)
	GetJournalWithLines(ctx context.Context, entryID int64, forUpdate bool) (JournalEntry, error)
	MarkJournalApproved(ctx context.Context, entryID, approverID int64, at time.Time) (JournalEntry, error)
	DeleteJournalEntry(ctx context.Context, entryID int64) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("accounting repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const accountColumns = `id, account_code, account_name, account_type, parent_account_id, currency, balance, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.Currency, &a.Balance, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *txRepository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY account_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *txRepository) GetAccount(ctx context.Context, id int64) (Account, error) {
	a, err := scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Account{}, shared.NotFound("account", id)
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) InsertAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	a, err := scanAccount(r.tx.QueryRow(ctx, `INSERT INTO accounts (account_code, account_name, account_type, parent_account_id, currency)
VALUES ($1,$2,$3,$4,$5) RETURNING `+accountColumns, in.Code, in.Name, in.Type, in.ParentID, in.Currency))
	if err != nil {
		return Account{}, db.Translate(err)
	}
	return a, nil
}

func (r *txRepository) UpdateAccount(ctx context.Context, id int64, patch AccountPatch) (Account, error) {
	a, err := scanAccount(r.tx.QueryRow(ctx, `UPDATE accounts SET
account_name = COALESCE($2, account_name),
account_type = COALESCE($3, account_type),
is_active = COALESCE($4, is_active),
updated_at = NOW()
WHERE id=$1 RETURNING `+accountColumns, id, patch.Name, patch.Type, patch.IsActive))
	if err != nil {
		if db.IsNoRows(err) {
			return Account{}, shared.NotFound("account", id)
		}
		return Account{}, db.Translate(err)
	}
	return a, nil
}

func (r *txRepository) DeleteAccount(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		return db.TranslateDelete(err)
	}
	if cmd.RowsAffected() == 0 {
		return shared.NotFound("account", id)
	}
	return nil
}

// AdjustAccountBalance adds delta to the cached balance. The update is
// relative so concurrent postings against the same account never lose writes.
func (r *txRepository) AdjustAccountBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET balance = balance + $2, updated_at = NOW() WHERE id=$1`, accountID, delta)
	if err != nil {
		return db.Translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return shared.NotFound("account", accountID)
	}
	return nil
}

const journalColumns = `id, entry_date, description, reference, COALESCE(created_by, 0), status, approved_by, approved_at, created_at, updated_at`

func scanJournal(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.Date, &e.Description, &e.Reference, &e.CreatedBy, &e.Status, &e.ApprovedBy, &e.ApprovedAt, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (r *txRepository) ListJournalEntries(ctx context.Context) ([]JournalEntry, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+journalColumns+` FROM journal_entries ORDER BY entry_date DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		e, err := scanJournal(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *txRepository) InsertJournalEntry(ctx context.Context, in PostingInput) (JournalEntry, error) {
	e, err := scanJournal(r.tx.QueryRow(ctx, `INSERT INTO journal_entries (entry_date, description, reference, created_by, status)
VALUES ($1,$2,$3,$4,'draft') RETURNING `+journalColumns, in.Date, in.Description, in.Reference, nullInt(in.CreatedBy)))
	if err != nil {
		return JournalEntry{}, db.Translate(err)
	}
	return e, nil
}

func (r *txRepository) InsertTransactionLine(ctx context.Context, entryID int64, lineNo int, line PostingLineInput) (TransactionLine, error) {
	out := TransactionLine{
		JournalEntryID: entryID,
		LineNo:         lineNo,
		AccountID:      line.AccountID,
		Debit:          line.Debit,
		Credit:         line.Credit,
		Description:    line.Description,
	}
	err := r.tx.QueryRow(ctx, `INSERT INTO transactions (journal_entry_id, line_no, account_id, debit, credit, description)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`, entryID, lineNo, line.AccountID, line.Debit, line.Credit, line.Description).Scan(&out.ID)
	if err != nil {
		return TransactionLine{}, db.Translate(err)
	}
	return out, nil
}

func (r *txRepository) GetJournalWithLines(ctx context.Context, entryID int64, forUpdate bool) (JournalEntry, error) {
	query := `SELECT ` + journalColumns + ` FROM journal_entries WHERE id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	entry, err := scanJournal(r.tx.QueryRow(ctx, query, entryID))
	if err != nil {
		if db.IsNoRows(err) {
			return JournalEntry{}, shared.NotFound("journal entry", entryID)
		}
		return JournalEntry{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT id, journal_entry_id, line_no, account_id, debit, credit, description
FROM transactions WHERE journal_entry_id=$1 ORDER BY line_no ASC`, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line TransactionLine
		if err := rows.Scan(&line.ID, &line.JournalEntryID, &line.LineNo, &line.AccountID, &line.Debit, &line.Credit, &line.Description); err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) MarkJournalApproved(ctx context.Context, entryID, approverID int64, at time.Time) (JournalEntry, error) {
	e, err := scanJournal(r.tx.QueryRow(ctx, `UPDATE journal_entries SET status='approved', approved_by=$2, approved_at=$3, updated_at=NOW()
WHERE id=$1 AND status='draft' RETURNING `+journalColumns, entryID, nullInt(approverID), at))
	if err != nil {
		if db.IsNoRows(err) {
			return JournalEntry{}, shared.ErrAlreadyApproved
		}
		return JournalEntry{}, err
	}
	return e, nil
}

func (r *txRepository) DeleteJournalEntry(ctx context.Context, entryID int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM journal_entries WHERE id=$1`, entryID)
	if err != nil {
		return db.TranslateDelete(err)
	}
	if cmd.RowsAffected() == 0 {
		return shared.NotFound("journal entry", entryID)
	}
	return nil
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}
