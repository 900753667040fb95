package accounting

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mini-erp/mini-erp/internal/shared"
)

// memoryLedger is a TxRepository fake. WithTx serialises transactions and
// works on a copy of the state that only replaces the committed state when
// fn succeeds, so failed postings leave no trace. Because every transaction
// holds the mutex, the fake cannot expose lost updates between concurrent
// writers; the additive balance SQL is covered by repo_integration_test.go.
type memoryLedger struct {
	mu    sync.Mutex
	state ledgerState
}

type ledgerState struct {
	accounts  map[int64]Account
	entries   map[int64]JournalEntry
	lines     map[int64][]TransactionLine
	nextID    int64
	txCommits int
	// adjusted lists account ids in the order their balances were changed.
	adjusted []int64
}

func newMemoryLedger(accounts ...Account) *memoryLedger {
	m := &memoryLedger{state: ledgerState{
		accounts: map[int64]Account{},
		entries:  map[int64]JournalEntry{},
		lines:    map[int64][]TransactionLine{},
		nextID:   100,
	}}
	for _, a := range accounts {
		if a.Type == "" {
			a.Type = AccountTypeAsset
		}
		m.state.accounts[a.ID] = a
	}
	return m
}

func (s ledgerState) clone() ledgerState {
	out := s
	out.accounts = maps.Clone(s.accounts)
	out.entries = maps.Clone(s.entries)
	out.lines = make(map[int64][]TransactionLine, len(s.lines))
	for k, v := range s.lines {
		out.lines[k] = slices.Clone(v)
	}
	out.adjusted = slices.Clone(s.adjusted)
	return out
}

func (m *memoryLedger) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memoryTx{state: m.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.state.txCommits++
	m.state = tx.state
	return nil
}

func (m *memoryLedger) balance(id int64) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.accounts[id].Balance
}

func (m *memoryLedger) adjustOrder() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.state.adjusted)
}

func (m *memoryLedger) entryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.entries)
}

type memoryTx struct {
	state ledgerState
}

func (t *memoryTx) id() int64 {
	t.state.nextID++
	return t.state.nextID
}

func (t *memoryTx) ListAccounts(context.Context) ([]Account, error) {
	out := slices.Collect(maps.Values(t.state.accounts))
	slices.SortFunc(out, func(a, b Account) int { return cmp.Compare(a.Code, b.Code) })
	return out, nil
}

func (t *memoryTx) GetAccount(_ context.Context, id int64) (Account, error) {
	a, ok := t.state.accounts[id]
	if !ok {
		return Account{}, shared.NotFound("account", id)
	}
	return a, nil
}

func (t *memoryTx) InsertAccount(_ context.Context, in CreateAccountInput) (Account, error) {
	for _, a := range t.state.accounts {
		if a.Code == in.Code {
			return Account{}, shared.NewConstraintError(shared.ErrConstraintViolation, "uq_accounts_code", in.Code)
		}
	}
	if in.ParentID != nil {
		if _, ok := t.state.accounts[*in.ParentID]; !ok {
			return Account{}, shared.NewConstraintError(shared.ErrUnknownReference, "fk_accounts_parent", "")
		}
	}
	a := Account{ID: t.id(), Code: in.Code, Name: in.Name, Type: in.Type, ParentID: in.ParentID, Currency: in.Currency, IsActive: true}
	t.state.accounts[a.ID] = a
	return a, nil
}

func (t *memoryTx) UpdateAccount(_ context.Context, id int64, patch AccountPatch) (Account, error) {
	a, ok := t.state.accounts[id]
	if !ok {
		return Account{}, shared.NotFound("account", id)
	}
	if patch.Name != nil {
		a.Name = *patch.Name
	}
	if patch.Type != nil {
		a.Type = *patch.Type
	}
	if patch.IsActive != nil {
		a.IsActive = *patch.IsActive
	}
	t.state.accounts[id] = a
	return a, nil
}

func (t *memoryTx) DeleteAccount(_ context.Context, id int64) error {
	if _, ok := t.state.accounts[id]; !ok {
		return shared.NotFound("account", id)
	}
	for _, lines := range t.state.lines {
		for _, line := range lines {
			if line.AccountID == id {
				return shared.NewConstraintError(shared.ErrConstraintViolation, "fk_transactions_account", "")
			}
		}
	}
	delete(t.state.accounts, id)
	return nil
}

func (t *memoryTx) AdjustAccountBalance(_ context.Context, accountID int64, delta decimal.Decimal) error {
	a, ok := t.state.accounts[accountID]
	if !ok {
		return shared.NotFound("account", accountID)
	}
	a.Balance = a.Balance.Add(delta)
	t.state.accounts[accountID] = a
	t.state.adjusted = append(t.state.adjusted, accountID)
	return nil
}

func (t *memoryTx) ListJournalEntries(context.Context) ([]JournalEntry, error) {
	out := slices.Collect(maps.Values(t.state.entries))
	slices.SortFunc(out, func(a, b JournalEntry) int { return cmp.Compare(b.ID, a.ID) })
	return out, nil
}

func (t *memoryTx) InsertJournalEntry(_ context.Context, in PostingInput) (JournalEntry, error) {
	e := JournalEntry{
		ID:          t.id(),
		Date:        in.Date,
		Description: in.Description,
		Reference:   in.Reference,
		CreatedBy:   in.CreatedBy,
		Status:      JournalStatusDraft,
	}
	t.state.entries[e.ID] = e
	return e, nil
}

func (t *memoryTx) InsertTransactionLine(_ context.Context, entryID int64, lineNo int, line PostingLineInput) (TransactionLine, error) {
	if _, ok := t.state.accounts[line.AccountID]; !ok {
		return TransactionLine{}, shared.NewConstraintError(shared.ErrUnknownReference, "fk_transactions_account", "")
	}
	out := TransactionLine{
		ID:             t.id(),
		JournalEntryID: entryID,
		LineNo:         lineNo,
		AccountID:      line.AccountID,
		Debit:          line.Debit,
		Credit:         line.Credit,
		Description:    line.Description,
	}
	t.state.lines[entryID] = append(t.state.lines[entryID], out)
	return out, nil
}

func (t *memoryTx) GetJournalWithLines(_ context.Context, entryID int64, _ bool) (JournalEntry, error) {
	e, ok := t.state.entries[entryID]
	if !ok {
		return JournalEntry{}, shared.NotFound("journal entry", entryID)
	}
	e.Lines = slices.Clone(t.state.lines[entryID])
	return e, nil
}

func (t *memoryTx) MarkJournalApproved(_ context.Context, entryID, approverID int64, at time.Time) (JournalEntry, error) {
	e, ok := t.state.entries[entryID]
	if !ok {
		return JournalEntry{}, shared.NotFound("journal entry", entryID)
	}
	if e.Status == JournalStatusApproved {
		return JournalEntry{}, shared.ErrAlreadyApproved
	}
	e.Status = JournalStatusApproved
	e.ApprovedBy = &approverID
	e.ApprovedAt = &at
	t.state.entries[entryID] = e
	return e, nil
}

func (t *memoryTx) DeleteJournalEntry(_ context.Context, entryID int64) error {
	if _, ok := t.state.entries[entryID]; !ok {
		return shared.NotFound("journal entry", entryID)
	}
	delete(t.state.entries, entryID)
	delete(t.state.lines, entryID)
	return nil
}
