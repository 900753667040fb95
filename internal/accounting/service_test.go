package accounting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/mini-erp/mini-erp/internal/shared"
)

const (
	cashID    int64 = 1
	revenueID int64 = 2
)

var fixedNow = time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService(t *testing.T) (*Service, *memoryLedger) {
	t.Helper()
	repo := newMemoryLedger(
		Account{ID: cashID, Code: "1000", Name: "Cash", Type: AccountTypeAsset, Currency: "USD"},
		Account{ID: revenueID, Code: "4000", Name: "Sales", Type: AccountTypeRevenue, Currency: "USD"},
	)
	svc := NewService(repo, nil, ServiceConfig{})
	svc.WithNow(func() time.Time { return fixedNow })
	return svc, repo
}

func posting(debit, credit string) PostingInput {
	return PostingInput{
		Date:        fixedNow,
		Description: "cash sale",
		CreatedBy:   7,
		Lines: []PostingLineInput{
			{AccountID: cashID, Debit: dec(debit)},
			{AccountID: revenueID, Credit: dec(credit)},
		},
	}
}

func requireBalance(t *testing.T, repo *memoryLedger, id int64, want string) {
	t.Helper()
	got := repo.balance(id)
	require.Truef(t, got.Equal(dec(want)), "account %d balance %s, want %s", id, got, want)
}

func TestPostJournalEntryAppliesLineDeltas(t *testing.T) {
	svc, repo := newTestService(t)

	result, err := svc.PostJournalEntry(context.Background(), posting("100.00", "100.00"))
	require.NoError(t, err)
	require.Equal(t, JournalStatusDraft, result.Entry.Status)
	require.Len(t, result.Entry.Lines, 2)
	require.Equal(t, 1, result.Entry.Lines[0].LineNo)
	require.True(t, result.TotalDebit.Equal(dec("100")))
	require.True(t, result.TotalCredit.Equal(dec("100")))

	requireBalance(t, repo, cashID, "100")
	requireBalance(t, repo, revenueID, "-100")
}

func TestPostJournalEntryRejectsUnbalancedAndPersistsNothing(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := svc.PostJournalEntry(context.Background(), posting("100.00", "90.00"))
	require.ErrorIs(t, err, shared.ErrUnbalancedEntry)
	var unbalanced *UnbalancedEntryError
	require.True(t, errors.As(err, &unbalanced))
	require.True(t, unbalanced.Debit.Equal(dec("100")))
	require.True(t, unbalanced.Credit.Equal(dec("90")))

	require.Zero(t, repo.entryCount())
	requireBalance(t, repo, cashID, "0")
	requireBalance(t, repo, revenueID, "0")
}

func TestPostJournalEntryTolerance(t *testing.T) {
	cases := []struct {
		name    string
		credit  string
		wantErr bool
	}{
		{name: "exact", credit: "100.00"},
		{name: "one cent", credit: "100.01"},
		{name: "two cents", credit: "100.02", wantErr: true},
		{name: "under by two cents", credit: "99.98", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			_, err := svc.PostJournalEntry(context.Background(), posting("100.00", tc.credit))
			if tc.wantErr {
				require.ErrorIs(t, err, shared.ErrUnbalancedEntry)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestPostJournalEntryValidation(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.PostJournalEntry(ctx, PostingInput{Date: fixedNow})
	require.ErrorIs(t, err, shared.ErrEmptyEntry)

	negative := posting("100", "100")
	negative.Lines[0].Debit = dec("-100")
	_, err = svc.PostJournalEntry(ctx, negative)
	require.ErrorIs(t, err, shared.ErrValidation)

	missing := posting("100", "100")
	missing.Lines[1].AccountID = 0
	_, err = svc.PostJournalEntry(ctx, missing)
	require.ErrorIs(t, err, shared.ErrValidation)

	require.Zero(t, repo.entryCount())
}

func TestPostJournalEntryUnknownAccountRollsBack(t *testing.T) {
	svc, repo := newTestService(t)
	input := posting("50", "50")
	input.Lines[1].AccountID = 999

	_, err := svc.PostJournalEntry(context.Background(), input)
	require.ErrorIs(t, err, ErrUnknownAccount)
	require.ErrorIs(t, err, shared.ErrUnknownReference)
	var unknown *UnknownAccountError
	require.True(t, errors.As(err, &unknown))
	require.Equal(t, 2, unknown.Line)
	require.Equal(t, int64(999), unknown.AccountID)

	require.Zero(t, repo.entryCount())
	requireBalance(t, repo, cashID, "0")
}

func TestPostJournalEntryRejectsFractionalCents(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	// Stored at two places these would round to 0.01 + 0.01 against 0.00.
	_, err := svc.PostJournalEntry(ctx, PostingInput{
		Date: fixedNow,
		Lines: []PostingLineInput{
			{AccountID: cashID, Debit: dec("0.005")},
			{AccountID: cashID, Debit: dec("0.005")},
			{AccountID: revenueID, Credit: dec("0")},
		},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.PostJournalEntry(ctx, posting("10.004", "10.00"))
	require.ErrorIs(t, err, shared.ErrValidation)

	require.Zero(t, repo.entryCount())
	requireBalance(t, repo, cashID, "0")
}

func TestPostJournalEntryAdjustsBalancesInAccountOrder(t *testing.T) {
	svc, repo := newTestService(t)
	input := PostingInput{
		Date: fixedNow,
		Lines: []PostingLineInput{
			{AccountID: revenueID, Credit: dec("30")},
			{AccountID: cashID, Debit: dec("20")},
			{AccountID: revenueID, Debit: dec("10")},
		},
	}

	result, err := svc.PostJournalEntry(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, revenueID, result.Entry.Lines[0].AccountID, "lines keep their posted order")
	require.Equal(t, []int64{cashID, revenueID, revenueID}, repo.adjustOrder())
	requireBalance(t, repo, cashID, "20")
	requireBalance(t, repo, revenueID, "-20")
}

// The fake serialises transactions, so this checks that every posting lands
// exactly once. Concurrent additive updates against PostgreSQL are checked in
// repo_integration_test.go.
func TestPostJournalEntryConcurrentPostingsSumExactly(t *testing.T) {
	svc, repo := newTestService(t)
	const workers = 25

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			_, err := svc.PostJournalEntry(context.Background(), posting("10.00", "10.00"))
			return err
		})
	}
	require.NoError(t, g.Wait())

	requireBalance(t, repo, cashID, "250")
	requireBalance(t, repo, revenueID, "-250")
	require.Equal(t, workers, repo.entryCount())
}

func TestApproveJournalEntryTwiceLeavesBalances(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	posted, err := svc.PostJournalEntry(ctx, posting("75", "75"))
	require.NoError(t, err)

	approved, err := svc.ApproveJournalEntry(ctx, posted.Entry.ID, 9)
	require.NoError(t, err)
	require.Equal(t, JournalStatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	require.Equal(t, int64(9), *approved.ApprovedBy)
	require.Equal(t, fixedNow, *approved.ApprovedAt)
	require.Len(t, approved.Lines, 2)

	_, err = svc.ApproveJournalEntry(ctx, posted.Entry.ID, 9)
	require.ErrorIs(t, err, shared.ErrAlreadyApproved)

	requireBalance(t, repo, cashID, "75")
	requireBalance(t, repo, revenueID, "-75")
}

func TestApproveJournalEntryMissing(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ApproveJournalEntry(context.Background(), 4242, 1)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestReverseJournalEntrySwapsSides(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	posted, err := svc.PostJournalEntry(ctx, posting("40", "40"))
	require.NoError(t, err)

	_, err = svc.ReverseJournalEntry(ctx, ReverseInput{EntryID: posted.Entry.ID, ActorID: 3})
	require.ErrorIs(t, err, shared.ErrInvalidStatus)

	_, err = svc.ApproveJournalEntry(ctx, posted.Entry.ID, 3)
	require.NoError(t, err)

	reversal, err := svc.ReverseJournalEntry(ctx, ReverseInput{EntryID: posted.Entry.ID, ActorID: 3})
	require.NoError(t, err)
	require.Equal(t, "Reversal of JE 101", reversal.Entry.Description)
	require.Equal(t, "REV-101", reversal.Entry.Reference)
	require.True(t, reversal.Entry.Lines[0].Credit.Equal(dec("40")))

	requireBalance(t, repo, cashID, "0")
	requireBalance(t, repo, revenueID, "0")

	original, err := svc.GetJournalEntry(ctx, posted.Entry.ID)
	require.NoError(t, err)
	require.Equal(t, JournalStatusApproved, original.Status)
}

func TestDeleteJournalEntryOnlyDrafts(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	draft, err := svc.PostJournalEntry(ctx, posting("20", "20"))
	require.NoError(t, err)
	require.NoError(t, svc.DeleteJournalEntry(ctx, draft.Entry.ID))
	requireBalance(t, repo, cashID, "0")
	require.Zero(t, repo.entryCount())

	kept, err := svc.PostJournalEntry(ctx, posting("20", "20"))
	require.NoError(t, err)
	_, err = svc.ApproveJournalEntry(ctx, kept.Entry.ID, 1)
	require.NoError(t, err)
	require.ErrorIs(t, svc.DeleteJournalEntry(ctx, kept.Entry.ID), shared.ErrInvalidStatus)
	requireBalance(t, repo, cashID, "20")

	require.ErrorIs(t, svc.DeleteJournalEntry(ctx, 5555), shared.ErrNotFound)
}

func TestCreateAccountDefaultsAndConstraints(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, CreateAccountInput{Code: " 1100 ", Name: "Receivables", Type: AccountTypeAsset})
	require.NoError(t, err)
	require.Equal(t, "1100", account.Code)
	require.Equal(t, "USD", account.Currency)
	require.True(t, account.Balance.IsZero())

	_, err = svc.CreateAccount(ctx, CreateAccountInput{Code: "1100", Name: "Dup", Type: AccountTypeAsset})
	require.ErrorIs(t, err, shared.ErrConstraintViolation)

	_, err = svc.CreateAccount(ctx, CreateAccountInput{Code: "1200", Name: "Bad", Type: "Cash"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateAccount(ctx, CreateAccountInput{Code: "1300", Name: "Euro", Type: AccountTypeAsset, Currency: "eur"})
	require.NoError(t, err)

	_, err = svc.CreateAccount(ctx, CreateAccountInput{Code: "1400", Name: "Bogus", Type: AccountTypeAsset, Currency: "ZZZ"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateAndDeleteAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	name := "Petty cash"
	inactive := false
	updated, err := svc.UpdateAccount(ctx, cashID, AccountPatch{Name: &name, IsActive: &inactive})
	require.NoError(t, err)
	require.Equal(t, "Petty cash", updated.Name)
	require.Equal(t, AccountTypeAsset, updated.Type)
	require.False(t, updated.IsActive)

	_, err = svc.PostJournalEntry(ctx, posting("5", "5"))
	require.NoError(t, err)
	require.ErrorIs(t, svc.DeleteAccount(ctx, cashID), shared.ErrConstraintViolation)
	require.ErrorIs(t, svc.DeleteAccount(ctx, 31337), shared.ErrNotFound)

	accounts, err := svc.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	require.Equal(t, "1000", accounts[0].Code)
}
