//go:build integration

package wallet_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/walletcore/internal/infra/postgres"
	"github.com/kislikjeka/walletcore/internal/wallet"
	"github.com/kislikjeka/walletcore/pkg/logger"
	"github.com/kislikjeka/walletcore/pkg/money"
	"github.com/kislikjeka/walletcore/testutil/testdb"
)

var testDB *testdb.TestDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	testDB, err = testdb.NewTestDB(ctx)
	if err != nil {
		panic("failed to create test database: " + err.Error())
	}

	code := m.Run()

	testDB.Close(ctx)
	if code != 0 {
		panic("tests failed")
	}
}

func setupService(t *testing.T) (*wallet.Service, *postgres.WalletRepository, context.Context) {
	ctx := context.Background()
	require.NoError(t, testDB.Reset(ctx))

	repo := postgres.NewWalletRepository(testDB.Pool)
	svc := wallet.NewService(repo, nil, logger.New("test", os.Stdout))
	return svc, repo, ctx
}

func createAccount(t *testing.T, ctx context.Context, svc *wallet.Service, currency money.Currency, accountType wallet.AccountType) *wallet.Account {
	t.Helper()
	account, err := svc.CreateAccount(ctx, currency, accountType)
	require.NoError(t, err)
	return account
}

func fund(t *testing.T, ctx context.Context, svc *wallet.Service, accountID uuid.UUID, amount string, currency money.Currency) {
	t.Helper()
	_, err := svc.RecordSystemCredit(ctx, wallet.SystemCreditInput{
		AccountID: accountID,
		Amount:    decimal.RequireFromString(amount),
		Currency:  currency,
	})
	require.NoError(t, err)
}

func balanceOf(t *testing.T, ctx context.Context, svc *wallet.Service, accountID uuid.UUID) decimal.Decimal {
	t.Helper()
	snapshot, err := svc.Balance(ctx, accountID)
	require.NoError(t, err)
	return snapshot.Balance
}

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestService_Transfer_Simple(t *testing.T) {
	svc, repo, ctx := setupService(t)

	a := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)
	b := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)
	fund(t, ctx, svc, a.ID, "500.00", money.EUR)

	tx, err := svc.Transfer(ctx, wallet.TransferInput{
		FromAccountID: a.ID,
		ToAccountID:   b.ID,
		Amount:        amt("100.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, wallet.TxStatusSuccess, tx.Status)
	assert.Equal(t, wallet.TxTypeTransfer, tx.Type)
	assert.Equal(t, money.EUR, tx.Currency)

	assert.True(t, balanceOf(t, ctx, svc, a.ID).Equal(amt("400.00")))
	assert.True(t, balanceOf(t, ctx, svc, b.ID).Equal(amt("100.00")))

	entries, err := repo.GetEntriesByTransaction(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, wallet.EntryTypeDebit, entries[0].Type)
	assert.Equal(t, a.ID, entries[0].AccountID)
	assert.Equal(t, wallet.EntryTypeCredit, entries[1].Type)
	assert.Equal(t, b.ID, entries[1].AccountID)
	assert.True(t, entries[0].Amount.Equal(entries[1].Amount))

	persisted, err := repo.FindTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, wallet.TxStatusSuccess, persisted.Status)
}

func TestService_Transfer_InsufficientFunds(t *testing.T) {
	svc, _, ctx := setupService(t)

	a := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)
	b := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)
	fund(t, ctx, svc, a.ID, "50.00", money.EUR)

	_, err := svc.Transfer(ctx, wallet.TransferInput{
		FromAccountID: a.ID,
		ToAccountID:   b.ID,
		Amount:        amt("100.00"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, wallet.ErrInsufficientFunds)

	// Nothing moved and no transfer row was written.
	assert.True(t, balanceOf(t, ctx, svc, a.ID).Equal(amt("50.00")))
	assert.True(t, balanceOf(t, ctx, svc, b.ID).IsZero())

	txs, err := svc.TransactionsForAccount(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1, "only the funding deposit should exist")
	assert.Equal(t, wallet.TxTypeDeposit, txs[0].Type)
}

func TestService_Transfer_CurrencyMismatch(t *testing.T) {
	svc, _, ctx := setupService(t)

	a := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)
	b := createAccount(t, ctx, svc, money.USD, wallet.AccountTypeMain)
	fund(t, ctx, svc, a.ID, "200.00", money.EUR)

	_, err := svc.Transfer(ctx, wallet.TransferInput{
		FromAccountID: a.ID,
		ToAccountID:   b.ID,
		Amount:        amt("10.00"),
	})
	assert.ErrorIs(t, err, wallet.ErrCurrencyMismatch)

	assert.True(t, balanceOf(t, ctx, svc, a.ID).Equal(amt("200.00")))
	assert.True(t, balanceOf(t, ctx, svc, b.ID).IsZero())
}

func TestService_Transfer_IdempotentReplay(t *testing.T) {
	svc, _, ctx := setupService(t)

	a := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)
	b := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)
	fund(t, ctx, svc, a.ID, "500.00", money.EUR)

	ref := "order-42"
	in := wallet.TransferInput{
		FromAccountID: a.ID,
		ToAccountID:   b.ID,
		Amount:        amt("100.00"),
		Reference:     &ref,
	}

	first, err := svc.Transfer(ctx, in)
	require.NoError(t, err)

	second, err := svc.Transfer(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "replay must return the original transaction")

	// Value moved exactly once.
	assert.True(t, balanceOf(t, ctx, svc, a.ID).Equal(amt("400.00")))
	assert.True(t, balanceOf(t, ctx, svc, b.ID).Equal(amt("100.00")))
}

func TestService_Transfer_ReplayCaseInsensitive(t *testing.T) {
	svc, _, ctx := setupService(t)

	a := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)
	b := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)
	fund(t, ctx, svc, a.ID, "500.00", money.EUR)

	lower := "payment-7"
	first, err := svc.Transfer(ctx, wallet.TransferInput{
		FromAccountID: a.ID, ToAccountID: b.ID, Amount: amt("25.00"), Reference: &lower,
	})
	require.NoError(t, err)

	upper := "PAYMENT-7"
	second, err := svc.Transfer(ctx, wallet.TransferInput{
		FromAccountID: a.ID, ToAccountID: b.ID, Amount: amt("25.00"), Reference: &upper,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	assert.True(t, balanceOf(t, ctx, svc, a.ID).Equal(amt("475.00")))
}

func TestService_Transfer_DuplicateReferenceMismatch(t *testing.T) {
	svc, _, ctx := setupService(t)

	a := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)
	b := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)
	fund(t, ctx, svc, a.ID, "500.00", money.EUR)

	ref := "order-43"
	_, err := svc.Transfer(ctx, wallet.TransferInput{
		FromAccountID: a.ID, ToAccountID: b.ID, Amount: amt("100.00"), Reference: &ref,
	})
	require.NoError(t, err)

	// Same reference, different amount.
	_, err = svc.Transfer(ctx, wallet.TransferInput{
		FromAccountID: a.ID, ToAccountID: b.ID, Amount: amt("99.00"), Reference: &ref,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, wallet.ErrDuplicateReference)
	assert.ErrorIs(t, err, wallet.ErrInvalidTransaction)

	assert.True(t, balanceOf(t, ctx, svc, a.ID).Equal(amt("400.00")))
}

func TestService_Transfer_AccountNotFound(t *testing.T) {
	svc, _, ctx := setupService(t)

	a := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)
	fund(t, ctx, svc, a.ID, "100.00", money.EUR)

	_, err := svc.Transfer(ctx, wallet.TransferInput{
		FromAccountID: a.ID,
		ToAccountID:   uuid.New(),
		Amount:        amt("10.00"),
	})
	assert.ErrorIs(t, err, wallet.ErrAccountNotFound)
}

func TestService_Transfer_SelfTransfer(t *testing.T) {
	svc, _, ctx := setupService(t)

	a := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)
	fund(t, ctx, svc, a.ID, "100.00", money.EUR)

	_, err := svc.Transfer(ctx, wallet.TransferInput{
		FromAccountID: a.ID,
		ToAccountID:   a.ID,
		Amount:        amt("10.00"),
	})
	assert.ErrorIs(t, err, wallet.ErrSelfTransfer)
	assert.ErrorIs(t, err, wallet.ErrInvalidTransaction)
}

func TestService_Transfer_FrozenAccountTypes(t *testing.T) {
	svc, _, ctx := setupService(t)

	main := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)
	pending := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypePending)
	jackpot := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeJackpot)
	fund(t, ctx, svc, main.ID, "300.00", money.EUR)

	// Frozen types accept credits.
	_, err := svc.Transfer(ctx, wallet.TransferInput{
		FromAccountID: main.ID, ToAccountID: pending.ID, Amount: amt("100.00"),
	})
	require.NoError(t, err)
	_, err = svc.Transfer(ctx, wallet.TransferInput{
		FromAccountID: main.ID, ToAccountID: jackpot.ID, Amount: amt("100.00"),
	})
	require.NoError(t, err)

	// But nothing leaves them, regardless of balance.
	_, err = svc.Transfer(ctx, wallet.TransferInput{
		FromAccountID: pending.ID, ToAccountID: main.ID, Amount: amt("0.01"),
	})
	assert.ErrorIs(t, err, wallet.ErrInsufficientFunds)

	_, err = svc.Transfer(ctx, wallet.TransferInput{
		FromAccountID: jackpot.ID, ToAccountID: main.ID, Amount: amt("0.01"),
	})
	assert.ErrorIs(t, err, wallet.ErrInsufficientFunds)

	assert.True(t, balanceOf(t, ctx, svc, pending.ID).Equal(amt("100.00")))
	assert.True(t, balanceOf(t, ctx, svc, jackpot.ID).Equal(amt("100.00")))
}

func TestService_Transfer_ReferenceFreeAfterRejection(t *testing.T) {
	svc, _, ctx := setupService(t)

	a := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)
	b := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)

	ref := "retry-me"
	in := wallet.TransferInput{
		FromAccountID: a.ID, ToAccountID: b.ID, Amount: amt("100.00"), Reference: &ref,
	}

	// First attempt fails: the account is empty.
	_, err := svc.Transfer(ctx, in)
	require.ErrorIs(t, err, wallet.ErrInsufficientFunds)

	// The rejection must not consume the reference.
	fund(t, ctx, svc, a.ID, "100.00", money.EUR)
	tx, err := svc.Transfer(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, wallet.TxStatusSuccess, tx.Status)
	assert.True(t, balanceOf(t, ctx, svc, b.ID).Equal(amt("100.00")))
}

func TestService_RecordSystemCredit(t *testing.T) {
	svc, repo, ctx := setupService(t)

	target := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)

	tx, err := svc.RecordSystemCredit(ctx, wallet.SystemCreditInput{
		AccountID: target.ID,
		Amount:    amt("500.00"),
		Currency:  money.EUR,
	})
	require.NoError(t, err)
	assert.Equal(t, wallet.TxTypeDeposit, tx.Type)
	assert.Equal(t, wallet.TxStatusSuccess, tx.Status)
	assert.Equal(t, wallet.SystemFundingAccountID, tx.FromAccountID)

	assert.True(t, balanceOf(t, ctx, svc, target.ID).Equal(amt("500.00")))

	// The funding account exists and carries the matching debit.
	funding, err := repo.GetAccount(ctx, wallet.SystemFundingAccountID)
	require.NoError(t, err)
	assert.Equal(t, wallet.AccountTypeSystem, funding.Type)

	fundingBalance, err := svc.BalanceByCurrency(ctx, wallet.SystemFundingAccountID, money.EUR)
	require.NoError(t, err)
	assert.True(t, fundingBalance.Balance.Equal(amt("-500.00")))

	entries, err := repo.GetEntriesByTransaction(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, wallet.SystemFundingAccountID, entries[0].AccountID)
	assert.Equal(t, wallet.EntryTypeDebit, entries[0].Type)
	assert.Equal(t, target.ID, entries[1].AccountID)
	assert.Equal(t, wallet.EntryTypeCredit, entries[1].Type)
}

func TestService_RecordSystemCredit_CurrencyMismatch(t *testing.T) {
	svc, _, ctx := setupService(t)

	target := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)

	_, err := svc.RecordSystemCredit(ctx, wallet.SystemCreditInput{
		AccountID: target.ID,
		Amount:    amt("10.00"),
		Currency:  money.USD,
	})
	assert.ErrorIs(t, err, wallet.ErrCurrencyMismatch)
	assert.True(t, balanceOf(t, ctx, svc, target.ID).IsZero())
}

func TestService_RecordSystemCredit_SystemTargetAnyCurrency(t *testing.T) {
	svc, _, ctx := setupService(t)

	// A system account may be credited in any currency.
	target := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeSystem)

	_, err := svc.RecordSystemCredit(ctx, wallet.SystemCreditInput{
		AccountID: target.ID,
		Amount:    amt("75.00"),
		Currency:  money.GBP,
	})
	require.NoError(t, err)

	gbp, err := svc.BalanceByCurrency(ctx, target.ID, money.GBP)
	require.NoError(t, err)
	assert.True(t, gbp.Balance.Equal(amt("75.00")))

	eur, err := svc.BalanceByCurrency(ctx, target.ID, money.EUR)
	require.NoError(t, err)
	assert.True(t, eur.Balance.IsZero())
}

func TestService_Balance_AccountNotFound(t *testing.T) {
	svc, _, ctx := setupService(t)

	_, err := svc.Balance(ctx, uuid.New())
	assert.ErrorIs(t, err, wallet.ErrAccountNotFound)
}

func TestService_TransactionByReference(t *testing.T) {
	svc, _, ctx := setupService(t)

	a := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)
	b := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)
	fund(t, ctx, svc, a.ID, "100.00", money.EUR)

	ref := "Lookup-Me"
	tx, err := svc.Transfer(ctx, wallet.TransferInput{
		FromAccountID: a.ID, ToAccountID: b.ID, Amount: amt("20.00"), Reference: &ref,
	})
	require.NoError(t, err)

	found, err := svc.TransactionByReference(ctx, "lookup-me")
	require.NoError(t, err)
	assert.Equal(t, tx.ID, found.ID)

	_, err = svc.TransactionByReference(ctx, "no-such-reference")
	assert.ErrorIs(t, err, wallet.ErrTransactionNotFound)

	_, err = svc.TransactionByReference(ctx, "   ")
	assert.ErrorIs(t, err, wallet.ErrTransactionNotFound)
}

func TestService_TransactionsForAccount_NewestFirst(t *testing.T) {
	svc, _, ctx := setupService(t)

	a := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)
	b := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)
	fund(t, ctx, svc, a.ID, "300.00", money.EUR)

	first, err := svc.Transfer(ctx, wallet.TransferInput{
		FromAccountID: a.ID, ToAccountID: b.ID, Amount: amt("10.00"),
	})
	require.NoError(t, err)
	second, err := svc.Transfer(ctx, wallet.TransferInput{
		FromAccountID: b.ID, ToAccountID: a.ID, Amount: amt("5.00"),
	})
	require.NoError(t, err)

	txs, err := svc.TransactionsForAccount(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, txs, 3) // deposit + two transfers
	assert.Equal(t, second.ID, txs[0].ID)
	assert.Equal(t, first.ID, txs[1].ID)
}

func TestService_VerifyBalance(t *testing.T) {
	svc, _, ctx := setupService(t)

	a := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)
	fund(t, ctx, svc, a.ID, "120.00", money.EUR)

	ok, err := svc.VerifyBalance(ctx, a.ID, amt("120.00"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.VerifyBalance(ctx, a.ID, amt("119.99"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_VerifyAccountBalance(t *testing.T) {
	svc, _, ctx := setupService(t)

	a := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)
	b := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)
	fund(t, ctx, svc, a.ID, "200.00", money.EUR)

	_, err := svc.Transfer(ctx, wallet.TransferInput{
		FromAccountID: a.ID, ToAccountID: b.ID, Amount: amt("80.00"),
	})
	require.NoError(t, err)

	balance, err := svc.VerifyAccountBalance(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(amt("120.00")))

	balance, err = svc.VerifyAccountBalance(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(amt("80.00")))
}

func TestService_LedgerStaysBalanced(t *testing.T) {
	svc, repo, ctx := setupService(t)

	a := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)
	b := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeMain)
	c := createAccount(t, ctx, svc, money.EUR, wallet.AccountTypeBonus)
	fund(t, ctx, svc, a.ID, "1000.00", money.EUR)

	for _, transfer := range []struct {
		from, to uuid.UUID
		amount   string
	}{
		{a.ID, b.ID, "300.00"},
		{b.ID, c.ID, "120.00"},
		{c.ID, a.ID, "20.00"},
	} {
		_, err := svc.Transfer(ctx, wallet.TransferInput{
			FromAccountID: transfer.from,
			ToAccountID:   transfer.to,
			Amount:        amt(transfer.amount),
		})
		require.NoError(t, err)
	}

	// Every account nets out against the system funding account.
	total := decimal.Zero
	for _, id := range []uuid.UUID{a.ID, b.ID, c.ID, wallet.SystemFundingAccountID} {
		balance, err := repo.CalculateBalance(ctx, id)
		require.NoError(t, err)
		total = total.Add(balance)
	}
	assert.True(t, total.IsZero(), "ledger must sum to zero, got %s", total)
}
