package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/walletcore/pkg/money"
)

// entryRecorder writes the double-entry representation of a transaction: one
// DEBIT against the source and one CREDIT against the destination, equal in
// amount and sharing the transaction id. Entries are never updated or
// deleted; every balance in the system is an aggregation over them.
type entryRecorder struct {
	repo Repository
}

func newEntryRecorder(repo Repository) *entryRecorder {
	return &entryRecorder{repo: repo}
}

// recordTransfer appends the balanced pair for tx. Replaying the same
// transaction is a no-op: if entries already exist for tx.ID nothing is
// written and no error is returned.
func (r *entryRecorder) recordTransfer(ctx context.Context, tx *Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	existing, err := r.repo.GetEntriesByTransaction(ctx, tx.ID)
	if err != nil {
		return fmt.Errorf("check entries for transaction %s: %w", tx.ID, err)
	}
	if len(existing) > 0 {
		return nil
	}

	debit := NewEntry(tx.FromAccountID, tx.ID, EntryTypeDebit, tx.Amount, tx.Currency, tx.Description)
	credit := NewEntry(tx.ToAccountID, tx.ID, EntryTypeCredit, tx.Amount, tx.Currency, tx.Description)

	if err := validatePair(debit, credit); err != nil {
		return err
	}
	if err := r.repo.AppendEntries(ctx, []*Entry{debit, credit}); err != nil {
		return fmt.Errorf("append entries for transaction %s: %w", tx.ID, err)
	}
	return nil
}

// validatePair rejects a pair whose sides do not cancel out. The engine never
// builds such a pair; the check guards future callers.
func validatePair(debit, credit *Entry) error {
	if err := debit.Validate(); err != nil {
		return err
	}
	if err := credit.Validate(); err != nil {
		return err
	}
	if debit.Type != EntryTypeDebit || credit.Type != EntryTypeCredit {
		return fmt.Errorf("%w: pair must be one DEBIT and one CREDIT", ErrUnbalancedEntries)
	}
	if !debit.Amount.Equal(credit.Amount) {
		return fmt.Errorf("%w: debit %s != credit %s",
			ErrUnbalancedEntries, debit.Amount.String(), credit.Amount.String())
	}
	if debit.TransactionID != credit.TransactionID {
		return fmt.Errorf("%w: entries belong to different transactions", ErrUnbalancedEntries)
	}
	return nil
}

// balance derives the current balance for an account from its entries.
func (r *entryRecorder) balance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	balance, err := r.repo.CalculateBalance(ctx, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("calculate balance for account %s: %w", accountID, err)
	}
	return balance, nil
}

// balanceByCurrency derives the balance restricted to entries in one
// currency. Ordinary accounts hold a single currency, so this matters only
// for system accounts whose entries mix currencies.
func (r *entryRecorder) balanceByCurrency(ctx context.Context, accountID uuid.UUID, currency money.Currency) (decimal.Decimal, error) {
	balance, err := r.repo.CalculateBalanceByCurrency(ctx, accountID, currency)
	if err != nil {
		return decimal.Zero, fmt.Errorf("calculate %s balance for account %s: %w", currency, accountID, err)
	}
	return balance, nil
}

// verify recomputes the balance two independent ways and reports whether
// they agree: the single-pass signed aggregation against the difference of
// per-type sums.
func (r *entryRecorder) verify(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	balance, err := r.balance(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	credits, err := r.repo.SumEntriesByType(ctx, accountID, EntryTypeCredit)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum credits for account %s: %w", accountID, err)
	}
	debits, err := r.repo.SumEntriesByType(ctx, accountID, EntryTypeDebit)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum debits for account %s: %w", accountID, err)
	}
	if recomputed := credits.Sub(debits); !recomputed.Equal(balance) {
		return decimal.Zero, fmt.Errorf("%w: account %s: aggregate %s, per-type sums %s",
			ErrBalanceVerification, accountID, balance.String(), recomputed.String())
	}
	return balance, nil
}
