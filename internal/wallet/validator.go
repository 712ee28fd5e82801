package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// transferValidator runs every check that can fail a transfer before any row
// lock is taken. The same currency and funds checks run again under lock; the
// pre-lock pass exists to reject doomed requests without touching the
// database transaction.
type transferValidator struct {
	repo     Repository
	accounts AccountGetter
}

func newTransferValidator(repo Repository, accounts AccountGetter) *transferValidator {
	return &transferValidator{repo: repo, accounts: accounts}
}

// validation carries everything the engine needs from the pre-lock pass.
// existing is non-nil when the reference matched an earlier transfer with
// identical participants and amount, in which case no new transfer happens.
type validation struct {
	from     *Account
	to       *Account
	existing *Transaction
}

func (v *transferValidator) validate(ctx context.Context, in TransferInput) (*validation, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if ref := in.normalizedReference(); ref != nil {
		existing, err := v.repo.FindTransactionByReference(ctx, *ref)
		switch {
		case err == nil:
			if !existing.matchesTransfer(in) {
				return nil, fmt.Errorf("%w: %q used by transaction %s", ErrDuplicateReference, *ref, existing.ID)
			}
			return &validation{existing: existing}, nil
		case errors.Is(err, ErrTransactionNotFound):
			// reference is free
		default:
			return nil, fmt.Errorf("look up reference %q: %w", *ref, err)
		}
	}

	from, err := v.fetchAccount(ctx, in.FromAccountID)
	if err != nil {
		return nil, err
	}
	to, err := v.fetchAccount(ctx, in.ToAccountID)
	if err != nil {
		return nil, err
	}

	if err := checkCurrencies(from, to); err != nil {
		return nil, err
	}

	balance, err := v.repo.CalculateBalance(ctx, from.ID)
	if err != nil {
		return nil, fmt.Errorf("calculate balance for account %s: %w", from.ID, err)
	}
	if err := checkWithdrawal(from, balance, in.Amount); err != nil {
		return nil, err
	}

	return &validation{from: from, to: to}, nil
}

func (v *transferValidator) fetchAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	account, err := v.accounts.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
		}
		return nil, fmt.Errorf("fetch account %s: %w", id, err)
	}
	return account, nil
}

// checkCurrencies enforces single-currency transfers. System accounts are
// exempt on their side: the funding account accumulates debits in whatever
// currency it credited, which is why its balance is only meaningful
// per currency.
func checkCurrencies(from, to *Account) error {
	if from.Type == AccountTypeSystem || to.Type == AccountTypeSystem {
		return nil
	}
	if from.Currency != to.Currency {
		return fmt.Errorf("%w: %s has %s, %s has %s",
			ErrCurrencyMismatch, from.ID, from.Currency, to.ID, to.Currency)
	}
	return nil
}

// checkWithdrawal applies the per-type withdrawal policy against the given
// balance. System accounts may go arbitrarily negative.
func checkWithdrawal(from *Account, balance, amount decimal.Decimal) error {
	limit, unbounded := from.Type.MaxWithdrawal(balance)
	if unbounded {
		return nil
	}
	if amount.GreaterThan(limit) {
		return fmt.Errorf("%w: account %s: requested %s, available %s",
			ErrInsufficientFunds, from.ID, amount.String(), limit.String())
	}
	return nil
}
