package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/walletcore/internal/wallet"
)

// Service answers read-only reporting queries. Everything it returns is
// derived from the immutable ledger at request time; nothing is cached or
// precomputed.
type Service struct {
	repo     wallet.Repository
	accounts wallet.AccountGetter
}

// NewService wires the reporter. accounts may be nil, in which case account
// reads go straight to the repository.
func NewService(repo wallet.Repository, accounts wallet.AccountGetter) *Service {
	if accounts == nil {
		accounts = repo
	}
	return &Service{repo: repo, accounts: accounts}
}

// TransactionHistory returns a transaction together with its ledger entries.
func (s *Service) TransactionHistory(ctx context.Context, transactionID uuid.UUID) (*wallet.Transaction, error) {
	tx, err := s.repo.FindTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.GetEntriesByTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("load entries for transaction %s: %w", transactionID, err)
	}
	tx.Entries = entries
	return tx, nil
}

// AccountLedger returns one page of the account's entries, newest first,
// each annotated with the running balance as of that entry. Pages are
// 1-based; out-of-range page numbers yield an empty page, not an error.
func (s *Service) AccountLedger(ctx context.Context, accountID uuid.UUID, pageSize, pageNumber int) (*LedgerPage, error) {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if pageNumber <= 0 {
		pageNumber = 1
	}

	offset := (pageNumber - 1) * pageSize
	lines, total, err := s.repo.ListEntryLines(ctx, accountID, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("load ledger page for account %s: %w", accountID, err)
	}

	balance, err := s.repo.CalculateBalance(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("calculate balance for account %s: %w", accountID, err)
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &LedgerPage{
		AccountID:    account.ID,
		Currency:     account.Currency,
		Balance:      balance,
		PageSize:     pageSize,
		PageNumber:   pageNumber,
		TotalEntries: total,
		TotalPages:   totalPages,
		Lines:        lines,
	}, nil
}

// AccountStatement summarizes activity between two inclusive calendar dates.
// The opening balance aggregates every entry before the period, the closing
// balance is opening plus the period's net movement, so an empty period
// reports them equal.
func (s *Service) AccountStatement(ctx context.Context, accountID uuid.UUID, startDate, endDate time.Time) (*Statement, error) {
	if startDate.After(endDate) {
		return nil, ErrInvalidPeriod
	}

	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	periodStart := startDate
	periodEnd := endDate.AddDate(0, 0, 1) // end date is inclusive

	opening, err := s.repo.CalculateBalanceBefore(ctx, accountID, periodStart)
	if err != nil {
		return nil, fmt.Errorf("opening balance for account %s: %w", accountID, err)
	}

	entries, err := s.repo.ListEntriesBetween(ctx, accountID, periodStart, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("load statement entries for account %s: %w", accountID, err)
	}

	credits, debits := decimal.Zero, decimal.Zero
	running := opening
	lines := make([]*wallet.LedgerLine, 0, len(entries))
	for _, entry := range entries {
		switch entry.Type {
		case wallet.EntryTypeCredit:
			credits = credits.Add(entry.Amount)
		case wallet.EntryTypeDebit:
			debits = debits.Add(entry.Amount)
		}
		running = running.Add(entry.SignedAmount())
		lines = append(lines, &wallet.LedgerLine{Entry: entry, RunningBalance: running})
	}

	return &Statement{
		AccountID:      account.ID,
		Currency:       account.Currency,
		StartDate:      startDate,
		EndDate:        endDate,
		OpeningBalance: opening,
		ClosingBalance: running,
		TotalCredits:   credits,
		TotalDebits:    debits,
		Lines:          lines,
	}, nil
}
