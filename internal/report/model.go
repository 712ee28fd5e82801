package report

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/walletcore/internal/wallet"
	"github.com/kislikjeka/walletcore/pkg/money"
)

// ErrInvalidPeriod rejects a statement request whose start date falls after
// its end date.
var ErrInvalidPeriod = errors.New("statement start date is after end date")

const (
	// DefaultPageSize applies when a ledger request names no page size.
	DefaultPageSize = 20
	// MaxPageSize caps a single ledger page.
	MaxPageSize = 100
)

// LedgerPage is one newest-first page of an account's ledger. Each line
// carries the balance the account held once that entry applied; Balance is
// the account's current balance at read time.
type LedgerPage struct {
	AccountID    uuid.UUID
	Currency     money.Currency
	Balance      decimal.Decimal
	PageSize     int
	PageNumber   int
	TotalEntries int64
	TotalPages   int
	Lines        []*wallet.LedgerLine
}

// Statement summarizes an account's activity over an inclusive date range.
// Lines hold the period's entries oldest first, each with the running balance
// seeded from the opening balance.
type Statement struct {
	AccountID      uuid.UUID
	Currency       money.Currency
	StartDate      time.Time
	EndDate        time.Time
	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal
	TotalCredits   decimal.Decimal
	TotalDebits    decimal.Decimal
	Lines          []*wallet.LedgerLine
}
