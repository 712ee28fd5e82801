package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/walletcore/pkg/money"
)

// Repository defines the persistence surface for accounts, transactions and
// ledger entries. All writes happen inside a caller-provided transactional
// scope carried on the context.
type Repository interface {
	// Account operations
	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)
	// GetAccountForUpdate acquires an exclusive row lock held until the
	// enclosing database transaction completes.
	GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*Account, error)
	// GetOrCreateAccount inserts the account unless a row with the same id
	// already exists, and returns the canonical row either way.
	GetOrCreateAccount(ctx context.Context, account *Account) (*Account, error)

	// Transaction operations
	SaveTransaction(ctx context.Context, tx *Transaction) error
	UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status TransactionStatus, reason *string) error
	FindTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	// FindTransactionByReference matches the reference case-insensitively.
	FindTransactionByReference(ctx context.Context, reference string) (*Transaction, error)
	ListTransactionsForAccount(ctx context.Context, accountID uuid.UUID) ([]*Transaction, error)

	// Entry operations (append-only; entries are immutable once written)
	AppendEntries(ctx context.Context, entries []*Entry) error
	GetEntriesByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*Entry, error)
	// ListEntryLines returns one page of an account's entries newest-first,
	// each annotated with the running balance as of that entry, plus the
	// total number of entries for the account.
	ListEntryLines(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*LedgerLine, int64, error)
	// ListEntriesBetween returns an account's entries in [from, to) oldest-first.
	ListEntriesBetween(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]*Entry, error)

	// Aggregations over ledger entries. Balances exist nowhere else.
	SumEntriesByType(ctx context.Context, accountID uuid.UUID, entryType EntryType) (decimal.Decimal, error)
	CalculateBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	CalculateBalanceByCurrency(ctx context.Context, accountID uuid.UUID, currency money.Currency) (decimal.Decimal, error)
	// CalculateBalanceBefore aggregates entries strictly before the cutoff.
	CalculateBalanceBefore(ctx context.Context, accountID uuid.UUID, cutoff time.Time) (decimal.Decimal, error)

	// Transaction management
	BeginTx(ctx context.Context) (context.Context, error)
	CommitTx(ctx context.Context) error
	RollbackTx(ctx context.Context) error
}

// AccountGetter is the read path for account identity. A caching decorator
// may satisfy it; currency and type are immutable after creation so cached
// rows never go stale.
type AccountGetter interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)
}

// LedgerLine is a ledger entry annotated with the account's running balance
// as of that entry, entries applied in chronological order.
type LedgerLine struct {
	Entry          *Entry
	RunningBalance decimal.Decimal
}
