package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/walletcore/internal/wallet"
	"github.com/kislikjeka/walletcore/pkg/money"
)

// WalletRepository implements wallet.Repository on PostgreSQL. Amounts are
// NUMERIC in the database and cross the wire as strings.
type WalletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository creates a PostgreSQL-backed wallet repository.
func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

// Unique constraints the repository maps to domain errors.
const (
	referenceUniqueConstraint = "ux_transactions_reference_lower"
	entryPairUniqueConstraint = "ux_ledger_entries_tx_type"
)

// Account operations

// CreateAccount inserts a new account row.
func (r *WalletRepository) CreateAccount(ctx context.Context, account *wallet.Account) error {
	if err := account.Validate(); err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}

	query := `
		INSERT INTO accounts (id, currency, account_type, created_at)
		VALUES ($1, $2, $3, $4)
	`

	q := r.getQueryer(ctx)
	_, err := q.Exec(ctx, query,
		account.ID,
		string(account.Currency),
		string(account.Type),
		account.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccount retrieves an account by id.
func (r *WalletRepository) GetAccount(ctx context.Context, id uuid.UUID) (*wallet.Account, error) {
	return r.getAccount(ctx, id, false)
}

// GetAccountForUpdate retrieves an account by id and locks its row until the
// transaction in the context completes.
func (r *WalletRepository) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*wallet.Account, error) {
	return r.getAccount(ctx, id, true)
}

func (r *WalletRepository) getAccount(ctx context.Context, id uuid.UUID, forUpdate bool) (*wallet.Account, error) {
	query := `
		SELECT id, currency, account_type, created_at
		FROM accounts
		WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	q := r.getQueryer(ctx)
	account, err := scanAccount(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// GetOrCreateAccount inserts the account unless its id already exists and
// returns the canonical row either way. INSERT...ON CONFLICT DO NOTHING
// keeps concurrent first uses race-free.
func (r *WalletRepository) GetOrCreateAccount(ctx context.Context, account *wallet.Account) (*wallet.Account, error) {
	if err := account.Validate(); err != nil {
		return nil, fmt.Errorf("invalid account: %w", err)
	}

	query := `
		INSERT INTO accounts (id, currency, account_type, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`

	q := r.getQueryer(ctx)
	_, err := q.Exec(ctx, query,
		account.ID,
		string(account.Currency),
		string(account.Type),
		account.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}

	// Always re-select to get the canonical row, ours or the earlier one.
	return r.GetAccount(ctx, account.ID)
}

// Transaction operations

// SaveTransaction inserts a transaction row. A conflict on the reference
// index surfaces as wallet.ErrReferenceInUse.
func (r *WalletRepository) SaveTransaction(ctx context.Context, tx *wallet.Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}

	query := `
		INSERT INTO transactions (id, from_account_id, to_account_id, amount, currency, transaction_type, reference, status, reason, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	q := r.getQueryer(ctx)
	_, err := q.Exec(ctx, query,
		tx.ID,
		tx.FromAccountID,
		tx.ToAccountID,
		tx.Amount.String(),
		string(tx.Currency),
		string(tx.Type),
		tx.Reference,
		string(tx.Status),
		tx.Reason,
		tx.Description,
		tx.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == referenceUniqueConstraint {
			return fmt.Errorf("%w: %w", wallet.ErrReferenceInUse, err)
		}
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

// UpdateTransactionStatus moves a transaction to a new status.
func (r *WalletRepository) UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status wallet.TransactionStatus, reason *string) error {
	if !status.IsValid() {
		return wallet.ErrInvalidTransactionStatus
	}

	query := `
		UPDATE transactions
		SET status = $2, reason = $3
		WHERE id = $1
	`

	q := r.getQueryer(ctx)
	tag, err := q.Exec(ctx, query, id, string(status), reason)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return wallet.ErrTransactionNotFound
	}
	return nil
}

// FindTransaction retrieves a transaction by id.
func (r *WalletRepository) FindTransaction(ctx context.Context, id uuid.UUID) (*wallet.Transaction, error) {
	query := transactionSelect + ` WHERE id = $1`

	q := r.getQueryer(ctx)
	tx, err := scanTransaction(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}
	return tx, nil
}

// FindTransactionByReference retrieves a transaction by client reference,
// matched case-insensitively via the index on LOWER(reference).
func (r *WalletRepository) FindTransactionByReference(ctx context.Context, reference string) (*wallet.Transaction, error) {
	query := transactionSelect + ` WHERE LOWER(reference) = LOWER($1)`

	q := r.getQueryer(ctx)
	tx, err := scanTransaction(q.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to find transaction by reference: %w", err)
	}
	return tx, nil
}

// ListTransactionsForAccount returns transactions the account participated
// in on either side, newest first.
func (r *WalletRepository) ListTransactionsForAccount(ctx context.Context, accountID uuid.UUID) ([]*wallet.Transaction, error) {
	query := transactionSelect + `
		WHERE from_account_id = $1 OR to_account_id = $1
		ORDER BY created_at DESC, id DESC
	`

	q := r.getQueryer(ctx)
	rows, err := q.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*wallet.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

// Entry operations

// AppendEntries inserts ledger entries. Entries are append-only; a second
// pair for the same transaction surfaces as wallet.ErrEntriesAlreadyMade.
func (r *WalletRepository) AppendEntries(ctx context.Context, entries []*wallet.Entry) error {
	for _, entry := range entries {
		if err := r.appendEntry(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (r *WalletRepository) appendEntry(ctx context.Context, entry *wallet.Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid entry: %w", err)
	}

	query := `
		INSERT INTO ledger_entries (id, account_id, transaction_id, entry_type, amount, currency, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	q := r.getQueryer(ctx)
	_, err := q.Exec(ctx, query,
		entry.ID,
		entry.AccountID,
		entry.TransactionID,
		string(entry.Type),
		entry.Amount.String(),
		string(entry.Currency),
		entry.Description,
		entry.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == entryPairUniqueConstraint {
			return fmt.Errorf("%w: %w", wallet.ErrEntriesAlreadyMade, err)
		}
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// GetEntriesByTransaction returns the entries recorded for a transaction,
// debit side first.
func (r *WalletRepository) GetEntriesByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*wallet.Entry, error) {
	query := entrySelect + `
		WHERE transaction_id = $1
		ORDER BY entry_type DESC
	`

	q := r.getQueryer(ctx)
	rows, err := q.Query(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// ListEntryLines returns one newest-first page of an account's entries with
// the running balance as of each entry, plus the total entry count. The
// running sum is computed over chronological order before the page is cut.
func (r *WalletRepository) ListEntryLines(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*wallet.LedgerLine, int64, error) {
	q := r.getQueryer(ctx)

	var total int64
	countQuery := `SELECT COUNT(*) FROM ledger_entries WHERE account_id = $1`
	if err := q.QueryRow(ctx, countQuery, accountID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count entries: %w", err)
	}

	query := `
		SELECT id, account_id, transaction_id, entry_type, amount, currency, description, created_at,
			SUM(CASE WHEN entry_type = 'CREDIT' THEN amount ELSE -amount END)
				OVER (ORDER BY created_at, id) AS running_balance
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := q.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list entry lines: %w", err)
	}
	defer rows.Close()

	var lines []*wallet.LedgerLine
	for rows.Next() {
		var (
			entry      wallet.Entry
			entryType  string
			amountStr  string
			currency   string
			balanceStr string
		)
		err := rows.Scan(
			&entry.ID,
			&entry.AccountID,
			&entry.TransactionID,
			&entryType,
			&amountStr,
			&currency,
			&entry.Description,
			&entry.CreatedAt,
			&balanceStr,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan entry line: %w", err)
		}
		entry.Type = wallet.EntryType(entryType)
		entry.Currency = money.Currency(currency)
		if entry.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, 0, fmt.Errorf("failed to parse entry amount %q: %w", amountStr, err)
		}
		running, err := decimal.NewFromString(balanceStr)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to parse running balance %q: %w", balanceStr, err)
		}
		lines = append(lines, &wallet.LedgerLine{Entry: &entry, RunningBalance: running})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating entry lines: %w", err)
	}
	return lines, total, nil
}

// ListEntriesBetween returns an account's entries in [from, to), oldest first.
func (r *WalletRepository) ListEntriesBetween(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]*wallet.Entry, error) {
	query := entrySelect + `
		WHERE account_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at, id
	`

	q := r.getQueryer(ctx)
	rows, err := q.Query(ctx, query, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// Aggregations

// SumEntriesByType sums an account's entries of one type.
func (r *WalletRepository) SumEntriesByType(ctx context.Context, accountID uuid.UUID, entryType wallet.EntryType) (decimal.Decimal, error) {
	if !entryType.IsValid() {
		return decimal.Zero, wallet.ErrInvalidEntryType
	}

	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE account_id = $1 AND entry_type = $2
	`
	return r.queryDecimal(ctx, query, accountID, string(entryType))
}

// CalculateBalance derives the account balance as credits minus debits over
// every entry.
func (r *WalletRepository) CalculateBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(
			CASE
				WHEN entry_type = 'CREDIT' THEN amount
				WHEN entry_type = 'DEBIT' THEN -amount
			END
		), 0) AS balance
		FROM ledger_entries
		WHERE account_id = $1
	`
	return r.queryDecimal(ctx, query, accountID)
}

// CalculateBalanceByCurrency derives the balance over entries in one currency.
func (r *WalletRepository) CalculateBalanceByCurrency(ctx context.Context, accountID uuid.UUID, currency money.Currency) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(
			CASE
				WHEN entry_type = 'CREDIT' THEN amount
				WHEN entry_type = 'DEBIT' THEN -amount
			END
		), 0) AS balance
		FROM ledger_entries
		WHERE account_id = $1 AND currency = $2
	`
	return r.queryDecimal(ctx, query, accountID, string(currency))
}

// CalculateBalanceBefore derives the balance over entries created strictly
// before the cutoff.
func (r *WalletRepository) CalculateBalanceBefore(ctx context.Context, accountID uuid.UUID, cutoff time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(
			CASE
				WHEN entry_type = 'CREDIT' THEN amount
				WHEN entry_type = 'DEBIT' THEN -amount
			END
		), 0) AS balance
		FROM ledger_entries
		WHERE account_id = $1 AND created_at < $2
	`
	return r.queryDecimal(ctx, query, accountID, cutoff)
}

func (r *WalletRepository) queryDecimal(ctx context.Context, query string, args ...any) (decimal.Decimal, error) {
	var valueStr string
	q := r.getQueryer(ctx)
	if err := q.QueryRow(ctx, query, args...).Scan(&valueStr); err != nil {
		return decimal.Zero, fmt.Errorf("failed to calculate aggregate: %w", err)
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse aggregate %q: %w", valueStr, err)
	}
	return value, nil
}

// Row scanning

const transactionSelect = `
	SELECT id, from_account_id, to_account_id, amount, currency, transaction_type, reference, status, reason, description, created_at
	FROM transactions`

const entrySelect = `
	SELECT id, account_id, transaction_id, entry_type, amount, currency, description, created_at
	FROM ledger_entries`

func scanAccount(row pgx.Row) (*wallet.Account, error) {
	var (
		account     wallet.Account
		currency    string
		accountType string
	)
	err := row.Scan(&account.ID, &currency, &accountType, &account.CreatedAt)
	if err != nil {
		return nil, err
	}
	account.Currency = money.Currency(currency)
	account.Type = wallet.AccountType(accountType)
	return &account, nil
}

func scanTransaction(row pgx.Row) (*wallet.Transaction, error) {
	var (
		tx        wallet.Transaction
		amountStr string
		currency  string
		txType    string
		status    string
	)
	err := row.Scan(
		&tx.ID,
		&tx.FromAccountID,
		&tx.ToAccountID,
		&amountStr,
		&currency,
		&txType,
		&tx.Reference,
		&status,
		&tx.Reason,
		&tx.Description,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	tx.Currency = money.Currency(currency)
	tx.Type = wallet.TransactionType(txType)
	tx.Status = wallet.TransactionStatus(status)
	if tx.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("failed to parse transaction amount %q: %w", amountStr, err)
	}
	return &tx, nil
}

func collectEntries(rows pgx.Rows) ([]*wallet.Entry, error) {
	var entries []*wallet.Entry
	for rows.Next() {
		var (
			entry     wallet.Entry
			entryType string
			amountStr string
			currency  string
		)
		err := rows.Scan(
			&entry.ID,
			&entry.AccountID,
			&entry.TransactionID,
			&entryType,
			&amountStr,
			&currency,
			&entry.Description,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entry.Type = wallet.EntryType(entryType)
		entry.Currency = money.Currency(currency)
		if entry.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("failed to parse entry amount %q: %w", amountStr, err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}
	return entries, nil
}

// Transaction management using pgx transactions carried on the context.

type ctxKey string

const txContextKey ctxKey = "wallet_tx"

// BeginTx starts a database transaction and stores it in the returned
// context. Nested transactions are rejected.
func (r *WalletRepository) BeginTx(ctx context.Context) (context.Context, error) {
	if tx := r.getTxFromContext(ctx); tx != nil {
		return ctx, fmt.Errorf("transaction already in progress")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return ctx, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return context.WithValue(ctx, txContextKey, tx), nil
}

// CommitTx commits the database transaction from the context.
func (r *WalletRepository) CommitTx(ctx context.Context) error {
	tx := r.getTxFromContext(ctx)
	if tx == nil {
		return fmt.Errorf("no transaction in context")
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RollbackTx rolls back the database transaction from the context. Rolling
// back an already finished transaction is a no-op.
func (r *WalletRepository) RollbackTx(ctx context.Context) error {
	tx := r.getTxFromContext(ctx)
	if tx == nil {
		return fmt.Errorf("no transaction in context")
	}
	if err := tx.Rollback(ctx); err != nil {
		if errors.Is(err, pgx.ErrTxClosed) {
			return nil
		}
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

func (r *WalletRepository) getTxFromContext(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txContextKey).(pgx.Tx); ok {
		return tx
	}
	return nil
}

// getQueryer returns the transaction from the context if one exists,
// otherwise the pool, so every method works inside and outside transactions.
func (r *WalletRepository) getQueryer(ctx context.Context) interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
} {
	if tx := r.getTxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}
