// Package wallet is the transfer core: the account and ledger data model, the
// double-entry recorder, the transfer validator, and the engine that drives a
// transfer to a terminal state.
package wallet

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/walletcore/pkg/money"
)

// SystemFundingAccountID is the distinguished counter-party for unilateral
// credits. The row is created lazily on first use; the id never changes.
var SystemFundingAccountID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// AccountType determines the withdrawal policy of an account.
type AccountType string

const (
	AccountTypeMain    AccountType = "MAIN"
	AccountTypeBonus   AccountType = "BONUS"
	AccountTypePending AccountType = "PENDING"
	AccountTypeJackpot AccountType = "JACKPOT"
	AccountTypeSystem  AccountType = "SYSTEM"
)

// AllAccountTypes returns every valid account type.
func AllAccountTypes() []AccountType {
	return []AccountType{
		AccountTypeMain,
		AccountTypeBonus,
		AccountTypePending,
		AccountTypeJackpot,
		AccountTypeSystem,
	}
}

// IsValid checks if the account type is valid.
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeMain, AccountTypeBonus, AccountTypePending, AccountTypeJackpot, AccountTypeSystem:
		return true
	}
	return false
}

// Label returns a human-readable label for the account type.
func (t AccountType) Label() string {
	switch t {
	case AccountTypeMain:
		return "Main"
	case AccountTypeBonus:
		return "Bonus"
	case AccountTypePending:
		return "Pending"
	case AccountTypeJackpot:
		return "Jackpot"
	case AccountTypeSystem:
		return "System"
	default:
		return "Unknown"
	}
}

// MaxWithdrawal returns the largest amount the account type permits to leave
// the account at the given balance. The second return value is true when the
// type places no bound at all (the system account).
func (t AccountType) MaxWithdrawal(balance decimal.Decimal) (decimal.Decimal, bool) {
	switch t {
	case AccountTypeSystem:
		return decimal.Zero, true
	case AccountTypeMain, AccountTypeBonus:
		return balance, false
	default:
		// Pending and Jackpot funds are frozen until released elsewhere.
		return decimal.Zero, false
	}
}

// ParseAccountType parses an account type, accepting any letter case.
func ParseAccountType(s string) (AccountType, error) {
	t := AccountType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", ErrInvalidAccountType
	}
	return t, nil
}

// Account is a monetary account. It carries identity only: the balance is
// always derived from ledger entries, never stored on the account.
type Account struct {
	ID        uuid.UUID
	Currency  money.Currency
	Type      AccountType
	CreatedAt time.Time
}

// NewAccount builds an account with a fresh id and zero (implicit) balance.
func NewAccount(currency money.Currency, accountType AccountType) *Account {
	return &Account{
		ID:        uuid.New(),
		Currency:  currency,
		Type:      accountType,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks the account invariants.
func (a *Account) Validate() error {
	if !a.Currency.IsValid() {
		return ErrInvalidCurrency
	}
	if !a.Type.IsValid() {
		return ErrInvalidAccountType
	}
	return nil
}

// TransactionType distinguishes peer transfers from system deposits.
type TransactionType string

const (
	TxTypeTransfer TransactionType = "TRANSFER"
	TxTypeDeposit  TransactionType = "DEPOSIT"
)

// IsValid checks if the transaction type is valid.
func (t TransactionType) IsValid() bool {
	return t == TxTypeTransfer || t == TxTypeDeposit
}

// Label returns a human-readable label for the transaction type.
func (t TransactionType) Label() string {
	switch t {
	case TxTypeTransfer:
		return "Transfer"
	case TxTypeDeposit:
		return "Deposit"
	default:
		return "Unknown"
	}
}

// TransactionStatus is the lifecycle state of a transaction.
type TransactionStatus string

const (
	TxStatusPending TransactionStatus = "PENDING"
	TxStatusSuccess TransactionStatus = "SUCCESS"
	TxStatusFailed  TransactionStatus = "FAILED"
)

// IsValid checks if the status is valid.
func (s TransactionStatus) IsValid() bool {
	return s == TxStatusPending || s == TxStatusSuccess || s == TxStatusFailed
}

// IsTerminal reports whether the status permits no further transition.
func (s TransactionStatus) IsTerminal() bool {
	return s == TxStatusSuccess || s == TxStatusFailed
}

// Transaction is the logical transfer record. It transitions exactly once
// from PENDING to SUCCESS or FAILED and is never mutated afterwards.
type Transaction struct {
	ID            uuid.UUID
	FromAccountID uuid.UUID
	ToAccountID   uuid.UUID
	Amount        decimal.Decimal
	Currency      money.Currency
	Type          TransactionType
	Reference     *string
	Status        TransactionStatus
	Reason        *string
	Description   *string
	CreatedAt     time.Time
	Entries       []*Entry
}

// NewTransfer builds a PENDING transfer transaction. The currency is the
// source account's currency, resolved by the caller.
func NewTransfer(from, to uuid.UUID, amount decimal.Decimal, currency money.Currency, reference, description *string) *Transaction {
	return &Transaction{
		ID:            uuid.New(),
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        amount,
		Currency:      currency,
		Type:          TxTypeTransfer,
		Reference:     reference,
		Status:        TxStatusPending,
		Description:   description,
		CreatedAt:     time.Now().UTC(),
	}
}

// NewDeposit builds a PENDING system-credit transaction with the system
// funding account as the source.
func NewDeposit(to uuid.UUID, amount decimal.Decimal, currency money.Currency, description *string) *Transaction {
	return &Transaction{
		ID:            uuid.New(),
		FromAccountID: SystemFundingAccountID,
		ToAccountID:   to,
		Amount:        amount,
		Currency:      currency,
		Type:          TxTypeDeposit,
		Status:        TxStatusPending,
		Description:   description,
		CreatedAt:     time.Now().UTC(),
	}
}

// Validate checks the transaction invariants.
func (t *Transaction) Validate() error {
	if t.FromAccountID == uuid.Nil || t.ToAccountID == uuid.Nil {
		return ErrMissingAccount
	}
	if !t.Type.IsValid() {
		return ErrInvalidTransactionType
	}
	if !t.Status.IsValid() {
		return ErrInvalidTransactionStatus
	}
	if !money.IsPositive(t.Amount) {
		return ErrNonPositiveAmount
	}
	if t.Type == TxTypeTransfer && t.FromAccountID == t.ToAccountID {
		return ErrSelfTransfer
	}
	if !t.Currency.IsValid() {
		return ErrInvalidCurrency
	}
	return nil
}

// MarkSuccess transitions the transaction to SUCCESS.
func (t *Transaction) MarkSuccess() error {
	if t.Status.IsTerminal() {
		return ErrTransactionTerminal
	}
	t.Status = TxStatusSuccess
	return nil
}

// MarkFailed transitions the transaction to FAILED with a reason.
func (t *Transaction) MarkFailed(reason string) error {
	if t.Status.IsTerminal() {
		return ErrTransactionTerminal
	}
	t.Status = TxStatusFailed
	t.Reason = &reason
	return nil
}

// EntryType marks an entry as a debit or a credit.
type EntryType string

const (
	EntryTypeDebit  EntryType = "DEBIT"
	EntryTypeCredit EntryType = "CREDIT"
)

// IsValid checks if the entry type is valid.
func (t EntryType) IsValid() bool {
	return t == EntryTypeDebit || t == EntryTypeCredit
}

// Entry is one immutable side of a double-entry pair.
type Entry struct {
	ID            uuid.UUID
	AccountID     uuid.UUID
	TransactionID uuid.UUID
	Type          EntryType
	Amount        decimal.Decimal
	Currency      money.Currency
	Description   *string
	CreatedAt     time.Time
}

// NewEntry builds a ledger entry bound to a transaction.
func NewEntry(accountID, transactionID uuid.UUID, entryType EntryType, amount decimal.Decimal, currency money.Currency, description *string) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AccountID:     accountID,
		TransactionID: transactionID,
		Type:          entryType,
		Amount:        amount,
		Currency:      currency,
		Description:   description,
		CreatedAt:     time.Now().UTC(),
	}
}

// Validate checks the entry invariants.
func (e *Entry) Validate() error {
	if e.AccountID == uuid.Nil || e.TransactionID == uuid.Nil {
		return ErrMissingAccount
	}
	if !e.Type.IsValid() {
		return ErrInvalidEntryType
	}
	if !money.IsPositive(e.Amount) {
		return ErrNonPositiveAmount
	}
	if !e.Currency.IsValid() {
		return ErrInvalidCurrency
	}
	return nil
}

// SignedAmount returns the entry amount with its balance sign: positive for
// credits, negative for debits.
func (e *Entry) SignedAmount() decimal.Decimal {
	if e.Type == EntryTypeCredit {
		return e.Amount
	}
	return e.Amount.Neg()
}
