package wallet

import (
	"errors"
	"fmt"
)

// Account errors
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidCurrency    = errors.New("invalid currency")
	ErrInvalidAccountType = errors.New("invalid account type")
)

// Transfer validation errors. The sub-kinds wrap ErrInvalidTransaction so a
// single errors.Is check catches the whole family.
var (
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrNonPositiveAmount  = fmt.Errorf("%w: amount must be positive", ErrInvalidTransaction)
	ErrSelfTransfer       = fmt.Errorf("%w: source and destination accounts must differ", ErrInvalidTransaction)
	ErrMissingAccount     = fmt.Errorf("%w: source and destination account ids are required", ErrInvalidTransaction)
	ErrDuplicateReference = fmt.Errorf("%w: reference already used with different parameters", ErrInvalidTransaction)

	ErrCurrencyMismatch  = errors.New("currency mismatch")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Transaction lifecycle errors
var (
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrInvalidTransactionType   = errors.New("invalid transaction type")
	ErrInvalidTransactionStatus = errors.New("invalid transaction status")
	ErrTransactionTerminal      = errors.New("transaction already in a terminal status")

	// ErrReferenceInUse surfaces the unique index on LOWER(reference). The
	// engine treats it as losing a race and re-reads the winning transaction.
	ErrReferenceInUse = errors.New("transaction reference already in use")
)

// Entry errors
var (
	ErrInvalidEntryType   = errors.New("invalid entry type")
	ErrUnbalancedEntries  = errors.New("transaction debits and credits do not balance")
	ErrEntriesAlreadyMade = errors.New("ledger entries already recorded for transaction")
)

// Reconciliation errors
var (
	ErrBalanceVerification = errors.New("balance verification failed")
)
