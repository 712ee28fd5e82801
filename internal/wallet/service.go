package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/walletcore/pkg/logger"
	"github.com/kislikjeka/walletcore/pkg/money"
)

// DefaultTransferTimeout bounds the database transaction of a single
// transfer, locks included.
const DefaultTransferTimeout = 15 * time.Second

// auditTimeout bounds the best-effort write of a FAILED audit row.
const auditTimeout = 5 * time.Second

// TransferInput is a request to move value between two accounts.
type TransferInput struct {
	FromAccountID uuid.UUID
	ToAccountID   uuid.UUID
	Amount        decimal.Decimal
	Reference     *string
	Description   *string
}

func (in TransferInput) Validate() error {
	if in.FromAccountID == uuid.Nil || in.ToAccountID == uuid.Nil {
		return ErrMissingAccount
	}
	if in.FromAccountID == in.ToAccountID {
		return ErrSelfTransfer
	}
	if !money.IsPositive(in.Amount) {
		return ErrNonPositiveAmount
	}
	return nil
}

// normalizedReference treats an absent or blank reference as no reference.
func (in TransferInput) normalizedReference() *string {
	if in.Reference == nil {
		return nil
	}
	ref := strings.TrimSpace(*in.Reference)
	if ref == "" {
		return nil
	}
	return &ref
}

// matchesTransfer reports whether a replayed request describes the transfer
// this transaction already recorded: same participants, same amount.
func (t *Transaction) matchesTransfer(in TransferInput) bool {
	return t.FromAccountID == in.FromAccountID &&
		t.ToAccountID == in.ToAccountID &&
		t.Amount.Equal(in.Amount)
}

// SystemCreditInput is a request to inject value into an account from the
// system funding account.
type SystemCreditInput struct {
	AccountID   uuid.UUID
	Amount      decimal.Decimal
	Currency    money.Currency
	Description *string
}

func (in SystemCreditInput) Validate() error {
	if in.AccountID == uuid.Nil {
		return ErrMissingAccount
	}
	if !money.IsPositive(in.Amount) {
		return ErrNonPositiveAmount
	}
	if !in.Currency.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, in.Currency)
	}
	return nil
}

// BalanceSnapshot reports a derived balance at read time.
type BalanceSnapshot struct {
	AccountID uuid.UUID
	Currency  money.Currency
	Balance   decimal.Decimal
	AsOf      time.Time
}

// Service executes transfers and system credits against the double-entry
// ledger and answers balance queries derived from it.
type Service struct {
	repo            Repository
	accounts        AccountGetter
	validator       *transferValidator
	recorder        *entryRecorder
	log             *logger.Logger
	transferTimeout time.Duration
}

// NewService wires the engine. accounts may be nil, in which case account
// reads go straight to the repository.
func NewService(repo Repository, accounts AccountGetter, log *logger.Logger) *Service {
	return NewServiceWithTimeout(repo, accounts, log, DefaultTransferTimeout)
}

// NewServiceWithTimeout is NewService with a custom bound on the transfer
// database transaction.
func NewServiceWithTimeout(repo Repository, accounts AccountGetter, log *logger.Logger, timeout time.Duration) *Service {
	if accounts == nil {
		accounts = repo
	}
	if timeout <= 0 {
		timeout = DefaultTransferTimeout
	}
	return &Service{
		repo:            repo,
		accounts:        accounts,
		validator:       newTransferValidator(repo, accounts),
		recorder:        newEntryRecorder(repo),
		log:             log.WithField("component", "wallet"),
		transferTimeout: timeout,
	}
}

// CreateAccount opens an empty account. Accounts never store a balance;
// value arrives only through transfers and system credits.
func (s *Service) CreateAccount(ctx context.Context, currency money.Currency, accountType AccountType) (*Account, error) {
	account := NewAccount(currency, accountType)
	if err := account.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	s.log.Info("account created",
		"account_id", account.ID,
		"currency", account.Currency,
		"account_type", account.Type,
	)
	return account, nil
}

// GetAccount returns account identity by id.
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.accounts.GetAccount(ctx, id)
}

// Balance derives the current balance of an account from its ledger entries.
func (s *Service) Balance(ctx context.Context, accountID uuid.UUID) (*BalanceSnapshot, error) {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	balance, err := s.recorder.balance(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &BalanceSnapshot{
		AccountID: account.ID,
		Currency:  account.Currency,
		Balance:   balance,
		AsOf:      time.Now().UTC(),
	}, nil
}

// BalanceByCurrency derives the balance over entries in a single currency.
// Only system accounts accumulate entries in more than one.
func (s *Service) BalanceByCurrency(ctx context.Context, accountID uuid.UUID, currency money.Currency) (*BalanceSnapshot, error) {
	if !currency.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
	}
	if _, err := s.accounts.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	balance, err := s.recorder.balanceByCurrency(ctx, accountID, currency)
	if err != nil {
		return nil, err
	}
	return &BalanceSnapshot{
		AccountID: accountID,
		Currency:  currency,
		Balance:   balance,
		AsOf:      time.Now().UTC(),
	}, nil
}

// TransactionsForAccount lists transactions the account participated in,
// newest first.
func (s *Service) TransactionsForAccount(ctx context.Context, accountID uuid.UUID) ([]*Transaction, error) {
	if _, err := s.accounts.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	txs, err := s.repo.ListTransactionsForAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list transactions for account %s: %w", accountID, err)
	}
	return txs, nil
}

// TransactionByReference resolves a transaction by its client reference,
// matched case-insensitively.
func (s *Service) TransactionByReference(ctx context.Context, reference string) (*Transaction, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrTransactionNotFound
	}
	return s.repo.FindTransactionByReference(ctx, reference)
}

// Transfer moves value between two accounts. The two ledger entries and the
// SUCCESS status are committed atomically; on any failure the database keeps
// no partial effect. Replaying a reference with identical parameters returns
// the original transaction instead of moving value twice.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (*Transaction, error) {
	v, err := s.validator.validate(ctx, in)
	if err != nil {
		return nil, err
	}
	if v.existing != nil {
		s.log.Info("transfer replayed by reference",
			"transaction_id", v.existing.ID,
			"reference", *v.existing.Reference,
		)
		return v.existing, nil
	}

	tx := NewTransfer(in.FromAccountID, in.ToAccountID, in.Amount, v.from.Currency, in.normalizedReference(), in.Description)

	if err := s.execute(ctx, tx); err != nil {
		if errors.Is(err, ErrReferenceInUse) {
			return s.resolveReferenceRace(ctx, in)
		}
		s.persistFailure(ctx, tx, err)
		return nil, err
	}

	s.log.Info("transfer completed",
		"transaction_id", tx.ID,
		"from_account_id", tx.FromAccountID,
		"to_account_id", tx.ToAccountID,
		"amount", tx.Amount.String(),
		"currency", tx.Currency,
	)
	return tx, nil
}

// execute runs the locked section shared by transfers and system credits:
// both account rows are locked in lexicographic id order, the checks that
// depend on current state run again, and the transaction row plus its entry
// pair are committed together.
func (s *Service) execute(ctx context.Context, tx *Transaction) error {
	opCtx, cancel := context.WithTimeout(ctx, s.transferTimeout)
	defer cancel()

	txCtx, err := s.repo.BeginTx(opCtx)
	if err != nil {
		return fmt.Errorf("begin transfer transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = s.repo.RollbackTx(txCtx)
		}
	}()

	from, to, err := s.lockAccountPair(txCtx, tx.FromAccountID, tx.ToAccountID)
	if err != nil {
		return err
	}
	if err := s.revalidateUnderLock(txCtx, from, to, tx.Amount); err != nil {
		return err
	}
	if err := s.persistAndComplete(txCtx, tx); err != nil {
		return err
	}

	if err := s.repo.CommitTx(txCtx); err != nil {
		return fmt.Errorf("commit transfer transaction: %w", err)
	}
	committed = true
	return nil
}

// lockAccountPair acquires both row locks, always in lexicographic order of
// the account ids, so concurrent transfers over the same pair cannot
// deadlock. Returns the accounts in (from, to) order.
func (s *Service) lockAccountPair(ctx context.Context, fromID, toID uuid.UUID) (*Account, *Account, error) {
	firstID, secondID := fromID, toID
	if firstID.String() > secondID.String() {
		firstID, secondID = secondID, firstID
	}

	first, err := s.repo.GetAccountForUpdate(ctx, firstID)
	if err != nil {
		return nil, nil, fmt.Errorf("lock account %s: %w", firstID, err)
	}
	second, err := s.repo.GetAccountForUpdate(ctx, secondID)
	if err != nil {
		return nil, nil, fmt.Errorf("lock account %s: %w", secondID, err)
	}

	if first.ID == fromID {
		return first, second, nil
	}
	return second, first, nil
}

// revalidateUnderLock repeats the state-dependent checks now that both rows
// are locked. The pre-lock pass may have seen a balance that a concurrent
// transfer has since spent.
func (s *Service) revalidateUnderLock(ctx context.Context, from, to *Account, amount decimal.Decimal) error {
	if err := checkCurrencies(from, to); err != nil {
		return err
	}
	balance, err := s.recorder.balance(ctx, from.ID)
	if err != nil {
		return err
	}
	return checkWithdrawal(from, balance, amount)
}

// persistAndComplete writes the pending transaction row, appends its entry
// pair, and flips the row to SUCCESS, all inside the caller's database
// transaction.
func (s *Service) persistAndComplete(ctx context.Context, tx *Transaction) error {
	if err := s.repo.SaveTransaction(ctx, tx); err != nil {
		if errors.Is(err, ErrReferenceInUse) {
			return err
		}
		return fmt.Errorf("save transaction %s: %w", tx.ID, err)
	}
	if err := s.recorder.recordTransfer(ctx, tx); err != nil {
		return err
	}
	if err := tx.MarkSuccess(); err != nil {
		return err
	}
	if err := s.repo.UpdateTransactionStatus(ctx, tx.ID, TxStatusSuccess, nil); err != nil {
		return fmt.Errorf("mark transaction %s successful: %w", tx.ID, err)
	}
	return nil
}

// resolveReferenceRace handles losing the insert race on a reference: the
// unique index on LOWER(reference) picked a winner, so re-read it and apply
// the same idempotency cross-check as the pre-validation pass.
func (s *Service) resolveReferenceRace(ctx context.Context, in TransferInput) (*Transaction, error) {
	ref := in.normalizedReference()
	if ref == nil {
		return nil, ErrReferenceInUse
	}
	existing, err := s.repo.FindTransactionByReference(ctx, *ref)
	if err != nil {
		return nil, fmt.Errorf("re-read reference %q after losing insert race: %w", *ref, err)
	}
	if !existing.matchesTransfer(in) {
		return nil, fmt.Errorf("%w: %q used by transaction %s", ErrDuplicateReference, *ref, existing.ID)
	}
	s.log.Info("transfer resolved to race winner",
		"transaction_id", existing.ID,
		"reference", *ref,
	)
	return existing, nil
}

// persistFailure records a FAILED audit row after the transfer's own
// transaction rolled back. Only business rejections leave a trace; the row
// carries no reference so the client can retry under the same one. Best
// effort: an audit write failure is logged, never surfaced.
func (s *Service) persistFailure(ctx context.Context, tx *Transaction, cause error) {
	if !errors.Is(cause, ErrInsufficientFunds) && !errors.Is(cause, ErrCurrencyMismatch) {
		return
	}
	if err := tx.MarkFailed(cause.Error()); err != nil {
		return
	}
	tx.Reference = nil

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if err := s.repo.SaveTransaction(auditCtx, tx); err != nil {
		s.log.WithError(err).Warn("failed to persist FAILED transfer audit row",
			"transaction_id", tx.ID,
		)
		return
	}
	s.log.Info("transfer rejected",
		"transaction_id", tx.ID,
		"from_account_id", tx.FromAccountID,
		"to_account_id", tx.ToAccountID,
		"reason", cause.Error(),
	)
}

// RecordSystemCredit injects value into an account, debiting the system
// funding account as counter-party so the books stay balanced. The funding
// account row is created on first use; concurrent first uses are safe.
func (s *Service) RecordSystemCredit(ctx context.Context, in SystemCreditInput) (*Transaction, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	target, err := s.accounts.GetAccount(ctx, in.AccountID)
	if err != nil {
		return nil, err
	}
	if target.Type != AccountTypeSystem && in.Currency != target.Currency {
		return nil, fmt.Errorf("%w: credit in %s, account %s holds %s",
			ErrCurrencyMismatch, in.Currency, target.ID, target.Currency)
	}

	if _, err := s.repo.GetOrCreateAccount(ctx, systemFundingAccount()); err != nil {
		return nil, fmt.Errorf("ensure system funding account: %w", err)
	}

	tx := NewDeposit(in.AccountID, in.Amount, in.Currency, in.Description)
	if err := s.execute(ctx, tx); err != nil {
		return nil, err
	}

	s.log.Info("system credit recorded",
		"transaction_id", tx.ID,
		"account_id", in.AccountID,
		"amount", in.Amount.String(),
		"currency", in.Currency,
	)
	return tx, nil
}

// VerifyBalance reports whether the derived balance equals the expected
// value exactly.
func (s *Service) VerifyBalance(ctx context.Context, accountID uuid.UUID, expected decimal.Decimal) (bool, error) {
	if _, err := s.accounts.GetAccount(ctx, accountID); err != nil {
		return false, err
	}
	balance, err := s.recorder.balance(ctx, accountID)
	if err != nil {
		return false, err
	}
	return balance.Equal(expected), nil
}

// VerifyAccountBalance recomputes the balance two independent ways and
// returns it, or ErrBalanceVerification if the books disagree with
// themselves.
func (s *Service) VerifyAccountBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	if _, err := s.accounts.GetAccount(ctx, accountID); err != nil {
		return decimal.Zero, err
	}
	return s.recorder.verify(ctx, accountID)
}

// systemFundingAccount is the fixed counter-party row for system credits.
// The currency on the row is nominal: system accounts are exempt from
// currency matching and their balances are read per currency.
func systemFundingAccount() *Account {
	return &Account{
		ID:        SystemFundingAccountID,
		Currency:  money.EUR,
		Type:      AccountTypeSystem,
		CreatedAt: time.Now().UTC(),
	}
}
