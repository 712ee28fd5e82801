package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kislikjeka/walletcore/internal/shared/apierror"
	"github.com/kislikjeka/walletcore/internal/wallet"
	"github.com/kislikjeka/walletcore/pkg/money"
)

// AccountService defines the account operations the handler needs.
type AccountService interface {
	CreateAccount(ctx context.Context, currency money.Currency, accountType wallet.AccountType) (*wallet.Account, error)
	Balance(ctx context.Context, accountID uuid.UUID) (*wallet.BalanceSnapshot, error)
	TransactionsForAccount(ctx context.Context, accountID uuid.UUID) ([]*wallet.Transaction, error)
}

// AccountHandler handles account-related HTTP requests
type AccountHandler struct {
	service AccountService
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(service AccountService) *AccountHandler {
	return &AccountHandler{service: service}
}

// CreateAccountRequest represents the account creation request
type CreateAccountRequest struct {
	Currency    string `json:"currency"`
	AccountType string `json:"accountType"`
}

// AccountResponse represents an account in responses
type AccountResponse struct {
	ID          string `json:"id"`
	Currency    string `json:"currency"`
	AccountType string `json:"accountType"`
	CreatedAt   string `json:"createdAt"`
}

// BalanceResponse represents a derived balance
type BalanceResponse struct {
	AccountID string `json:"accountId"`
	Balance   string `json:"balance"`
	Currency  string `json:"currency"`
	AsOf      string `json:"asOf"`
}

// TransactionsListResponse represents the response for listing transactions
type TransactionsListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
}

// CreateAccount handles POST /accounts
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondEnvelope(w, apierror.BadRequest("invalid request body", r.URL.Path))
		return
	}

	fieldErrors := make(map[string]string)
	currency, err := money.ParseCurrency(req.Currency)
	if err != nil {
		fieldErrors["currency"] = "must be one of EUR, USD, CHF, GBP"
	}
	accountType, err := wallet.ParseAccountType(req.AccountType)
	if err != nil {
		fieldErrors["accountType"] = "must be one of MAIN, BONUS, PENDING, JACKPOT, SYSTEM"
	}
	if len(fieldErrors) > 0 {
		respondEnvelope(w, apierror.Validation(r.URL.Path, fieldErrors))
		return
	}

	account, err := h.service.CreateAccount(r.Context(), currency, accountType)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, toAccountResponse(account), http.StatusCreated)
}

// GetBalance handles GET /accounts/{id}/balance
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondEnvelope(w, apierror.BadRequest("invalid account id", r.URL.Path))
		return
	}

	snapshot, err := h.service.Balance(r.Context(), accountID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, toBalanceResponse(snapshot), http.StatusOK)
}

// ListTransactions handles GET /accounts/{id}/transactions
func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondEnvelope(w, apierror.BadRequest("invalid account id", r.URL.Path))
		return
	}

	txs, err := h.service.TransactionsForAccount(r.Context(), accountID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	resp := TransactionsListResponse{Transactions: make([]TransactionResponse, 0, len(txs))}
	for _, tx := range txs {
		resp.Transactions = append(resp.Transactions, toTransactionResponse(tx))
	}
	respondJSON(w, resp, http.StatusOK)
}

func toAccountResponse(account *wallet.Account) AccountResponse {
	return AccountResponse{
		ID:          account.ID.String(),
		Currency:    string(account.Currency),
		AccountType: string(account.Type),
		CreatedAt:   account.CreatedAt.Format(timeLayout),
	}
}

func toBalanceResponse(snapshot *wallet.BalanceSnapshot) BalanceResponse {
	return BalanceResponse{
		AccountID: snapshot.AccountID.String(),
		Balance:   money.FormatAmount(snapshot.Balance),
		Currency:  string(snapshot.Currency),
		AsOf:      snapshot.AsOf.Format(timeLayout),
	}
}
