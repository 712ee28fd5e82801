package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/walletcore/internal/shared/apierror"
	"github.com/kislikjeka/walletcore/internal/wallet"
	"github.com/kislikjeka/walletcore/pkg/money"
)

// TransferService defines the transfer operations the handler needs.
type TransferService interface {
	Transfer(ctx context.Context, in wallet.TransferInput) (*wallet.Transaction, error)
	TransactionByReference(ctx context.Context, reference string) (*wallet.Transaction, error)
}

// TransferHandler handles transfer-related HTTP requests
type TransferHandler struct {
	service TransferService
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(service TransferService) *TransferHandler {
	return &TransferHandler{service: service}
}

// CreateTransferRequest represents the transfer request. Amount accepts a
// JSON number or a string.
type CreateTransferRequest struct {
	FromAccountID string          `json:"fromAccountId"`
	ToAccountID   string          `json:"toAccountId"`
	Amount        decimal.Decimal `json:"amount"`
	ReferenceID   *string         `json:"referenceId,omitempty"`
	Description   *string         `json:"description,omitempty"`
}

// TransactionResponse represents a transaction in responses
type TransactionResponse struct {
	ID              string          `json:"id"`
	FromAccountID   string          `json:"fromAccountId"`
	ToAccountID     string          `json:"toAccountId"`
	Amount          string          `json:"amount"`
	Currency        string          `json:"currency"`
	TransactionType string          `json:"transactionType"`
	ReferenceID     *string         `json:"referenceId,omitempty"`
	Status          string          `json:"status"`
	Reason          *string         `json:"reason,omitempty"`
	Description     *string         `json:"description,omitempty"`
	CreatedAt       string          `json:"createdAt"`
	Entries         []EntryResponse `json:"entries,omitempty"`
}

// EntryResponse represents a ledger entry in responses
type EntryResponse struct {
	ID            string  `json:"id"`
	AccountID     string  `json:"accountId"`
	TransactionID string  `json:"transactionId"`
	EntryType     string  `json:"entryType"`
	Amount        string  `json:"amount"`
	Currency      string  `json:"currency"`
	Description   *string `json:"description,omitempty"`
	CreatedAt     string  `json:"createdAt"`
}

// CreateTransfer handles POST /transfers
func (h *TransferHandler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondEnvelope(w, apierror.BadRequest("invalid request body", r.URL.Path))
		return
	}

	fieldErrors := make(map[string]string)
	fromID, err := uuid.Parse(req.FromAccountID)
	if err != nil {
		fieldErrors["fromAccountId"] = "must be a valid account id"
	}
	toID, err := uuid.Parse(req.ToAccountID)
	if err != nil {
		fieldErrors["toAccountId"] = "must be a valid account id"
	}
	if !money.IsPositive(req.Amount) {
		fieldErrors["amount"] = "must be a positive amount"
	}
	if len(fieldErrors) > 0 {
		respondEnvelope(w, apierror.Validation(r.URL.Path, fieldErrors))
		return
	}

	tx, err := h.service.Transfer(r.Context(), wallet.TransferInput{
		FromAccountID: fromID,
		ToAccountID:   toID,
		Amount:        req.Amount,
		Reference:     req.ReferenceID,
		Description:   req.Description,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, toTransactionResponse(tx), http.StatusOK)
}

// GetTransactionByReference handles GET /transactions/reference/{ref}
func (h *TransferHandler) GetTransactionByReference(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "ref")

	tx, err := h.service.TransactionByReference(r.Context(), reference)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, toTransactionResponse(tx), http.StatusOK)
}

func toTransactionResponse(tx *wallet.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:              tx.ID.String(),
		FromAccountID:   tx.FromAccountID.String(),
		ToAccountID:     tx.ToAccountID.String(),
		Amount:          money.FormatAmount(tx.Amount),
		Currency:        string(tx.Currency),
		TransactionType: string(tx.Type),
		ReferenceID:     tx.Reference,
		Status:          string(tx.Status),
		Reason:          tx.Reason,
		Description:     tx.Description,
		CreatedAt:       tx.CreatedAt.Format(timeLayout),
	}
	for _, entry := range tx.Entries {
		resp.Entries = append(resp.Entries, toEntryResponse(entry))
	}
	return resp
}

func toEntryResponse(entry *wallet.Entry) EntryResponse {
	return EntryResponse{
		ID:            entry.ID.String(),
		AccountID:     entry.AccountID.String(),
		TransactionID: entry.TransactionID.String(),
		EntryType:     string(entry.Type),
		Amount:        money.FormatAmount(entry.Amount),
		Currency:      string(entry.Currency),
		Description:   entry.Description,
		CreatedAt:     entry.CreatedAt.Format(timeLayout),
	}
}
