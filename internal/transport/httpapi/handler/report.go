package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kislikjeka/walletcore/internal/report"
	"github.com/kislikjeka/walletcore/internal/shared/apierror"
	"github.com/kislikjeka/walletcore/internal/wallet"
	"github.com/kislikjeka/walletcore/pkg/money"
)

// dateLayout parses statement period boundaries.
const dateLayout = "2006-01-02"

// ReportService defines the reporting operations the handler needs.
type ReportService interface {
	TransactionHistory(ctx context.Context, transactionID uuid.UUID) (*wallet.Transaction, error)
	AccountLedger(ctx context.Context, accountID uuid.UUID, pageSize, pageNumber int) (*report.LedgerPage, error)
	AccountStatement(ctx context.Context, accountID uuid.UUID, startDate, endDate time.Time) (*report.Statement, error)
}

// ReportHandler handles reporting HTTP requests
type ReportHandler struct {
	service ReportService
}

// NewReportHandler creates a new report handler
func NewReportHandler(service ReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// LedgerLineResponse represents one ledger line with its running balance
type LedgerLineResponse struct {
	Entry          EntryResponse `json:"entry"`
	RunningBalance string        `json:"runningBalance"`
}

// LedgerPageResponse represents one page of an account ledger
type LedgerPageResponse struct {
	AccountID    string               `json:"accountId"`
	Currency     string               `json:"currency"`
	Balance      string               `json:"balance"`
	PageSize     int                  `json:"pageSize"`
	PageNumber   int                  `json:"pageNumber"`
	TotalEntries int64                `json:"totalEntries"`
	TotalPages   int                  `json:"totalPages"`
	Lines        []LedgerLineResponse `json:"lines"`
}

// StatementResponse represents an account statement over a period
type StatementResponse struct {
	AccountID      string               `json:"accountId"`
	Currency       string               `json:"currency"`
	StartDate      string               `json:"startDate"`
	EndDate        string               `json:"endDate"`
	OpeningBalance string               `json:"openingBalance"`
	ClosingBalance string               `json:"closingBalance"`
	TotalCredits   string               `json:"totalCredits"`
	TotalDebits    string               `json:"totalDebits"`
	EntryCount     int                  `json:"entryCount"`
	Lines          []LedgerLineResponse `json:"lines"`
}

// GetTransactionHistory handles GET /reports/transactions/{id}
func (h *ReportHandler) GetTransactionHistory(w http.ResponseWriter, r *http.Request) {
	transactionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondEnvelope(w, apierror.BadRequest("invalid transaction id", r.URL.Path))
		return
	}

	tx, err := h.service.TransactionHistory(r.Context(), transactionID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, toTransactionResponse(tx), http.StatusOK)
}

// GetAccountLedger handles GET /reports/accounts/{id}/ledger
func (h *ReportHandler) GetAccountLedger(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondEnvelope(w, apierror.BadRequest("invalid account id", r.URL.Path))
		return
	}

	fieldErrors := make(map[string]string)
	pageSize := parseIntParam(r, "pageSize", fieldErrors)
	pageNumber := parseIntParam(r, "pageNumber", fieldErrors)
	if len(fieldErrors) > 0 {
		respondEnvelope(w, apierror.Validation(r.URL.Path, fieldErrors))
		return
	}

	page, err := h.service.AccountLedger(r.Context(), accountID, pageSize, pageNumber)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, toLedgerPageResponse(page), http.StatusOK)
}

// GetAccountStatement handles GET /reports/accounts/{id}/statement
func (h *ReportHandler) GetAccountStatement(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondEnvelope(w, apierror.BadRequest("invalid account id", r.URL.Path))
		return
	}

	fieldErrors := make(map[string]string)
	startDate := parseDateParam(r, "startDate", fieldErrors)
	endDate := parseDateParam(r, "endDate", fieldErrors)
	if len(fieldErrors) > 0 {
		respondEnvelope(w, apierror.Validation(r.URL.Path, fieldErrors))
		return
	}

	statement, err := h.service.AccountStatement(r.Context(), accountID, startDate, endDate)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, toStatementResponse(statement), http.StatusOK)
}

// parseIntParam reads an optional positive integer query parameter. Zero
// means absent; the service applies its defaults.
func parseIntParam(r *http.Request, name string, fieldErrors map[string]string) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		fieldErrors[name] = "must be a positive integer"
		return 0
	}
	return value
}

// parseDateParam reads a required calendar date query parameter.
func parseDateParam(r *http.Request, name string, fieldErrors map[string]string) time.Time {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		fieldErrors[name] = "is required"
		return time.Time{}
	}
	value, err := time.Parse(dateLayout, raw)
	if err != nil {
		fieldErrors[name] = "must be a date in YYYY-MM-DD format"
		return time.Time{}
	}
	return value
}

func toLedgerPageResponse(page *report.LedgerPage) LedgerPageResponse {
	return LedgerPageResponse{
		AccountID:    page.AccountID.String(),
		Currency:     string(page.Currency),
		Balance:      money.FormatAmount(page.Balance),
		PageSize:     page.PageSize,
		PageNumber:   page.PageNumber,
		TotalEntries: page.TotalEntries,
		TotalPages:   page.TotalPages,
		Lines:        toLedgerLineResponses(page.Lines),
	}
}

func toStatementResponse(statement *report.Statement) StatementResponse {
	return StatementResponse{
		AccountID:      statement.AccountID.String(),
		Currency:       string(statement.Currency),
		StartDate:      statement.StartDate.Format(dateLayout),
		EndDate:        statement.EndDate.Format(dateLayout),
		OpeningBalance: money.FormatAmount(statement.OpeningBalance),
		ClosingBalance: money.FormatAmount(statement.ClosingBalance),
		TotalCredits:   money.FormatAmount(statement.TotalCredits),
		TotalDebits:    money.FormatAmount(statement.TotalDebits),
		EntryCount:     len(statement.Lines),
		Lines:          toLedgerLineResponses(statement.Lines),
	}
}

func toLedgerLineResponses(lines []*wallet.LedgerLine) []LedgerLineResponse {
	resp := make([]LedgerLineResponse, 0, len(lines))
	for _, line := range lines {
		resp = append(resp, LedgerLineResponse{
			Entry:          toEntryResponse(line.Entry),
			RunningBalance: money.FormatAmount(line.RunningBalance),
		})
	}
	return resp
}
