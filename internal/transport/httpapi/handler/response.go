package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kislikjeka/walletcore/internal/report"
	"github.com/kislikjeka/walletcore/internal/shared/apierror"
	"github.com/kislikjeka/walletcore/internal/wallet"
)

// timeLayout renders entity timestamps in responses.
const timeLayout = "2006-01-02T15:04:05Z07:00"

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondEnvelope sends the error envelope with its own status code.
func respondEnvelope(w http.ResponseWriter, env *apierror.Envelope) {
	respondJSON(w, env, env.Status)
}

// respondDomainError translates a domain error into the error envelope. The
// not-found family maps to 404, rejected requests to 400, a failed balance
// verification to 500 since it signals corruption rather than user error.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	path := r.URL.Path

	switch {
	case errors.Is(err, wallet.ErrAccountNotFound),
		errors.Is(err, wallet.ErrTransactionNotFound):
		respondEnvelope(w, apierror.NotFound(err.Error(), path))
	case errors.Is(err, wallet.ErrInvalidTransaction),
		errors.Is(err, wallet.ErrCurrencyMismatch),
		errors.Is(err, wallet.ErrInsufficientFunds),
		errors.Is(err, wallet.ErrInvalidCurrency),
		errors.Is(err, wallet.ErrInvalidAccountType),
		errors.Is(err, report.ErrInvalidPeriod):
		respondEnvelope(w, apierror.BadRequest(err.Error(), path))
	case errors.Is(err, wallet.ErrBalanceVerification):
		respondEnvelope(w, apierror.Internal(err.Error(), path))
	default:
		respondEnvelope(w, apierror.Internal("internal server error", path))
	}
}
