package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/evercart/checkout/internal/cart"
	"github.com/evercart/checkout/internal/catalog"
	"github.com/evercart/checkout/internal/orders"
	"github.com/evercart/checkout/internal/payments"
)

const headerUserID = "X-User-ID"

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeDomainErr maps the error taxonomy onto HTTP statuses: client-correctable
// problems are 4xx, transient gateway trouble is 503 (retryable), everything
// unrecognized is 500.
func writeDomainErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrProductUnavailable):
		writeErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, cart.ErrInsufficientStock),
		errors.Is(err, orders.ErrStockConflict):
		writeErr(w, http.StatusConflict, err.Error())
	case errors.Is(err, orders.ErrEmptyCart):
		writeErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, orders.ErrNotFound),
		errors.Is(err, payments.ErrNotFound):
		writeErr(w, http.StatusNotFound, err.Error())
	case errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, payments.ErrGatewayRejected),
		errors.Is(err, payments.ErrOrderAlreadyPaid):
		writeErr(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, payments.ErrGatewayUnavailable):
		writeErr(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}

// userID pulls the caller identity set by the auth layer in front of this
// service. Auth internals are out of scope here.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid := r.Header.Get(headerUserID)
	if uid == "" {
		writeErr(w, http.StatusUnauthorized, "missing "+headerUserID)
		return "", false
	}
	return uid, true
}
